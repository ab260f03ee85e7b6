// SPDX-License-Identifier: MIT

package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ytgate/ytgate/internal/errs"
)

func TestURL(t *testing.T) {
	valid := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"http://youtu.be/abc12345678",
		"youtube.com/watch?v=abc12345678",
	}
	for _, u := range valid {
		assert.NoError(t, URL(u), u)
	}

	invalid := []string{
		"",
		"   ",
		"javascript:alert(1)",
		"file:///etc/passwd",
		"data:text/html,hi",
		"ftp://example.com/video",
	}
	for _, u := range invalid {
		err := URL(u)
		assert.Error(t, err, u)
		assert.Equal(t, errs.CodeInvalidURL, errs.CodeOf(err), u)
	}
}

func TestFormatID(t *testing.T) {
	assert.NoError(t, FormatID(""))
	assert.NoError(t, FormatID("137+140"))
	assert.NoError(t, FormatID("bestvideo/best"))
	assert.NoError(t, FormatID("22"))

	bad := []string{
		"rm -rf /",
		"137;echo",
		"a b",
		"$(whoami)",
		"12345678901234567890123456789012345678901234567890123456789012345", // 65 chars
	}
	for _, id := range bad {
		err := FormatID(id)
		assert.Error(t, err, id)
		assert.Equal(t, errs.CodeInvalidFormat, errs.CodeOf(err), id)
	}
}

func TestAudioParams(t *testing.T) {
	for _, f := range []string{"mp3", "m4a", "wav", "opus", ""} {
		assert.NoError(t, AudioFormat(f))
	}
	assert.Error(t, AudioFormat("flac"))

	for _, q := range []string{"128", "192", "320", ""} {
		assert.NoError(t, AudioQuality(q))
	}
	assert.Error(t, AudioQuality("64"))
	assert.Error(t, AudioQuality("lossless"))
}

func TestSubtitleLang(t *testing.T) {
	for _, l := range []string{"en", "pt-BR", "zh-Hans", "de-DE-1901", ""} {
		assert.NoError(t, SubtitleLang(l), l)
	}
	for _, l := range []string{"e", "en_US", "english language", "../en"} {
		assert.Error(t, SubtitleLang(l), l)
	}
}
