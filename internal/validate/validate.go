// SPDX-License-Identifier: MIT

// Package validate holds pure input checks for URLs, format selectors and
// download parameters. All checks are side-effect free.
package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ytgate/ytgate/internal/errs"
)

// dangerousSchemes are rejected before any provider pattern is consulted.
var dangerousSchemes = map[string]struct{}{
	"javascript": {},
	"data":       {},
	"file":       {},
	"vbscript":   {},
	"about":      {},
}

var (
	// formatIDRe is deliberately conservative: yt-dlp selectors like
	// "137+140" or "bestvideo/best" fit; shell metacharacters do not.
	formatIDRe = regexp.MustCompile(`^[A-Za-z0-9+/_-]{1,64}$`)

	// subtitleLangRe accepts BCP-47-shaped tags ("en", "pt-BR", "zh-Hans").
	subtitleLangRe = regexp.MustCompile(`^[A-Za-z]{2,8}(-[A-Za-z0-9]{1,8})*$`)
)

// audioFormats is the closed whitelist of audio extraction targets.
var audioFormats = map[string]struct{}{
	"mp3":  {},
	"m4a":  {},
	"wav":  {},
	"opus": {},
}

// audioQualities is the closed whitelist of audio bitrates (kbps).
var audioQualities = map[string]struct{}{
	"128": {},
	"192": {},
	"320": {},
}

// URL checks syntactic URL validity and scheme safety. Provider pattern
// matching happens later in dispatch; this guard only rejects URLs no
// provider may ever receive.
func URL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errs.New(errs.CodeInvalidURL, "url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errs.Wrap(errs.CodeInvalidURL, "url is not parseable", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if _, bad := dangerousSchemes[scheme]; bad {
		return errs.Newf(errs.CodeInvalidURL, "url scheme %q is not allowed", scheme)
	}
	if scheme != "" && scheme != "http" && scheme != "https" {
		return errs.New(errs.CodeInvalidURL, "url must use http or https")
	}
	return nil
}

// FormatID checks a yt-dlp format selector.
func FormatID(id string) error {
	if id == "" {
		return nil
	}
	if !formatIDRe.MatchString(id) {
		return errs.Newf(errs.CodeInvalidFormat, "invalid format id %q", id)
	}
	return nil
}

// AudioFormat checks the audio extraction container.
func AudioFormat(f string) error {
	if f == "" {
		return nil
	}
	if _, ok := audioFormats[f]; !ok {
		return errs.Newf(errs.CodeInvalidFormat, "unsupported audio format %q", f)
	}
	return nil
}

// AudioQuality checks the audio bitrate in kbps.
func AudioQuality(q string) error {
	if q == "" {
		return nil
	}
	if _, ok := audioQualities[q]; !ok {
		return errs.Newf(errs.CodeInvalidFormat, "unsupported audio quality %q", q)
	}
	return nil
}

// SubtitleLang checks a subtitle language tag.
func SubtitleLang(lang string) error {
	if lang == "" {
		return nil
	}
	if !subtitleLangRe.MatchString(lang) {
		return errs.Newf(errs.CodeInvalidFormat, "invalid subtitle language %q", lang)
	}
	return nil
}
