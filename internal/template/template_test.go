// SPDX-License-Identifier: MIT

package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytgate/ytgate/internal/errs"
)

func TestParseRejectsTraversal(t *testing.T) {
	bad := []string{
		"../etc/%(id)s.%(ext)s",
		"a/../../b/%(id)s.%(ext)s",
		"/abs/%(id)s.%(ext)s",
		"~home/%(id)s.%(ext)s",
		`dir\%(id)s.%(ext)s`,
	}
	for _, raw := range bad {
		_, err := Parse(raw)
		require.Error(t, err, raw)
		assert.Equal(t, errs.CodeInvalidFormat, errs.CodeOf(err), raw)
	}
}

func TestParseRejectsUnknownPlaceholder(t *testing.T) {
	_, err := Parse("%(playlist_index)s.%(ext)s")
	require.Error(t, err)
	assert.Equal(t, errs.CodeInvalidFormat, errs.CodeOf(err))
}

func TestParseAcceptsWhitelist(t *testing.T) {
	tpl, err := Parse("%(title)s-%(id)s.%(ext)s")
	require.NoError(t, err)
	assert.Equal(t, "%(title)s-%(id)s.%(ext)s", tpl.Raw())
}

func TestSanitizeValue(t *testing.T) {
	assert.Equal(t, "a_b_c", SanitizeValue(`a/b\x00`[:3]+"_c"))
	assert.Equal(t, "video_clip", SanitizeValue("video/clip"))
	assert.Equal(t, "q_a", SanitizeValue(`q?a`))
	assert.Equal(t, "unnamed", SanitizeValue(""))
	assert.Equal(t, "unnamed", SanitizeValue(" ... "))
	assert.Equal(t, "tab", SanitizeValue("ta\x09b")[:3])

	long := strings.Repeat("ü", 300)
	assert.Equal(t, 200, len([]rune(SanitizeValue(long))))
}

func TestRenderDeterministic(t *testing.T) {
	tpl, err := Parse("%(title)s-%(id)s.%(ext)s")
	require.NoError(t, err)

	vars := map[string]string{"title": "My: Video", "id": "abc123", "ext": "mp4"}
	first := tpl.Render(vars)
	assert.Equal(t, "My_ Video-abc123.mp4", first)
	assert.Equal(t, first, tpl.Render(vars))
}

func TestRenderWindowsReservedStem(t *testing.T) {
	tpl, err := Parse("%(title)s.%(ext)s")
	require.NoError(t, err)
	got := tpl.Render(map[string]string{"title": "CON", "ext": "mp4"})
	assert.Equal(t, "_CON.mp4", got)
}

func TestMaterializeCollisions(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRenderer(dir, "")
	require.NoError(t, err)

	tpl, err := Parse("%(id)s.%(ext)s")
	require.NoError(t, err)
	vars := map[string]string{"id": "abc", "ext": "mp4"}

	m1, err := r.Materialize(tpl, vars)
	require.NoError(t, err)
	assert.Equal(t, "abc.mp4", m1.RelPath)

	require.NoError(t, os.WriteFile(m1.AbsPath, []byte("x"), 0o600))

	m2, err := r.Materialize(tpl, vars)
	require.NoError(t, err)
	assert.Equal(t, "abc_1.mp4", m2.RelPath)

	require.NoError(t, os.WriteFile(m2.AbsPath, []byte("x"), 0o600))

	m3, err := r.Materialize(tpl, vars)
	require.NoError(t, err)
	assert.Equal(t, "abc_2.mp4", m3.RelPath)
}

func TestMaterializeStaysInsideOutputDir(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRenderer(dir, "")
	require.NoError(t, err)

	tpl, err := Parse("%(title)s.%(ext)s")
	require.NoError(t, err)

	// Hostile metadata must not escape even when the template is benign.
	m, err := r.Materialize(tpl, map[string]string{"title": "../../evil", "ext": "mp4"})
	require.NoError(t, err)
	rel, err := filepath.Rel(dir, m.AbsPath)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(rel, ".."))
}

func TestResolveDefault(t *testing.T) {
	r, err := NewRenderer(t.TempDir(), "")
	require.NoError(t, err)

	tpl, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplate, tpl.Raw())

	_, err = r.Resolve("../%(id)s.%(ext)s")
	assert.Error(t, err)
}
