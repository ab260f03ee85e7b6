// SPDX-License-Identifier: MIT

// Package template parses and materializes output filename templates. A
// parsed template is an ordered sequence of literal segments and whitelisted
// placeholders; rendering sanitizes every metadata value before it can touch
// the filesystem.
package template

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ytgate/ytgate/internal/errs"
)

// DefaultTemplate mirrors the extractor's own default naming.
const DefaultTemplate = "%(title)s-%(id)s.%(ext)s"

// maxValueLength bounds each substituted metadata value in Unicode code
// points.
const maxValueLength = 200

// maxCollisions bounds the rename counter before a render fails.
const maxCollisions = 1000

// placeholderWhitelist is the closed set of allowed template variables.
var placeholderWhitelist = map[string]struct{}{
	"title":       {},
	"id":          {},
	"ext":         {},
	"upload_date": {},
	"uploader":    {},
	"resolution":  {},
	"format_id":   {},
}

var placeholderRe = regexp.MustCompile(`%\(([A-Za-z_]+)\)s`)

// unsafeChars is the character class replaced with '_' in substituted
// values: filesystem-reserved plus control characters.
const unsafeChars = `<>:"/\|?*`

// windowsReserved are device names that cannot be used as a filename stem.
var windowsReserved = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

type segment struct {
	literal  string
	variable string // non-empty for placeholder segments
}

// Template is the parsed, immutable representation of an output template.
type Template struct {
	raw      string
	segments []segment
}

// Raw returns the template string the Template was parsed from.
func (t *Template) Raw() string { return t.raw }

// Parse validates and compiles a raw template string.
func Parse(raw string) (*Template, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errs.New(errs.CodeInvalidFormat, "output template is empty")
	}
	if strings.Contains(raw, "\\") {
		return nil, errs.New(errs.CodeInvalidFormat, "output template must not contain backslashes")
	}
	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "~") {
		return nil, errs.New(errs.CodeInvalidFormat, "output template must be relative")
	}
	for _, seg := range strings.Split(raw, "/") {
		if seg == ".." {
			return nil, errs.New(errs.CodeInvalidFormat, "output template must not contain '..' segments")
		}
	}

	var segs []segment
	rest := raw
	for {
		loc := placeholderRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			if rest != "" {
				segs = append(segs, segment{literal: rest})
			}
			break
		}
		if loc[0] > 0 {
			segs = append(segs, segment{literal: rest[:loc[0]]})
		}
		name := rest[loc[2]:loc[3]]
		if _, ok := placeholderWhitelist[name]; !ok {
			return nil, errs.Newf(errs.CodeInvalidFormat, "unknown template placeholder %%(%s)s", name)
		}
		segs = append(segs, segment{variable: name})
		rest = rest[loc[1]:]
	}
	// Reject stray "%(" that never closed into a valid placeholder.
	for _, s := range segs {
		if s.variable == "" && strings.Contains(s.literal, "%(") {
			return nil, errs.New(errs.CodeInvalidFormat, "malformed template placeholder")
		}
	}
	return &Template{raw: raw, segments: segs}, nil
}

// SanitizeValue makes a metadata value safe for filename use: NFKC
// normalization, control characters stripped, reserved characters replaced
// with '_', trimmed, truncated to 200 code points.
func SanitizeValue(v string) string {
	v = norm.NFKC.String(v)

	var b strings.Builder
	for _, r := range v {
		switch {
		case r < 0x20 || r == 0x7f:
			// drop control characters entirely
		case strings.ContainsRune(unsafeChars, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	v = strings.Trim(b.String(), " .")

	runes := []rune(v)
	if len(runes) > maxValueLength {
		v = string(runes[:maxValueLength])
	}
	if v == "" {
		return "unnamed"
	}
	return v
}

// Render substitutes vars into the template and returns the relative output
// path. Values are sanitized; literal separators survive as directories.
func (t *Template) Render(vars map[string]string) string {
	var b strings.Builder
	for _, s := range t.segments {
		if s.variable != "" {
			b.WriteString(SanitizeValue(vars[s.variable]))
			continue
		}
		b.WriteString(s.literal)
	}
	rel := b.String()

	// Guard the final stem against Windows device names.
	dir, file := filepath.Split(rel)
	stem := file
	if i := strings.LastIndex(file, "."); i > 0 {
		stem = file[:i]
	}
	if _, reserved := windowsReserved[strings.ToUpper(stem)]; reserved {
		rel = dir + "_" + file
	}
	return rel
}

// withCounter inserts a collision counter before the extension:
// "clip.mp4" -> "clip_2.mp4".
func withCounter(rel string, n int) string {
	dir, file := filepath.Split(rel)
	if i := strings.LastIndex(file, "."); i > 0 {
		return fmt.Sprintf("%s%s_%d%s", dir, file[:i], n, file[i:])
	}
	return fmt.Sprintf("%s%s_%d", dir, file, n)
}
