// SPDX-License-Identifier: MIT

// Package extractor builds argument vectors for the external yt-dlp binary,
// executes it as a child process and parses its output. The binary is a
// black box: the only contract is the argv surface, exit code 0 on success,
// and JSON on stdout for info operations.
package extractor

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ytgate/ytgate/internal/errs"
)

// Format is one renditions entry from the extractor's JSON document.
// Unknown upstream fields are ignored.
type Format struct {
	FormatID   string   `json:"format_id"`
	Ext        string   `json:"ext"`
	Resolution string   `json:"resolution,omitempty"`
	VideoCodec string   `json:"vcodec,omitempty"`
	AudioCodec string   `json:"acodec,omitempty"`
	Bitrate    float64  `json:"tbr,omitempty"`
	AudioRate  float64  `json:"abr,omitempty"`
	Filesize   int64    `json:"filesize,omitempty"`
	FormatType string   `json:"format_type,omitempty"`
}

// Subtitle is one subtitle track descriptor.
type Subtitle struct {
	Language string `json:"language"`
	Ext      string `json:"ext"`
	Auto     bool   `json:"auto"`
}

// VideoInfo is the typed projection of the extractor's loosely typed JSON.
type VideoInfo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Duration    float64    `json:"duration,omitempty"`
	Uploader    string     `json:"uploader,omitempty"`
	UploadDate  string     `json:"upload_date,omitempty"`
	ViewCount   int64      `json:"view_count,omitempty"`
	Thumbnail   string     `json:"thumbnail,omitempty"`
	Description string     `json:"description,omitempty"`
	Formats     []Format   `json:"formats,omitempty"`
	Subtitles   []Subtitle `json:"subtitles,omitempty"`
}

// rawInfo mirrors the upstream JSON shape before projection.
type rawInfo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Duration    float64 `json:"duration"`
	Uploader    string  `json:"uploader"`
	UploadDate  string  `json:"upload_date"`
	ViewCount   int64   `json:"view_count"`
	Thumbnail   string  `json:"thumbnail"`
	Description string  `json:"description"`
	Formats     []struct {
		FormatID   string  `json:"format_id"`
		Ext        string  `json:"ext"`
		Resolution string  `json:"resolution"`
		VideoCodec string  `json:"vcodec"`
		AudioCodec string  `json:"acodec"`
		Bitrate    float64 `json:"tbr"`
		AudioRate  float64 `json:"abr"`
		Filesize   int64   `json:"filesize"`
	} `json:"formats"`
	Subtitles map[string][]struct {
		Ext  string `json:"ext"`
		Name string `json:"name"`
	} `json:"subtitles"`
}

// ParseInfo decodes a single JSON info document from stdout. Formats are
// re-sorted by quality descending.
func ParseInfo(stdout []byte) (*VideoInfo, error) {
	var raw rawInfo
	if err := json.Unmarshal(stdout, &raw); err != nil {
		return nil, errs.Wrap(errs.CodeDownloadFailed, "failed to parse extractor output", err)
	}

	info := &VideoInfo{
		ID:          raw.ID,
		Title:       raw.Title,
		Duration:    raw.Duration,
		Uploader:    raw.Uploader,
		UploadDate:  raw.UploadDate,
		ViewCount:   raw.ViewCount,
		Thumbnail:   raw.Thumbnail,
		Description: raw.Description,
	}
	for _, f := range raw.Formats {
		info.Formats = append(info.Formats, Format{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Resolution: f.Resolution,
			VideoCodec: f.VideoCodec,
			AudioCodec: f.AudioCodec,
			Bitrate:    f.Bitrate,
			AudioRate:  f.AudioRate,
			Filesize:   f.Filesize,
			FormatType: categorizeFormat(f.VideoCodec, f.AudioCodec),
		})
	}
	for lang, tracks := range raw.Subtitles {
		for _, tr := range tracks {
			info.Subtitles = append(info.Subtitles, Subtitle{
				Language: lang,
				Ext:      tr.Ext,
				Auto:     strings.HasPrefix(tr.Name, "auto-generated"),
			})
		}
	}
	sort.Slice(info.Subtitles, func(i, j int) bool {
		return info.Subtitles[i].Language < info.Subtitles[j].Language
	})
	SortFormats(info.Formats)
	return info, nil
}

func categorizeFormat(vcodec, acodec string) string {
	hasVideo := vcodec != "" && vcodec != "none"
	hasAudio := acodec != "" && acodec != "none"
	switch {
	case hasVideo && hasAudio:
		return "video+audio"
	case hasVideo:
		return "video-only"
	case hasAudio:
		return "audio-only"
	}
	return "unknown"
}

func formatTypeRank(t string) int {
	switch t {
	case "video+audio":
		return 3
	case "video-only":
		return 2
	case "audio-only":
		return 1
	}
	return 0
}

var resolutionRe = regexp.MustCompile(`(\d+)x(\d+)`)

// resolutionHeight extracts the pixel height from a resolution string such
// as "1920x1080"; "audio only" and empty map to 0.
func resolutionHeight(res string) int {
	if res == "" || strings.Contains(strings.ToLower(res), "audio") {
		return 0
	}
	if m := resolutionRe.FindStringSubmatch(res); m != nil {
		h, _ := strconv.Atoi(m[2])
		return h
	}
	if m := regexp.MustCompile(`\d+`).FindString(res); m != "" {
		h, _ := strconv.Atoi(m)
		return h
	}
	return 0
}

// SortFormats orders formats by quality descending: format type, resolution
// height, bitrate, filesize, then format id for stability.
func SortFormats(formats []Format) {
	sort.SliceStable(formats, func(i, j int) bool {
		a, b := formats[i], formats[j]
		if ra, rb := formatTypeRank(a.FormatType), formatTypeRank(b.FormatType); ra != rb {
			return ra > rb
		}
		if ha, hb := resolutionHeight(a.Resolution), resolutionHeight(b.Resolution); ha != hb {
			return ha > hb
		}
		if a.Bitrate != b.Bitrate {
			return a.Bitrate > b.Bitrate
		}
		if a.Filesize != b.Filesize {
			return a.Filesize > b.Filesize
		}
		return a.FormatID > b.FormatID
	})
}

// ExtractFilePath derives the produced file path from download stdout.
// Preferred source is the bare path emitted by "--print
// after_move:filepath"; the "[download] Destination:" progress line is the
// fallback.
func ExtractFilePath(stdout string) (string, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" && !strings.HasPrefix(line, "[") {
			return line, nil
		}
	}
	const destPrefix = "[download] Destination: "
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if rest, ok := strings.CutPrefix(line, destPrefix); ok {
			return rest, nil
		}
	}
	return "", errs.New(errs.CodeDownloadFailed, "could not determine output file path from extractor output")
}

// ExitError carries a non-zero extractor exit for retry classification.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("extractor exited with code %d: %s", e.Code, firstLine(e.Stderr))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
