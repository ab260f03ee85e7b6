// SPDX-License-Identifier: MIT

package extractor

// Op selects the extractor operation.
type Op string

const (
	OpInfo     Op = "info"
	OpDownload Op = "download"
)

// Request describes a single extractor invocation. All fields have been
// validated upstream; the request only assembles them.
type Request struct {
	Op         Op
	URL        string
	CookiePath string

	// download parameters
	FormatID     string
	OutputPath   string // absolute, already confined
	ExtractAudio bool
	AudioFormat  string
	AudioQuality string
	Subtitles    bool
	SubtitleLang string
}

// Args builds the argument vector. Order: credential path, scripting runtime
// selector, extractor args, per-operation flags, URL last. Always a vector,
// never a shell string.
func (r Request) Args() []string {
	args := make([]string, 0, 16)

	if r.CookiePath != "" {
		args = append(args, "--cookies", r.CookiePath)
	}
	// The extractor resolves JavaScript challenges through an external
	// runtime; select it explicitly rather than relying on autodetection.
	args = append(args, "--js-runtimes", "node")
	args = append(args, "--extractor-args", "youtube:player_client=web")

	switch r.Op {
	case OpInfo:
		args = append(args, "--dump-json", "--no-download")
	case OpDownload:
		args = append(args, "--no-progress", "--print", "after_move:filepath")
		if r.FormatID != "" {
			args = append(args, "-f", r.FormatID)
		}
		if r.ExtractAudio {
			format := r.AudioFormat
			if format == "" {
				format = "mp3"
			}
			args = append(args, "-x", "--audio-format", format)
			if r.AudioQuality != "" {
				args = append(args, "--audio-quality", r.AudioQuality+"K")
			}
		}
		if r.OutputPath != "" {
			args = append(args, "-o", r.OutputPath)
		}
		if r.Subtitles {
			args = append(args, "--write-subs")
			if r.SubtitleLang != "" {
				args = append(args, "--sub-langs", r.SubtitleLang)
			}
		}
	}

	args = append(args, r.URL)
	return args
}
