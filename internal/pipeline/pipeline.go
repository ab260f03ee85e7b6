// SPDX-License-Identifier: MIT

// Package pipeline drives one request through provider dispatch, credential
// lookup, retries and the extractor. Metadata requests run it inline;
// download jobs run it from scheduler workers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ytgate/ytgate/internal/cookies"
	"github.com/ytgate/ytgate/internal/errs"
	"github.com/ytgate/ytgate/internal/extractor"
	"github.com/ytgate/ytgate/internal/jobs"
	"github.com/ytgate/ytgate/internal/provider"
	"github.com/ytgate/ytgate/internal/retry"
	"github.com/ytgate/ytgate/internal/template"
	"github.com/ytgate/ytgate/internal/validate"
)

// Timeouts bound extractor invocations per operation kind.
type Timeouts struct {
	MetadataPerAttempt time.Duration // each info attempt
	Download           time.Duration // whole download
	Conversion         time.Duration // extra budget when extracting audio
}

// Pipeline holds the per-process singletons the execution path needs.
type Pipeline struct {
	Dispatcher *provider.Dispatcher
	Cookies    *cookies.Store
	Runner     extractor.Runner
	Renderer   *template.Renderer

	Timeouts    Timeouts
	MaxAttempts int
	Backoff     []int
	MaxFileSize int64
}

// newRetry builds a fresh executor so each call carries its own Notify hook.
func (p *Pipeline) newRetry() *retry.Executor {
	return retry.New(p.MaxAttempts, p.Backoff)
}

// cookiePath resolves the provider's jar. A provider without a registered
// jar runs without credentials.
func (p *Pipeline) cookiePath(prov string) string {
	path, _ := p.Cookies.Path(prov)
	return path
}

// FetchInfo runs a metadata extraction for rawURL: validate, dispatch,
// retry with a per-attempt timeout, parse.
func (p *Pipeline) FetchInfo(ctx context.Context, rawURL string) (*extractor.VideoInfo, error) {
	if err := validate.URL(rawURL); err != nil {
		return nil, err
	}
	prov, err := p.Dispatcher.Dispatch(rawURL)
	if err != nil {
		return nil, err
	}

	req := extractor.Request{
		Op:         extractor.OpInfo,
		URL:        rawURL,
		CookiePath: p.cookiePath(prov.Name()),
	}

	var info *extractor.VideoInfo
	err = p.newRetry().Do(ctx, func(ctx context.Context, _ int) error {
		actx, cancel := context.WithTimeout(ctx, p.Timeouts.MetadataPerAttempt)
		defer cancel()
		res, runErr := p.Runner.Run(actx, req)
		if runErr != nil {
			return runErr
		}
		info, runErr = extractor.ParseInfo(res.Stdout)
		return runErr
	})
	if err != nil {
		return nil, p.classify(prov.Name(), err)
	}
	return info, nil
}

// Execute runs a download job end to end. It implements jobs.Executor.
func (p *Pipeline) Execute(ctx context.Context, job jobs.Job, hooks jobs.Hooks) (jobs.Result, error) {
	prov, err := p.Dispatcher.Dispatch(job.URL)
	if err != nil {
		return jobs.Result{}, err
	}
	cookiePath := p.cookiePath(prov.Name())

	// Metadata first: format validation, size guard, template values.
	info, err := p.FetchInfo(ctx, job.URL)
	if err != nil {
		return jobs.Result{}, err
	}

	selected, err := p.selectFormats(info, job.Params.FormatID)
	if err != nil {
		return jobs.Result{}, err
	}
	if err := p.checkSize(selected); err != nil {
		return jobs.Result{}, err
	}

	tpl, err := p.Renderer.Resolve(job.Params.OutputTemplate)
	if err != nil {
		return jobs.Result{}, err
	}
	out, err := p.Renderer.Materialize(tpl, templateVars(info, selected, job.Params))
	if err != nil {
		return jobs.Result{}, err
	}
	if hooks.OnOutputPlanned != nil {
		hooks.OnOutputPlanned(out.AbsPath)
	}

	req := extractor.Request{
		Op:           extractor.OpDownload,
		URL:          job.URL,
		CookiePath:   cookiePath,
		FormatID:     job.Params.FormatID,
		OutputPath:   out.AbsPath,
		ExtractAudio: job.Params.ExtractAudio,
		AudioFormat:  job.Params.AudioFormat,
		AudioQuality: job.Params.AudioQuality,
		Subtitles:    job.Params.Subtitles,
		SubtitleLang: job.Params.SubtitleLang,
	}

	budget := p.Timeouts.Download
	if job.Params.ExtractAudio {
		budget += p.Timeouts.Conversion
	}
	dctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	exec := p.newRetry()
	exec.Notify = hooks.OnRetryScheduled

	var filePath string
	err = exec.Do(dctx, func(ctx context.Context, attempt int) error {
		if hooks.OnAttempt != nil {
			hooks.OnAttempt(attempt)
		}
		res, runErr := p.Runner.Run(ctx, req)
		if runErr != nil {
			return runErr
		}
		filePath, runErr = extractor.ExtractFilePath(string(res.Stdout))
		return runErr
	})
	if err != nil {
		return jobs.Result{}, p.classify(prov.Name(), err)
	}

	size, err := p.verifyArtifact(filePath)
	if err != nil {
		return jobs.Result{}, err
	}
	return jobs.Result{FilePath: filePath, FileSizeBytes: size}, nil
}

// selectFormats resolves a possibly compound format id ("137+140") against
// the advertised formats. Empty means extractor default.
func (p *Pipeline) selectFormats(info *extractor.VideoInfo, formatID string) ([]extractor.Format, error) {
	if formatID == "" {
		return nil, nil
	}
	byID := make(map[string]extractor.Format, len(info.Formats))
	for _, f := range info.Formats {
		byID[f.FormatID] = f
	}

	parts := strings.Split(formatID, "+")
	selected := make([]extractor.Format, 0, len(parts))
	for _, part := range parts {
		f, ok := byID[part]
		if !ok {
			return nil, errs.Newf(errs.CodeFormatNotFound, "format %s not available for this video", part)
		}
		selected = append(selected, f)
	}
	return selected, nil
}

// checkSize rejects downloads whose advertised size exceeds the cap.
// Formats without a known size pass.
func (p *Pipeline) checkSize(selected []extractor.Format) error {
	if p.MaxFileSize <= 0 {
		return nil
	}
	var total int64
	for _, f := range selected {
		total += f.Filesize
	}
	if total > p.MaxFileSize {
		return errs.Newf(errs.CodeFileTooLarge,
			"selected formats total %d bytes, limit is %d", total, p.MaxFileSize)
	}
	return nil
}

// templateVars builds the sanitizable placeholder values from metadata and
// the selected formats.
func templateVars(info *extractor.VideoInfo, selected []extractor.Format, params jobs.Params) map[string]string {
	vars := map[string]string{
		"title":       info.Title,
		"id":          info.ID,
		"upload_date": info.UploadDate,
		"uploader":    info.Uploader,
		"format_id":   params.FormatID,
	}

	var primary *extractor.Format
	if len(selected) > 0 {
		primary = &selected[0]
	} else if len(info.Formats) > 0 {
		primary = &info.Formats[0]
	}

	ext := "mp4"
	resolution := ""
	if primary != nil {
		if primary.Ext != "" {
			ext = primary.Ext
		}
		resolution = primary.Resolution
	}
	if params.ExtractAudio {
		ext = params.AudioFormat
		if ext == "" {
			ext = "mp3"
		}
	}
	vars["ext"] = ext
	vars["resolution"] = resolution
	return vars
}

// verifyArtifact confirms the produced file stayed inside the output
// directory and returns its size.
func (p *Pipeline) verifyArtifact(path string) (int64, error) {
	rel, err := fileWithin(p.Renderer.OutputDir(), path)
	if !rel || err != nil {
		return 0, errs.Newf(errs.CodeDownloadFailed, "extractor wrote outside the output directory: %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, errs.Wrap(errs.CodeDownloadFailed, "produced file missing", err)
	}
	return info.Size(), nil
}

func fileWithin(dir, path string) (bool, error) {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false, err
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}

// classify refines a terminal extractor failure into the taxonomy and flags
// credential problems on the dispatcher.
func (p *Pipeline) classify(prov string, err error) error {
	var se *errs.Error
	if errors.As(err, &se) {
		return err
	}

	var exitErr *extractor.ExitError
	if !errors.As(err, &exitErr) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return errs.Wrap(errs.CodeDownloadFailed, "operation cancelled", err)
		}
		return errs.Wrap(errs.CodeDownloadFailed, "extraction failed", err)
	}

	stderr := strings.ToLower(exitErr.Stderr)
	switch {
	case strings.Contains(stderr, "sign in to confirm") || strings.Contains(stderr, "cookies are no longer valid"):
		p.Dispatcher.SetDegraded(prov, true, "credential rejected upstream")
		return errs.Wrap(errs.CodeCookieExpired, "credential rejected by upstream", err)
	case strings.Contains(stderr, "private video") || strings.Contains(stderr, "video unavailable") ||
		strings.Contains(stderr, "this video is not available"):
		return errs.Wrap(errs.CodeVideoUnavailable, "video is unavailable", err)
	case strings.Contains(stderr, "requested format is not available") ||
		strings.Contains(stderr, "requested format not available"):
		return errs.Wrap(errs.CodeFormatNotFound, "requested format is not available", err)
	case strings.Contains(stderr, "no space left"):
		return errs.Wrap(errs.CodeStorageFull, "output filesystem is full", err)
	case strings.Contains(stderr, "postprocess") || strings.Contains(stderr, "ffmpeg"):
		return errs.Wrap(errs.CodeTranscodingFailed, "audio conversion failed", err)
	}
	return errs.Wrap(errs.CodeDownloadFailed, fmt.Sprintf("extractor failed with exit code %d", exitErr.Code), err)
}
