// SPDX-License-Identifier: MIT

package extractor

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/ytgate/ytgate/internal/errs"
	"github.com/ytgate/ytgate/internal/log"
	"github.com/ytgate/ytgate/internal/metrics"
	"github.com/ytgate/ytgate/internal/redact"
)

// stderrPreviewBytes bounds the stderr excerpt in debug logs.
const stderrPreviewBytes = 500

// Result captures one finished invocation.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner executes extractor requests. The production implementation is
// Invoker; tests substitute stubs.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// Invoker runs the extractor binary as a child process with stdin closed and
// stdout/stderr captured in full.
type Invoker struct {
	Bin       string        // extractor binary path or name
	KillGrace time.Duration // SIGTERM -> SIGKILL grace on cancellation
}

// NewInvoker creates an invoker for the given binary.
func NewInvoker(bin string) *Invoker {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &Invoker{Bin: bin, KillGrace: 5 * time.Second}
}

// Run executes the request and blocks until the subprocess exits or ctx is
// done. A cancelled context terminates the whole process group: SIGTERM,
// grace, SIGKILL.
func (i *Invoker) Run(ctx context.Context, req Request) (Result, error) {
	logger := log.WithComponentFromContext(ctx, "extractor")
	args := req.Args()

	logger.Debug().
		Str("event", "extractor.exec").
		Str("operation", string(req.Op)).
		Strs("argv", redact.Argv(append([]string{i.Bin}, args...))).
		Msg("invoking extractor")

	cmd := exec.Command(i.Bin, args...) // #nosec G204 -- argv built from validated inputs, never a shell string
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcGroup(cmd)

	if err := cmd.Start(); err != nil {
		metrics.IncExtractor(string(req.Op), "start_error")
		return Result{}, errs.Wrap(errs.CodeComponentUnavailable, "failed to start extractor", err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-ctx.Done():
		terminateGroup(cmd, waitCh, i.KillGrace)
		metrics.IncExtractor(string(req.Op), "timeout")
		logger.Warn().
			Str("event", "extractor.killed").
			Str("operation", string(req.Op)).
			Msg("extractor terminated by context")
		return Result{ExitCode: -1, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()},
			errs.Wrap(errs.CodeDownloadFailed, "extractor timed out", ctx.Err())
	}

	res := Result{ExitCode: cmd.ProcessState.ExitCode(), Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	preview := res.Stderr
	if len(preview) > stderrPreviewBytes {
		preview = preview[:stderrPreviewBytes]
	}
	logger.Debug().
		Str("event", "extractor.exited").
		Str("operation", string(req.Op)).
		Int("exit_code", res.ExitCode).
		Int("stdout_lines", bytes.Count(res.Stdout, []byte("\n"))).
		Str("stderr_preview", redact.Text(string(preview), req.CookiePath)).
		Msg("extractor finished")

	if waitErr != nil {
		metrics.IncExtractor(string(req.Op), "error")
		return res, &ExitError{Code: res.ExitCode, Stderr: string(res.Stderr)}
	}
	metrics.IncExtractor(string(req.Op), "success")
	return res, nil
}
