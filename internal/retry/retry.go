// SPDX-License-Identifier: MIT

// Package retry wraps extractor calls with bounded, classified retries.
// Classification is a pure function over the error kind and upstream stderr
// text; only transient upstream failures are retried.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ytgate/ytgate/internal/extractor"
	"github.com/ytgate/ytgate/internal/log"
	"github.com/ytgate/ytgate/internal/metrics"
)

// retriablePatterns match stderr text of transient upstream failures.
// Everything else (private video, invalid format, auth failure, disk full)
// fails immediately.
var retriablePatterns = []string{
	"http error 5",
	"connection reset",
	"timeout",
	"timed out",
	"too many requests",
	"http error 429",
	"unable to connect",
}

// Classify reports whether err is retriable and the reason label used for
// logs and metrics.
func Classify(err error) (bool, string) {
	if err == nil {
		return false, ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return false, "canceled"
	}

	var exitErr *extractor.ExitError
	text := err.Error()
	if errors.As(err, &exitErr) {
		text = exitErr.Stderr
	}
	lower := strings.ToLower(text)
	for _, p := range retriablePatterns {
		if strings.Contains(lower, p) {
			return true, strings.ReplaceAll(p, " ", "_")
		}
	}
	return false, "non_retriable"
}

// Executor runs an operation with a bounded attempt budget and a fixed
// backoff schedule between retriable failures.
type Executor struct {
	MaxAttempts int
	Backoff     []time.Duration

	// Notify observes each scheduled retry before its backoff sleep.
	Notify func(attempt int, reason string, wait time.Duration)

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an executor. backoffSeconds defaults to {2, 4, 8}.
func New(maxAttempts int, backoffSeconds []int) *Executor {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if len(backoffSeconds) == 0 {
		backoffSeconds = []int{2, 4, 8}
	}
	backoff := make([]time.Duration, len(backoffSeconds))
	for i, s := range backoffSeconds {
		backoff[i] = time.Duration(s) * time.Second
	}
	return &Executor{
		MaxAttempts: maxAttempts,
		Backoff:     backoff,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffFor returns the wait before retrying after the given 1-based
// attempt; the schedule's last element repeats if attempts exceed it.
func (e *Executor) backoffFor(attempt int) time.Duration {
	if len(e.Backoff) == 0 {
		return 2 * time.Second
	}
	idx := attempt - 1
	if idx >= len(e.Backoff) {
		idx = len(e.Backoff) - 1
	}
	return e.Backoff[idx]
}

// Do invokes fn up to MaxAttempts times. fn receives the 1-based attempt
// index. Non-retriable errors bypass remaining attempts; after exhaustion
// the last error is surfaced.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	logger := log.WithComponentFromContext(ctx, "retry")

	var lastErr error
	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		retriable, reason := Classify(lastErr)
		if !retriable {
			return lastErr
		}
		if attempt == e.MaxAttempts {
			break
		}

		wait := e.backoffFor(attempt)
		metrics.IncRetry(reason)
		logger.Warn().
			Str("event", "retry.scheduled").
			Int("attempt", attempt).
			Int("max_attempts", e.MaxAttempts).
			Str("reason", reason).
			Dur("wait", wait).
			Msg("retrying after transient failure")
		if e.Notify != nil {
			e.Notify(attempt, reason, wait)
		}
		if err := e.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}
