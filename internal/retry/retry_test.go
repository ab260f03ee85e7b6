// SPDX-License-Identifier: MIT

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytgate/ytgate/internal/extractor"
)

func noSleep(e *Executor) *Executor {
	e.sleep = func(context.Context, time.Duration) error { return nil }
	return e
}

func TestClassify(t *testing.T) {
	retriable := []string{
		"ERROR: HTTP Error 503: Service Unavailable",
		"Connection reset by peer",
		"read: operation timed out",
		"HTTP Error 429: Too Many Requests",
		"Unable to connect to proxy",
	}
	for _, s := range retriable {
		ok, _ := Classify(&extractor.ExitError{Code: 1, Stderr: s})
		assert.True(t, ok, s)
	}

	nonRetriable := []string{
		"ERROR: Private video. Sign in if you've been granted access",
		"ERROR: Video unavailable",
		"ERROR: requested format not available",
		"ERROR: Sign in to confirm you're not a bot",
		"No space left on device",
	}
	for _, s := range nonRetriable {
		ok, _ := Classify(&extractor.ExitError{Code: 1, Stderr: s})
		assert.False(t, ok, s)
	}

	ok, reason := Classify(context.DeadlineExceeded)
	assert.True(t, ok)
	assert.Equal(t, "timeout", reason)

	ok, _ = Classify(context.Canceled)
	assert.False(t, ok)
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	e := noSleep(New(3, []int{2, 4, 8}))

	var attempts []int
	err := e.Do(context.Background(), func(_ context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 3 {
			return &extractor.ExitError{Code: 1, Stderr: "HTTP Error 503"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestDoNonRetriableBypassesAttempts(t *testing.T) {
	e := noSleep(New(3, nil))

	calls := 0
	wantErr := &extractor.ExitError{Code: 1, Stderr: "Private video"}
	err := e.Do(context.Background(), func(context.Context, int) error {
		calls++
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustionSurfacesLastError(t *testing.T) {
	e := noSleep(New(3, []int{1}))

	var notified []int
	e.Notify = func(attempt int, reason string, _ time.Duration) {
		notified = append(notified, attempt)
		assert.Equal(t, "http_error_5", reason)
	}

	calls := 0
	err := e.Do(context.Background(), func(context.Context, int) error {
		calls++
		return &extractor.ExitError{Code: 1, Stderr: "HTTP Error 500"}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestBackoffSchedule(t *testing.T) {
	e := New(3, []int{2, 4, 8})

	var waits []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	_ = e.Do(context.Background(), func(context.Context, int) error {
		return &extractor.ExitError{Code: 1, Stderr: "HTTP Error 503"}
	})

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	e := New(3, []int{1})
	ctx, cancel := context.WithCancel(context.Background())
	e.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := e.Do(ctx, func(context.Context, int) error {
		return &extractor.ExitError{Code: 1, Stderr: "HTTP Error 503"}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyPlainError(t *testing.T) {
	ok, _ := Classify(errors.New("client-side timeout waiting for headers"))
	assert.True(t, ok) // message text drives classification
}
