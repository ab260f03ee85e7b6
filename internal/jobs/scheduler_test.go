// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ytgate/ytgate/internal/errs"
	"github.com/ytgate/ytgate/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubExecutor struct {
	mu      sync.Mutex
	ran     []string
	fn      func(ctx context.Context, job Job, hooks Hooks) (Result, error)
	started chan string
}

func (e *stubExecutor) Execute(ctx context.Context, job Job, hooks Hooks) (Result, error) {
	e.mu.Lock()
	e.ran = append(e.ran, job.ID)
	e.mu.Unlock()
	if e.started != nil {
		e.started <- job.ID
	}
	if e.fn != nil {
		return e.fn(ctx, job, hooks)
	}
	return Result{FilePath: "/out/" + job.ID + ".mp4", FileSizeBytes: 42}, nil
}

func (e *stubExecutor) order() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ran...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSchedulerRunsJobToCompletion(t *testing.T) {
	store := NewStore(24 * time.Hour)
	exec := &stubExecutor{}
	sched := NewScheduler(store, exec, storage.NewActiveFileSet(), 100, 2)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	job := store.Create("https://youtu.be/abc12345678", "youtube", Params{Priority: PriorityDownload})
	pos, err := sched.Enqueue(job.ID, job.Params.Priority)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	waitFor(t, func() bool {
		got, _ := store.Get(job.ID)
		return got.State == StateCompleted
	})

	got, _ := store.Get(job.ID)
	assert.Equal(t, "/out/"+job.ID+".mp4", got.FilePath)
	assert.Equal(t, int64(42), got.FileSizeBytes)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, float64(100), got.Progress)

	cancel()
	sched.Wait()
}

func TestSchedulerRecordsFailure(t *testing.T) {
	store := NewStore(24 * time.Hour)
	exec := &stubExecutor{
		fn: func(context.Context, Job, Hooks) (Result, error) {
			return Result{}, errs.New(errs.CodeVideoUnavailable, "Video unavailable")
		},
	}
	sched := NewScheduler(store, exec, storage.NewActiveFileSet(), 100, 1)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	job := store.Create("u", "youtube", Params{Priority: PriorityDownload})
	_, err := sched.Enqueue(job.ID, job.Params.Priority)
	require.NoError(t, err)

	waitFor(t, func() bool {
		got, _ := store.Get(job.ID)
		return got.State == StateFailed
	})

	got, _ := store.Get(job.ID)
	assert.Equal(t, errs.CodeVideoUnavailable, got.ErrorCode)
	assert.NotEmpty(t, got.ErrorMessage)
	assert.NotNil(t, got.CompletedAt)

	cancel()
	sched.Wait()
}

func TestSchedulerQueueFull(t *testing.T) {
	store := NewStore(24 * time.Hour)
	sched := NewScheduler(store, &stubExecutor{}, storage.NewActiveFileSet(), 2, 1)
	// workers not started: queue fills

	for i := 0; i < 2; i++ {
		job := store.Create("u", "youtube", Params{})
		_, err := sched.Enqueue(job.ID, PriorityDownload)
		require.NoError(t, err)
	}

	job := store.Create("u", "youtube", Params{})
	_, err := sched.Enqueue(job.ID, PriorityDownload)
	assert.Equal(t, errs.CodeQueueFull, errs.CodeOf(err))

	stats := sched.Stats()
	assert.Equal(t, 2, stats.QueueDepth)
	assert.Equal(t, 2, stats.Capacity)
}

func TestSchedulerPriorityAndFIFOOrder(t *testing.T) {
	store := NewStore(24 * time.Hour)
	release := make(chan struct{})
	exec := &stubExecutor{
		fn: func(context.Context, Job, Hooks) (Result, error) {
			<-release
			return Result{FilePath: "/out/x.mp4"}, nil
		},
	}
	// single worker so queued order is observable
	sched := NewScheduler(store, exec, storage.NewActiveFileSet(), 100, 1)

	low1 := store.Create("low1", "youtube", Params{})
	low2 := store.Create("low2", "youtube", Params{})
	high := store.Create("high", "youtube", Params{})
	_, _ = sched.Enqueue(low1.ID, PriorityDownload)
	_, _ = sched.Enqueue(low2.ID, PriorityDownload)
	_, _ = sched.Enqueue(high.ID, PriorityMetadata)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	waitFor(t, func() bool { return len(exec.order()) == 1 })
	close(release)
	waitFor(t, func() bool { return len(exec.order()) == 3 })

	assert.Equal(t, []string{high.ID, low1.ID, low2.ID}, exec.order())

	cancel()
	sched.Wait()
}

func TestSchedulerPinsPlannedOutput(t *testing.T) {
	store := NewStore(24 * time.Hour)
	active := storage.NewActiveFileSet()
	pinnedDuringRun := make(chan bool, 1)
	exec := &stubExecutor{
		fn: func(_ context.Context, _ Job, hooks Hooks) (Result, error) {
			hooks.OnOutputPlanned("/out/clip.mp4")
			pinnedDuringRun <- active.Contains("/out/clip.mp4")
			return Result{FilePath: "/out/clip.mp4"}, nil
		},
	}
	sched := NewScheduler(store, exec, active, 100, 1)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	job := store.Create("u", "youtube", Params{})
	_, err := sched.Enqueue(job.ID, PriorityDownload)
	require.NoError(t, err)

	assert.True(t, <-pinnedDuringRun)
	waitFor(t, func() bool {
		got, _ := store.Get(job.ID)
		return got.State == StateCompleted
	})
	assert.False(t, active.Contains("/out/clip.mp4"))

	cancel()
	sched.Wait()
}

func TestSchedulerRetryHooksDriveStateMachine(t *testing.T) {
	store := NewStore(24 * time.Hour)
	var observed []State
	exec := &stubExecutor{
		fn: func(_ context.Context, job Job, hooks Hooks) (Result, error) {
			record := func() {
				got, _ := store.Get(job.ID)
				observed = append(observed, got.State)
			}
			hooks.OnAttempt(1)
			record()
			hooks.OnRetryScheduled(1, "http_error_5", 0)
			record()
			hooks.OnAttempt(2)
			record()
			return Result{FilePath: "/out/x.mp4"}, nil
		},
	}
	sched := NewScheduler(store, exec, storage.NewActiveFileSet(), 100, 1)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	job := store.Create("u", "youtube", Params{})
	_, err := sched.Enqueue(job.ID, PriorityDownload)
	require.NoError(t, err)

	waitFor(t, func() bool {
		got, _ := store.Get(job.ID)
		return got.State == StateCompleted
	})

	assert.Equal(t, []State{StateProcessing, StateRetrying, StateProcessing}, observed)
	got, _ := store.Get(job.ID)
	assert.Equal(t, 2, got.AttemptCount)

	cancel()
	sched.Wait()
}

func TestSchedulerShutdownLeavesQueuedPending(t *testing.T) {
	store := NewStore(24 * time.Hour)
	sched := NewScheduler(store, &stubExecutor{}, storage.NewActiveFileSet(), 100, 1)

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	cancel()
	sched.Wait()

	job := store.Create("u", "youtube", Params{})
	_, err := sched.Enqueue(job.ID, PriorityDownload)
	require.NoError(t, err)

	got, _ := store.Get(job.ID)
	assert.Equal(t, StatePending, got.State)
}
