// SPDX-License-Identifier: MIT

package jobs

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/ytgate/ytgate/internal/errs"
	"github.com/ytgate/ytgate/internal/log"
	"github.com/ytgate/ytgate/internal/metrics"
	"github.com/ytgate/ytgate/internal/storage"
)

// Priorities: lower runs earlier.
const (
	PriorityMetadata = 1
	PriorityDownload = 10
)

// Result is a successful execution's outcome.
type Result struct {
	FilePath      string
	FileSizeBytes int64
}

// Hooks let the executor report progress back into the job record while it
// owns the job.
type Hooks struct {
	// OnOutputPlanned pins the planned artifact path against the reaper.
	OnOutputPlanned func(absPath string)
	// OnAttempt marks the start of the given 1-based attempt.
	OnAttempt func(attempt int)
	// OnRetryScheduled marks the job RETRYING for the backoff window.
	OnRetryScheduled func(attempt int, reason string, wait time.Duration)
}

// Executor runs one job end to end: provider dispatch, retries, extraction.
type Executor interface {
	Execute(ctx context.Context, job Job, hooks Hooks) (Result, error)
}

// queueItem orders by priority, then enqueue sequence.
type queueItem struct {
	jobID    string
	priority int
	seq      uint64
	index    int
}

type priorityQueue []*queueItem

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q priorityQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *priorityQueue) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Scheduler owns the bounded priority queue and the worker pool.
type Scheduler struct {
	store  *Store
	exec   Executor
	active *storage.ActiveFileSet

	capacity int
	workers  int

	mu     sync.Mutex
	queue  priorityQueue
	seq    uint64
	notify chan struct{}

	sem         *semaphore.Weighted
	activeCount atomic.Int64
	wg          sync.WaitGroup
	logger      zerolog.Logger
}

// NewScheduler creates a scheduler with the given queue capacity and worker
// concurrency.
func NewScheduler(store *Store, exec Executor, active *storage.ActiveFileSet, capacity, workers int) *Scheduler {
	if capacity <= 0 {
		capacity = 100
	}
	if workers <= 0 {
		workers = 5
	}
	return &Scheduler{
		store:    store,
		exec:     exec,
		active:   active,
		capacity: capacity,
		workers:  workers,
		notify:   make(chan struct{}, 1),
		sem:      semaphore.NewWeighted(int64(workers)),
		logger:   log.WithComponent("scheduler"),
	}
}

// Stats is the queue observability snapshot.
type Stats struct {
	QueueDepth    int `json:"queue_depth"`
	ActiveWorkers int `json:"active_workers"`
	Capacity      int `json:"capacity"`
	MaxWorkers    int `json:"max_workers"`
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	depth := len(s.queue)
	s.mu.Unlock()
	return Stats{
		QueueDepth:    depth,
		ActiveWorkers: int(s.activeCount.Load()),
		Capacity:      s.capacity,
		MaxWorkers:    s.workers,
	}
}

// Enqueue admits a job and returns its queue position (1-based). Fails with
// QUEUE_FULL at capacity.
func (s *Scheduler) Enqueue(jobID string, priority int) (int, error) {
	s.mu.Lock()
	if len(s.queue) >= s.capacity {
		s.mu.Unlock()
		metrics.IncJobOutcome("rejected_queue_full")
		return 0, errs.New(errs.CodeQueueFull, "download queue is full")
	}
	s.seq++
	heap.Push(&s.queue, &queueItem{jobID: jobID, priority: priority, seq: s.seq})
	position := len(s.queue)
	metrics.SetQueueDepth(len(s.queue))
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return position, nil
}

// pop removes the highest-priority item, blocking until one is available or
// ctx is done.
func (s *Scheduler) pop(ctx context.Context) (string, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			item := heap.Pop(&s.queue).(*queueItem)
			metrics.SetQueueDepth(len(s.queue))
			remaining := len(s.queue) > 0
			s.mu.Unlock()
			if remaining {
				select {
				case s.notify <- struct{}{}:
				default:
				}
			}
			return item.jobID, true
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", false
		case <-s.notify:
		}
	}
}

// Start launches the worker pool. Workers exit after their in-flight job
// once ctx is cancelled; queued jobs stay PENDING.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func(worker int) {
			defer s.wg.Done()
			s.workerLoop(ctx, worker)
		}(i)
	}
}

// Wait blocks until all workers have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) workerLoop(ctx context.Context, worker int) {
	logger := s.logger.With().Int("worker", worker).Logger()
	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		jobID, ok := s.pop(ctx)
		if !ok {
			s.sem.Release(1)
			return
		}

		s.activeCount.Add(1)
		metrics.SetActiveWorkers(int(s.activeCount.Load()))
		s.runJob(ctx, logger, jobID)
		s.activeCount.Add(-1)
		metrics.SetActiveWorkers(int(s.activeCount.Load()))
		s.sem.Release(1)
	}
}

// runJob owns the job for its lifetime: transitions, pinning, outcome.
func (s *Scheduler) runJob(ctx context.Context, logger zerolog.Logger, jobID string) {
	ctx = log.ContextWithJobID(ctx, jobID)
	start := time.Now()

	var snapshot Job
	err := s.store.Update(jobID, func(j *Job) {
		now := time.Now().UTC()
		j.State = StateProcessing
		j.StartedAt = &now
		snapshot = *j
	})
	if err != nil {
		logger.Warn().Str("event", "scheduler.job_vanished").Str("job_id", jobID).Msg("dequeued job no longer exists")
		return
	}

	logger.Info().
		Str("event", "scheduler.job_started").
		Str("job_id", jobID).
		Int("priority", snapshot.Params.Priority).
		Msg("job picked up")

	var pinned string
	hooks := Hooks{
		OnOutputPlanned: func(absPath string) {
			pinned = absPath
			s.active.Pin(absPath)
			_ = s.store.Update(jobID, func(j *Job) { j.PinnedFile = absPath })
		},
		OnAttempt: func(attempt int) {
			_ = s.store.Update(jobID, func(j *Job) {
				j.State = StateProcessing
				j.AttemptCount = attempt
			})
		},
		OnRetryScheduled: func(attempt int, reason string, wait time.Duration) {
			_ = s.store.Update(jobID, func(j *Job) { j.State = StateRetrying })
		},
	}

	result, execErr := s.exec.Execute(ctx, snapshot, hooks)

	if pinned != "" {
		s.active.Unpin(pinned)
	}

	now := time.Now().UTC()
	if execErr != nil {
		code := errs.CodeOf(execErr)
		_ = s.store.Update(jobID, func(j *Job) {
			j.State = StateFailed
			j.ErrorCode = code
			j.ErrorMessage = execErr.Error()
			j.CompletedAt = &now
		})
		metrics.IncJobOutcome("failed")
		metrics.ObserveJobDuration(time.Since(start).Seconds())
		logger.Error().
			Str("event", "scheduler.job_failed").
			Str("job_id", jobID).
			Str("error_code", string(code)).
			Err(execErr).
			Msg("job failed")
		return
	}

	_ = s.store.Update(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Progress = 100
		j.FilePath = result.FilePath
		j.FileSizeBytes = result.FileSizeBytes
		j.CompletedAt = &now
	})
	metrics.IncJobOutcome("completed")
	metrics.ObserveJobDuration(time.Since(start).Seconds())
	logger.Info().
		Str("event", "scheduler.job_completed").
		Str("job_id", jobID).
		Str("file_path", result.FilePath).
		Int64("file_size_bytes", result.FileSizeBytes).
		Dur("duration", time.Since(start)).
		Msg("job completed")
}
