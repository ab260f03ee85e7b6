// SPDX-License-Identifier: MIT

// Package jobs holds the in-memory job lifecycle: the record store with TTL
// sweeping and the priority-queue scheduler that drives workers.
package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ytgate/ytgate/internal/errs"
	"github.com/ytgate/ytgate/internal/log"
)

// State is a job lifecycle state.
type State string

const (
	StatePending    State = "PENDING"
	StateProcessing State = "PROCESSING"
	StateRetrying   State = "RETRYING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Params are the client-supplied download options carried by a job.
type Params struct {
	FormatID       string `json:"format_id,omitempty"`
	OutputTemplate string `json:"output_template,omitempty"`
	ExtractAudio   bool   `json:"extract_audio,omitempty"`
	AudioFormat    string `json:"audio_format,omitempty"`
	AudioQuality   string `json:"audio_quality,omitempty"`
	Subtitles      bool   `json:"include_subtitles,omitempty"`
	SubtitleLang   string `json:"subtitle_lang,omitempty"`
	Priority       int    `json:"priority"`
}

// Job is one download request's record. The store owns the canonical copy;
// reads hand out snapshots.
type Job struct {
	ID            string     `json:"id"`
	State         State      `json:"state"`
	URL           string     `json:"url"`
	Provider      string     `json:"provider"`
	Params        Params     `json:"params"`
	Progress      float64    `json:"progress"`
	AttemptCount  int        `json:"attempt_count"`
	ErrorCode     errs.Code  `json:"error_code,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	FilePath      string     `json:"file_path,omitempty"`
	FileSizeBytes int64      `json:"file_size_bytes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	PinnedFile    string     `json:"-"`
}

// Store maps job ids to records. Mutation goes through Update; Get and List
// return copies.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	ttl    time.Duration
	logger zerolog.Logger

	now func() time.Time
}

// NewStore creates a store whose sweeper removes terminal records ttl after
// completion.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		jobs:   make(map[string]*Job),
		ttl:    ttl,
		logger: log.WithComponent("jobs"),
		now:    time.Now,
	}
}

// Create inserts a PENDING record with a fresh uuid and returns a snapshot.
func (s *Store) Create(url, provider string, params Params) Job {
	job := &Job{
		ID:        uuid.NewString(),
		State:     StatePending,
		URL:       url,
		Provider:  provider,
		Params:    params,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return *job
}

// Get returns a snapshot of the record.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Update applies fn to the record under the store lock. Workers are the only
// callers once a job leaves PENDING.
func (s *Store) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return errs.Newf(errs.CodeJobNotFound, "job %s not found", id)
	}
	fn(job)
	return nil
}

// List returns snapshots, newest first, optionally filtered by state.
// limit <= 0 means no limit.
func (s *Store) List(state State, limit int) []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if state != "" && job.State != state {
			continue
		}
		out = append(out, *job)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Delete removes a terminal record. A live job cannot be deleted.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return errs.Newf(errs.CodeJobNotFound, "job %s not found", id)
	}
	if !job.State.Terminal() {
		return errs.Newf(errs.CodeConflict, "job %s is still %s", id, job.State)
	}
	delete(s.jobs, id)
	return nil
}

// Discard removes a record regardless of state. Used only to roll back a
// record whose queue admission failed; such a job never ran.
func (s *Store) Discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// Len reports the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Sweep removes terminal records older than the TTL and returns the count.
// Live records are never swept.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if job.CompletedAt == nil {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug().
			Str("event", "jobs.swept").
			Int("removed", removed).
			Msg("expired job records removed")
	}
	return removed
}

// sweepInterval derives the sweeper cadence from the TTL, floored at one
// minute.
func (s *Store) sweepInterval() time.Duration {
	interval := s.ttl / 24
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}

// RunSweeper sweeps periodically until ctx is done.
func (s *Store) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
