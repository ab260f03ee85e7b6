// SPDX-License-Identifier: MIT

package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytgate/ytgate/internal/errs"
)

func TestStoreCreateAndGet(t *testing.T) {
	s := NewStore(24 * time.Hour)

	job := s.Create("https://youtu.be/abc12345678", "youtube", Params{Priority: PriorityDownload})
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StatePending, job.State)
	assert.False(t, job.CreatedAt.IsZero())

	got, ok := s.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, got.ID)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStoreGetReturnsSnapshot(t *testing.T) {
	s := NewStore(24 * time.Hour)
	job := s.Create("u", "youtube", Params{})

	snap, _ := s.Get(job.ID)
	snap.State = StateFailed

	fresh, _ := s.Get(job.ID)
	assert.Equal(t, StatePending, fresh.State)
}

func TestStoreUpdate(t *testing.T) {
	s := NewStore(24 * time.Hour)
	job := s.Create("u", "youtube", Params{})

	require.NoError(t, s.Update(job.ID, func(j *Job) {
		j.State = StateProcessing
		j.AttemptCount = 1
	}))

	got, _ := s.Get(job.ID)
	assert.Equal(t, StateProcessing, got.State)
	assert.Equal(t, 1, got.AttemptCount)

	err := s.Update("missing", func(*Job) {})
	assert.Equal(t, errs.CodeJobNotFound, errs.CodeOf(err))
}

func TestStoreListFilterAndLimit(t *testing.T) {
	s := NewStore(24 * time.Hour)
	a := s.Create("a", "youtube", Params{})
	b := s.Create("b", "youtube", Params{})
	require.NoError(t, s.Update(b.ID, func(j *Job) { j.State = StateFailed }))

	all := s.List("", 0)
	assert.Len(t, all, 2)

	failed := s.List(StateFailed, 0)
	require.Len(t, failed, 1)
	assert.Equal(t, b.ID, failed[0].ID)

	limited := s.List("", 1)
	assert.Len(t, limited, 1)
	_ = a
}

func TestStoreDelete(t *testing.T) {
	s := NewStore(24 * time.Hour)
	job := s.Create("u", "youtube", Params{})

	err := s.Delete(job.ID)
	assert.Equal(t, errs.CodeConflict, errs.CodeOf(err))

	now := time.Now().UTC()
	require.NoError(t, s.Update(job.ID, func(j *Job) {
		j.State = StateCompleted
		j.CompletedAt = &now
	}))
	require.NoError(t, s.Delete(job.ID))

	err = s.Delete(job.ID)
	assert.Equal(t, errs.CodeJobNotFound, errs.CodeOf(err))
}

func TestStoreSweepRemovesOnlyExpiredTerminal(t *testing.T) {
	s := NewStore(time.Hour)
	live := s.Create("live", "youtube", Params{})
	done := s.Create("done", "youtube", Params{})
	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, s.Update(done.ID, func(j *Job) {
		j.State = StateCompleted
		j.CompletedAt = &old
	}))
	recent := s.Create("recent", "youtube", Params{})
	now := time.Now().UTC()
	require.NoError(t, s.Update(recent.ID, func(j *Job) {
		j.State = StateFailed
		j.CompletedAt = &now
	}))

	removed := s.Sweep()
	assert.Equal(t, 1, removed)
	_, ok := s.Get(done.ID)
	assert.False(t, ok)
	_, ok = s.Get(live.ID)
	assert.True(t, ok)
	_, ok = s.Get(recent.ID)
	assert.True(t, ok)
}

func TestSweepIntervalFloor(t *testing.T) {
	assert.Equal(t, time.Hour, NewStore(24*time.Hour).sweepInterval())
	assert.Equal(t, time.Minute, NewStore(time.Minute).sweepInterval())
}
