// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ytgate/ytgate/internal/errs"
	"github.com/ytgate/ytgate/internal/fsutil"
	"github.com/ytgate/ytgate/internal/log"
	"github.com/ytgate/ytgate/internal/metrics"
)

// SweepOptions control one reaper pass.
type SweepOptions struct {
	// Force sweeps regardless of the disk usage threshold.
	Force bool
	// DryRun reports what would be deleted without touching disk.
	DryRun bool
}

// Report summarizes one sweep.
type Report struct {
	Triggered      bool    `json:"triggered"`
	DryRun         bool    `json:"dry_run"`
	UsagePercent   float64 `json:"usage_percent"`
	Scanned        int     `json:"scanned"`
	Deleted        int     `json:"deleted"`
	SkippedActive  int     `json:"skipped_active"`
	ReclaimedBytes int64   `json:"reclaimed_bytes"`
}

// Reaper walks the download directory and removes regular files older than
// MaxAge once disk usage crosses ThresholdPercent. Symlinks are never
// followed; pinned files are never removed.
type Reaper struct {
	Dir              string
	ThresholdPercent float64
	MaxAge           time.Duration
	Interval         time.Duration

	active *ActiveFileSet
	logger zerolog.Logger

	// replaceable in tests
	usage func(string) (fsutil.DiskUsage, error)
	now   func() time.Time

	trigger chan struct{}
}

func NewReaper(dir string, thresholdPercent float64, maxAge, interval time.Duration, active *ActiveFileSet) *Reaper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reaper{
		Dir:              dir,
		ThresholdPercent: thresholdPercent,
		MaxAge:           maxAge,
		Interval:         interval,
		active:           active,
		logger:           log.WithComponent("storage"),
		usage:            fsutil.Usage,
		now:              time.Now,
		trigger:          make(chan struct{}, 1),
	}
}

// Trigger requests an out-of-band sweep from the Run loop. Non-blocking;
// coalesces with a pending trigger.
func (r *Reaper) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run sweeps on a timer and on Trigger until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx, SweepOptions{}); err != nil {
				r.logger.Error().Str("event", "storage.sweep_failed").Err(err).Msg("scheduled sweep failed")
			}
		case <-r.trigger:
			if _, err := r.Sweep(ctx, SweepOptions{Force: true}); err != nil {
				r.logger.Error().Str("event", "storage.sweep_failed").Err(err).Msg("triggered sweep failed")
			}
		}
	}
}

// Usage reports current disk usage of the download directory and refreshes
// the gauge.
func (r *Reaper) Usage() (fsutil.DiskUsage, error) {
	du, err := r.usage(r.Dir)
	if err != nil {
		return fsutil.DiskUsage{}, errs.Wrap(errs.CodeInternal, "failed to stat filesystem", err)
	}
	metrics.SetDiskUsagePercent(du.PercentUsed)
	return du, nil
}

// Sweep performs one pass. Without Force it is a no-op while usage stays
// under the threshold.
func (r *Reaper) Sweep(ctx context.Context, opts SweepOptions) (Report, error) {
	du, err := r.Usage()
	if err != nil {
		return Report{}, err
	}

	report := Report{DryRun: opts.DryRun, UsagePercent: du.PercentUsed}
	if !opts.Force && du.PercentUsed < r.ThresholdPercent {
		return report, nil
	}
	report.Triggered = true

	// Pinned paths are recorded symlink-resolved; walk the resolved root so
	// Contains compares like with like.
	root := r.Dir
	if resolved, rerr := filepath.EvalSymlinks(r.Dir); rerr == nil {
		root = resolved
	}

	cutoff := r.now().Add(-r.MaxAge)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			r.logger.Warn().Str("event", "storage.walk_error").Str("path", path).Err(walkErr).Msg("skipping unreadable entry")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// WalkDir reports the entry's own type without following links,
		// so symlinked targets are never touched.
		if !d.Type().IsRegular() {
			return nil
		}
		report.Scanned++

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if r.active != nil && r.active.Contains(path) {
			report.SkippedActive++
			return nil
		}

		if !opts.DryRun {
			if err := os.Remove(path); err != nil {
				r.logger.Warn().Str("event", "storage.delete_failed").Str("path", path).Err(err).Msg("failed to delete artifact")
				return nil
			}
		}
		report.Deleted++
		report.ReclaimedBytes += info.Size()
		return nil
	})
	if err != nil {
		return report, errs.Wrap(errs.CodeInternal, "sweep aborted", err)
	}

	if !opts.DryRun && report.Deleted > 0 {
		metrics.AddReaped(report.Deleted, report.ReclaimedBytes)
	}
	r.logger.Info().
		Str("event", "storage.sweep_done").
		Bool("dry_run", opts.DryRun).
		Float64("usage_percent", du.PercentUsed).
		Int("scanned", report.Scanned).
		Int("deleted", report.Deleted).
		Int("skipped_active", report.SkippedActive).
		Int64("reclaimed_bytes", report.ReclaimedBytes).
		Msg("storage sweep finished")
	return report, nil
}
