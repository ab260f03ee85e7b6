// SPDX-License-Identifier: MIT

// Package cookies manages per-provider credential jars: format checks,
// TTL-cached liveness validation, mtime observation and hot reload.
package cookies

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/ytgate/ytgate/internal/errs"
	"github.com/ytgate/ytgate/internal/log"
	"github.com/ytgate/ytgate/internal/metrics"
)

// State is the validation state of one credential jar.
type State string

const (
	StateUnchecked State = "UNCHECKED"
	StateValid     State = "VALID"
	StateInvalid   State = "INVALID"
)

const (
	// validationTTL caches a probe result.
	validationTTL = time.Hour
	// pollInterval bounds how stale an observed mtime may be.
	pollInterval = 60 * time.Second
	// warnAge is the jar age beyond which readiness carries a warning.
	warnAge = 7 * 24 * time.Hour
)

// Prober performs the lightweight liveness check: a metadata-only extractor
// call against a known stable video using the given jar.
type Prober interface {
	Probe(ctx context.Context, cookiePath string) error
}

// record is the per-provider credential state. Its mutex serializes
// validate/reload so concurrent validations of one jar coalesce.
type record struct {
	mu sync.Mutex

	provider        string
	path            string
	state           State
	lastMtime       time.Time
	lastValidatedAt time.Time
	cacheUntil      time.Time
	lastGood        []byte // last content that passed a probe
}

// Status is a read-only snapshot of one provider's credential state.
type Status struct {
	Provider    string    `json:"provider"`
	Path        string    `json:"cookie_path"`
	Exists      bool      `json:"exists"`
	State       State     `json:"state"`
	AgeHours    float64   `json:"age_hours"`
	Warning     string    `json:"warning,omitempty"`
	ValidatedAt time.Time `json:"validated_at,omitempty"`
}

// Store owns all CookieRecords. Records are created by Load at startup and
// live for the process lifetime.
type Store struct {
	mu      sync.Mutex
	records map[string]*record

	prober Prober
	logger zerolog.Logger
}

// NewStore creates an empty store backed by the given prober.
func NewStore(prober Prober) *Store {
	return &Store{
		records: make(map[string]*record),
		prober:  prober,
		logger:  log.WithComponent("cookies"),
	}
}

// Load registers a provider's jar: reads the file, verifies the Netscape
// format, records the mtime and marks the record UNCHECKED.
func (s *Store) Load(provider, path string) error {
	content, mtime, err := readJar(provider, path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records[provider] = &record{
		provider:  provider,
		path:      path,
		state:     StateUnchecked,
		lastMtime: mtime,
		lastGood:  content,
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("event", "cookies.loaded").
		Str("provider", provider).
		Str("path", path).
		Msg("credential jar registered")
	return nil
}

func readJar(provider, path string) ([]byte, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, errs.Newf(errs.CodeMissingCookie,
				"cookie file not found for %s: %s", provider, path)
		}
		return nil, time.Time{}, errs.Wrap(errs.CodeMissingCookie, "cookie file not readable", err)
	}
	content, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, time.Time{}, errs.Wrap(errs.CodeMissingCookie, "failed to read cookie file", err)
	}
	if err := checkNetscapeFormat(content); err != nil {
		return nil, time.Time{}, err
	}
	return content, info.ModTime(), nil
}

// checkNetscapeFormat accepts content whose first non-blank line is the
// well-known jar header, or that carries at least one 7-field entry.
func checkNetscapeFormat(content []byte) error {
	text := strings.TrimSpace(string(content))
	if text == "" {
		return errs.New(errs.CodeMissingCookie, "cookie file is empty")
	}

	lines := strings.Split(text, "\n")
	first := strings.TrimSpace(lines[0])
	headerOK := strings.HasPrefix(first, "# Netscape HTTP Cookie File") ||
		strings.HasPrefix(first, "# HTTP Cookie File")

	entries := 0
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		if len(strings.Split(line, "\t")) != 7 {
			return errs.New(errs.CodeMissingCookie,
				"invalid cookie entry: expected 7 tab-separated fields")
		}
		entries++
	}
	if !headerOK && entries == 0 {
		return errs.New(errs.CodeMissingCookie, "cookie file is not in Netscape format")
	}
	return nil
}

func (s *Store) get(provider string) (*record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[provider]
	if !ok {
		return nil, errs.Newf(errs.CodeMissingCookie, "no cookie registered for provider %s", provider)
	}
	return r, nil
}

// Path returns the jar path for a provider.
func (s *Store) Path(provider string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[provider]
	if !ok {
		return "", false
	}
	return r.path, true
}

// Providers lists registered provider names.
func (s *Store) Providers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.records))
	for name := range s.records {
		out = append(out, name)
	}
	return out
}

// Validate returns whether the provider's credential is live. Results are
// cached for one hour unless the file mtime changed. Concurrent validations
// of one provider coalesce behind the record mutex.
func (s *Store) Validate(ctx context.Context, provider string) (bool, error) {
	r, err := s.get(provider)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s.observeMtimeLocked(r)

	now := time.Now()
	if r.state != StateUnchecked && now.Before(r.cacheUntil) {
		metrics.IncCookieValidation(provider, "cached")
		return r.state == StateValid, nil
	}

	return s.probeLocked(ctx, r)
}

// probeLocked runs the liveness probe and updates the record. Caller holds
// r.mu.
func (s *Store) probeLocked(ctx context.Context, r *record) (bool, error) {
	err := s.prober.Probe(ctx, r.path)
	now := time.Now()
	r.lastValidatedAt = now
	r.cacheUntil = now.Add(validationTTL)

	if err != nil {
		r.state = StateInvalid
		metrics.IncCookieValidation(r.provider, "invalid")
		s.logger.Warn().
			Str("event", "cookies.probe_failed").
			Str("provider", r.provider).
			Err(err).
			Msg("credential liveness probe failed")
		return false, nil
	}

	r.state = StateValid
	if content, mtime, rerr := readJar(r.provider, r.path); rerr == nil {
		r.lastGood = content
		r.lastMtime = mtime
	}
	metrics.IncCookieValidation(r.provider, "valid")
	s.logger.Info().
		Str("event", "cookies.validated").
		Str("provider", r.provider).
		Msg("credential validated")
	return true, nil
}

// observeMtimeLocked invalidates the cache when the file changed on disk.
func (s *Store) observeMtimeLocked(r *record) {
	info, err := os.Stat(r.path)
	if err != nil {
		return
	}
	if !info.ModTime().Equal(r.lastMtime) {
		r.lastMtime = info.ModTime()
		r.state = StateUnchecked
		r.cacheUntil = time.Time{}
		s.logger.Info().
			Str("event", "cookies.mtime_changed").
			Str("provider", r.provider).
			Msg("credential file changed on disk; cache invalidated")
	}
}

// Reload re-reads the provider's jar and validates the new content. When the
// probe fails, the previous known-good content is restored atomically and an
// error is returned; the old credential stays in effect.
func (s *Store) Reload(ctx context.Context, provider string) error {
	r, err := s.get(provider)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prevGood := r.lastGood
	prevState := r.state

	_, mtime, err := readJar(provider, r.path)
	if err != nil {
		return err
	}
	r.lastMtime = mtime

	r.state = StateUnchecked
	r.cacheUntil = time.Time{}

	ok, err := s.probeLocked(ctx, r)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// Probe rejected the new content: put the previous jar back so running
	// and future extractor calls keep working.
	if len(prevGood) > 0 {
		if werr := renameio.WriteFile(r.path, prevGood, 0o600); werr != nil {
			s.logger.Error().
				Str("event", "cookies.restore_failed").
				Str("provider", provider).
				Err(werr).
				Msg("failed to restore previous credential")
		} else if info, serr := os.Stat(r.path); serr == nil {
			r.lastMtime = info.ModTime()
		}
		r.state = prevState
		r.cacheUntil = time.Now().Add(validationTTL)
	}
	return errs.Newf(errs.CodeCookieExpired, "reloaded cookie for %s failed validation; previous credential restored", provider)
}

// Age returns the time since the jar was last modified.
func (s *Store) Age(provider string) (time.Duration, error) {
	r, err := s.get(provider)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(r.path)
	if err != nil {
		return 0, errs.Wrap(errs.CodeMissingCookie, "cookie file not readable", err)
	}
	return time.Since(info.ModTime()), nil
}

// StatusAll reports every provider's credential state for admin and
// readiness surfaces.
func (s *Store) StatusAll() []Status {
	s.mu.Lock()
	records := make([]*record, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	s.mu.Unlock()

	out := make([]Status, 0, len(records))
	for _, r := range records {
		r.mu.Lock()
		st := Status{
			Provider:    r.provider,
			Path:        r.path,
			State:       r.state,
			ValidatedAt: r.lastValidatedAt,
		}
		r.mu.Unlock()

		if info, err := os.Stat(st.Path); err == nil {
			st.Exists = true
			age := time.Since(info.ModTime())
			st.AgeHours = age.Hours()
			if age > warnAge {
				st.Warning = "cookie file is older than 7 days; consider refreshing"
			}
		}
		out = append(out, st)
	}
	return out
}

// Watch observes jar files until ctx is done: an fsnotify watcher reacts to
// writes eagerly, a 60 s poll covers filesystems without events.
func (s *Store) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn().
			Str("event", "cookies.watch_unavailable").
			Err(err).
			Msg("fsnotify unavailable; relying on mtime polling")
		watcher = nil
	}
	if watcher != nil {
		defer func() { _ = watcher.Close() }()
		dirs := map[string]struct{}{}
		s.mu.Lock()
		for _, r := range s.records {
			dirs[filepath.Dir(r.path)] = struct{}{}
		}
		s.mu.Unlock()
		for dir := range dirs {
			if err := watcher.Add(dir); err != nil {
				s.logger.Warn().
					Str("event", "cookies.watch_add_failed").
					Str("dir", dir).
					Err(err).
					Msg("failed to watch cookie directory")
			}
		}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		var events chan fsnotify.Event
		var werrs chan error
		if watcher != nil {
			events = watcher.Events
			werrs = watcher.Errors
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollMtimes()
		case ev := <-events:
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				s.invalidatePath(ev.Name)
			}
		case err := <-werrs:
			s.logger.Warn().
				Str("event", "cookies.watch_error").
				Err(err).
				Msg("cookie watcher error")
		}
	}
}

func (s *Store) pollMtimes() {
	s.mu.Lock()
	records := make([]*record, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	s.mu.Unlock()

	for _, r := range records {
		r.mu.Lock()
		s.observeMtimeLocked(r)
		r.mu.Unlock()
	}
}

func (s *Store) invalidatePath(path string) {
	s.mu.Lock()
	records := make([]*record, 0, len(s.records))
	for _, r := range s.records {
		if r.path == path {
			records = append(records, r)
		}
	}
	s.mu.Unlock()

	for _, r := range records {
		r.mu.Lock()
		s.observeMtimeLocked(r)
		r.mu.Unlock()
	}
}
