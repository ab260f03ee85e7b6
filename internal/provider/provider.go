// SPDX-License-Identifier: MIT

// Package provider routes request URLs to the platform implementation that
// owns them. Dispatch walks providers in registration order and picks the
// first enabled match.
package provider

import (
	"regexp"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ytgate/ytgate/internal/errs"
	"github.com/ytgate/ytgate/internal/log"
)

// Provider identifies URLs belonging to one platform.
type Provider interface {
	Name() string
	Matches(rawURL string) bool
	VideoID(rawURL string) (string, bool)
}

type entry struct {
	provider Provider
	enabled  bool
	degraded bool
	reason   string
}

// Status describes one registered provider for admin surfaces.
type Status struct {
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// Dispatcher holds the registered providers. Registration happens at
// startup; enable and degraded flags may flip at runtime.
type Dispatcher struct {
	mu      sync.RWMutex
	entries []*entry
	logger  zerolog.Logger
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{logger: log.WithComponent("provider")}
}

// Register appends a provider. Order matters: the first match wins.
func (d *Dispatcher) Register(p Provider, enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, &entry{provider: p, enabled: enabled})
}

// Dispatch resolves the provider owning rawURL. An unmatched URL and a URL
// matched only by an unavailable provider are distinct failures; disabled
// and degraded providers are never selected.
func (d *Dispatcher) Dispatch(rawURL string) (Provider, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var blocked *entry
	for _, e := range d.entries {
		if !e.provider.Matches(rawURL) {
			continue
		}
		if !e.enabled || e.degraded {
			blocked = e
			continue
		}
		return e.provider, nil
	}
	if blocked != nil {
		name := blocked.provider.Name()
		if !blocked.enabled {
			return nil, errs.Newf(errs.CodeComponentUnavailable, "provider %s is disabled", name)
		}
		return nil, errs.Newf(errs.CodeComponentUnavailable, "provider %s is unavailable: %s", name, blocked.reason)
	}
	return nil, errs.New(errs.CodeInvalidURL, "no provider supports this URL")
}

// SetEnabled flips a provider's availability.
func (d *Dispatcher) SetEnabled(name string, enabled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entries {
		if e.provider.Name() == name {
			e.enabled = enabled
			return true
		}
	}
	return false
}

// SetDegraded marks a provider as running without working credentials.
// Degraded providers are withheld from dispatch until the flag clears; the
// flag also surfaces on readiness.
func (d *Dispatcher) SetDegraded(name string, degraded bool, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entries {
		if e.provider.Name() != name {
			continue
		}
		if e.degraded != degraded {
			evt := d.logger.Warn()
			msg := "provider degraded"
			if !degraded {
				evt = d.logger.Info()
				msg = "provider recovered"
			}
			evt.Str("event", "provider.degraded_changed").
				Str("provider", name).
				Bool("degraded", degraded).
				Str("reason", reason).
				Msg(msg)
		}
		e.degraded = degraded
		e.reason = reason
		return
	}
}

// Degraded reports whether any enabled provider is degraded.
func (d *Dispatcher) Degraded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.entries {
		if e.enabled && e.degraded {
			return true
		}
	}
	return false
}

// StatusAll snapshots every registered provider.
func (d *Dispatcher) StatusAll() []Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Status, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, Status{
			Name:     e.provider.Name(),
			Enabled:  e.enabled,
			Degraded: e.degraded,
			Reason:   e.reason,
		})
	}
	return out
}

// youtubePatterns cover the canonical URL shapes. The capture group is the
// 11-character video id.
var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(?:www\.|m\.)?youtube\.com/watch\?(?:.*&)?v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`^https?://(?:www\.|m\.)?youtube\.com/shorts/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`^https?://(?:www\.|m\.)?youtube\.com/embed/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`^https?://youtu\.be/([A-Za-z0-9_-]{11})`),
}

// YouTube matches youtube.com watch/shorts/embed URLs and youtu.be short
// links, including mobile hosts.
type YouTube struct{}

func (YouTube) Name() string { return "youtube" }

func (YouTube) Matches(rawURL string) bool {
	for _, re := range youtubePatterns {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

func (YouTube) VideoID(rawURL string) (string, bool) {
	for _, re := range youtubePatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}
