// SPDX-License-Identifier: MIT

// Package ratelimit implements per-(key, category) token buckets. A bucket
// holds fractional tokens refilled at rpm/60 per second, capped at the burst
// capacity. Denials carry the duration after which one token will be
// available.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ytgate/ytgate/internal/metrics"
)

// Category separates metadata and download accounting. Buckets of different
// categories are fully independent.
type Category string

const (
	CategoryMetadata Category = "metadata"
	CategoryDownload Category = "download"
)

// Config holds the per-category refill rates and the shared burst capacity.
type Config struct {
	MetadataRPM   int
	DownloadRPM   int
	BurstCapacity int
}

// Decision is the outcome of an admission call. RetryAfter is meaningful
// only when Allowed is false.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds returns the Retry-After header value in whole seconds,
// rounded up and never below 1.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

type bucketKey struct {
	key      string
	category Category
}

// bucket serializes admission decisions so a denied probe never consumes
// tokens observed by a concurrent caller.
type bucket struct {
	mu  sync.Mutex
	lim *rate.Limiter
}

// Limiter manages the lazily created buckets. Buckets live for the process
// lifetime; unknown keys never reach Admit (the auth gate rejects earlier).
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	buckets map[bucketKey]*bucket
}

// New creates a limiter with the given configuration.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[bucketKey]*bucket),
	}
}

func (l *Limiter) rateFor(cat Category) rate.Limit {
	rpm := l.cfg.MetadataRPM
	if cat == CategoryDownload {
		rpm = l.cfg.DownloadRPM
	}
	return rate.Limit(float64(rpm) / 60.0)
}

func (l *Limiter) getBucket(keyID string, cat Category) *bucket {
	k := bucketKey{key: keyID, category: cat}

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[k]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rateFor(cat), l.cfg.BurstCapacity)}
		l.buckets[k] = b
	}
	return b
}

// Admit consumes one token for (keyID, cat) if available. On denial the
// bucket is left untouched and the decision carries the wait until one token
// refills.
func (l *Limiter) Admit(keyID string, cat Category) Decision {
	b := l.getBucket(keyID, cat)

	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.lim.Reserve()
	if !r.OK() {
		// burst < 1 cannot happen with validated config; fail closed
		return Decision{Allowed: false, RetryAfter: time.Minute}
	}
	delay := r.Delay()
	if delay > 0 {
		// Would have to wait: deny and restore the token. Cancel fully
		// restores it because the per-bucket mutex prevents interleaved
		// reservations.
		r.Cancel()
		metrics.IncRateLimitRejection(string(cat))
		return Decision{Allowed: false, RetryAfter: delay}
	}
	return Decision{Allowed: true}
}
