// SPDX-License-Identifier: MIT

// Package auth gates API routes behind X-API-Key. Key comparison is
// constant-time; downstream components only ever see the hashed identity.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ytgate/ytgate/internal/log"
	"github.com/ytgate/ytgate/internal/metrics"
	"github.com/ytgate/ytgate/internal/redact"
)

// HeaderName carries the credential. Never read from URL parameters.
const HeaderName = "X-API-Key"

// exemptPaths are served without a credential.
var exemptPaths = map[string]struct{}{
	"/health":    {},
	"/liveness":  {},
	"/readiness": {},
	"/metrics":   {},
	"/docs":      {},
}

type identityKey struct{}

// IdentityFromContext returns the authenticated key's hashed identity, or
// "anonymous" when auth is disabled.
func IdentityFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(identityKey{}).(string); ok {
		return v
	}
	return "anonymous"
}

// Gate validates API keys on non-exempt routes.
type Gate struct {
	keys    []string
	enabled bool
	logger  zerolog.Logger

	// Unauthorized renders the 401; the body stays generic regardless of
	// why the key was rejected.
	Unauthorized http.HandlerFunc
}

// NewGate builds a gate over the configured key set. An empty set disables
// authentication entirely; that is logged loudly at startup.
func NewGate(keys []string) *Gate {
	g := &Gate{
		keys:    keys,
		enabled: len(keys) > 0,
		logger:  log.WithComponent("auth"),
	}
	if !g.enabled {
		g.logger.Warn().
			Str("event", "auth.disabled").
			Msg("no API keys configured; authentication is disabled")
	}
	return g
}

// Enabled reports whether a key set is configured.
func (g *Gate) Enabled() bool { return g.enabled }

// check returns the matched key's hashed identity.
func (g *Gate) check(presented string) (string, bool) {
	if presented == "" {
		return "", false
	}
	matched := false
	identity := ""
	// compare against every key so timing does not reveal which one matched
	for _, key := range g.keys {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
			matched = true
			identity = redact.KeyIdentity(key)
		}
	}
	return identity, matched
}

// Middleware enforces the gate. Exempt paths pass through untouched.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, exempt := exemptPaths[r.URL.Path]; exempt || !g.enabled {
			next.ServeHTTP(w, r)
			return
		}

		identity, ok := g.check(r.Header.Get(HeaderName))
		if !ok {
			metrics.IncAuthFailure()
			g.logger.Warn().
				Str("event", "auth.rejected").
				Str("remote_addr", r.RemoteAddr).
				Msg("request rejected")
			if g.Unauthorized != nil {
				g.Unauthorized(w, r)
			} else {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			}
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
