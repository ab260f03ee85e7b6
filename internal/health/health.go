// SPDX-License-Identifier: MIT

// Package health provides liveness, readiness and startup validation.
// Readiness aggregates component checks under a hard 2 second budget;
// liveness is a pure process-alive signal.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status of one component or of the service overall.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Checker probes one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Response is the readiness (and verbose health) payload.
type Response struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

const (
	// overallBudget bounds a full readiness pass.
	overallBudget = 2 * time.Second
	// perCheckBudget bounds each component probe.
	perCheckBudget = 1500 * time.Millisecond
)

type registration struct {
	checker Checker
	// required checks fail readiness when unhealthy; optional ones only
	// degrade it.
	required bool
}

// Manager runs registered checks and aggregates their statuses.
type Manager struct {
	version string

	mu       sync.RWMutex
	checks   []registration
	snapshot *Response
}

func NewManager(version string) *Manager {
	return &Manager{version: version}
}

// Register adds a component check. Required checks gate readiness.
func (m *Manager) Register(c Checker, required bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, registration{checker: c, required: required})
}

// Readiness fans out all checks concurrently and aggregates. The pass
// completes within the overall budget even when individual probes hang.
func (m *Manager) Readiness(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, overallBudget)
	defer cancel()

	m.mu.RLock()
	checks := append([]registration(nil), m.checks...)
	m.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultsMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, reg := range checks {
		g.Go(func() error {
			cctx, ccancel := context.WithTimeout(ctx, perCheckBudget)
			defer ccancel()
			result := reg.checker.Check(cctx)
			resultsMu.Lock()
			results[reg.checker.Name()] = result
			resultsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp := Response{
		Ready:     true,
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
		Checks:    results,
	}
	for _, reg := range checks {
		result, ok := results[reg.checker.Name()]
		if !ok {
			result = CheckResult{Status: StatusUnhealthy, Error: "check did not complete"}
			resp.Checks[reg.checker.Name()] = result
		}
		switch result.Status {
		case StatusUnhealthy:
			if reg.required {
				resp.Ready = false
				resp.Status = StatusUnhealthy
			} else if resp.Status != StatusUnhealthy {
				resp.Status = StatusDegraded
			}
		case StatusDegraded:
			if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
		}
	}

	m.mu.Lock()
	m.snapshot = &resp
	m.mu.Unlock()
	return resp
}

// Snapshot returns the most recent readiness outcome, if any.
func (m *Manager) Snapshot() (Response, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return Response{}, false
	}
	return *m.snapshot, true
}

// Liveness reports that the process is alive.
func (m *Manager) Liveness() Response {
	return Response{
		Ready:     true,
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now().UTC(),
	}
}

// CheckFunc adapts a function into a Checker.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) CheckResult
}

func (c CheckFunc) Name() string                           { return c.CheckName }
func (c CheckFunc) Check(ctx context.Context) CheckResult { return c.Fn(ctx) }
