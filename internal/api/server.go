// SPDX-License-Identifier: MIT

// Package api is the HTTP edge: routing, middleware and thin handlers that
// translate between the wire and internal types.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ytgate/ytgate/internal/auth"
	"github.com/ytgate/ytgate/internal/cookies"
	"github.com/ytgate/ytgate/internal/errs"
	"github.com/ytgate/ytgate/internal/health"
	"github.com/ytgate/ytgate/internal/jobs"
	"github.com/ytgate/ytgate/internal/log"
	"github.com/ytgate/ytgate/internal/metrics"
	"github.com/ytgate/ytgate/internal/pipeline"
	"github.com/ytgate/ytgate/internal/provider"
	"github.com/ytgate/ytgate/internal/ratelimit"
	"github.com/ytgate/ytgate/internal/storage"
)

// ipGuard bounds request floods per client IP in front of authentication.
// Per-key accounting happens later, in the token-bucket limiter.
const (
	ipGuardLimit  = 300
	ipGuardWindow = time.Minute
)

// Server wires the HTTP surface over the service singletons.
type Server struct {
	Pipeline   *pipeline.Pipeline
	Store      *jobs.Store
	Scheduler  *jobs.Scheduler
	Limiter    *ratelimit.Limiter
	Gate       *auth.Gate
	Cookies    *cookies.Store
	Dispatcher *provider.Dispatcher
	Reaper     *storage.Reaper
	Health     *health.Manager

	MetricsEnabled bool
}

// Router assembles the middleware chain and routes.
func (s *Server) Router() http.Handler {
	s.Gate.Unauthorized = func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errs.New(errs.CodeAuthFailed, "invalid or missing API key"))
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(httprate.LimitByIP(ipGuardLimit, ipGuardWindow))
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.Gate.Middleware)

	r.Get("/health", s.handleHealth)
	r.Get("/liveness", s.handleLiveness)
	r.Get("/readiness", s.handleReadiness)
	if s.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.limit(ratelimit.CategoryMetadata)).Get("/info", s.handleInfo)
		r.With(s.limit(ratelimit.CategoryMetadata)).Get("/formats", s.handleFormats)
		r.With(s.limit(ratelimit.CategoryDownload)).Post("/download", s.handleDownload)

		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Delete("/jobs/{id}", s.handleDeleteJob)
		r.Get("/queue/stats", s.handleQueueStats)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/validate-cookie", s.handleValidateCookie)
			r.Post("/reload-cookie", s.handleReloadCookie)
			r.Get("/cookie-status", s.handleCookieStatus)
			r.Post("/cleanup", s.handleCleanup)
		})
	})

	return r
}

// limit admits one token for the authenticated key in the given category.
func (s *Server) limit(cat ratelimit.Category) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.IdentityFromContext(r.Context())
			decision := s.Limiter.Admit(identity, cat)
			if !decision.Allowed {
				writeRateLimited(w, r, decision.RetryAfterSeconds())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestIDMiddleware assigns each request a uuid, exposed in logs, error
// bodies and the X-Request-ID response header.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(log.ContextWithRequestID(r.Context(), id)))
	})
}

// requestLogger emits one structured line per request and feeds the request
// metrics.
func requestLogger(next http.Handler) http.Handler {
	logger := log.WithComponent("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		elapsed := time.Since(start)
		metrics.IncRequest(route, strconv.Itoa(ww.Status()))
		metrics.ObserveRequest(route, elapsed.Seconds())

		reqLogger := log.WithContext(r.Context(), logger)
		reqLogger.Info().
			Str("event", "http.request").
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Dur("duration", elapsed).
			Str("remote_addr", r.RemoteAddr).
			Msg("request handled")
	})
}
