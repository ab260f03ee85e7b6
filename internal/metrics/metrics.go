// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instruments for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ytgate",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"route", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ytgate",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	rateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ytgate",
		Name:      "ratelimit_rejections_total",
		Help:      "Admissions denied by the per-key token bucket",
	}, []string{"category"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ytgate",
		Name:      "queue_depth",
		Help:      "Jobs waiting in the download queue",
	})

	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ytgate",
		Name:      "active_workers",
		Help:      "Workers currently executing extractor subprocesses",
	})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ytgate",
		Name:      "jobs_total",
		Help:      "Terminal job outcomes",
	}, []string{"outcome"}) // outcome=completed|failed

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ytgate",
		Name:      "job_duration_seconds",
		Help:      "Download job duration from start to terminal state",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ytgate",
		Name:      "retry_attempts_total",
		Help:      "Extractor retries by reason classification",
	}, []string{"reason"})

	extractorInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ytgate",
		Name:      "extractor_invocations_total",
		Help:      "Extractor subprocess invocations by operation and outcome",
	}, []string{"operation", "outcome"})

	cookieValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ytgate",
		Name:      "cookie_validations_total",
		Help:      "Cookie validations by provider and result",
	}, []string{"provider", "result"}) // result=valid|invalid|cached

	reaperDeletedFiles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ytgate",
		Name:      "reaper_deleted_files_total",
		Help:      "Files removed by the storage reaper",
	})

	reaperReclaimedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ytgate",
		Name:      "reaper_reclaimed_bytes_total",
		Help:      "Bytes reclaimed by the storage reaper",
	})

	diskUsagePercent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ytgate",
		Name:      "output_disk_usage_percent",
		Help:      "Disk usage of the output directory filesystem",
	})

	authFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ytgate",
		Name:      "auth_failures_total",
		Help:      "Rejected API key presentations",
	})
)

func IncRequest(route, code string)            { requestsTotal.WithLabelValues(route, code).Inc() }
func ObserveRequest(route string, sec float64) { requestDuration.WithLabelValues(route).Observe(sec) }
func IncRateLimitRejection(category string)    { rateLimitRejections.WithLabelValues(category).Inc() }
func SetQueueDepth(n int)                      { queueDepth.Set(float64(n)) }
func SetActiveWorkers(n int)                   { activeWorkers.Set(float64(n)) }
func IncJobOutcome(outcome string)             { jobsTotal.WithLabelValues(outcome).Inc() }
func ObserveJobDuration(sec float64)           { jobDuration.Observe(sec) }
func IncRetry(reason string)                   { retryAttempts.WithLabelValues(reason).Inc() }
func IncExtractor(op, outcome string)          { extractorInvocations.WithLabelValues(op, outcome).Inc() }
func IncCookieValidation(provider, result string) {
	cookieValidations.WithLabelValues(provider, result).Inc()
}
func AddReaped(files int, bytes int64) {
	reaperDeletedFiles.Add(float64(files))
	reaperReclaimedBytes.Add(float64(bytes))
}
func SetDiskUsagePercent(p float64) { diskUsagePercent.Set(p) }
func IncAuthFailure()               { authFailures.Inc() }
