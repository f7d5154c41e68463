// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

// Package metrics provides Prometheus instrumentation for the sync engine:
// upstream API calls, rate limiter state, circuit breaker state, sync job
// outcomes, identity validation cache efficiency, and store operations.
// Collectors are package-level promauto vars registered on the default
// registry and served via promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream API metrics

	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psn_api_calls_total",
			Help: "Total number of upstream API calls",
		},
		[]string{"endpoint", "outcome"}, // outcome: success, auth_expired, forbidden, not_found, transient, schema_drift
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "psn_api_call_duration_seconds",
			Help:    "Duration of upstream API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psn_api_retries_total",
			Help: "Total number of retried upstream API calls",
		},
		[]string{"endpoint"},
	)

	SchemaDriftTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "psn_schema_drift_records_total",
			Help: "Total number of upstream records skipped due to unrecognized shape",
		},
		[]string{"record_type"},
	)

	// Rate limiter metrics

	RateLimitWindowCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limit_window_calls",
			Help: "Calls made in the current rate limit window",
		},
	)

	RateLimitWindowRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limit_window_remaining",
			Help: "Calls remaining in the current rate limit window",
		},
	)

	RateLimitWaitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_waits_total",
			Help: "Total number of reservations deferred until window reset",
		},
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total requests through the circuit breaker by outcome",
		},
		[]string{"name", "outcome"}, // outcome: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Sync job metrics

	SyncJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_jobs_total",
			Help: "Total sync jobs by terminal status",
		},
		[]string{"status"},
	)

	SyncJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_job_duration_seconds",
			Help:    "Duration of completed sync jobs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	SyncActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_active_jobs",
			Help: "Number of jobs currently pending or running",
		},
	)

	SyncTitlesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_titles_processed_total",
			Help: "Total titles processed across all sync jobs",
		},
	)

	SyncTrophiesNewlyEarned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_trophies_newly_earned_total",
			Help: "Total trophies newly marked earned across all sync jobs",
		},
	)

	// Identity validation cache metrics

	IdentityValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_validations_total",
			Help: "Total identity validation attempts by result",
		},
		[]string{"result"}, // result: valid, private, not_found, error
	)

	IdentityCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "identity_cache_hits_total",
			Help: "Validation requests served from the cache without an upstream call",
		},
	)

	IdentityCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "identity_cache_misses_total",
			Help: "Validation requests requiring an upstream call",
		},
	)

	// Store metrics

	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total store operations by entity and operation",
		},
		[]string{"entity", "operation"},
	)

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Total store operation errors by entity and operation",
		},
		[]string{"entity", "operation"},
	)

	// HTTP boundary metrics

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)
)
