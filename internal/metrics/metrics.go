// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the acquisition pipeline:
// - Upstream source fetch latency and outcomes
// - Retry attempts and exhaustion
// - Circuit breaker state transitions
// - Cache efficiency
// - Aggregation outcomes and data quality

var (
	// Source Metrics
	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_fetches_total",
			Help: "Total number of upstream source fetches",
		},
		[]string{"source", "result"}, // result: "success", "failure"
	)

	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Duration of upstream source fetches in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s, 0.01s, 0.025s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2.5s, 5s, 10s
		},
		[]string{"source"},
	)

	// Retry Metrics
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of failed attempts observed by the retry loop",
		},
		[]string{"operation"},
	)

	RetryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_outcomes_total",
			Help: "Terminal outcomes of retry loops",
		},
		[]string{"operation", "outcome"}, // outcome: "success", "recovered", "exhausted", "aborted"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"operation"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"operation", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"operation"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"operation", "from_state", "to_state"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of expired entries evicted from cache",
		},
		[]string{"cache"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache"},
	)

	// Aggregation Metrics
	AggregationFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_fetches_total",
			Help: "Terminal outcomes of aggregated fetches",
		},
		[]string{"data_type", "result"}, // result: "success", "incomplete", "failure"
	)

	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aggregation_fetch_duration_seconds",
			Help:    "End-to-end duration of aggregated fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"data_type"},
	)

	AggregationSources = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_source_selections_total",
			Help: "Which channel ultimately served each aggregated fetch",
		},
		[]string{"data_type", "source"}, // source: "primary", "secondary", "tertiary", "cached"
	)

	ConsistencyViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consistency_violations_total",
			Help: "Total number of cross-source field tolerance violations",
		},
		[]string{"field"},
	)

	// Data Quality Metrics
	DataQualityScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "data_quality_score",
			Help: "Completeness score of the most recent fetch (0.0-1.0)",
		},
		[]string{"data_type", "symbol"},
	)

	DataQualityReports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "data_quality_reports_total",
			Help: "Total number of quality assessments by grade",
		},
		[]string{"data_type", "quality"}, // quality: "high", "medium", "low"
	)

	MissingFields = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missing_fields_total",
			Help: "Total number of required fields absent after completion",
		},
		[]string{"data_type", "field"},
	)
)

// RecordSourceFetch records one upstream fetch with its duration and outcome.
func RecordSourceFetch(source string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	SourceFetches.WithLabelValues(source, result).Inc()
	SourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordRetryAttempt records one failed attempt inside a retry loop.
func RecordRetryAttempt(operation string) {
	RetryAttempts.WithLabelValues(operation).Inc()
}

// RecordRetryOutcome records the terminal outcome of a retry loop.
func RecordRetryOutcome(operation, outcome string) {
	RetryOutcomes.WithLabelValues(operation, outcome).Inc()
}

// RecordAggregation records the terminal outcome and duration of one
// aggregated fetch.
func RecordAggregation(dataType, result string, duration time.Duration) {
	AggregationFetches.WithLabelValues(dataType, result).Inc()
	AggregationDuration.WithLabelValues(dataType).Observe(duration.Seconds())
}

// RecordConsistencyViolation records one cross-source tolerance violation.
func RecordConsistencyViolation(field string) {
	ConsistencyViolations.WithLabelValues(field).Inc()
}
