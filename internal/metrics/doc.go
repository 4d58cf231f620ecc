// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

/*
Package metrics provides Prometheus metrics collection for observability.

All collectors are registered at package load via promauto, so importing
this package is enough to make a metric exist. Components record through
the exported collectors or the Record* helpers.

# Available Metrics

Source Metrics:
  - source_fetches_total: Upstream fetches (counter)
    Labels: source, result (success|failure)
  - source_fetch_duration_seconds: Fetch latency (histogram)
    Labels: source

Retry Metrics:
  - retry_attempts_total: Failed attempts seen by retry loops (counter)
    Labels: operation
  - retry_outcomes_total: Terminal retry loop outcomes (counter)
    Labels: operation, outcome (success|recovered|exhausted|aborted)

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge, 0=closed 1=half-open 2=open)
    Labels: operation
  - circuit_breaker_requests_total: Requests through each breaker (counter)
    Labels: operation, result (success|failure|rejected)
  - circuit_breaker_consecutive_failures: Consecutive failures (gauge)
    Labels: operation
  - circuit_breaker_state_transitions_total: State transitions (counter)
    Labels: operation, from_state, to_state

Cache Metrics:
  - cache_hits_total, cache_misses_total, cache_evictions_total (counters)
    Labels: cache
  - cache_entries: Current entry count (gauge)
    Labels: cache

Aggregation Metrics:
  - aggregation_fetches_total: Terminal fetch outcomes (counter)
    Labels: data_type, result (success|incomplete|failure)
  - aggregation_fetch_duration_seconds: End-to-end latency (histogram)
    Labels: data_type
  - aggregation_source_selections_total: Winning channel per fetch (counter)
    Labels: data_type, source (primary|secondary|tertiary|cached)
  - consistency_violations_total: Cross-source tolerance violations (counter)
    Labels: field

Data Quality Metrics:
  - data_quality_score: Latest completeness score (gauge, 0.0-1.0)
    Labels: data_type, symbol
  - data_quality_reports_total: Assessments by grade (counter)
    Labels: data_type, quality (high|medium|low)
  - missing_fields_total: Required fields absent after completion (counter)
    Labels: data_type, field

# Usage

	import "github.com/mfleet/stockpile/internal/metrics"

	start := time.Now()
	payload, err := src.Fetch(ctx, symbol)
	metrics.RecordSourceFetch(src.Name(), time.Since(start), err)

Gauges with per-symbol labels stay small in practice: the label set is
bounded by the watch list, not by request volume.
*/
package metrics
