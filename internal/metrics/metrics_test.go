// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordSourceFetch tests fetch outcome counting per source
func TestRecordSourceFetch(t *testing.T) {
	tests := []struct {
		name   string
		source string
		err    error
		result string
	}{
		{
			name:   "successful fetch",
			source: "yahoo-test-a",
			err:    nil,
			result: "success",
		},
		{
			name:   "failed fetch",
			source: "yahoo-test-b",
			err:    errors.New("connection refused"),
			result: "failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(SourceFetches.WithLabelValues(tt.source, tt.result))

			RecordSourceFetch(tt.source, 10*time.Millisecond, tt.err)

			after := testutil.ToFloat64(SourceFetches.WithLabelValues(tt.source, tt.result))
			if after != before+1 {
				t.Errorf("expected counter %s/%s to increment by 1, got %v -> %v",
					tt.source, tt.result, before, after)
			}
		})
	}
}

// TestRecordRetryAttempt tests retry attempt counting
func TestRecordRetryAttempt(t *testing.T) {
	before := testutil.ToFloat64(RetryAttempts.WithLabelValues("quote.test"))

	RecordRetryAttempt("quote.test")
	RecordRetryAttempt("quote.test")

	after := testutil.ToFloat64(RetryAttempts.WithLabelValues("quote.test"))
	if after != before+2 {
		t.Errorf("expected 2 attempts recorded, got %v -> %v", before, after)
	}
}

// TestRecordRetryOutcome tests terminal retry outcome counting
func TestRecordRetryOutcome(t *testing.T) {
	for _, outcome := range []string{"success", "recovered", "exhausted", "aborted"} {
		before := testutil.ToFloat64(RetryOutcomes.WithLabelValues("quote.outcome-test", outcome))

		RecordRetryOutcome("quote.outcome-test", outcome)

		after := testutil.ToFloat64(RetryOutcomes.WithLabelValues("quote.outcome-test", outcome))
		if after != before+1 {
			t.Errorf("expected outcome %q to increment, got %v -> %v", outcome, before, after)
		}
	}
}

// TestRecordAggregation tests aggregated fetch outcome counting
func TestRecordAggregation(t *testing.T) {
	before := testutil.ToFloat64(AggregationFetches.WithLabelValues("quote-test", "success"))

	RecordAggregation("quote-test", "success", 25*time.Millisecond)

	after := testutil.ToFloat64(AggregationFetches.WithLabelValues("quote-test", "success"))
	if after != before+1 {
		t.Errorf("expected aggregation counter to increment, got %v -> %v", before, after)
	}
}

// TestRecordConsistencyViolation tests per-field violation counting
func TestRecordConsistencyViolation(t *testing.T) {
	before := testutil.ToFloat64(ConsistencyViolations.WithLabelValues("price-test"))

	RecordConsistencyViolation("price-test")

	after := testutil.ToFloat64(ConsistencyViolations.WithLabelValues("price-test"))
	if after != before+1 {
		t.Errorf("expected violation counter to increment, got %v -> %v", before, after)
	}
}

// TestGaugeCollectors tests that gauge collectors accept writes
func TestGaugeCollectors(t *testing.T) {
	CircuitBreakerState.WithLabelValues("quote.gauge-test").Set(2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("quote.gauge-test")); got != 2 {
		t.Errorf("expected breaker state gauge = 2, got %v", got)
	}

	CacheSize.WithLabelValues("quotes-gauge-test").Set(7)
	if got := testutil.ToFloat64(CacheSize.WithLabelValues("quotes-gauge-test")); got != 7 {
		t.Errorf("expected cache size gauge = 7, got %v", got)
	}

	DataQualityScore.WithLabelValues("quote-gauge-test", "AAPL").Set(0.85)
	if got := testutil.ToFloat64(DataQualityScore.WithLabelValues("quote-gauge-test", "AAPL")); got != 0.85 {
		t.Errorf("expected quality score gauge = 0.85, got %v", got)
	}
}
