// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package quality

import (
	"github.com/mfleet/stockpile/internal/logging"
	"github.com/mfleet/stockpile/internal/metrics"
)

// LogReporter writes observations to the global logger. Low-quality results
// and missing fields log at warn level, the rest at debug.
type LogReporter struct{}

var _ Reporter = LogReporter{}

// ReportDataQuality implements Reporter.
func (LogReporter) ReportDataQuality(symbol, dataType string, q Quality, meta map[string]any) {
	event := logging.Debug()
	if q == Low {
		event = logging.Warn()
	}
	event.
		Str("symbol", symbol).
		Str("data_type", dataType).
		Str("quality", string(q)).
		Fields(meta).
		Msg("Data quality assessed")
}

// ReportMissingFields implements Reporter.
func (LogReporter) ReportMissingFields(symbol, dataType string, fields []string) {
	logging.Warn().
		Str("symbol", symbol).
		Str("data_type", dataType).
		Strs("missing_fields", fields).
		Msg("Required fields missing after completion")
}

// ReportAggregationSource implements Reporter.
func (LogReporter) ReportAggregationSource(symbol, dataType, source string) {
	logging.Debug().
		Str("symbol", symbol).
		Str("data_type", dataType).
		Str("source", source).
		Msg("Aggregation served")
}

// MetricsReporter exports observations through the Prometheus collectors.
// The completeness score is read from meta["score"] when present.
type MetricsReporter struct{}

var _ Reporter = MetricsReporter{}

// ReportDataQuality implements Reporter.
func (MetricsReporter) ReportDataQuality(symbol, dataType string, q Quality, meta map[string]any) {
	metrics.DataQualityReports.WithLabelValues(dataType, string(q)).Inc()
	if score, ok := meta["score"].(float64); ok {
		metrics.DataQualityScore.WithLabelValues(dataType, symbol).Set(score)
	}
}

// ReportMissingFields implements Reporter.
func (MetricsReporter) ReportMissingFields(_, dataType string, fields []string) {
	for _, field := range fields {
		metrics.MissingFields.WithLabelValues(dataType, field).Inc()
	}
}

// ReportAggregationSource implements Reporter.
func (MetricsReporter) ReportAggregationSource(_, dataType, source string) {
	metrics.AggregationSources.WithLabelValues(dataType, source).Inc()
}

// Multi fans each observation out to several reporters in order, recovering
// panics so one broken reporter can never fail the fetch path.
type Multi struct {
	reporters []Reporter
}

var _ Reporter = (*Multi)(nil)

// NewMulti builds a fan-out reporter. Nil entries are skipped.
func NewMulti(reporters ...Reporter) *Multi {
	kept := make([]Reporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			kept = append(kept, r)
		}
	}
	return &Multi{reporters: kept}
}

// ReportDataQuality implements Reporter.
func (m *Multi) ReportDataQuality(symbol, dataType string, q Quality, meta map[string]any) {
	m.each(func(r Reporter) { r.ReportDataQuality(symbol, dataType, q, meta) })
}

// ReportMissingFields implements Reporter.
func (m *Multi) ReportMissingFields(symbol, dataType string, fields []string) {
	m.each(func(r Reporter) { r.ReportMissingFields(symbol, dataType, fields) })
}

// ReportAggregationSource implements Reporter.
func (m *Multi) ReportAggregationSource(symbol, dataType, source string) {
	m.each(func(r Reporter) { r.ReportAggregationSource(symbol, dataType, source) })
}

// each invokes fn for every reporter, isolating panics per reporter.
func (m *Multi) each(fn func(Reporter)) {
	for _, r := range m.reporters {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logging.Error().
						Interface("panic", rec).
						Msg("Quality reporter panicked")
				}
			}()
			fn(r)
		}()
	}
}
