// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

// Package quality grades aggregated data completeness and fans observations
// out to pluggable reporters.
//
// The aggregator calls a Reporter synchronously after each fetch with the
// quality grade, the fields still missing, and the channel that served the
// data. Reporters are observational only: nothing they do (or fail to do)
// can change the fetch outcome.
package quality

// Quality grades an aggregation result by its completeness score.
type Quality string

const (
	// High marks results with a completeness score of at least 0.9.
	High Quality = "high"
	// Medium marks results with a score of at least 0.7.
	Medium Quality = "medium"
	// Low marks everything below 0.7.
	Low Quality = "low"
)

// FromScore maps a completeness score onto a quality grade. Boundaries are
// inclusive: exactly 0.9 is high and exactly 0.7 is medium.
func FromScore(score float64) Quality {
	switch {
	case score >= 0.9:
		return High
	case score >= 0.7:
		return Medium
	default:
		return Low
	}
}

// Reporter receives data-quality observations from the fetch path.
// Implementations must be safe for concurrent use and must not block: the
// aggregator calls them inline.
type Reporter interface {
	// ReportDataQuality receives the grade for one completed fetch. meta
	// carries structured details (score, source, request_id).
	ReportDataQuality(symbol, dataType string, q Quality, meta map[string]any)

	// ReportMissingFields receives the required fields still absent after
	// field completion.
	ReportMissingFields(symbol, dataType string, fields []string)

	// ReportAggregationSource receives the channel that ultimately served
	// the fetch (primary, secondary, tertiary, or cached).
	ReportAggregationSource(symbol, dataType, source string)
}

// Nop discards every observation. It is the default Reporter.
type Nop struct{}

// ReportDataQuality implements Reporter.
func (Nop) ReportDataQuality(string, string, Quality, map[string]any) {}

// ReportMissingFields implements Reporter.
func (Nop) ReportMissingFields(string, string, []string) {}

// ReportAggregationSource implements Reporter.
func (Nop) ReportAggregationSource(string, string, string) {}

var _ Reporter = Nop{}
