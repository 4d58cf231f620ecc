// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package aggregate

import (
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/mfleet/stockpile/internal/source"
)

// Tolerances for cross-source numeric comparison. Field names drive the
// rule selection: price-named fields compare against the average magnitude,
// volume-named fields get a looser bound, time-named fields compare
// absolutely in their own unit.
const (
	priceTolerance   = 0.01  // relative to average magnitude
	volumeTolerance  = 0.05  // relative to average magnitude
	numericTolerance = 0.01  // relative to the first value's magnitude
	timeTolerance    = 60000 // absolute, unit of the field itself (ms for timestamp)
)

// Mismatch describes one field that failed its consistency tolerance.
type Mismatch struct {
	Field string
	A     any
	B     any
	// Delta is the observed difference: absolute for numeric fields,
	// 0 for non-numeric inequality.
	Delta float64
	// Tolerance is the allowed difference for this field, 0 for
	// non-numeric fields which must match exactly.
	Tolerance float64
}

// ConsistencyReport is the outcome of comparing two payloads field by field.
type ConsistencyReport struct {
	// Consistent is true only when every shared field passed its tolerance.
	Consistent bool
	// Checked lists the fields present in both payloads, sorted.
	Checked []string
	// Mismatches lists the fields that violated their tolerance.
	Mismatches []Mismatch
}

// CheckConsistency compares the fields present in both payloads. Numeric
// fields use a name-driven tolerance, non-numeric fields must be exactly
// equal, and a single violating field marks the whole pair inconsistent.
// Fields present in only one payload are ignored.
func CheckConsistency(a, b source.Payload) ConsistencyReport {
	report := ConsistencyReport{Consistent: true}

	shared := make([]string, 0, len(a))
	for field := range a {
		if !a.Has(field) || !b.Has(field) {
			continue
		}
		shared = append(shared, field)
	}
	sort.Strings(shared)
	report.Checked = shared

	for _, field := range shared {
		if m, ok := checkField(field, a[field], b[field]); !ok {
			report.Consistent = false
			report.Mismatches = append(report.Mismatches, m)
		}
	}

	return report
}

// checkField compares one field under its name-driven rule. Returns the
// mismatch details and false when the tolerance is violated.
func checkField(field string, a, b any) (Mismatch, bool) {
	av, aNum := toFloat(a)
	bv, bNum := toFloat(b)

	// Non-numeric on either side: exact equality only
	if !aNum || !bNum {
		if reflect.DeepEqual(a, b) {
			return Mismatch{}, true
		}
		return Mismatch{Field: field, A: a, B: b}, false
	}

	diff := math.Abs(av - bv)
	tolerance := toleranceFor(field, av, bv)

	if diff <= tolerance {
		return Mismatch{}, true
	}
	return Mismatch{Field: field, A: a, B: b, Delta: diff, Tolerance: tolerance}, false
}

// toleranceFor derives the allowed absolute difference for a numeric field
// from its name and the observed values.
func toleranceFor(field string, a, b float64) float64 {
	name := strings.ToLower(field)

	switch {
	case strings.Contains(name, "price"):
		// Two exact zeros are equal; otherwise 1% of the average magnitude
		return priceTolerance * (math.Abs(a) + math.Abs(b)) / 2

	case strings.Contains(name, "volume"):
		// Two zero volumes are always consistent: the derived tolerance is
		// 0 and so is the difference
		return volumeTolerance * (math.Abs(a) + math.Abs(b)) / 2

	case strings.Contains(name, "time"), strings.Contains(name, "date"):
		return timeTolerance

	default:
		return numericTolerance * math.Abs(a)
	}
}

// toFloat coerces the numeric types payloads actually carry. JSON decoding
// yields float64, adapters may store int64 timestamps.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
