// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package aggregate

import (
	"testing"

	"github.com/mfleet/stockpile/internal/source"
)

// TestCheckConsistencyIdentical verifies identical payloads always pass
func TestCheckConsistencyIdentical(t *testing.T) {
	p := source.Payload{
		"symbol":    "AAPL",
		"price":     175.5,
		"volume":    52000000.0,
		"timestamp": int64(1756120000000),
	}

	report := CheckConsistency(p, p.Clone())
	if !report.Consistent {
		t.Errorf("identical payloads reported inconsistent: %+v", report.Mismatches)
	}
	if len(report.Checked) != 4 {
		t.Errorf("Checked = %v, want all 4 shared fields", report.Checked)
	}
	if len(report.Mismatches) != 0 {
		t.Errorf("Mismatches = %v, want none", report.Mismatches)
	}
}

// TestCheckConsistencyPriceTolerance tests the 1%-of-average price rule,
// including the inclusive boundary
func TestCheckConsistencyPriceTolerance(t *testing.T) {
	tests := []struct {
		name       string
		a, b       float64
		consistent bool
	}{
		{"equal prices", 100.0, 100.0, true},
		{"small drift", 100.0, 100.5, true},
		// Tolerance = 1% of (100+101)/2 = 1.005; diff = 1.0
		{"within one percent of average", 100.0, 101.0, true},
		// Tolerance = 1% of (100+102)/2 = 1.01; diff = 2.0
		{"beyond tolerance", 100.0, 102.0, false},
		{"both zero", 0.0, 0.0, true},
		{"one zero", 0.0, 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := source.Payload{"price": tt.a}
			b := source.Payload{"price": tt.b}

			report := CheckConsistency(a, b)
			if report.Consistent != tt.consistent {
				t.Errorf("CheckConsistency(price %v vs %v).Consistent = %v, want %v",
					tt.a, tt.b, report.Consistent, tt.consistent)
			}
		})
	}
}

// TestCheckConsistencyPriceBoundary pins the exact boundary: a difference
// of exactly the tolerance passes, a basis point more fails
func TestCheckConsistencyPriceBoundary(t *testing.T) {
	// With a=199, b=201: average magnitude 200, tolerance 2.0, diff exactly 2.0
	report := CheckConsistency(
		source.Payload{"price": 199.0},
		source.Payload{"price": 201.0},
	)
	if !report.Consistent {
		t.Error("difference of exactly the tolerance should be consistent")
	}

	// Push one side a hair past the boundary
	report = CheckConsistency(
		source.Payload{"price": 198.9},
		source.Payload{"price": 201.0},
	)
	if report.Consistent {
		t.Error("difference just past the tolerance should be inconsistent")
	}
}

// TestCheckConsistencyVolumeTolerance tests the looser 5% volume rule and
// the two-zero special case
func TestCheckConsistencyVolumeTolerance(t *testing.T) {
	tests := []struct {
		name       string
		a, b       float64
		consistent bool
	}{
		{"two zero volumes", 0.0, 0.0, true},
		{"three percent apart", 1000000.0, 1030000.0, true},
		{"ten percent apart", 1000000.0, 1100000.0, false},
		{"zero versus nonzero", 0.0, 1000000.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := CheckConsistency(
				source.Payload{"volume": tt.a},
				source.Payload{"volume": tt.b},
			)
			if report.Consistent != tt.consistent {
				t.Errorf("CheckConsistency(volume %v vs %v).Consistent = %v, want %v",
					tt.a, tt.b, report.Consistent, tt.consistent)
			}
		})
	}
}

// TestCheckConsistencyTimeTolerance tests the absolute 60000 rule for
// time- and date-named fields
func TestCheckConsistencyTimeTolerance(t *testing.T) {
	base := int64(1756120000000)

	tests := []struct {
		name       string
		field      string
		a, b       int64
		consistent bool
	}{
		{"same timestamp", "timestamp", base, base, true},
		{"one minute apart", "timestamp", base, base + 60000, true},
		{"just over a minute", "timestamp", base, base + 60001, false},
		{"date field uses same rule", "tradeDate", base, base + 59000, true},
		{"date field over", "tradeDate", base, base + 70000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := CheckConsistency(
				source.Payload{tt.field: tt.a},
				source.Payload{tt.field: tt.b},
			)
			if report.Consistent != tt.consistent {
				t.Errorf("CheckConsistency(%s %d vs %d).Consistent = %v, want %v",
					tt.field, tt.a, tt.b, report.Consistent, tt.consistent)
			}
		})
	}
}

// TestCheckConsistencyGenericNumeric tests the 1%-of-first-value rule for
// fields without a name-specific tolerance
func TestCheckConsistencyGenericNumeric(t *testing.T) {
	// marketCap: tolerance = 1% of first value
	report := CheckConsistency(
		source.Payload{"marketCap": 1000.0},
		source.Payload{"marketCap": 1010.0},
	)
	if !report.Consistent {
		t.Error("1% difference on generic numeric field should be consistent")
	}

	report = CheckConsistency(
		source.Payload{"marketCap": 1000.0},
		source.Payload{"marketCap": 1020.0},
	)
	if report.Consistent {
		t.Error("2% difference on generic numeric field should be inconsistent")
	}
}

// TestCheckConsistencyNonNumeric tests exact equality for strings
func TestCheckConsistencyNonNumeric(t *testing.T) {
	report := CheckConsistency(
		source.Payload{"currency": "USD", "price": 100.0},
		source.Payload{"currency": "USD", "price": 100.0},
	)
	if !report.Consistent {
		t.Error("equal strings should be consistent")
	}

	report = CheckConsistency(
		source.Payload{"currency": "USD"},
		source.Payload{"currency": "EUR"},
	)
	if report.Consistent {
		t.Error("different strings should be inconsistent")
	}
	if len(report.Mismatches) != 1 || report.Mismatches[0].Field != "currency" {
		t.Errorf("Mismatches = %+v, want single currency mismatch", report.Mismatches)
	}
}

// TestCheckConsistencyMixedTypes tests numeric-versus-string comparison
func TestCheckConsistencyMixedTypes(t *testing.T) {
	report := CheckConsistency(
		source.Payload{"price": 100.0},
		source.Payload{"price": "100.0"},
	)
	if report.Consistent {
		t.Error("numeric versus string should be inconsistent")
	}
}

// TestCheckConsistencyIntFloatCoercion tests cross-type numeric comparison
func TestCheckConsistencyIntFloatCoercion(t *testing.T) {
	report := CheckConsistency(
		source.Payload{"volume": 52000000.0},
		source.Payload{"volume": int64(52000000)},
	)
	if !report.Consistent {
		t.Error("float64 and int64 carrying the same value should be consistent")
	}
}

// TestCheckConsistencyOneViolationFailsAll verifies a single violating
// field marks the whole pair inconsistent
func TestCheckConsistencyOneViolationFailsAll(t *testing.T) {
	a := source.Payload{
		"symbol": "AAPL",
		"price":  100.0,
		"volume": 1000000.0,
	}
	b := source.Payload{
		"symbol": "AAPL",
		"price":  150.0, // way out of tolerance
		"volume": 1000000.0,
	}

	report := CheckConsistency(a, b)
	if report.Consistent {
		t.Error("payloads with one violating field should be inconsistent")
	}
	if len(report.Mismatches) != 1 {
		t.Fatalf("Mismatches = %+v, want exactly the price field", report.Mismatches)
	}
	if report.Mismatches[0].Field != "price" {
		t.Errorf("mismatch field = %q, want price", report.Mismatches[0].Field)
	}
	if len(report.Checked) != 3 {
		t.Errorf("Checked = %v, want all 3 shared fields", report.Checked)
	}
}

// TestCheckConsistencyDisjointFields verifies fields in only one payload
// are ignored
func TestCheckConsistencyDisjointFields(t *testing.T) {
	report := CheckConsistency(
		source.Payload{"price": 100.0, "marketCap": 1e12},
		source.Payload{"price": 100.0, "volume": 1000.0},
	)
	if !report.Consistent {
		t.Errorf("disjoint fields should not be compared: %+v", report.Mismatches)
	}
	if len(report.Checked) != 1 || report.Checked[0] != "price" {
		t.Errorf("Checked = %v, want just price", report.Checked)
	}
}

// TestCheckConsistencyNilValues verifies nil-valued fields are skipped
func TestCheckConsistencyNilValues(t *testing.T) {
	report := CheckConsistency(
		source.Payload{"price": nil, "volume": 1000.0},
		source.Payload{"price": 100.0, "volume": 1000.0},
	)
	if !report.Consistent {
		t.Error("nil-valued fields should be skipped, not compared")
	}
	if len(report.Checked) != 1 {
		t.Errorf("Checked = %v, want just volume", report.Checked)
	}
}
