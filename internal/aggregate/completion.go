// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package aggregate

import (
	"github.com/mfleet/stockpile/internal/source"
)

// capture is one source's payload recorded during a single aggregation
// call. Captures are held in fetch order; completion iterates them in that
// order, first match wins.
type capture struct {
	label string
	name  string
	data  source.Payload
}

// fill describes one field completed from a non-base capture.
type fill struct {
	field string
	label string
	name  string
}

// complete fills required fields that are missing or nil on the base
// payload from the other captures, in capture order. The base payload is
// mutated in place; the returned fills say where each value came from.
func complete(base source.Payload, captures []capture, required []string) []fill {
	if len(required) == 0 {
		return nil
	}

	var fills []fill
	for _, field := range required {
		if base.Has(field) {
			continue
		}
		for _, c := range captures {
			if !c.data.Has(field) {
				continue
			}
			base[field] = c.data[field]
			fills = append(fills, fill{field: field, label: c.label, name: c.name})
			break
		}
	}
	return fills
}

// missingFields returns the required fields absent or nil on the payload,
// in required-list order.
func missingFields(p source.Payload, required []string) []string {
	var missing []string
	for _, field := range required {
		if !p.Has(field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// completenessScore is the fraction of required fields present on the
// payload. Defined as 1 when nothing is required.
func completenessScore(p source.Payload, required []string) float64 {
	if len(required) == 0 {
		return 1.0
	}
	present := 0
	for _, field := range required {
		if p.Has(field) {
			present++
		}
	}
	return float64(present) / float64(len(required))
}
