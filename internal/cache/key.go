// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Key joins parts into a composite cache key.
//
//	cache.Key("quote", "AAPL") // "quote:AAPL"
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// GenerateKey builds a deterministic key from an operation name and an
// arbitrary parameter value. Parameters are JSON-marshaled and hashed so
// structurally equal requests share an entry regardless of size.
//
//	key := cache.GenerateKey("history", HistoryParams{Symbol: "AAPL", Days: 30})
func GenerateKey(op string, params any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:invalid", op)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", op, hash[:16])
}
