// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

/*
Package cache provides a generic, thread-safe in-memory cache with TTL
expiration, backing the aggregator's cache-fallback tier.

# Overview

The cache provides:
  - Typed storage via generics (Cache[V])
  - Time-to-live expiration checked lazily on every read
  - Per-entry timestamps so callers can report staleness
  - Hit/miss/eviction statistics, mirrored to Prometheus
  - An optional context-bound background sweep (StartCleanup)

# Expiration Contract

An entry older than its TTL is treated as absent: a read that finds it
evicts it and reports a miss. The background sweep is purely a memory
bound; correctness never depends on it running.

# Usage

	quotes := cache.New[source.Payload]("quotes", 5*time.Minute)
	quotes.StartCleanup(ctx, time.Minute)

	quotes.Set(cache.Key("quote", "AAPL"), payload)

	if entry, ok := quotes.GetEntry(cache.Key("quote", "AAPL")); ok {
	    serveStale(entry.Value, entry.Age())
	}

# Key Conventions

Keys are colon-joined segments, coarse to fine:

	quote:AAPL          // latest quote for a symbol
	history:<hash>      // parameterized request, hashed via GenerateKey

GenerateKey hashes JSON-marshaled parameters so structurally equal requests
share an entry without unbounded key growth.

# Statistics

GetStats returns cumulative hits, misses, evictions, the current key count,
and the last sweep time; HitRate derives the hit percentage. The same
counters are exported through the metrics package labeled by cache name.
*/
package cache
