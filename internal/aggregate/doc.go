// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

/*
Package aggregate orchestrates resilient multi-source market data fetches.

One Aggregator serves one data type (quote, history, ...). A fetch walks
the source channels in priority order:

	primary -> secondary -> tertiary -> cached

Each live channel runs under its own retry policy, and every attempt is
guarded by the channel's circuit breaker (keyed "datatype.channel", so a
failing primary never opens the breaker for a fallback). The first channel
to produce a payload wins and is treated as equally authoritative
regardless of which channel it was; the cached channel serves a non-expired
TTL cache entry, flagged stale with its age, only after live channels are
exhausted.

After a winner is selected the remaining channels may be consulted once
each (no retries) to fill required fields the winner is missing. Captured
payloads are also compared field by field against the winner with
name-driven numeric tolerances; violations are logged and counted but
never fail the fetch.

The returned Result carries the completed payload, the winning channel,
staleness, and a completeness Assessment (score in [0,1], quality band,
missing fields). Under strict completion a payload still missing required
fields is rejected with a data-incomplete error unless partial results are
allowed, in which case the OnIncomplete observer fires instead.

Fallback channels are tried sequentially, never raced, to avoid amplifying
load on a degraded dependency.
*/
package aggregate
