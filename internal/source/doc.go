// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

/*
Package source provides adapters for upstream market data providers.

Each adapter implements the Source interface and normalizes its
provider's response into a Payload keyed by the canonical Field*
constants, so downstream aggregation can compare and merge data from
different providers field by field.

# Adapters

  - Yahoo: Yahoo Finance v7 JSON quote API (full field coverage)
  - FinanceGo: piquette/finance-go client library (full field coverage)
  - Stooq: Stooq CSV endpoint (price, range, volume, timestamp only)
  - Static: fixed in-memory payload for offline mode and tests

# Behavior

Adapters are transport only: they fetch, validate the HTTP exchange, and
normalize. Retry, circuit breaking, caching, and quality assessment all
happen in the aggregate package. Errors are returned raw (or as
*faults.HTTPError for non-2xx responses) and classified by the caller.

Every adapter honors its configured per-request timeout and optional
token bucket rate limit, and respects context cancellation.
*/
package source
