// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

/*
Package breaker provides per-operation circuit breaking over sony/gobreaker.

A Group lazily creates one breaker per operation key (e.g. "quote.primary",
"news.secondary") so that a failing upstream trips only its own circuit.

# State Machine

	closed    -> open       after FailureThreshold consecutive failures
	open      -> half-open  after Timeout elapses
	half-open -> closed     after SuccessThreshold consecutive probe successes
	half-open -> open       on any probe failure (recovery clock restarts)

Any success in the closed state resets the consecutive-failure count.

# Usage

	group := breaker.NewGroup[source.Payload](breaker.DefaultConfig())
	group.Configure("quote.primary", breaker.Config{FailureThreshold: 3, Timeout: 10 * time.Second})

	payload, err := group.Do("quote.primary", func() (source.Payload, error) {
	    return src.Fetch(ctx, symbol)
	})

A rejection by an open circuit returns a classified circuit-open error
without invoking the work function; callers fall back to other sources or
the cache instead of waiting out the backoff.

State, request outcomes, and transitions are exported through the metrics
package under the circuit_breaker_* collectors.
*/
package breaker
