// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

/*
Package retry provides configurable backoff loops for upstream calls.

A Policy describes the attempt budget, the delay strategy, and the failure
classes worth retrying; Do and DoWithResult run a work function under that
policy. Failures are classified through the faults package, so callers see a
typed terminal error and a per-attempt history rather than a bare string.

# Attempt Arithmetic

MaxRetries counts retries after the first attempt: MaxRetries=3 means up to
4 attempts. A policy with MaxRetries=0 makes exactly one attempt.

# Delay Strategies

The delay before the n-th retry (n starting at 1):

	exponential: InitialDelay * BackoffMultiplier^(n-1), capped at MaxDelay
	linear:      InitialDelay * n, capped at MaxDelay
	fixed:       InitialDelay

With Jitter enabled each delay is perturbed by +-10% so synchronized callers
spread out. Jitter is reproducible in tests via Policy.Seed.

# Usage

	policy := retry.DefaultPolicy()
	policy.Op = "quote.primary"

	res := retry.DoWithResult(ctx, policy, func(ctx context.Context) (source.Payload, error) {
	    return src.Fetch(ctx, symbol)
	})
	if !res.Success {
	    return nil, res.Err // max-retries error with attempt history, or the last classification
	}

# Stop Conditions

The loop stops without sleeping when:
  - the attempt budget is exhausted (terminal error wraps the history)
  - SkipRetry vetoes the failure
  - the classification is non-retryable (client errors, circuit-open)
  - a status-carrying failure's code is outside RetryableStatusCodes and a
    status-less failure's kind is neither transport nor rate-limit trouble

The backoff sleep honors context cancellation; a canceled loop returns the
classified context error with counters reflecting completed attempts only.
*/
package retry
