// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package retry

import (
	"context"
	"time"

	"github.com/mfleet/stockpile/internal/faults"
	"github.com/mfleet/stockpile/internal/logging"
	"github.com/mfleet/stockpile/internal/metrics"
)

// Attempt records one failed try inside Do or DoWithResult.
type Attempt struct {
	// Number is the 1-based attempt number.
	Number int
	// Delay is the backoff computed after this failure. It is recorded even
	// for the terminal failure, where no sleep follows.
	Delay time.Duration
	// Err is the classified failure.
	Err *faults.Classified
	// At is when the failure was observed.
	At time.Time
	// Context carries the policy's static context fields.
	Context map[string]any
}

// Result is the terminal outcome of a retry loop.
type Result[T any] struct {
	// Success reports whether work eventually returned nil.
	Success bool
	// Value is the successful result, zero otherwise.
	Value T
	// Err is the terminal error: the exhaustion wrapper when the attempt
	// budget ran out, otherwise the last classification.
	Err error
	// Attempts counts completed attempts, including the successful one.
	Attempts int
	// TotalDuration is the wall time spent in the loop, sleeps included.
	TotalDuration time.Duration
	// History holds one record per failed attempt.
	History []Attempt
}

// Do runs work under the policy and returns its terminal error.
func Do(ctx context.Context, p Policy, work func(context.Context) error) error {
	res := DoWithResult(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, work(ctx)
	})
	return res.Err
}

// DoWithResult runs work under the policy until it succeeds, the attempt
// budget is exhausted, or a failure is judged non-retryable.
//
// On each failure the error is classified, the next delay is computed, the
// attempt is recorded and handed to OnRetry, and only then is the
// continue/stop decision made. The backoff sleep is the loop's single
// suspension point and honors ctx cancellation; unwinding leaves the history
// reflecting completed attempts only.
//
// A failure whose budget ran out surfaces as a max-retries error carrying the
// history; a failure stopped for any other reason (non-retryable kind,
// SkipRetry veto, status code outside the allow-list) surfaces as its own
// classification. Circuit-open rejections are never retried: the breaker
// timeout, not this loop, decides when the upstream is probed again.
func DoWithResult[T any](ctx context.Context, p Policy, work func(context.Context) (T, error)) Result[T] {
	op := p.Op
	if op == "" {
		op = "operation"
	}
	rng := newRNG(p.Seed)
	start := time.Now()

	var res Result[T]
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			res.Err = faults.Classify(ctx.Err())
			res.Attempts = attempt
			res.TotalDuration = time.Since(start)
			metrics.RecordRetryOutcome(op, "aborted")
			return res
		default:
		}

		value, err := work(ctx)
		if err == nil {
			res.Success = true
			res.Value = value
			res.Attempts = attempt + 1
			res.TotalDuration = time.Since(start)
			if attempt > 0 {
				logging.Ctx(ctx).Info().
					Str("operation", op).
					Int("attempts", res.Attempts).
					Dur("total_duration", res.TotalDuration).
					Msg("Operation recovered after retries")
				metrics.RecordRetryOutcome(op, "recovered")
				if p.OnRecovered != nil {
					p.OnRecovered(res.Attempts)
				}
			} else {
				metrics.RecordRetryOutcome(op, "success")
			}
			return res
		}

		classified := faults.Classify(err)
		delay := p.Delay(attempt)
		if p.Jitter {
			delay = jittered(delay, rng)
		}

		rec := Attempt{
			Number:  attempt + 1,
			Delay:   delay,
			Err:     classified,
			At:      time.Now(),
			Context: p.Context,
		}
		res.History = append(res.History, rec)
		metrics.RecordRetryAttempt(op)
		if p.OnRetry != nil {
			p.OnRetry(rec)
		}

		if !p.shouldRetry(classified, attempt) {
			res.Attempts = attempt + 1
			res.TotalDuration = time.Since(start)
			if attempt >= p.MaxRetries {
				res.Err = faults.NewMaxRetries(op, res.Attempts, classified, res.History)
				metrics.RecordRetryOutcome(op, "exhausted")
				logging.Ctx(ctx).Warn().
					Str("operation", op).
					Int("attempts", res.Attempts).
					Str("kind", classified.Kind.String()).
					Msg("Retry budget exhausted")
			} else {
				res.Err = classified
				metrics.RecordRetryOutcome(op, "aborted")
				logging.Ctx(ctx).Debug().
					Str("operation", op).
					Int("attempt", rec.Number).
					Str("kind", classified.Kind.String()).
					Msg("Failure is not retryable, giving up")
			}
			if p.OnGiveUp != nil {
				p.OnGiveUp(classified, res.History)
			}
			return res
		}

		logging.Ctx(ctx).Debug().
			Str("operation", op).
			Int("attempt", rec.Number).
			Dur("backoff", delay).
			Str("kind", classified.Kind.String()).
			Msg("Attempt failed, backing off")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Err = faults.Classify(ctx.Err())
			res.Attempts = attempt + 1
			res.TotalDuration = time.Since(start)
			metrics.RecordRetryOutcome(op, "aborted")
			return res
		case <-timer.C:
		}
	}
}
