// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package retry

import (
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/mfleet/stockpile/internal/faults"
)

// Strategy selects how successive backoff delays grow.
type Strategy string

const (
	// StrategyExponential multiplies the delay by BackoffMultiplier after
	// each retry.
	StrategyExponential Strategy = "exponential"
	// StrategyLinear grows the delay by InitialDelay after each retry.
	StrategyLinear Strategy = "linear"
	// StrategyFixed uses InitialDelay for every retry.
	StrategyFixed Strategy = "fixed"
)

// jitterFraction is the +-10% perturbation applied when Jitter is enabled.
const jitterFraction = 0.1

// maxExponent caps the exponential growth so math.Pow cannot overflow
// time.Duration; the cap takes over well before this point in practice.
const maxExponent = 50

// defaultRetryableStatusCodes is the status allow-list used when the policy
// does not supply one.
var defaultRetryableStatusCodes = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Policy configures one retry loop. Construct it from DefaultPolicy and
// override fields; a zero Policy performs a single attempt with no backoff.
type Policy struct {
	// Op names the operation for logs, metrics, and exhaustion errors
	// (e.g. "quote.primary").
	Op string

	// MaxRetries is the number of retries after the first attempt. A
	// persistently failing operation therefore makes MaxRetries+1 attempts.
	MaxRetries int

	// Strategy selects delay growth. Empty means exponential.
	Strategy Strategy

	// InitialDelay is the backoff before the first retry.
	InitialDelay time.Duration

	// BackoffMultiplier is the exponential growth factor. Values below 1
	// fall back to 2.0.
	BackoffMultiplier float64

	// MaxDelay caps each computed delay before jitter. Zero means no cap.
	MaxDelay time.Duration

	// Jitter perturbs each delay by +-10% so synchronized callers spread out.
	Jitter bool

	// RetryableStatusCodes is the allow-list consulted for failures that
	// carry a status code. Nil selects the default set {429, 500, 502, 503,
	// 504}; an empty non-nil slice disables status-based retries.
	RetryableStatusCodes []int

	// SkipRetry vetoes further attempts when it returns true. The veto is
	// evaluated before any backoff sleep.
	SkipRetry func(*faults.Classified) bool

	// OnRetry observes every failed attempt, before the continue/stop
	// decision for that attempt is made.
	OnRetry func(Attempt)

	// OnGiveUp observes the terminal failure together with the full
	// attempt history.
	OnGiveUp func(err *faults.Classified, history []Attempt)

	// OnRecovered observes a success that followed at least one failure,
	// with the total number of attempts made.
	OnRecovered func(attempts int)

	// Context carries static fields copied onto every Attempt record.
	Context map[string]any

	// Seed makes jitter reproducible when non-zero.
	// DETERMINISM: when 0 (default), a time-based seed is used.
	Seed int64
}

// DefaultPolicy returns production defaults for the retry loop.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:        3,
		Strategy:          StrategyExponential,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          30 * time.Second,
		Jitter:            true,
	}
}

// Delay returns the capped, pre-jitter backoff for the retry that follows
// the given zero-based attempt index. Successive delays never shrink under
// any strategy.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	initial := float64(p.InitialDelay)

	var backoff float64
	switch p.Strategy {
	case StrategyLinear:
		backoff = initial * float64(attempt+1)
	case StrategyFixed:
		backoff = initial
	default:
		if attempt > maxExponent {
			attempt = maxExponent
		}
		multiplier := p.BackoffMultiplier
		if multiplier < 1 {
			multiplier = 2.0
		}
		backoff = initial * math.Pow(multiplier, float64(attempt))
	}

	if p.MaxDelay > 0 && backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}

// jittered perturbs the delay by +-jitterFraction using the loop's generator.
// The result is never negative.
func jittered(delay time.Duration, rng *rand.Rand) time.Duration {
	jitter := float64(delay) * jitterFraction * (rng.Float64()*2 - 1) // -jitter to +jitter
	d := time.Duration(float64(delay) + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// shouldRetry decides whether another attempt may follow the classified
// failure at the given zero-based attempt index. The attempt ceiling and the
// caller's veto are checked first; then failures carrying a status code must
// appear in the allow-list, and status-less failures must look like
// connection-level or throttling trouble.
func (p Policy) shouldRetry(c *faults.Classified, attempt int) bool {
	if attempt >= p.MaxRetries {
		return false
	}
	if p.SkipRetry != nil && p.SkipRetry(c) {
		return false
	}
	if !c.Retryable {
		return false
	}
	if c.StatusCode != 0 && p.statusRetryable(c.StatusCode) {
		return true
	}
	switch c.Kind {
	case faults.KindTransientTransport, faults.KindTransientRateLimit:
		return true
	default:
		return false
	}
}

// statusRetryable reports whether the status code is in the allow-list.
func (p Policy) statusRetryable(code int) bool {
	codes := p.RetryableStatusCodes
	if codes == nil {
		codes = defaultRetryableStatusCodes
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// newRNG builds the jitter generator for one loop execution.
func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	//nolint:gosec // G404: Using weak random for non-cryptographic jitter in backoff timing
	return rand.New(rand.NewSource(seed))
}
