// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package breaker

import (
	"errors"
	"sort"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mfleet/stockpile/internal/faults"
	"github.com/mfleet/stockpile/internal/logging"
	"github.com/mfleet/stockpile/internal/metrics"
)

// Config holds the thresholds for one circuit breaker instance.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit.
	FailureThreshold uint32

	// SuccessThreshold is the consecutive-success count that closes a
	// half-open circuit. It also bounds concurrent half-open probes.
	SuccessThreshold uint32

	// Timeout is how long an open circuit waits before allowing probes.
	Timeout time.Duration

	// Interval periodically clears closed-state counts. Zero keeps counts
	// until the next state change.
	Interval time.Duration
}

// DefaultConfig returns production defaults for per-operation breakers.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// Snapshot describes one operation's breaker at a point in time.
type Snapshot struct {
	Operation            string
	State                string
	ConsecutiveFailures  uint32
	ConsecutiveSuccesses uint32
	LastFailure          time.Time
	LastTransition       time.Time
}

// status tracks the observability timestamps gobreaker does not expose.
type status struct {
	mu             sync.Mutex
	lastFailure    time.Time
	lastTransition time.Time
}

// Group manages one circuit breaker per operation key, created lazily on
// first use. Operations fail independently: consecutive failures on one key
// never open another key's circuit.
//
// DETERMINISM NOTE: The breakers use real time (via sony/gobreaker) for
// timeout and interval calculations. This is intentional for production
// resilience; tests use short timeouts and real waits rather than a mocked
// clock.
type Group[T any] struct {
	mu        sync.Mutex
	defaults  Config
	overrides map[string]Config
	breakers  map[string]*gobreaker.CircuitBreaker[T]
	statuses  map[string]*status
}

// NewGroup creates a Group whose breakers use the given default thresholds.
func NewGroup[T any](defaults Config) *Group[T] {
	if defaults.FailureThreshold == 0 {
		defaults.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if defaults.SuccessThreshold == 0 {
		defaults.SuccessThreshold = DefaultConfig().SuccessThreshold
	}
	if defaults.Timeout == 0 {
		defaults.Timeout = DefaultConfig().Timeout
	}
	return &Group[T]{
		defaults:  defaults,
		overrides: make(map[string]Config),
		breakers:  make(map[string]*gobreaker.CircuitBreaker[T]),
		statuses:  make(map[string]*status),
	}
}

// Configure sets threshold overrides for one operation. Overrides apply when
// the operation's breaker is first created, so call this before traffic
// flows for that operation.
func (g *Group[T]) Configure(op string, cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.overrides[op] = cfg
}

// Do runs fn under the operation's breaker. A rejection by an open circuit
// (or by the half-open probe limit) returns a classified circuit-open error
// without invoking fn; the retry layer treats that as terminal.
func (g *Group[T]) Do(op string, fn func() (T, error)) (T, error) {
	cb, st := g.breaker(op)

	result, err := cb.Execute(fn)
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(op, "rejected").Inc()
			logging.Warn().Str("operation", op).Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			return zero, faults.NewCircuitOpen(op, err)
		}

		st.mu.Lock()
		st.lastFailure = time.Now()
		st.mu.Unlock()

		metrics.CircuitBreakerRequests.WithLabelValues(op, "failure").Inc()
		counts := cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(op).Set(float64(counts.ConsecutiveFailures))
		return zero, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(op, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(op).Set(0)
	return result, nil
}

// Snapshot returns the operation's current breaker state. ok is false when
// the operation has never been used.
func (g *Group[T]) Snapshot(op string) (Snapshot, bool) {
	g.mu.Lock()
	cb, ok := g.breakers[op]
	st := g.statuses[op]
	g.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}

	counts := cb.Counts()
	st.mu.Lock()
	lastFailure, lastTransition := st.lastFailure, st.lastTransition
	st.mu.Unlock()

	return Snapshot{
		Operation:            op,
		State:                stateToString(cb.State()),
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		LastFailure:          lastFailure,
		LastTransition:       lastTransition,
	}, true
}

// Snapshots returns a snapshot for every operation seen so far, sorted by
// operation key.
func (g *Group[T]) Snapshots() []Snapshot {
	g.mu.Lock()
	ops := make([]string, 0, len(g.breakers))
	for op := range g.breakers {
		ops = append(ops, op)
	}
	g.mu.Unlock()

	sort.Strings(ops)
	out := make([]Snapshot, 0, len(ops))
	for _, op := range ops {
		if s, ok := g.Snapshot(op); ok {
			out = append(out, s)
		}
	}
	return out
}

// breaker returns the operation's breaker, creating it on first use.
func (g *Group[T]) breaker(op string) (*gobreaker.CircuitBreaker[T], *status) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[op]; ok {
		return cb, g.statuses[op]
	}

	cfg := g.defaults
	if override, ok := g.overrides[op]; ok {
		cfg = override
	}

	st := &status{}
	cb := gobreaker.NewCircuitBreaker[T](settings(op, cfg, st))

	metrics.CircuitBreakerState.WithLabelValues(op).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(op).Set(0)

	g.breakers[op] = cb
	g.statuses[op] = st
	return cb, st
}

// settings builds the gobreaker settings for one operation.
func settings(op string, cfg Config, st *status) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        op,
		MaxRequests: cfg.SuccessThreshold,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		// ReadyToTrip opens the circuit after FailureThreshold consecutive
		// failures. Any success resets the count inside gobreaker.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().
				Str("operation", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			// Reset consecutive failures when transitioning to closed
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}

			st.mu.Lock()
			st.lastTransition = time.Now()
			st.mu.Unlock()
		},
	}
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
