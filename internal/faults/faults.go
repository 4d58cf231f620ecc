// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

// Package faults defines the error taxonomy shared by the acquisition layer
// and the classifier that maps raw failures onto it.
//
// Every failure that crosses a package boundary inside Stockpile is a
// *Classified: a typed error carrying a Kind from a fixed taxonomy, the
// HTTP-analogous status code when one exists, and a retryable/fatal verdict
// that the retry and breaker layers act on. Classification is pure and total:
// Classify never panics and maps unrecognized input to an unknown,
// non-retryable error rather than failing.
package faults

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of a Classified error.
type Kind int

const (
	// KindUnknown is the default kind for unclassified failures.
	KindUnknown Kind = iota
	// KindTransientTransport indicates a connection-level failure
	// (reset, timeout, DNS, refused) that a retry may resolve.
	KindTransientTransport
	// KindTransientRateLimit indicates the upstream throttled the caller.
	KindTransientRateLimit
	// KindTransientServer indicates a retryable upstream server failure
	// (500, 502, 503, 504).
	KindTransientServer
	// KindClient indicates a caller error (4xx other than 429); retrying
	// the same request cannot succeed.
	KindClient
	// KindDataIncomplete indicates required fields were still missing after
	// field completion under strict mode.
	KindDataIncomplete
	// KindMaxRetries indicates the retry budget was exhausted by a
	// persistently failing operation.
	KindMaxRetries
	// KindCircuitOpen indicates the operation's circuit breaker rejected the
	// call without invoking the upstream.
	KindCircuitOpen
)

// String returns the taxonomy label for the kind.
func (k Kind) String() string {
	switch k {
	case KindTransientTransport:
		return "transient-transport"
	case KindTransientRateLimit:
		return "transient-rate-limit"
	case KindTransientServer:
		return "transient-server"
	case KindClient:
		return "non-retryable-client"
	case KindDataIncomplete:
		return "data-incomplete"
	case KindMaxRetries:
		return "max-retries-exceeded"
	case KindCircuitOpen:
		return "circuit-open"
	default:
		return "unknown"
	}
}

// Transient reports whether the kind is one a retry may resolve.
func (k Kind) Transient() bool {
	switch k {
	case KindTransientTransport, KindTransientRateLimit, KindTransientServer:
		return true
	default:
		return false
	}
}

// Classified is a typed failure produced by Classify or by one of the
// constructors below. It is immutable once constructed: callers must not
// modify Context after handing the error off.
type Classified struct {
	// Message is the human-readable description.
	Message string
	// Kind is the taxonomy class.
	Kind Kind
	// StatusCode is the HTTP-analogous status code, or 0 when none applies.
	StatusCode int
	// Retryable reports whether an immediate retry may succeed.
	Retryable bool
	// Fatal reports whether the failure is a caller error that no amount of
	// retrying can fix.
	Fatal bool
	// Context carries structured detail (attempt history, missing fields).
	Context map[string]any
	// Suggestion is an actionable hint for the operator, empty when none.
	Suggestion string

	cause error
}

// Error implements the error interface.
func (e *Classified) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *Classified) Unwrap() error {
	return e.cause
}

// New constructs a Classified with an explicit kind and verdict.
func New(message string, kind Kind, statusCode int, retryable bool, cause error) *Classified {
	return &Classified{
		Message:    message,
		Kind:       kind,
		StatusCode: statusCode,
		Retryable:  retryable,
		cause:      cause,
	}
}

// NewMaxRetries wraps the last classified failure of an exhausted retry loop.
// The attempt history travels in Context under "attempts" and "history" so the
// surface layer can render it.
func NewMaxRetries(op string, attempts int, last *Classified, history any) *Classified {
	c := &Classified{
		Message:   fmt.Sprintf("%s failed after %d attempts", op, attempts),
		Kind:      KindMaxRetries,
		Retryable: false,
		Context: map[string]any{
			"operation": op,
			"attempts":  attempts,
		},
		Suggestion: "upstream is persistently failing; check source health or raise max_retries",
		cause:      last,
	}
	if last != nil {
		c.StatusCode = last.StatusCode
	}
	if history != nil {
		c.Context["history"] = history
	}
	return c
}

// NewDataIncomplete reports required fields still missing after completion.
func NewDataIncomplete(symbol, dataType string, missing []string) *Classified {
	return &Classified{
		Message:   fmt.Sprintf("incomplete %s data for %s: missing %d required fields", dataType, symbol, len(missing)),
		Kind:      KindDataIncomplete,
		Retryable: false,
		Fatal:     true,
		Context: map[string]any{
			"symbol":         symbol,
			"data_type":      dataType,
			"missing_fields": missing,
		},
		Suggestion: "enable allow_partial or relax completion level to accept partial data",
	}
}

// NewCircuitOpen reports a fast-fail rejection by the named operation's
// breaker. It is deliberately non-retryable: the breaker timeout, not the
// retry loop, decides when the upstream is probed again.
func NewCircuitOpen(op string, cause error) *Classified {
	return &Classified{
		Message:    fmt.Sprintf("circuit breaker open for %s", op),
		Kind:       KindCircuitOpen,
		Retryable:  false,
		Context:    map[string]any{"operation": op},
		Suggestion: "wait for the breaker timeout to elapse or check upstream health",
		cause:      cause,
	}
}

// HTTPError is a transport-level failure carrying the upstream status code.
// Source adapters return it on non-2xx responses so classification can read
// the code via errors.As.
type HTTPError struct {
	// Op names the operation that failed (e.g. "quote").
	Op string
	// StatusCode is the HTTP status code.
	StatusCode int
	// Status is the status line text.
	Status string
	// Body holds a truncated response body for diagnostics.
	Body string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s: upstream returned %s", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: upstream returned status %d", e.Op, e.StatusCode)
}

// IsRetryable reports whether the error classifies as retryable.
func IsRetryable(err error) bool {
	var c *Classified
	if errors.As(err, &c) {
		return c.Retryable
	}
	return false
}

// KindOf returns the taxonomy kind of the error, or KindUnknown when the
// error is not classified.
func KindOf(err error) Kind {
	var c *Classified
	if errors.As(err, &c) {
		return c.Kind
	}
	return KindUnknown
}
