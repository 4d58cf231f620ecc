// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package faults

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Classify maps a raw failure onto the taxonomy. It recognizes, in order:
// already-classified errors (returned unchanged), HTTPError status codes,
// context cancellation, connection-level transport failures, and finally
// message text. Anything it cannot place becomes an unknown, non-retryable
// Classified. Classify never panics and never returns nil for a non-nil err.
func Classify(err error) *Classified {
	if err == nil {
		return nil
	}

	var classified *Classified
	if errors.As(err, &classified) {
		return classified
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr)
	}

	// Caller-initiated cancellation is not a transient upstream fault.
	if errors.Is(err, context.Canceled) {
		return &Classified{
			Message:   "request canceled",
			Kind:      KindUnknown,
			Retryable: false,
			cause:     err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Classified{
			Message:   "request deadline exceeded",
			Kind:      KindTransientTransport,
			Retryable: true,
			cause:     err,
		}
	}

	if isTransportError(err) {
		return &Classified{
			Message:   "transport failure: " + err.Error(),
			Kind:      KindTransientTransport,
			Retryable: true,
			cause:     err,
		}
	}

	return classifyMessage(err)
}

// classifyStatus maps an HTTP-analogous status code. 429 and the transient
// 5xx set {500, 502, 503, 504} are retryable; other 4xx are caller errors;
// everything else defaults to non-retryable.
func classifyStatus(e *HTTPError) *Classified {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return &Classified{
			Message:    e.Op + " rate limited by upstream",
			Kind:       KindTransientRateLimit,
			StatusCode: e.StatusCode,
			Retryable:  true,
			Suggestion: "reduce the per-source request rate or wait for the upstream window to reset",
			cause:      e,
		}
	case e.StatusCode == http.StatusInternalServerError,
		e.StatusCode == http.StatusBadGateway,
		e.StatusCode == http.StatusServiceUnavailable,
		e.StatusCode == http.StatusGatewayTimeout:
		return &Classified{
			Message:    e.Op + " upstream server error",
			Kind:       KindTransientServer,
			StatusCode: e.StatusCode,
			Retryable:  true,
			cause:      e,
		}
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return &Classified{
			Message:    e.Op + " rejected by upstream",
			Kind:       KindClient,
			StatusCode: e.StatusCode,
			Retryable:  false,
			Fatal:      true,
			cause:      e,
		}
	default:
		return &Classified{
			Message:    e.Error(),
			Kind:       KindUnknown,
			StatusCode: e.StatusCode,
			Retryable:  false,
			cause:      e,
		}
	}
}

// isTransportError detects connection-level failures through the typed error
// chain before falling back to message matching.
func isTransportError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE)
}

// classifyMessage is the last-resort textual classification.
func classifyMessage(err error) *Classified {
	msg := err.Error()
	switch {
	case containsAny(msg, "rate limit", "too many requests"):
		return &Classified{
			Message:    msg,
			Kind:       KindTransientRateLimit,
			Retryable:  true,
			Suggestion: "reduce the per-source request rate or wait for the upstream window to reset",
			cause:      err,
		}
	case containsAny(msg, "timeout", "timed out", "deadline"):
		return &Classified{
			Message:   msg,
			Kind:      KindTransientTransport,
			Retryable: true,
			cause:     err,
		}
	case containsAny(msg, "network", "connection refused", "connection reset",
		"no such host", "dns", "broken pipe", "unexpected eof"):
		return &Classified{
			Message:   msg,
			Kind:      KindTransientTransport,
			Retryable: true,
			cause:     err,
		}
	default:
		return &Classified{
			Message:   msg,
			Kind:      KindUnknown,
			Retryable: false,
			cause:     err,
		}
	}
}

// containsAny checks if the string contains any of the substrings,
// case-insensitively.
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
