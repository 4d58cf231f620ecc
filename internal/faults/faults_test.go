// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package faults

import (
	"errors"
	"strings"
	"testing"
)

// TestKindString tests taxonomy labels
func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindTransientTransport, "transient-transport"},
		{KindTransientRateLimit, "transient-rate-limit"},
		{KindTransientServer, "transient-server"},
		{KindClient, "non-retryable-client"},
		{KindDataIncomplete, "data-incomplete"},
		{KindMaxRetries, "max-retries-exceeded"},
		{KindCircuitOpen, "circuit-open"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestKindTransient tests the transient predicate
func TestKindTransient(t *testing.T) {
	transient := []Kind{KindTransientTransport, KindTransientRateLimit, KindTransientServer}
	for _, k := range transient {
		if !k.Transient() {
			t.Errorf("expected %v to be transient", k)
		}
	}

	terminal := []Kind{KindUnknown, KindClient, KindDataIncomplete, KindMaxRetries, KindCircuitOpen}
	for _, k := range terminal {
		if k.Transient() {
			t.Errorf("expected %v to be terminal", k)
		}
	}
}

// TestClassifiedError tests message rendering with and without a cause
func TestClassifiedError(t *testing.T) {
	bare := New("fetch failed", KindUnknown, 0, false, nil)
	if got := bare.Error(); got != "fetch failed" {
		t.Errorf("Error() = %q, want %q", got, "fetch failed")
	}

	cause := errors.New("connection reset")
	wrapped := New("fetch failed", KindTransientTransport, 0, true, cause)
	if got := wrapped.Error(); got != "fetch failed: connection reset" {
		t.Errorf("Error() = %q, want cause appended", got)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
}

// TestNewMaxRetries tests the exhaustion wrapper
func TestNewMaxRetries(t *testing.T) {
	last := New("upstream unavailable", KindTransientServer, 503, true, nil)
	history := []string{"attempt 1", "attempt 2", "attempt 3", "attempt 4"}

	err := NewMaxRetries("quote.primary", 4, last, history)

	if err.Kind != KindMaxRetries {
		t.Errorf("kind = %v, want %v", err.Kind, KindMaxRetries)
	}
	if err.Retryable {
		t.Error("expected max-retries error to be non-retryable")
	}
	if !strings.Contains(err.Message, "quote.primary") || !strings.Contains(err.Message, "4 attempts") {
		t.Errorf("message = %q, want operation and attempt count", err.Message)
	}
	if err.StatusCode != 503 {
		t.Errorf("status code = %d, want last failure's 503", err.StatusCode)
	}
	if err.Context["operation"] != "quote.primary" {
		t.Errorf("context operation = %v, want quote.primary", err.Context["operation"])
	}
	if err.Context["attempts"] != 4 {
		t.Errorf("context attempts = %v, want 4", err.Context["attempts"])
	}
	if got, ok := err.Context["history"].([]string); !ok || len(got) != 4 {
		t.Errorf("context history = %v, want the 4-entry history", err.Context["history"])
	}
	if err.Suggestion == "" {
		t.Error("expected an operator suggestion")
	}
	if !errors.Is(err, last) {
		t.Error("expected unwrap chain to reach the last failure")
	}
}

// TestNewDataIncomplete tests the strict-completion failure
func TestNewDataIncomplete(t *testing.T) {
	err := NewDataIncomplete("AAPL", "quote", []string{"volume", "marketCap"})

	if err.Kind != KindDataIncomplete {
		t.Errorf("kind = %v, want %v", err.Kind, KindDataIncomplete)
	}
	if !err.Fatal {
		t.Error("expected data-incomplete to be fatal")
	}
	if err.Retryable {
		t.Error("expected data-incomplete to be non-retryable")
	}
	if err.Context["symbol"] != "AAPL" || err.Context["data_type"] != "quote" {
		t.Errorf("context = %v, want symbol and data_type", err.Context)
	}
	missing, ok := err.Context["missing_fields"].([]string)
	if !ok || len(missing) != 2 {
		t.Errorf("missing_fields = %v, want 2 fields", err.Context["missing_fields"])
	}
	if !strings.Contains(err.Message, "2 required fields") {
		t.Errorf("message = %q, want missing field count", err.Message)
	}
}

// TestNewCircuitOpen tests the breaker rejection wrapper
func TestNewCircuitOpen(t *testing.T) {
	cause := errors.New("circuit breaker is open")
	err := NewCircuitOpen("quote.primary", cause)

	if err.Kind != KindCircuitOpen {
		t.Errorf("kind = %v, want %v", err.Kind, KindCircuitOpen)
	}
	if err.Retryable {
		t.Error("expected circuit-open to be non-retryable")
	}
	if !errors.Is(err, cause) {
		t.Error("expected unwrap chain to reach the breaker error")
	}
	if err.Context["operation"] != "quote.primary" {
		t.Errorf("context operation = %v, want quote.primary", err.Context["operation"])
	}
}

// TestHTTPErrorMessage tests both status line renderings
func TestHTTPErrorMessage(t *testing.T) {
	withStatus := &HTTPError{Op: "quote", StatusCode: 503, Status: "503 Service Unavailable"}
	if got := withStatus.Error(); !strings.Contains(got, "503 Service Unavailable") {
		t.Errorf("Error() = %q, want status line text", got)
	}

	codeOnly := &HTTPError{Op: "quote", StatusCode: 418}
	if got := codeOnly.Error(); !strings.Contains(got, "418") {
		t.Errorf("Error() = %q, want status code", got)
	}
}

// TestIsRetryable tests the package-level predicate
func TestIsRetryable(t *testing.T) {
	if IsRetryable(errors.New("plain")) {
		t.Error("expected unclassified error to report non-retryable")
	}
	if !IsRetryable(New("slow upstream", KindTransientServer, 503, true, nil)) {
		t.Error("expected retryable classified error to report retryable")
	}
	if IsRetryable(nil) {
		t.Error("expected nil to report non-retryable")
	}
}

// TestKindOf tests kind extraction through wrapping
func TestKindOf(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want %v", got, KindUnknown)
	}

	inner := NewDataIncomplete("MSFT", "quote", []string{"price"})
	wrapped := errors.New("outer: " + inner.Error())
	if got := KindOf(wrapped); got != KindUnknown {
		t.Errorf("KindOf(flattened) = %v, want %v (no unwrap chain)", got, KindUnknown)
	}

	if got := KindOf(inner); got != KindDataIncomplete {
		t.Errorf("KindOf(inner) = %v, want %v", got, KindDataIncomplete)
	}
}
