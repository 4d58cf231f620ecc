// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

// timeoutError is a minimal net.Error with Timeout() == true.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o operation timed out" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// TestClassifyNil tests that a nil error classifies to nil
func TestClassifyNil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}

// TestClassifyPassthrough tests that already-classified errors are returned unchanged
func TestClassifyPassthrough(t *testing.T) {
	orig := New("upstream unavailable", KindTransientServer, 503, true, nil)

	if got := Classify(orig); got != orig {
		t.Errorf("Classify returned a new value for an already-classified error")
	}

	// Wrapping must not defeat the passthrough.
	wrapped := fmt.Errorf("fetch quote: %w", orig)
	if got := Classify(wrapped); got != orig {
		t.Errorf("Classify did not unwrap to the original classified error")
	}
}

// TestClassifyHTTPStatus tests status code classification
func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  Kind
		retryable bool
		fatal     bool
	}{
		{"429 rate limited", 429, KindTransientRateLimit, true, false},
		{"500 internal error", 500, KindTransientServer, true, false},
		{"502 bad gateway", 502, KindTransientServer, true, false},
		{"503 unavailable", 503, KindTransientServer, true, false},
		{"504 gateway timeout", 504, KindTransientServer, true, false},
		{"400 bad request", 400, KindClient, false, true},
		{"401 unauthorized", 401, KindClient, false, true},
		{"403 forbidden", 403, KindClient, false, true},
		{"404 not found", 404, KindClient, false, true},
		{"302 redirect", 302, KindUnknown, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &HTTPError{Op: "quote", StatusCode: tt.status}
			c := Classify(err)
			if c == nil {
				t.Fatal("Classify returned nil for non-nil error")
			}
			if c.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", c.Kind, tt.wantKind)
			}
			if c.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", c.Retryable, tt.retryable)
			}
			if c.Fatal != tt.fatal {
				t.Errorf("fatal = %v, want %v", c.Fatal, tt.fatal)
			}
			if c.StatusCode != tt.status {
				t.Errorf("status code = %d, want %d", c.StatusCode, tt.status)
			}
		})
	}
}

// TestClassifyWrappedHTTPError tests that wrapped HTTPErrors still classify by status
func TestClassifyWrappedHTTPError(t *testing.T) {
	err := fmt.Errorf("yahoo fetch: %w", &HTTPError{Op: "quote", StatusCode: 429})
	c := Classify(err)
	if c.Kind != KindTransientRateLimit {
		t.Errorf("kind = %v, want %v", c.Kind, KindTransientRateLimit)
	}
	if !c.Retryable {
		t.Error("expected wrapped 429 to be retryable")
	}
}

// TestClassifyContextErrors tests cancellation vs deadline classification
func TestClassifyContextErrors(t *testing.T) {
	c := Classify(context.Canceled)
	if c.Retryable {
		t.Error("expected context.Canceled to be non-retryable")
	}
	if c.Kind != KindUnknown {
		t.Errorf("context.Canceled kind = %v, want %v", c.Kind, KindUnknown)
	}

	c = Classify(context.DeadlineExceeded)
	if !c.Retryable {
		t.Error("expected context.DeadlineExceeded to be retryable")
	}
	if c.Kind != KindTransientTransport {
		t.Errorf("context.DeadlineExceeded kind = %v, want %v", c.Kind, KindTransientTransport)
	}
}

// TestClassifyTransportErrors tests connection-level error detection
func TestClassifyTransportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"dns failure", &net.DNSError{Err: "no such host", Name: "query1.finance.yahoo.com"}},
		{"net timeout", timeoutError{}},
		{"connection reset", fmt.Errorf("read tcp: %w", syscall.ECONNRESET)},
		{"connection refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)},
		{"broken pipe", fmt.Errorf("write tcp: %w", syscall.EPIPE)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			if c.Kind != KindTransientTransport {
				t.Errorf("kind = %v, want %v", c.Kind, KindTransientTransport)
			}
			if !c.Retryable {
				t.Error("expected transport error to be retryable")
			}
		})
	}
}

// TestClassifyMessageFallback tests last-resort textual classification
func TestClassifyMessageFallback(t *testing.T) {
	tests := []struct {
		name      string
		msg       string
		wantKind  Kind
		retryable bool
	}{
		{"rate limit text", "API rate limit exceeded", KindTransientRateLimit, true},
		{"too many requests text", "Too Many Requests from client", KindTransientRateLimit, true},
		{"timeout text", "operation timed out after 30s", KindTransientTransport, true},
		{"deadline text", "deadline passed while waiting", KindTransientTransport, true},
		{"network text", "network is unreachable", KindTransientTransport, true},
		{"reset text", "connection reset by peer", KindTransientTransport, true},
		{"eof text", "unexpected EOF", KindTransientTransport, true},
		{"unrecognized", "some application failure", KindUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(errors.New(tt.msg))
			if c.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", c.Kind, tt.wantKind)
			}
			if c.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", c.Retryable, tt.retryable)
			}
		})
	}
}

// TestClassifyPreservesCause tests that the raw error stays reachable via errors.Is
func TestClassifyPreservesCause(t *testing.T) {
	raw := errors.New("network is unreachable")
	c := Classify(raw)
	if !errors.Is(c, raw) {
		t.Error("expected classified error to unwrap to the raw error")
	}
}
