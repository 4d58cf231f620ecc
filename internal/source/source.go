// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package source

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/mfleet/stockpile/internal/config"
)

// Canonical payload field names. Every adapter normalizes its provider's
// response into these keys so payloads from different sources can be
// compared and merged field by field.
const (
	FieldSymbol        = "symbol"
	FieldPrice         = "price"
	FieldPreviousClose = "previousClose"
	FieldOpen          = "open"
	FieldDayHigh       = "dayHigh"
	FieldDayLow        = "dayLow"
	FieldVolume        = "volume"
	FieldMarketCap     = "marketCap"
	FieldTimestamp     = "timestamp" // Unix milliseconds
	FieldCurrency      = "currency"
	FieldShortName     = "shortName"
)

// Payload is a normalized quote keyed by the Field* constants. Numeric
// values are float64 except timestamp, which is an int64 in Unix
// milliseconds.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Has reports whether the field is present with a non-nil value.
func (p Payload) Has(field string) bool {
	v, ok := p[field]
	return ok && v != nil
}

// Source is a single upstream market data provider.
//
// Fetch returns a normalized Payload for the symbol or an error. Adapters
// return plain transport-level errors; classification into the retry
// taxonomy happens in the caller.
//
// Thread Safety: implementations are safe for concurrent use.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (Payload, error)
	Available() bool
}

// maxErrorBodySize limits how much of an upstream error response is read
// for diagnostics, preventing unbounded memory allocation.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
// Returns the body content or a placeholder message if reading fails.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// newHTTPClient builds the HTTP client for an adapter from its source
// configuration.
func newHTTPClient(cfg config.SourceConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// newLimiter builds a token bucket limiter from the source configuration,
// or nil when rate limiting is disabled.
func newLimiter(cfg config.SourceConfig) *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
}

// waitLimiter blocks until the limiter grants a token or the context is
// canceled. A nil limiter grants immediately.
func waitLimiter(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
