// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package source

import (
	"context"
	"fmt"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"golang.org/x/time/rate"

	"github.com/mfleet/stockpile/internal/config"
)

// quoteFunc fetches a quote for a symbol. Overridable in tests.
type quoteFunc func(symbol string) (*finance.Quote, error)

// FinanceGo fetches quotes through the piquette/finance-go client
// library. The library has no context support, so Fetch runs the call in
// a goroutine and abandons it when the context is canceled.
type FinanceGo struct {
	limiter *rate.Limiter
	enabled bool
	getter  quoteFunc
}

var _ Source = (*FinanceGo)(nil)

// NewFinanceGo creates a finance-go adapter from the provided configuration.
func NewFinanceGo(cfg config.SourceConfig) *FinanceGo {
	return &FinanceGo{
		limiter: newLimiter(cfg),
		enabled: cfg.Enabled,
		getter:  quote.Get,
	}
}

// Name returns the adapter identifier used in logs and metrics.
func (f *FinanceGo) Name() string { return "finance-go" }

// Available reports whether the adapter is enabled.
func (f *FinanceGo) Available() bool { return f.enabled }

// Fetch retrieves a quote for the symbol and normalizes it into a Payload.
func (f *FinanceGo) Fetch(ctx context.Context, symbol string) (Payload, error) {
	if err := waitLimiter(ctx, f.limiter); err != nil {
		return nil, fmt.Errorf("finance-go: rate limiter wait: %w", err)
	}

	type result struct {
		q   *finance.Quote
		err error
	}
	// Buffered so the goroutine can exit even after the context is done
	ch := make(chan result, 1)
	go func() {
		q, err := f.getter(symbol)
		ch <- result{q: q, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("finance-go: fetch canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("finance-go: quote %s: %w", symbol, r.err)
		}
		if r.q == nil {
			return nil, fmt.Errorf("finance-go: no quote returned for %s", symbol)
		}
		return f.normalize(r.q), nil
	}
}

// normalize maps the finance-go quote onto the canonical payload fields.
func (f *FinanceGo) normalize(q *finance.Quote) Payload {
	payload := Payload{
		FieldSymbol: q.Symbol,
	}
	if q.ShortName != "" {
		payload[FieldShortName] = q.ShortName
	}
	if q.CurrencyID != "" {
		payload[FieldCurrency] = q.CurrencyID
	}
	if q.RegularMarketPrice != 0 {
		payload[FieldPrice] = q.RegularMarketPrice
	}
	if q.RegularMarketPreviousClose != 0 {
		payload[FieldPreviousClose] = q.RegularMarketPreviousClose
	}
	if q.RegularMarketOpen != 0 {
		payload[FieldOpen] = q.RegularMarketOpen
	}
	if q.RegularMarketDayHigh != 0 {
		payload[FieldDayHigh] = q.RegularMarketDayHigh
	}
	if q.RegularMarketDayLow != 0 {
		payload[FieldDayLow] = q.RegularMarketDayLow
	}
	if q.RegularMarketVolume != 0 {
		payload[FieldVolume] = float64(q.RegularMarketVolume)
	}
	if q.MarketCap != 0 {
		payload[FieldMarketCap] = float64(q.MarketCap)
	}
	if q.RegularMarketTime != 0 {
		payload[FieldTimestamp] = int64(q.RegularMarketTime) * 1000
	}
	return payload
}
