// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/mfleet/stockpile/internal/config"
	"github.com/mfleet/stockpile/internal/faults"
)

// defaultYahooBaseURL is the Yahoo Finance quote endpoint.
const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo fetches quotes from the Yahoo Finance v7 JSON API.
//
// Thread Safety: safe for concurrent use. Each request creates its own
// HTTP request; the rate limiter is internally synchronized.
type Yahoo struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	enabled bool
}

var _ Source = (*Yahoo)(nil)

// NewYahoo creates a Yahoo Finance adapter from the provided configuration.
func NewYahoo(cfg config.SourceConfig) *Yahoo {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	return &Yahoo{
		baseURL: baseURL,
		client:  newHTTPClient(cfg),
		limiter: newLimiter(cfg),
		enabled: cfg.Enabled,
	}
}

// Name returns the adapter identifier used in logs and metrics.
func (y *Yahoo) Name() string { return "yahoo" }

// Available reports whether the adapter is enabled.
func (y *Yahoo) Available() bool { return y.enabled }

// yahooQuote mirrors the fields of interest in Yahoo's v7 quote response.
type yahooQuote struct {
	Symbol                     string  `json:"symbol"`
	ShortName                  string  `json:"shortName"`
	Currency                   string  `json:"currency"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	RegularMarketOpen          float64 `json:"regularMarketOpen"`
	RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
	RegularMarketVolume        float64 `json:"regularMarketVolume"`
	RegularMarketTime          int64   `json:"regularMarketTime"` // Unix seconds
	MarketCap                  float64 `json:"marketCap"`
}

// yahooResponse is the v7 quote endpoint envelope.
type yahooResponse struct {
	QuoteResponse struct {
		Result []yahooQuote `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// Fetch retrieves a quote for the symbol and normalizes it into a Payload.
func (y *Yahoo) Fetch(ctx context.Context, symbol string) (Payload, error) {
	if err := waitLimiter(ctx, y.limiter); err != nil {
		return nil, fmt.Errorf("yahoo: rate limiter wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", y.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("yahoo: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &faults.HTTPError{
			Op:         "yahoo.fetch",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(readBodyForError(resp.Body)),
		}
	}

	var decoded yahooResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("yahoo: decode response: %w", err)
	}

	if e := decoded.QuoteResponse.Error; e != nil {
		return nil, fmt.Errorf("yahoo: api error %s: %s", e.Code, e.Description)
	}
	if len(decoded.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("yahoo: no quote returned for %s", symbol)
	}

	q := decoded.QuoteResponse.Result[0]
	payload := Payload{
		FieldSymbol: q.Symbol,
	}
	if q.ShortName != "" {
		payload[FieldShortName] = q.ShortName
	}
	if q.Currency != "" {
		payload[FieldCurrency] = q.Currency
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
		payload[FieldVolume] = q.RegularMarketVolume
	}
	if q.MarketCap != 0 {
		payload[FieldMarketCap] = q.MarketCap
	}
	if q.RegularMarketTime != 0 {
		payload[FieldTimestamp] = q.RegularMarketTime * 1000
	}

	return payload, nil
}
