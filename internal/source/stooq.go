// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mfleet/stockpile/internal/config"
	"github.com/mfleet/stockpile/internal/faults"
)

// defaultStooqBaseURL is the Stooq CSV quote endpoint.
const defaultStooqBaseURL = "https://stooq.com"

// Stooq fetches end-of-day quotes from the Stooq CSV API. Stooq has no
// market cap or company name data, so payloads from this adapter carry
// only price, range, volume, and timestamp fields.
type Stooq struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	enabled bool
}

var _ Source = (*Stooq)(nil)

// NewStooq creates a Stooq adapter from the provided configuration.
func NewStooq(cfg config.SourceConfig) *Stooq {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultStooqBaseURL
	}
	return &Stooq{
		baseURL: baseURL,
		client:  newHTTPClient(cfg),
		limiter: newLimiter(cfg),
		enabled: cfg.Enabled,
	}
}

// Name returns the adapter identifier used in logs and metrics.
func (s *Stooq) Name() string { return "stooq" }

// Available reports whether the adapter is enabled.
func (s *Stooq) Available() bool { return s.enabled }

// stooqSymbol maps a plain ticker to Stooq's naming scheme: lowercase
// with a ".us" suffix for US listings. Symbols that already carry an
// exchange suffix are only lowercased.
func stooqSymbol(symbol string) string {
	lower := strings.ToLower(symbol)
	if strings.Contains(lower, ".") {
		return lower
	}
	return lower + ".us"
}

// Fetch retrieves a quote for the symbol and normalizes it into a Payload.
func (s *Stooq) Fetch(ctx context.Context, symbol string) (Payload, error) {
	if err := waitLimiter(ctx, s.limiter); err != nil {
		return nil, fmt.Errorf("stooq: rate limiter wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv", s.baseURL, url.QueryEscape(stooqSymbol(symbol)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("stooq: create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stooq: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &faults.HTTPError{
			Op:         "stooq.fetch",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(readBodyForError(resp.Body)),
		}
	}

	reader := csv.NewReader(resp.Body)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("stooq: parse csv: %w", err)
	}
	// Header row plus at least one data row
	if len(records) < 2 {
		return nil, fmt.Errorf("stooq: no quote returned for %s", symbol)
	}

	return s.normalize(symbol, records[0], records[1])
}

// normalize maps a Stooq CSV row onto the canonical payload fields.
// Stooq reports "N/D" for unavailable values; those fields are omitted.
// A row with no usable data at all means the symbol is unknown.
func (s *Stooq) normalize(symbol string, header, row []string) (Payload, error) {
	if len(row) != len(header) {
		return nil, fmt.Errorf("stooq: malformed csv row for %s", symbol)
	}

	cols := make(map[string]string, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(row[i])
	}

	payload := Payload{
		FieldSymbol: strings.ToUpper(symbol),
	}

	numeric := map[string]string{
		FieldOpen:    cols["open"],
		FieldDayHigh: cols["high"],
		FieldDayLow:  cols["low"],
		FieldPrice:   cols["close"],
		FieldVolume:  cols["volume"],
	}
	usable := 0
	for field, raw := range numeric {
		if raw == "" || raw == "N/D" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("stooq: parse %s %q: %w", field, raw, err)
		}
		payload[field] = v
		usable++
	}

	if usable == 0 {
		return nil, fmt.Errorf("stooq: no quote returned for %s", symbol)
	}

	if ts := parseStooqTime(cols["date"], cols["time"]); ts != 0 {
		payload[FieldTimestamp] = ts
	}

	return payload, nil
}

// parseStooqTime combines Stooq's date and time columns into Unix
// milliseconds. Returns 0 when either column is missing or unparseable.
func parseStooqTime(date, clock string) int64 {
	if date == "" || date == "N/D" {
		return 0
	}
	if clock == "" || clock == "N/D" {
		clock = "00:00:00"
	}
	t, err := time.Parse("2006-01-02 15:04:05", date+" "+clock)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
