// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mfleet/stockpile/internal/config"
)

const stooqQuoteBody = "Symbol,Date,Time,Open,High,Low,Close,Volume\n" +
	"AAPL.US,2026-08-25,16:00:00,174.2,176.8,173.9,175.5,52000000\n"

func stooqTestConfig(baseURL string) config.SourceConfig {
	return config.SourceConfig{
		Enabled: true,
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}
}

// TestStooqSymbol tests the Stooq symbol naming scheme
func TestStooqSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AAPL", "aapl.us"},
		{"msft", "msft.us"},
		{"BMW.DE", "bmw.de"},
		{"^SPX", "^spx.us"},
	}

	for _, tt := range tests {
		if got := stooqSymbol(tt.input); got != tt.expected {
			t.Errorf("stooqSymbol(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

// TestStooqFetch tests a successful CSV fetch and field normalization
func TestStooqFetch(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(stooqQuoteBody))
	}))
	defer server.Close()

	s := NewStooq(stooqTestConfig(server.URL))

	payload, err := s.Fetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if gotQuery != "s=aapl.us&f=sd2t2ohlcv&h&e=csv" {
		t.Errorf("request query = %q, want Stooq CSV parameters", gotQuery)
	}

	if payload[FieldSymbol] != "AAPL" {
		t.Errorf("symbol = %v, want AAPL", payload[FieldSymbol])
	}
	if payload[FieldPrice] != 175.5 {
		t.Errorf("price = %v, want 175.5 (close column)", payload[FieldPrice])
	}
	if payload[FieldOpen] != 174.2 {
		t.Errorf("open = %v, want 174.2", payload[FieldOpen])
	}
	if payload[FieldDayHigh] != 176.8 {
		t.Errorf("dayHigh = %v, want 176.8", payload[FieldDayHigh])
	}
	if payload[FieldDayLow] != 173.9 {
		t.Errorf("dayLow = %v, want 173.9", payload[FieldDayLow])
	}
	if payload[FieldVolume] != 52000000.0 {
		t.Errorf("volume = %v, want 52000000", payload[FieldVolume])
	}

	// Stooq has no market cap or name data
	if payload.Has(FieldMarketCap) {
		t.Errorf("marketCap should be absent, got %v", payload[FieldMarketCap])
	}
	if payload.Has(FieldShortName) {
		t.Errorf("shortName should be absent, got %v", payload[FieldShortName])
	}

	want := time.Date(2026, 8, 25, 16, 0, 0, 0, time.UTC).UnixMilli()
	if payload[FieldTimestamp] != want {
		t.Errorf("timestamp = %v, want %d", payload[FieldTimestamp], want)
	}
}

// TestStooqFetchUnknownSymbol tests the all-N/D response for bad symbols
func TestStooqFetchUnknownSymbol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Symbol,Date,Time,Open,High,Low,Close,Volume\n" +
			"NOSUCH.US,N/D,N/D,N/D,N/D,N/D,N/D,N/D\n"))
	}))
	defer server.Close()

	s := NewStooq(stooqTestConfig(server.URL))

	_, err := s.Fetch(context.Background(), "NOSUCH")
	if err == nil {
		t.Fatal("Fetch() should fail when every column is N/D")
	}
}

// TestStooqFetchPartialData tests that N/D columns are omitted, not zeroed
func TestStooqFetchPartialData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Symbol,Date,Time,Open,High,Low,Close,Volume\n" +
			"AAPL.US,2026-08-25,N/D,N/D,N/D,N/D,175.5,N/D\n"))
	}))
	defer server.Close()

	s := NewStooq(stooqTestConfig(server.URL))

	payload, err := s.Fetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if payload[FieldPrice] != 175.5 {
		t.Errorf("price = %v, want 175.5", payload[FieldPrice])
	}
	if payload.Has(FieldVolume) {
		t.Errorf("volume should be absent for N/D, got %v", payload[FieldVolume])
	}
	if payload.Has(FieldOpen) {
		t.Errorf("open should be absent for N/D, got %v", payload[FieldOpen])
	}

	// Midnight timestamp when only the date is known
	want := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC).UnixMilli()
	if payload[FieldTimestamp] != want {
		t.Errorf("timestamp = %v, want %d", payload[FieldTimestamp], want)
	}
}

// TestStooqFetchEmptyBody tests handling of a headerless response
func TestStooqFetchEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(""))
	}))
	defer server.Close()

	s := NewStooq(stooqTestConfig(server.URL))

	_, err := s.Fetch(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("Fetch() should fail for an empty response")
	}
}

// TestStooqFetchHTTPError tests non-2xx handling
func TestStooqFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := NewStooq(stooqTestConfig(server.URL))

	_, err := s.Fetch(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("Fetch() should fail for 503 response")
	}
}

// TestParseStooqTime tests date/time column combinations
func TestParseStooqTime(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		clock string
		want  int64
	}{
		{"date and time", "2026-08-25", "16:00:00", time.Date(2026, 8, 25, 16, 0, 0, 0, time.UTC).UnixMilli()},
		{"date only", "2026-08-25", "N/D", time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC).UnixMilli()},
		{"missing date", "N/D", "16:00:00", 0},
		{"empty", "", "", 0},
		{"garbage date", "yesterday", "16:00:00", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseStooqTime(tt.date, tt.clock); got != tt.want {
				t.Errorf("parseStooqTime(%q, %q) = %d, want %d", tt.date, tt.clock, got, tt.want)
			}
		})
	}
}
