// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package source

import (
	"context"
	"errors"
	"testing"
)

// TestStaticFetch tests payload cloning and symbol injection
func TestStaticFetch(t *testing.T) {
	s := NewStatic("fixture", Payload{
		FieldPrice:  100.0,
		FieldVolume: 1000.0,
	})

	payload, err := s.Fetch(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if payload[FieldSymbol] != "AAPL" {
		t.Errorf("symbol = %v, want AAPL (uppercased)", payload[FieldSymbol])
	}
	if payload[FieldPrice] != 100.0 {
		t.Errorf("price = %v, want 100.0", payload[FieldPrice])
	}

	// Mutating the returned payload must not leak into later fetches
	payload[FieldPrice] = 0.0
	again, _ := s.Fetch(context.Background(), "AAPL")
	if again[FieldPrice] != 100.0 {
		t.Errorf("second fetch price = %v, want 100.0 (payload should be copied)", again[FieldPrice])
	}

	if s.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", s.Calls())
	}
}

// TestStaticScriptedErrors tests the error queue drains before successes
func TestStaticScriptedErrors(t *testing.T) {
	errA := errors.New("first failure")
	errB := errors.New("second failure")

	s := NewStatic("fixture", Payload{FieldPrice: 100.0})
	s.FailWith(errA, errB)

	if _, err := s.Fetch(context.Background(), "AAPL"); !errors.Is(err, errA) {
		t.Errorf("first fetch error = %v, want %v", err, errA)
	}
	if _, err := s.Fetch(context.Background(), "AAPL"); !errors.Is(err, errB) {
		t.Errorf("second fetch error = %v, want %v", err, errB)
	}

	payload, err := s.Fetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("third fetch error = %v, want success after queue drains", err)
	}
	if payload[FieldPrice] != 100.0 {
		t.Errorf("price = %v, want 100.0", payload[FieldPrice])
	}
}

// TestStaticAvailableToggle tests runtime enable/disable
func TestStaticAvailableToggle(t *testing.T) {
	s := NewStatic("fixture", nil)
	if !s.Available() {
		t.Error("Available() = false, new static sources start enabled")
	}

	s.SetAvailable(false)
	if s.Available() {
		t.Error("Available() = true after SetAvailable(false)")
	}
}

// TestStaticFetchCanceledContext tests context checking before serving
func TestStaticFetchCanceledContext(t *testing.T) {
	s := NewStatic("fixture", Payload{FieldPrice: 100.0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Fetch(ctx, "AAPL"); err == nil {
		t.Fatal("Fetch() should fail with a canceled context")
	}
}

// TestPayloadHas tests presence semantics for nil values
func TestPayloadHas(t *testing.T) {
	p := Payload{
		FieldPrice:  100.0,
		FieldVolume: nil,
	}

	if !p.Has(FieldPrice) {
		t.Error("Has(price) = false, want true")
	}
	if p.Has(FieldVolume) {
		t.Error("Has(volume) = true for nil value, want false")
	}
	if p.Has(FieldMarketCap) {
		t.Error("Has(marketCap) = true for absent key, want false")
	}
}

// TestPayloadClone tests nil and populated clones
func TestPayloadClone(t *testing.T) {
	if got := (Payload)(nil).Clone(); got != nil {
		t.Errorf("nil.Clone() = %v, want nil", got)
	}

	p := Payload{FieldPrice: 100.0}
	c := p.Clone()
	c[FieldPrice] = 200.0

	if p[FieldPrice] != 100.0 {
		t.Errorf("original price = %v after clone mutation, want 100.0", p[FieldPrice])
	}
}
