// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package source

import (
	"context"
	"strings"
	"sync"
)

// Static serves a fixed payload without touching the network. It backs
// the offline CLI mode and doubles as a scriptable fake in tests: queued
// errors are returned first, one per call, before the payload.
type Static struct {
	mu      sync.Mutex
	name    string
	payload Payload
	errs    []error
	calls   int
	enabled bool
}

var _ Source = (*Static)(nil)

// NewStatic creates a static source that answers every fetch with a copy
// of the given payload.
func NewStatic(name string, payload Payload) *Static {
	return &Static{
		name:    name,
		payload: payload,
		enabled: true,
	}
}

// Name returns the adapter identifier used in logs and metrics.
func (s *Static) Name() string { return s.name }

// Available reports whether the source is enabled.
func (s *Static) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetAvailable toggles the source on or off.
func (s *Static) SetAvailable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = v
}

// FailWith queues errors to be returned by subsequent fetches, in order,
// before the payload is served again.
func (s *Static) FailWith(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
}

// Calls returns how many times Fetch has been invoked.
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Fetch returns the next scripted error if any are queued, otherwise a
// copy of the payload with the symbol field set to the requested symbol.
func (s *Static) Fetch(ctx context.Context, symbol string) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}

	payload := s.payload.Clone()
	if payload == nil {
		payload = Payload{}
	}
	payload[FieldSymbol] = strings.ToUpper(symbol)
	return payload, nil
}
