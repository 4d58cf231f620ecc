// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfleet/stockpile/internal/breaker"
	"github.com/mfleet/stockpile/internal/cache"
	"github.com/mfleet/stockpile/internal/faults"
	"github.com/mfleet/stockpile/internal/logging"
	"github.com/mfleet/stockpile/internal/metrics"
	"github.com/mfleet/stockpile/internal/quality"
	"github.com/mfleet/stockpile/internal/retry"
	"github.com/mfleet/stockpile/internal/source"
)

// Source channel labels, in default priority order. The winner of an
// aggregation is always captured under the primary key; the label on the
// Result reports which channel actually produced it.
const (
	LabelPrimary   = "primary"
	LabelSecondary = "secondary"
	LabelTertiary  = "tertiary"
	LabelCached    = "cached"
)

// Completion strictness levels.
const (
	CompletionStrict  = "strict"
	CompletionLenient = "lenient"
)

// DefaultOrder returns the source priority used when the caller does not
// request a specific order.
func DefaultOrder() []string {
	return []string{LabelPrimary, LabelSecondary, LabelTertiary, LabelCached}
}

// validLabels gates requested source orders.
var validLabels = map[string]bool{
	LabelPrimary:   true,
	LabelSecondary: true,
	LabelTertiary:  true,
	LabelCached:    true,
}

// CompletionOptions controls field completion for one aggregator.
type CompletionOptions struct {
	// Enabled toggles supplementary capture and field filling.
	Enabled bool
	// Level is strict or lenient. Strict fails the fetch when required
	// fields remain missing after completion.
	Level string
	// AllowPartial downgrades a strict failure to the OnIncomplete hook.
	AllowPartial bool
	// RequiredFields lists the fields a complete payload must carry.
	RequiredFields []string
	// OnIncomplete observes partial results accepted under AllowPartial.
	OnIncomplete func(symbol string, missing []string)
}

// Options configures an Aggregator.
type Options struct {
	// DataType names the logical operation (quote, history, ...) and
	// prefixes the per-channel breaker keys.
	DataType string

	// Primary is the preferred source; Fallbacks are tried in order when
	// it is exhausted (index 0 = secondary, index 1 = tertiary).
	Primary   source.Source
	Fallbacks []source.Source

	// Cache holds successful payloads keyed by data type and symbol. A
	// default 5-minute cache is created when nil.
	Cache *cache.Cache[source.Payload]

	// Breakers guards each source channel. A default group is created
	// when nil.
	Breakers *breaker.Group[source.Payload]

	// Reporter observes quality outcomes. Defaults to the no-op reporter.
	Reporter quality.Reporter

	// PrimaryRetry and FallbackRetry shape the per-channel retry loops.
	// Unset policies get production defaults (3 and 2 retries).
	PrimaryRetry  retry.Policy
	FallbackRetry retry.Policy

	// Completion controls field completion across captured sources.
	Completion CompletionOptions

	// VerifyConsistency compares the winning payload against every other
	// captured source and reports tolerance violations. Observational
	// only; violations never fail the fetch.
	VerifyConsistency bool

	// FallbackToCache permits serving a cached payload when every live
	// source fails and the caller did not request an explicit order.
	FallbackToCache bool
}

// Aggregator orchestrates multi-source fetches: primary with retries,
// ordered fallbacks, cache fallback, field completion, consistency
// verification, and completeness scoring.
//
// Thread Safety: safe for concurrent use. Per-fetch state lives on the
// stack; the cache and breaker group are internally synchronized.
type Aggregator struct {
	dataType        string
	primary         source.Source
	fallbacks       []source.Source
	cache           *cache.Cache[source.Payload]
	breakers        *breaker.Group[source.Payload]
	reporter        quality.Reporter
	primaryRetry    retry.Policy
	fallbackRetry   retry.Policy
	completion      CompletionOptions
	verify          bool
	fallbackToCache bool
}

// Assessment scores how complete the returned payload is.
type Assessment struct {
	// Score is the fraction of required fields present, in [0, 1].
	Score float64 `json:"score"`
	// Quality is the banded score: high, medium, or low.
	Quality quality.Quality `json:"quality"`
	// MissingFields lists required fields still absent after completion.
	MissingFields []string `json:"missing_fields,omitempty"`
}

// Result is the outcome of one aggregation fetch.
type Result struct {
	// Symbol is the normalized (uppercased) requested symbol.
	Symbol string `json:"symbol"`
	// Data is the completed payload.
	Data source.Payload `json:"data"`
	// Source is the channel label that produced the payload: primary,
	// secondary, tertiary, or cached.
	Source string `json:"source"`
	// SourceName is the adapter behind the channel (yahoo, stooq, ...).
	SourceName string `json:"source_name"`
	// Stale is true when the payload was served from the cache.
	Stale bool `json:"stale,omitempty"`
	// Age is how long a cached payload had been stored.
	Age time.Duration `json:"age,omitempty"`
	// Assessment carries the completeness score and quality band.
	Assessment Assessment `json:"assessment"`
	// RequestID correlates logs and reports for this fetch.
	RequestID string `json:"request_id"`
	// FetchedAt is when the aggregation finished.
	FetchedAt time.Time `json:"fetched_at"`
}

// New creates an Aggregator, filling unset options with production
// defaults.
func New(opts Options) *Aggregator {
	if opts.DataType == "" {
		opts.DataType = "quote"
	}
	if opts.Cache == nil {
		opts.Cache = cache.New[source.Payload](opts.DataType, 5*time.Minute)
	}
	if opts.Breakers == nil {
		opts.Breakers = breaker.NewGroup[source.Payload](breaker.DefaultConfig())
	}
	if opts.Reporter == nil {
		opts.Reporter = quality.Nop{}
	}
	if policyUnset(opts.PrimaryRetry) {
		opts.PrimaryRetry = retry.DefaultPolicy()
	}
	if policyUnset(opts.FallbackRetry) {
		opts.FallbackRetry = retry.DefaultPolicy()
		opts.FallbackRetry.MaxRetries = 2
	}
	if opts.Completion.Level == "" {
		opts.Completion.Level = CompletionLenient
	}

	return &Aggregator{
		dataType:        opts.DataType,
		primary:         opts.Primary,
		fallbacks:       opts.Fallbacks,
		cache:           opts.Cache,
		breakers:        opts.Breakers,
		reporter:        opts.Reporter,
		primaryRetry:    opts.PrimaryRetry,
		fallbackRetry:   opts.FallbackRetry,
		completion:      opts.Completion,
		verify:          opts.VerifyConsistency,
		fallbackToCache: opts.FallbackToCache,
	}
}

// policyUnset reports whether the caller left the retry policy at its zero
// value. A deliberate single-attempt policy sets Op or InitialDelay.
func policyUnset(p retry.Policy) bool {
	return p.Op == "" && p.Strategy == "" && p.InitialDelay == 0 && p.MaxRetries == 0
}

// Breakers exposes the breaker group for configuration and introspection.
func (a *Aggregator) Breakers() *breaker.Group[source.Payload] { return a.breakers }

// Cache exposes the payload cache for introspection.
func (a *Aggregator) Cache() *cache.Cache[source.Payload] { return a.cache }

// Fetch aggregates data for the symbol across the requested source
// channels (default order when empty): the first channel to produce a
// payload wins, remaining channels may still be consulted to fill missing
// required fields, and the result carries a completeness assessment.
//
// Live winners are cached. When every live channel fails, a non-expired
// cache entry is served with Stale set and its age reported; otherwise the
// first channel's error propagates.
func (a *Aggregator) Fetch(ctx context.Context, symbol string, requestedSources []string) (*Result, error) {
	start := time.Now()
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewRequestID(ctx)
	}
	requestID := logging.RequestIDFromContext(ctx)
	log := logging.Ctx(ctx)

	if symbol == "" {
		return nil, faults.New("no symbol requested", faults.KindClient, 0, false, nil)
	}

	explicit := len(requestedSources) > 0
	order := requestedSources
	if !explicit {
		order = DefaultOrder()
	}
	for _, label := range order {
		if !validLabels[label] {
			return nil, faults.New(
				fmt.Sprintf("unknown source %q requested for %s", label, symbol),
				faults.KindClient, 0, false, nil)
		}
	}

	log.Debug().
		Str("symbol", symbol).
		Str("data_type", a.dataType).
		Strs("order", order).
		Msg("[AGGREGATE] Fetch started")

	st := fetchState{
		order:    order,
		explicit: explicit,
		fetched:  make(map[string]bool, len(order)),
	}

	a.selectWinner(ctx, log, symbol, &st)

	if st.winner == nil {
		metrics.RecordAggregation(a.dataType, "failure", time.Since(start))
		if st.firstErr == nil {
			st.firstErr = faults.New(
				fmt.Sprintf("no sources available for %s", symbol),
				faults.KindUnknown, 0, false, nil)
		}
		log.Error().
			Str("symbol", symbol).
			Str("data_type", a.dataType).
			Err(st.firstErr).
			Msg("[AGGREGATE] All sources failed")
		return nil, st.firstErr
	}

	required := a.completion.RequiredFields
	a.captureSupplements(ctx, log, symbol, &st, required)

	// Live winners refresh the cache with their raw, pre-completion payload.
	// The refresh waits until after supplementary capture so the previous
	// entry can still donate fields.
	if !st.cachedUsed {
		a.cache.Set(cache.Key(a.dataType, symbol), st.winner.data.Clone())
	}

	a.verifyCaptures(log, symbol, &st)

	if a.completion.Enabled {
		for _, f := range complete(st.winner.data, st.captures[1:], required) {
			log.Debug().
				Str("symbol", symbol).
				Str("field", f.field).
				Str("from", f.label).
				Str("source", f.name).
				Msg("[AGGREGATE] Field completed from secondary capture")
		}
	}

	missing := missingFields(st.winner.data, required)
	score := completenessScore(st.winner.data, required)
	qual := quality.FromScore(score)

	if a.completion.Enabled && a.completion.Level == CompletionStrict && len(missing) > 0 {
		if !a.completion.AllowPartial {
			err := faults.NewDataIncomplete(symbol, a.dataType, missing)
			a.reporter.ReportMissingFields(symbol, a.dataType, missing)
			metrics.RecordAggregation(a.dataType, "failure", time.Since(start))
			log.Error().
				Str("symbol", symbol).
				Str("data_type", a.dataType).
				Strs("missing_fields", missing).
				Msg("[AGGREGATE] Strict completion failed")
			return nil, err
		}
		if a.completion.OnIncomplete != nil {
			a.completion.OnIncomplete(symbol, missing)
		}
	}

	meta := map[string]any{
		"score":      score,
		"source":     st.winnerLabel,
		"request_id": requestID,
	}
	a.reporter.ReportDataQuality(symbol, a.dataType, qual, meta)
	if len(missing) > 0 {
		a.reporter.ReportMissingFields(symbol, a.dataType, missing)
	}
	a.reporter.ReportAggregationSource(symbol, a.dataType, st.winnerLabel)

	outcome := "success"
	if len(missing) > 0 {
		outcome = "incomplete"
	}
	metrics.RecordAggregation(a.dataType, outcome, time.Since(start))

	log.Info().
		Str("symbol", symbol).
		Str("data_type", a.dataType).
		Str("source", st.winnerLabel).
		Str("source_name", st.winner.name).
		Float64("score", score).
		Str("quality", string(qual)).
		Bool("stale", st.cachedUsed).
		Dur("duration", time.Since(start)).
		Msg("[AGGREGATE] Fetch complete")

	return &Result{
		Symbol:     symbol,
		Data:       st.winner.data,
		Source:     st.winnerLabel,
		SourceName: st.winner.name,
		Stale:      st.cachedUsed,
		Age:        st.cachedAge,
		Assessment: Assessment{Score: score, Quality: qual, MissingFields: missing},
		RequestID:  requestID,
		FetchedAt:  time.Now(),
	}, nil
}

// fetchState tracks one aggregation call.
type fetchState struct {
	order       []string
	explicit    bool
	fetched     map[string]bool
	captures    []capture
	winner      *capture
	winnerLabel string
	firstErr    error
	cachedUsed  bool
	cachedAge   time.Duration
}

// selectWinner walks the channel order until one produces a payload. Live
// channels run under their retry policy and breaker; the cached channel
// consults the TTL cache. The first failure is kept for propagation.
func (a *Aggregator) selectWinner(ctx context.Context, log *zerolog.Logger, symbol string, st *fetchState) {
	for _, label := range st.order {
		if st.winner != nil {
			return
		}

		if label == LabelCached {
			if entry, ok := a.cacheLookup(st, symbol); ok {
				c := capture{label: LabelCached, name: LabelCached, data: entry.Value.Clone()}
				st.captures = append(st.captures, c)
				st.winner = &c
				st.winnerLabel = LabelCached
				st.cachedUsed = true
				st.cachedAge = entry.Age()
				log.Info().
					Str("symbol", symbol).
					Str("data_type", a.dataType).
					Dur("age", st.cachedAge).
					Msg("[AGGREGATE] Serving cached payload after live failures")
			}
			continue
		}

		src, ok := a.sourceFor(label)
		if !ok {
			log.Debug().
				Str("symbol", symbol).
				Str("channel", label).
				Msg("[AGGREGATE] Channel has no available source")
			continue
		}
		if st.fetched[label] {
			continue
		}
		st.fetched[label] = true

		payload, err := a.fetchChannel(ctx, label, src, symbol)
		if err != nil {
			if st.firstErr == nil {
				st.firstErr = err
			}
			log.Warn().
				Str("symbol", symbol).
				Str("channel", label).
				Str("source", src.Name()).
				Err(err).
				Msg("[AGGREGATE] Channel exhausted")
			if ctx.Err() != nil {
				return
			}
			continue
		}

		// The winner is always captured under the primary key: a fallback
		// that wins is treated as equally authoritative
		c := capture{label: LabelPrimary, name: src.Name(), data: payload}
		st.captures = append(st.captures, c)
		st.winner = &c
		st.winnerLabel = label
	}
}

// captureSupplements fetches the channels not yet consulted, one attempt
// each, until the captured sources collectively cover every required
// field. Runs only when completion is enabled and the winner is missing
// required fields.
func (a *Aggregator) captureSupplements(ctx context.Context, log *zerolog.Logger, symbol string, st *fetchState, required []string) {
	if !a.completion.Enabled || len(missingFields(st.winner.data, required)) == 0 {
		return
	}

	covered := func() bool {
		for _, field := range required {
			found := false
			for i := range st.captures {
				if st.captures[i].data.Has(field) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}

	for _, label := range st.order {
		if covered() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		if label == LabelCached {
			if st.cachedUsed {
				continue
			}
			if entry, ok := a.cacheLookup(st, symbol); ok {
				st.captures = append(st.captures, capture{label: LabelCached, name: LabelCached, data: entry.Value.Clone()})
			}
			continue
		}

		if st.fetched[label] {
			continue
		}
		src, ok := a.sourceFor(label)
		if !ok {
			continue
		}
		st.fetched[label] = true

		payload, err := a.supplementFetch(ctx, label, src, symbol)
		if err != nil {
			log.Debug().
				Str("symbol", symbol).
				Str("channel", label).
				Str("source", src.Name()).
				Err(err).
				Msg("[AGGREGATE] Supplementary fetch failed")
			continue
		}
		st.captures = append(st.captures, capture{label: label, name: src.Name(), data: payload})
	}
}

// verifyCaptures compares the winning payload against every other capture
// and reports tolerance violations. Observational only.
func (a *Aggregator) verifyCaptures(log *zerolog.Logger, symbol string, st *fetchState) {
	if !a.verify || len(st.captures) < 2 {
		return
	}

	base := st.captures[0]
	for _, other := range st.captures[1:] {
		report := CheckConsistency(base.data, other.data)
		if report.Consistent {
			continue
		}
		for _, m := range report.Mismatches {
			metrics.RecordConsistencyViolation(m.Field)
			log.Warn().
				Str("symbol", symbol).
				Str("data_type", a.dataType).
				Str("field", m.Field).
				Interface("base", m.A).
				Interface("other", m.B).
				Str("base_source", base.name).
				Str("other_source", other.name).
				Float64("delta", m.Delta).
				Float64("tolerance", m.Tolerance).
				Msg("[AGGREGATE] Cross-source consistency violation")
		}
	}
}

// cacheLookup consults the cache when permitted: always for explicit
// orders, otherwise only when FallbackToCache is enabled.
func (a *Aggregator) cacheLookup(st *fetchState, symbol string) (cache.Entry[source.Payload], bool) {
	if !st.explicit && !a.fallbackToCache {
		return cache.Entry[source.Payload]{}, false
	}
	return a.cache.GetEntry(cache.Key(a.dataType, symbol))
}

// sourceFor resolves a channel label onto its configured, available
// source.
func (a *Aggregator) sourceFor(label string) (source.Source, bool) {
	var src source.Source
	switch label {
	case LabelPrimary:
		src = a.primary
	case LabelSecondary:
		if len(a.fallbacks) > 0 {
			src = a.fallbacks[0]
		}
	case LabelTertiary:
		if len(a.fallbacks) > 1 {
			src = a.fallbacks[1]
		}
	}
	if src == nil || !src.Available() {
		return nil, false
	}
	return src, true
}

// operation builds the breaker/retry key for a channel, e.g. "quote.primary".
func (a *Aggregator) operation(label string) string {
	return a.dataType + "." + label
}

// fetchChannel runs one channel under its retry policy, with every attempt
// guarded by the channel's circuit breaker. A breaker rejection is
// classified circuit-open and stops the retry loop immediately.
func (a *Aggregator) fetchChannel(ctx context.Context, label string, src source.Source, symbol string) (source.Payload, error) {
	pol := a.primaryRetry
	if label != LabelPrimary {
		pol = a.fallbackRetry
	}
	op := a.operation(label)
	pol.Op = op

	fields := map[string]any{"symbol": symbol, "source": src.Name()}
	for k, v := range pol.Context {
		fields[k] = v
	}
	pol.Context = fields

	res := retry.DoWithResult(ctx, pol, func(ctx context.Context) (source.Payload, error) {
		fetchStart := time.Now()
		payload, err := a.breakers.Do(op, func() (source.Payload, error) {
			return src.Fetch(ctx, symbol)
		})
		metrics.RecordSourceFetch(src.Name(), time.Since(fetchStart), err)
		return payload, err
	})
	if !res.Success {
		return nil, res.Err
	}
	return res.Value, nil
}

// supplementFetch makes a single breaker-guarded attempt against a channel
// purely to gather fields for completion. No retries: supplements are
// opportunistic and must not amplify load on degraded sources.
func (a *Aggregator) supplementFetch(ctx context.Context, label string, src source.Source, symbol string) (source.Payload, error) {
	op := a.operation(label)
	fetchStart := time.Now()
	payload, err := a.breakers.Do(op, func() (source.Payload, error) {
		return src.Fetch(ctx, symbol)
	})
	metrics.RecordSourceFetch(src.Name(), time.Since(fetchStart), err)
	if err != nil {
		return nil, faults.Classify(err)
	}
	return payload, nil
}
