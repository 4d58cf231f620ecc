// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

// Package main is the entry point for the stockpile command-line client.
//
// Stockpile aggregates market quotes across several upstream providers with
// retries, per-channel circuit breakers, a TTL cache, and cross-source field
// completion. The CLI is a thin shell over the aggregation layer.
//
// # Subcommands
//
//	stockpile fetch SYMBOL...   One-shot aggregated fetch. Results render as
//	                            indented JSON on stdout, one document for all
//	                            symbols, each carrying its quality assessment.
//	                            Exits 1 only when every symbol failed.
//	stockpile watch SYMBOL...   Polls the symbols at the configured interval
//	                            and logs price changes and quality until
//	                            interrupted.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority
// wins):
//   - STOCKPILE_* environment variables
//   - Config file (config.yaml, or -config / STOCKPILE_CONFIG)
//   - Built-in defaults
//
// The -log-level flag overrides the configured level for one invocation.
//
// # Sources
//
// Enabled providers are ranked yahoo, stooq, finance-go: Stooq is kept ahead
// of finance-go because it is an independent upstream, which makes secondary
// captures meaningful for consistency checks, while finance-go reaches the
// same backend as the yahoo adapter.
//
// # Offline Mode
//
// With -offline the aggregator is backed by a canned demo source instead of
// live providers. Useful for trying the output format without network access.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context: in-flight fetches unwind
// through their backoff sleeps and the watch loop drains before exiting.
//
// # Example Usage
//
//	stockpile fetch AAPL MSFT
//	stockpile -log-level debug fetch BMW.DE
//	stockpile -config ./config.yaml watch AAPL
//	stockpile -offline fetch DEMO
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/mfleet/stockpile/internal/aggregate"
	"github.com/mfleet/stockpile/internal/breaker"
	"github.com/mfleet/stockpile/internal/cache"
	"github.com/mfleet/stockpile/internal/config"
	"github.com/mfleet/stockpile/internal/logging"
	"github.com/mfleet/stockpile/internal/quality"
	"github.com/mfleet/stockpile/internal/retry"
	"github.com/mfleet/stockpile/internal/source"
)

// Exit codes. Usage errors exit 2, matching the flag package's convention.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("stockpile", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config.yaml (overrides the default search path)")
	logLevel := fs.String("log-level", "", "override the configured log level (trace, debug, info, warn, error)")
	offline := fs.Bool("offline", false, "serve canned demo payloads instead of live sources")
	fs.Usage = usage(fs)

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *configPath != "" {
		// findConfigFile honors this variable, so the flag just routes
		// through the normal discovery path.
		if err := os.Setenv(config.ConfigPathEnvVar, *configPath); err != nil {
			logging.Error().Err(err).Msg("Failed to set config path")
			return exitError
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return exitError
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return exitUsage
	}
	command, symbols := rest[0], rest[1:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := buildAggregator(ctx, cfg, *offline)

	logging.Info().
		Str("command", command).
		Str("environment", cfg.App.Environment).
		Bool("offline", *offline).
		Msg("Starting stockpile")

	switch command {
	case "fetch":
		return runFetch(ctx, agg, symbols)
	case "watch":
		return runWatch(ctx, agg, cfg.Watch.Interval, symbols)
	default:
		logging.Error().Str("command", command).Msg("Unknown command")
		fs.Usage()
		return exitUsage
	}
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: stockpile [flags] <command> SYMBOL...\n\n")
		fmt.Fprintf(out, "Commands:\n")
		fmt.Fprintf(out, "  fetch SYMBOL...   one-shot aggregated fetch, JSON on stdout\n")
		fmt.Fprintf(out, "  watch SYMBOL...   poll symbols at the configured interval\n\n")
		fmt.Fprintf(out, "Flags:\n")
		fs.PrintDefaults()
	}
}

// buildAggregator assembles the quote aggregation stack from configuration:
// sources, cache (with optional background sweep), breaker group with
// per-operation overrides, retry policies, and quality reporting.
func buildAggregator(ctx context.Context, cfg *config.Config, offline bool) *aggregate.Aggregator {
	primary, fallbacks := buildSources(cfg, offline)

	payloadCache := cache.New[source.Payload]("quote", cfg.Cache.TTL)
	if cfg.Cache.CleanupInterval > 0 {
		payloadCache.StartCleanup(ctx, cfg.Cache.CleanupInterval)
	}

	breakers := breaker.NewGroup[source.Payload](breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Timeout:          cfg.Breaker.Timeout,
		Interval:         cfg.Breaker.Interval,
	})
	for op, override := range cfg.Breaker.Operations {
		breakers.Configure(op, overrideBreaker(cfg.Breaker, override))
	}

	return aggregate.New(aggregate.Options{
		DataType:      "quote",
		Primary:       primary,
		Fallbacks:     fallbacks,
		Cache:         payloadCache,
		Breakers:      breakers,
		Reporter:      quality.NewMulti(quality.LogReporter{}, quality.MetricsReporter{}),
		PrimaryRetry:  retryPolicy(cfg.Retry, cfg.Retry.MaxRetries),
		FallbackRetry: retryPolicy(cfg.Retry, cfg.Retry.FallbackMaxRetries),
		Completion: aggregate.CompletionOptions{
			Enabled:        cfg.Completion.Enabled,
			Level:          cfg.Completion.Level,
			AllowPartial:   cfg.Completion.AllowPartial,
			RequiredFields: cfg.Completion.RequiredFields,
		},
		VerifyConsistency: cfg.Consistency.Enabled,
		FallbackToCache:   cfg.Completion.FallbackToCache,
	})
}

// buildSources returns the enabled providers in priority order. Offline mode
// replaces them all with a static demo source.
func buildSources(cfg *config.Config, offline bool) (source.Source, []source.Source) {
	if offline {
		return source.NewStatic("offline-demo", demoQuote()), nil
	}

	var ordered []source.Source
	if cfg.Sources.Yahoo.Enabled {
		ordered = append(ordered, source.NewYahoo(cfg.Sources.Yahoo))
	}
	if cfg.Sources.Stooq.Enabled {
		ordered = append(ordered, source.NewStooq(cfg.Sources.Stooq))
	}
	if cfg.Sources.FinanceGo.Enabled {
		ordered = append(ordered, source.NewFinanceGo(cfg.Sources.FinanceGo))
	}
	if len(ordered) == 0 {
		return nil, nil
	}
	return ordered[0], ordered[1:]
}

// demoQuote is the canned payload served by -offline.
func demoQuote() source.Payload {
	return source.Payload{
		source.FieldPrice:         189.84,
		source.FieldPreviousClose: 188.63,
		source.FieldOpen:          189.02,
		source.FieldDayHigh:       190.40,
		source.FieldDayLow:        188.10,
		source.FieldVolume:        52_164_000.0,
		source.FieldMarketCap:     2.95e12,
		source.FieldCurrency:      "USD",
		source.FieldShortName:     "Offline demo quote",
		source.FieldTimestamp:     time.Now().UnixMilli(),
	}
}

// overrideBreaker merges a per-operation override onto the breaker
// defaults. Zero fields inherit.
func overrideBreaker(base config.BreakerConfig, o config.BreakerOverride) breaker.Config {
	cfg := breaker.Config{
		FailureThreshold: base.FailureThreshold,
		SuccessThreshold: base.SuccessThreshold,
		Timeout:          base.Timeout,
		Interval:         base.Interval,
	}
	if o.FailureThreshold > 0 {
		cfg.FailureThreshold = o.FailureThreshold
	}
	if o.SuccessThreshold > 0 {
		cfg.SuccessThreshold = o.SuccessThreshold
	}
	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
	}
	if o.Interval > 0 {
		cfg.Interval = o.Interval
	}
	return cfg
}

// retryPolicy maps the retry configuration onto a policy with the given
// attempt budget.
func retryPolicy(rc config.RetryConfig, maxRetries int) retry.Policy {
	return retry.Policy{
		MaxRetries:           maxRetries,
		Strategy:             retry.Strategy(rc.Strategy),
		InitialDelay:         rc.InitialDelay,
		BackoffMultiplier:    rc.BackoffMultiplier,
		MaxDelay:             rc.MaxDelay,
		Jitter:               rc.Jitter,
		RetryableStatusCodes: rc.RetryableStatusCodes,
	}
}

// runFetch aggregates each symbol once and renders all results as one JSON
// document. Partial failures log and continue; the exit code is 1 only when
// no symbol succeeded.
func runFetch(ctx context.Context, agg *aggregate.Aggregator, symbols []string) int {
	if len(symbols) == 0 {
		logging.Error().Msg("fetch requires at least one symbol")
		return exitUsage
	}

	results := make([]*aggregate.Result, 0, len(symbols))
	for _, symbol := range symbols {
		res, err := agg.Fetch(ctx, symbol, nil)
		if err != nil {
			logging.Error().Str("symbol", symbol).Err(err).Msg("Fetch failed")
			continue
		}
		results = append(results, res)
	}

	if len(results) > 0 {
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			logging.Error().Err(err).Msg("Failed to render results")
			return exitError
		}
		fmt.Println(string(out))
	}

	if len(results) == 0 {
		return exitError
	}
	return exitOK
}

// runWatch polls the symbols until the context is canceled, logging each
// round's price movement and quality.
func runWatch(ctx context.Context, agg *aggregate.Aggregator, interval time.Duration, symbols []string) int {
	if len(symbols) == 0 {
		logging.Error().Msg("watch requires at least one symbol")
		return exitUsage
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	logging.Info().
		Strs("symbols", symbols).
		Dur("interval", interval).
		Msg("Watching symbols")

	lastPrices := make(map[string]float64, len(symbols))
	watchRound(ctx, agg, symbols, lastPrices)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Shutting down watch loop")
			return exitOK
		case <-ticker.C:
			watchRound(ctx, agg, symbols, lastPrices)
		}
	}
}

// watchRound fetches every watched symbol once and logs the movement since
// the previous round.
func watchRound(ctx context.Context, agg *aggregate.Aggregator, symbols []string, lastPrices map[string]float64) {
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return
		}

		res, err := agg.Fetch(ctx, symbol, nil)
		if err != nil {
			logging.Error().Str("symbol", symbol).Err(err).Msg("Watch fetch failed")
			continue
		}

		event := logging.Info().
			Str("symbol", res.Symbol).
			Str("source", res.Source).
			Str("quality", string(res.Assessment.Quality)).
			Bool("stale", res.Stale)

		price, ok := res.Data[source.FieldPrice].(float64)
		if ok {
			event = event.Float64("price", price)
			if prev, seen := lastPrices[res.Symbol]; seen && prev != 0 {
				change := price - prev
				event = event.
					Float64("change", change).
					Float64("change_pct", change/prev*100)
			}
			lastPrices[res.Symbol] = price
		}

		event.Msg("Quote")
	}
}
