// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package config

import (
	"time"
)

// Config is the root configuration for the stockpile service.
// Values are layered: struct defaults, then an optional YAML file,
// then STOCKPILE_* environment variables (highest priority).
type Config struct {
	App         AppConfig         `koanf:"app"`
	Logging     LoggingConfig     `koanf:"logging"`
	Cache       CacheConfig       `koanf:"cache"`
	Retry       RetryConfig       `koanf:"retry"`
	Breaker     BreakerConfig     `koanf:"breaker"`
	Completion  CompletionConfig  `koanf:"completion"`
	Consistency ConsistencyConfig `koanf:"consistency"`
	Sources     SourcesConfig     `koanf:"sources"`
	Watch       WatchConfig       `koanf:"watch"`
}

// AppConfig holds service-level identification settings.
type AppConfig struct {
	Name        string `koanf:"name"`        // Service name used in logs
	Environment string `koanf:"environment"` // development, staging, production
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"` // Include caller file:line in log lines
}

// CacheConfig controls the payload cache.
type CacheConfig struct {
	TTL             time.Duration `koanf:"ttl"`              // Entry lifetime (default: 5m)
	CleanupInterval time.Duration `koanf:"cleanup_interval"` // Background sweep cadence (0 disables the sweeper)
}

// RetryConfig controls retry behavior for source fetches.
type RetryConfig struct {
	MaxRetries           int           `koanf:"max_retries"`            // Retries after the first attempt (primary source)
	FallbackMaxRetries   int           `koanf:"fallback_max_retries"`   // Retries for fallback sources (kept lower to fail over quickly)
	Strategy             string        `koanf:"strategy"`               // exponential, linear, fixed
	InitialDelay         time.Duration `koanf:"initial_delay"`          // Base delay before the first retry
	BackoffMultiplier    float64       `koanf:"backoff_multiplier"`     // Growth factor for exponential strategy
	MaxDelay             time.Duration `koanf:"max_delay"`              // Ceiling for any single computed delay
	Jitter               bool          `koanf:"jitter"`                 // Randomize delays +/-10% to avoid thundering herds
	RetryableStatusCodes []int         `koanf:"retryable_status_codes"` // HTTP statuses worth retrying
}

// BreakerConfig controls circuit breakers guarding each source channel.
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold"` // Consecutive failures before the circuit opens
	SuccessThreshold uint32        `koanf:"success_threshold"` // Half-open successes required to close
	Timeout          time.Duration `koanf:"timeout"`           // How long an open circuit waits before probing
	Interval         time.Duration `koanf:"interval"`          // Closed-state counter reset period (0 = never)

	// Operations overrides breaker settings for specific operation keys,
	// e.g. "quote.primary" or "news.secondary".
	Operations map[string]BreakerOverride `koanf:"operations"`
}

// BreakerOverride carries per-operation breaker settings. Zero fields
// inherit the top-level breaker defaults.
type BreakerOverride struct {
	FailureThreshold uint32        `koanf:"failure_threshold"`
	SuccessThreshold uint32        `koanf:"success_threshold"`
	Timeout          time.Duration `koanf:"timeout"`
	Interval         time.Duration `koanf:"interval"`
}

// CompletionConfig controls field completion across sources.
type CompletionConfig struct {
	Enabled         bool     `koanf:"enabled"`           // Master toggle for supplementary field capture
	Level           string   `koanf:"level"`             // strict (missing fields are an error) or lenient
	AllowPartial    bool     `koanf:"allow_partial"`     // In strict mode, degrade to a warning instead of failing
	RequiredFields  []string `koanf:"required_fields"`   // Fields that must be present for a complete payload
	FallbackToCache bool     `koanf:"fallback_to_cache"` // Serve stale cache entries when every live source fails
}

// ConsistencyConfig controls cross-source consistency verification.
type ConsistencyConfig struct {
	Enabled bool `koanf:"enabled"` // Compare payloads from distinct sources and report mismatches
}

// SourcesConfig holds per-provider connection settings.
type SourcesConfig struct {
	Yahoo     SourceConfig `koanf:"yahoo"`      // Yahoo Finance JSON quote endpoint
	FinanceGo SourceConfig `koanf:"finance_go"` // piquette/finance-go client
	Stooq     SourceConfig `koanf:"stooq"`      // Stooq CSV endpoint
}

// SourceConfig holds connection settings for a single upstream provider.
type SourceConfig struct {
	Enabled   bool          `koanf:"enabled"`
	BaseURL   string        `koanf:"base_url"`   // Override for testing; empty uses the provider default
	Timeout   time.Duration `koanf:"timeout"`    // Per-request HTTP timeout
	RateLimit float64       `koanf:"rate_limit"` // Requests per second (0 = unlimited)
	Burst     int           `koanf:"burst"`      // Rate limiter burst size
}

// WatchConfig controls the watch subcommand's polling loop.
type WatchConfig struct {
	Interval time.Duration `koanf:"interval"` // Delay between refresh rounds
}

// defaultConfig returns the baseline configuration. Every value here can
// be overridden by the YAML file or environment variables.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "stockpile",
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Cache: CacheConfig{
			TTL:             5 * time.Minute,
			CleanupInterval: 1 * time.Minute,
		},
		Retry: RetryConfig{
			MaxRetries:           3,
			FallbackMaxRetries:   2,
			Strategy:             "exponential",
			InitialDelay:         1 * time.Second,
			BackoffMultiplier:    2.0,
			MaxDelay:             30 * time.Second,
			Jitter:               true,
			RetryableStatusCodes: []int{429, 500, 502, 503, 504},
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			Interval:         0, // Consecutive failure counts never reset while closed
		},
		Completion: CompletionConfig{
			Enabled:         true,
			Level:           "lenient",
			AllowPartial:    false,
			RequiredFields:  []string{"symbol", "price", "volume", "timestamp"},
			FallbackToCache: true,
		},
		Consistency: ConsistencyConfig{
			Enabled: true,
		},
		Sources: SourcesConfig{
			Yahoo: SourceConfig{
				Enabled:   true,
				Timeout:   10 * time.Second,
				RateLimit: 2.0,
				Burst:     4,
			},
			FinanceGo: SourceConfig{
				Enabled:   true,
				Timeout:   10 * time.Second,
				RateLimit: 2.0,
				Burst:     4,
			},
			Stooq: SourceConfig{
				Enabled:   true,
				Timeout:   10 * time.Second,
				RateLimit: 1.0,
				Burst:     2,
			},
		},
		Watch: WatchConfig{
			Interval: 30 * time.Second,
		},
	}
}
