// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when STOCKPILE_CONFIG is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/stockpile/config.yaml",
	"/etc/stockpile/config.yml",
}

// ConfigPathEnvVar names the environment variable that overrides the
// config file search path.
const ConfigPathEnvVar = "STOCKPILE_CONFIG"

// Load builds the configuration from three layers, in priority order:
//
//  1. Struct defaults (lowest)
//  2. YAML config file, if one is found
//  3. STOCKPILE_* environment variables (highest)
//
// The merged result is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// STOCKPILE_CACHE_TTL -> cache.ttl
	// STOCKPILE_RETRY_MAX_RETRIES -> retry.max_retries
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process fields that arrive as strings from the environment
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as
// comma-separated slices when they arrive as env var strings.
var sliceConfigPaths = []string{
	"retry.retryable_status_codes",
	"completion.required_fields",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices; values loaded from YAML are already slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		str, ok := val.(string)
		if !ok {
			continue // Already a slice from defaults or YAML
		}

		parts := strings.Split(str, ",")
		items := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				items = append(items, p)
			}
		}

		if path == "retry.retryable_status_codes" {
			codes := make([]int, 0, len(items))
			for _, item := range items {
				code, err := strconv.Atoi(item)
				if err != nil {
					return fmt.Errorf("%s: %q is not a valid status code: %w", path, item, err)
				}
				codes = append(codes, code)
			}
			if err := k.Set(path, codes); err != nil {
				return err
			}
			continue
		}

		if err := k.Set(path, items); err != nil {
			return err
		}
	}
	return nil
}

// envTransformFunc maps STOCKPILE_* environment variable names to koanf
// config paths. Variables without a mapping are ignored so unrelated
// environment noise cannot leak into the configuration.
//
// Examples:
//   - STOCKPILE_LOG_LEVEL     -> logging.level
//   - STOCKPILE_CACHE_TTL     -> cache.ttl
//   - STOCKPILE_YAHOO_ENABLED -> sources.yahoo.enabled
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// App
		"stockpile_app_name":    "app.name",
		"stockpile_environment": "app.environment",

		// Logging
		"stockpile_log_level":  "logging.level",
		"stockpile_log_format": "logging.format",
		"stockpile_log_caller": "logging.caller",

		// Cache
		"stockpile_cache_ttl":              "cache.ttl",
		"stockpile_cache_cleanup_interval": "cache.cleanup_interval",

		// Retry
		"stockpile_retry_max_retries":            "retry.max_retries",
		"stockpile_retry_fallback_max_retries":   "retry.fallback_max_retries",
		"stockpile_retry_strategy":               "retry.strategy",
		"stockpile_retry_initial_delay":          "retry.initial_delay",
		"stockpile_retry_backoff_multiplier":     "retry.backoff_multiplier",
		"stockpile_retry_max_delay":              "retry.max_delay",
		"stockpile_retry_jitter":                 "retry.jitter",
		"stockpile_retry_retryable_status_codes": "retry.retryable_status_codes",

		// Circuit breaker
		"stockpile_breaker_failure_threshold": "breaker.failure_threshold",
		"stockpile_breaker_success_threshold": "breaker.success_threshold",
		"stockpile_breaker_timeout":           "breaker.timeout",
		"stockpile_breaker_interval":          "breaker.interval",

		// Completion
		"stockpile_completion_enabled":         "completion.enabled",
		"stockpile_completion_level":           "completion.level",
		"stockpile_completion_allow_partial":   "completion.allow_partial",
		"stockpile_completion_required_fields": "completion.required_fields",
		"stockpile_fallback_to_cache":          "completion.fallback_to_cache",

		// Consistency
		"stockpile_consistency_enabled": "consistency.enabled",

		// Sources
		"stockpile_yahoo_enabled":         "sources.yahoo.enabled",
		"stockpile_yahoo_base_url":        "sources.yahoo.base_url",
		"stockpile_yahoo_timeout":         "sources.yahoo.timeout",
		"stockpile_yahoo_rate_limit":      "sources.yahoo.rate_limit",
		"stockpile_yahoo_burst":           "sources.yahoo.burst",
		"stockpile_finance_go_enabled":    "sources.finance_go.enabled",
		"stockpile_finance_go_timeout":    "sources.finance_go.timeout",
		"stockpile_finance_go_rate_limit": "sources.finance_go.rate_limit",
		"stockpile_finance_go_burst":      "sources.finance_go.burst",
		"stockpile_stooq_enabled":         "sources.stooq.enabled",
		"stockpile_stooq_base_url":        "sources.stooq.base_url",
		"stockpile_stooq_timeout":         "sources.stooq.timeout",
		"stockpile_stooq_rate_limit":      "sources.stooq.rate_limit",
		"stockpile_stooq_burst":           "sources.stooq.burst",

		// Watch
		"stockpile_watch_interval": "watch.interval",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped variables are dropped
	return ""
}
