// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

/*
Package config provides centralized configuration management for Stockpile.

Configuration is loaded through koanf in three layers, each overriding the
previous one:

 1. Struct defaults (defaultConfig)
 2. A YAML config file, if one exists
 3. STOCKPILE_* environment variables

# Config File Discovery

The config file path is resolved from the STOCKPILE_CONFIG environment
variable first, then the default search paths:

  - config.yaml / config.yml (working directory)
  - /etc/stockpile/config.yaml / config.yml

A missing config file is not an error; defaults and environment variables
are sufficient to run.

# Configuration Structure

The configuration is organized into logical groups:

  - AppConfig: service identity (name, environment)
  - LoggingConfig: log level, format, caller info
  - CacheConfig: payload cache TTL and sweep interval
  - RetryConfig: backoff strategy, delays, retryable status codes
  - BreakerConfig: circuit breaker thresholds with per-operation overrides
  - CompletionConfig: required fields and completion strictness
  - ConsistencyConfig: cross-source verification toggle
  - SourcesConfig: per-provider connection and rate limit settings
  - WatchConfig: polling interval for the watch subcommand

# Environment Variables

Only explicitly mapped STOCKPILE_* variables are honored; everything else
in the process environment is ignored. Representative examples:

  - STOCKPILE_LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - STOCKPILE_CACHE_TTL: cache entry lifetime (default: 5m)
  - STOCKPILE_RETRY_MAX_RETRIES: retries after the first attempt (default: 3)
  - STOCKPILE_RETRY_STRATEGY: exponential, linear, or fixed
  - STOCKPILE_BREAKER_FAILURE_THRESHOLD: failures before the circuit opens
  - STOCKPILE_COMPLETION_REQUIRED_FIELDS: comma-separated field list
  - STOCKPILE_YAHOO_BASE_URL: override the Yahoo endpoint (testing)

Slice-valued variables (status codes, required fields) accept
comma-separated strings.

# Validation

Load validates the merged configuration and rejects inconsistent values
(unknown log levels, non-positive delays, backoff multipliers below 1,
every source disabled) before the rest of the service starts.
*/
package config
