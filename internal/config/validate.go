// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

package config

import (
	"fmt"
	"net/url"
)

// Validate checks that the merged configuration is internally consistent.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateCache(); err != nil {
		return err
	}

	if err := c.validateRetry(); err != nil {
		return err
	}

	if err := c.validateBreaker(); err != nil {
		return err
	}

	if err := c.validateCompletion(); err != nil {
		return err
	}

	return c.validateSources()
}

// validateLogging validates log level and format
func (c *Config) validateLogging() error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "warning": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("STOCKPILE_LOG_LEVEL must be one of trace, debug, info, warn, error, got: %s", c.Logging.Level)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("STOCKPILE_LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}

	return nil
}

// validateCache validates cache TTL settings
func (c *Config) validateCache() error {
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("STOCKPILE_CACHE_TTL must be positive, got: %s", c.Cache.TTL)
	}
	if c.Cache.CleanupInterval < 0 {
		return fmt.Errorf("STOCKPILE_CACHE_CLEANUP_INTERVAL must not be negative, got: %s", c.Cache.CleanupInterval)
	}
	return nil
}

// validateRetry validates retry policy settings
func (c *Config) validateRetry() error {
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("STOCKPILE_RETRY_MAX_RETRIES must not be negative, got: %d", c.Retry.MaxRetries)
	}
	if c.Retry.FallbackMaxRetries < 0 {
		return fmt.Errorf("STOCKPILE_RETRY_FALLBACK_MAX_RETRIES must not be negative, got: %d", c.Retry.FallbackMaxRetries)
	}

	validStrategies := map[string]bool{"exponential": true, "linear": true, "fixed": true}
	if !validStrategies[c.Retry.Strategy] {
		return fmt.Errorf("STOCKPILE_RETRY_STRATEGY must be exponential, linear, or fixed, got: %s", c.Retry.Strategy)
	}

	if c.Retry.InitialDelay <= 0 {
		return fmt.Errorf("STOCKPILE_RETRY_INITIAL_DELAY must be positive, got: %s", c.Retry.InitialDelay)
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("STOCKPILE_RETRY_MAX_DELAY (%s) must not be less than initial delay (%s)", c.Retry.MaxDelay, c.Retry.InitialDelay)
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("STOCKPILE_RETRY_BACKOFF_MULTIPLIER must be at least 1, got: %g", c.Retry.BackoffMultiplier)
	}

	for _, code := range c.Retry.RetryableStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("retry.retryable_status_codes contains invalid HTTP status: %d", code)
		}
	}

	return nil
}

// validateBreaker validates circuit breaker thresholds
func (c *Config) validateBreaker() error {
	if c.Breaker.FailureThreshold == 0 {
		return fmt.Errorf("STOCKPILE_BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	if c.Breaker.SuccessThreshold == 0 {
		return fmt.Errorf("STOCKPILE_BREAKER_SUCCESS_THRESHOLD must be at least 1")
	}
	if c.Breaker.Timeout <= 0 {
		return fmt.Errorf("STOCKPILE_BREAKER_TIMEOUT must be positive, got: %s", c.Breaker.Timeout)
	}
	return nil
}

// validateCompletion validates field completion settings
func (c *Config) validateCompletion() error {
	if c.Completion.Level != "strict" && c.Completion.Level != "lenient" {
		return fmt.Errorf("STOCKPILE_COMPLETION_LEVEL must be strict or lenient, got: %s", c.Completion.Level)
	}
	return nil
}

// validateSources validates upstream provider settings (only when enabled)
func (c *Config) validateSources() error {
	if err := validateSource(c.Sources.Yahoo, "sources.yahoo"); err != nil {
		return err
	}
	if err := validateSource(c.Sources.FinanceGo, "sources.finance_go"); err != nil {
		return err
	}
	if err := validateSource(c.Sources.Stooq, "sources.stooq"); err != nil {
		return err
	}

	if !c.Sources.Yahoo.Enabled && !c.Sources.FinanceGo.Enabled && !c.Sources.Stooq.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}

	return nil
}

func validateSource(sc SourceConfig, section string) error {
	if !sc.Enabled {
		return nil
	}
	if sc.BaseURL != "" {
		if err := validateHTTPURL(sc.BaseURL, section+".base_url"); err != nil {
			return err
		}
	}
	if sc.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be positive, got: %s", section, sc.Timeout)
	}
	if sc.RateLimit < 0 {
		return fmt.Errorf("%s.rate_limit must not be negative, got: %g", section, sc.RateLimit)
	}
	if sc.RateLimit > 0 && sc.Burst < 1 {
		return fmt.Errorf("%s.burst must be at least 1 when rate limiting is enabled, got: %d", section, sc.Burst)
	}
	return nil
}

// validateHTTPURL validates that a URL is properly formatted for HTTP/HTTPS services.
// Validates: scheme (http/https), host present, no query params.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}
