// Stockpile - Resilient Market Data Acquisition
// Copyright 2026 Stockpile Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfleet/stockpile

// Package logging provides centralized zerolog-based logging for Stockpile.
//
// All components log through the package-level helpers so that a single
// Init call from main configures level, format, and destination for the
// whole process:
//
//	import "github.com/mfleet/stockpile/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	// Log messages
//	logging.Info().Str("symbol", "AAPL").Msg("Fetch succeeded")
//	logging.Error().Err(err).Msg("Fetch failed")
//
//	// With context (request ID)
//	logging.Ctx(ctx).Debug().Str("source", "yahoo").Msg("Attempting fetch")
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Config holds logging configuration. The zero value logs JSON at info
// level to stderr with timestamps.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error,
	// fatal, disabled. Empty means info.
	Level string

	// Format selects json or console output. Empty means json.
	Format string

	// Caller adds the calling file and line to each event.
	Caller bool

	// NoTimestamp drops the timestamp field. Mainly for tests that
	// assert on exact output.
	NoTimestamp bool

	// Output receives the log stream. Nil means os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// active holds the process-wide logger. Swapped atomically so accessors
// never need a lock.
var active atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // logging must work before main calls Init
func init() {
	Init(DefaultConfig())
}

// Init configures the global logger. Call it early in startup, typically
// right after loading configuration. Calling it again reconfigures the
// logger; events already in flight keep their previous destination.
func Init(cfg Config) {
	l := build(cfg)
	active.Store(&l)
}

// build assembles a logger from cfg and applies the global level.
func build(cfg Config) zerolog.Logger {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	lc := zerolog.New(out).With()
	if !cfg.NoTimestamp {
		lc = lc.Timestamp()
	}
	if cfg.Caller {
		lc = lc.Caller()
	}
	return lc.Logger()
}

var levelNames = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"disabled": zerolog.Disabled,
}

// parseLevel maps a level name to its zerolog level, defaulting to info
// for anything unrecognized.
func parseLevel(name string) zerolog.Level {
	if lvl, ok := levelNames[strings.ToLower(name)]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// Logger returns a copy of the global logger for direct use.
func Logger() zerolog.Logger {
	return *active.Load()
}

// SetLogger replaces the global logger. Tests use this together with
// NewTestLogger to capture output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	active.Store(&l)
}

// NewTestLogger returns a logger that writes JSON lines to w without
// timestamps, so tests can assert on exact output.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w)
}

// With opens a child logger context with additional default fields.
//
//	fetchLogger := logging.With().Str("component", "aggregate").Logger()
//	fetchLogger.Info().Msg("Fetch started")
func With() zerolog.Context {
	return active.Load().With()
}

// Trace starts a trace-level event.
func Trace() *zerolog.Event {
	return active.Load().Trace()
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event {
	return active.Load().Debug()
}

// Info starts an info-level event.
func Info() *zerolog.Event {
	return active.Load().Info()
}

// Warn starts a warn-level event.
//
//	logging.Warn().Err(err).Msg("Falling back to secondary source")
func Warn() *zerolog.Event {
	return active.Load().Warn()
}

// Error starts an error-level event.
func Error() *zerolog.Event {
	return active.Load().Error()
}

// Fatal starts a fatal-level event. os.Exit(1) runs after the message
// is written.
func Fatal() *zerolog.Event {
	return active.Load().Fatal()
}

// Err starts an error-level event carrying err, shorthand for
// Error().Err(err).
func Err(err error) *zerolog.Event {
	return active.Load().Err(err)
}
