// Package logging builds the zerolog logger shared by the CLI, the
// reconciler and the CloudVision client.
//
// The logger is created once in the CLI and passed down explicitly; no
// package in this module writes to a process-wide logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// EnvLogLevel overrides the level chosen by flags.
	EnvLogLevel = "CV_CONTAINER_LOG_LEVEL"

	// EnvLogFormat overrides the output format ("console" or "json").
	EnvLogFormat = "CV_CONTAINER_LOG_FORMAT"
)

// Output formats accepted by Options.Format and CV_CONTAINER_LOG_FORMAT.
const (
	// FormatConsole writes human-readable, optionally coloured lines.
	FormatConsole = "console"

	// FormatJSON writes one JSON object per event.
	FormatJSON = "json"
)

// Options configures New.
type Options struct {
	// Level is one of trace, debug, info, warn, error, disabled.
	// Empty means info.
	Level string

	// Format is "console" (default) or "json".
	Format string

	// Out defaults to os.Stderr. Stdout is reserved for command output.
	Out io.Writer
}

// New builds a logger from opts after applying environment overrides.
func New(opts Options) (zerolog.Logger, error) {
	applyEnvOverrides(&opts)

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q (valid: console, json)", opts.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "cv-container").Logger(), nil
}

// ParseLevel maps a level name onto a zerolog level.
func ParseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off", "none":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", raw)
	}
}

func applyEnvOverrides(opts *Options) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		opts.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		opts.Format = v
	}
}
