// Package logger configures structured logging for wpx.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // console output for development
	Output io.Writer
}

// New creates the root logger.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "wpx").
		Logger()
}

// Component returns a child logger tagged with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// LogRegistration records the outcome of one registration call.
func LogRegistration(l zerolog.Logger, kind, name string, err error) {
	if err != nil {
		l.Error().
			Str("kind", kind).
			Str("name", name).
			Err(err).
			Msg("registration rejected")
		return
	}
	l.Debug().
		Str("kind", kind).
		Str("name", name).
		Msg("registered")
}

// LogStoreOperation records a configuration store call.
func LogStoreOperation(l zerolog.Logger, operation string, duration time.Duration, count int, err error) {
	if err != nil {
		l.Error().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Err(err).
			Msg("store operation failed")
		return
	}
	l.Debug().
		Str("operation", operation).
		Dur("duration_ms", duration).
		Int("record_count", count).
		Msg("store operation completed")
}
