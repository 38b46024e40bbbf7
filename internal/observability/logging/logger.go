// Package logging provides structured logging with zerolog.
//
// All output goes to stderr; stdout carries only the transcription result.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // RFC3339, Unix, etc.
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	InitWithWriter(cfg, os.Stderr)
}

// InitWithWriter initializes the global logger with an explicit sink.
func InitWithWriter(cfg Config, out io.Writer) {
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := out
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithInvocation returns a logger with invocation context.
func WithInvocation(invocationId, source string) zerolog.Logger {
	return log.With().
		Str("invocationId", invocationId).
		Str("source", source).
		Logger()
}

// WithUnit returns a logger with work unit context.
func WithUnit(invocationId string, unitIndex int) zerolog.Logger {
	return log.With().
		Str("invocationId", invocationId).
		Int("unit", unitIndex).
		Logger()
}

// WithEngine returns a logger with transcription engine context.
func WithEngine(invocationId, engine string) zerolog.Logger {
	return log.With().
		Str("invocationId", invocationId).
		Str("engine", engine).
		Logger()
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}
