// Package logging configures the service's structured logger and adapts it
// to the analyzer sink interface consumed by the engine.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger settings.
type Config struct {
	Level      string // debug, info, warn, error
	JSONFormat bool   // JSON output instead of console
}

// New creates a zerolog logger per the config.
func New(cfg Config) zerolog.Logger {
	var out io.Writer = os.Stdout
	if !cfg.JSONFormat {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// AnalyzerSink forwards per-analyzer computation issues to the structured
// logger. It satisfies the engine's Sink interface.
type AnalyzerSink struct {
	log zerolog.Logger
}

// NewAnalyzerSink wraps log as an analyzer sink.
func NewAnalyzerSink(log zerolog.Logger) *AnalyzerSink {
	return &AnalyzerSink{log: log.With().Str("component", "engine").Logger()}
}

// Log records a non-fatal computation issue from the named analyzer.
func (s *AnalyzerSink) Log(level, source, message string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	s.log.WithLevel(lvl).Str("analyzer", source).Msg(message)
}
