// Package runtime holds the process-level plumbing shared by every command:
// the structured logger and the NDJSON audit trail.
package runtime

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the minimal structured logging interface used across packages.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// zeroLogger adapts a zerolog.Logger to Logger.
type zeroLogger struct {
	zl zerolog.Logger
}

// NewJSONLogger returns a Logger that writes one JSON object per line to w.
// Debug output is only emitted when verbose is set.
func NewJSONLogger(w io.Writer, verbose bool) Logger {
	return &zeroLogger{zl: zerolog.New(w).With().Timestamp().Logger().Level(level(verbose))}
}

// NewConsoleLogger returns a Logger with human-readable, colourless output.
func NewConsoleLogger(w io.Writer, verbose bool) Logger {
	cw := zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.DateTime}
	return &zeroLogger{zl: zerolog.New(cw).With().Timestamp().Logger().Level(level(verbose))}
}

func level(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func (l *zeroLogger) Debug(msg string, fields map[string]any) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

func (l *zeroLogger) Info(msg string, fields map[string]any) {
	l.zl.Info().Fields(fields).Msg(msg)
}

func (l *zeroLogger) Warn(msg string, fields map[string]any) {
	l.zl.Warn().Fields(fields).Msg(msg)
}

func (l *zeroLogger) Error(msg string, fields map[string]any) {
	l.zl.Error().Fields(fields).Msg(msg)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, map[string]any) {}
func (NopLogger) Info(string, map[string]any)  {}
func (NopLogger) Warn(string, map[string]any)  {}
func (NopLogger) Error(string, map[string]any) {}
