// Package logging defines the logger the engine writes to and adapters
// between log/slog and watermill.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
)

// LogFields are structured key/value pairs.
type LogFields map[string]any

// ServiceLogger is the logging contract of the streaming engine.
type ServiceLogger interface {
	With(fields LogFields) ServiceLogger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Warn(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
	Trace(msg string, fields LogFields)
}

// LevelTrace sits below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

// NewSlogServiceLogger wraps a slog.Logger.
func NewSlogServiceLogger(log *slog.Logger) ServiceLogger {
	if log == nil {
		panic("retailstream: slog logger cannot be nil")
	}
	return &slogServiceLogger{inner: log}
}

// NewWatermillServiceLogger wraps a watermill LoggerAdapter. Watermill has
// no warning level, so warnings are logged at info with level=warn.
func NewWatermillServiceLogger(logger watermill.LoggerAdapter) ServiceLogger {
	if logger == nil {
		panic("retailstream: watermill logger cannot be nil")
	}
	return &watermillServiceLogger{inner: logger}
}

// Discard returns a logger that drops everything.
func Discard() ServiceLogger {
	return NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// NewSlogLogger builds a slog.Logger writing format ("json" or "text") at
// level ("trace", "debug", "info", "warn", "error").
func NewSlogLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
}

// ParseLevel maps a level name onto slog levels.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", level)
	}
}

type slogServiceLogger struct {
	inner *slog.Logger
}

func (s *slogServiceLogger) With(fields LogFields) ServiceLogger {
	if len(fields) == 0 {
		return s
	}
	return &slogServiceLogger{inner: s.inner.With(toArgs(fields)...)}
}

func (s *slogServiceLogger) Debug(msg string, fields LogFields) {
	s.inner.Debug(msg, toArgs(fields)...)
}

func (s *slogServiceLogger) Info(msg string, fields LogFields) {
	s.inner.Info(msg, toArgs(fields)...)
}

func (s *slogServiceLogger) Warn(msg string, fields LogFields) {
	s.inner.Warn(msg, toArgs(fields)...)
}

func (s *slogServiceLogger) Error(msg string, err error, fields LogFields) {
	args := toArgs(fields)
	if err != nil {
		args = append(args, slog.Any("error", err))
	}
	s.inner.Error(msg, args...)
}

func (s *slogServiceLogger) Trace(msg string, fields LogFields) {
	s.inner.Log(context.Background(), LevelTrace, msg, toArgs(fields)...)
}

func toArgs(fields LogFields) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return args
}

type watermillServiceLogger struct {
	inner watermill.LoggerAdapter
}

func (w *watermillServiceLogger) With(fields LogFields) ServiceLogger {
	return &watermillServiceLogger{inner: w.inner.With(toWatermillFields(fields))}
}

func (w *watermillServiceLogger) Debug(msg string, fields LogFields) {
	w.inner.Debug(msg, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Info(msg string, fields LogFields) {
	w.inner.Info(msg, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Warn(msg string, fields LogFields) {
	wf := watermill.LogFields{"level": "warn"}
	for k, v := range fields {
		wf[k] = v
	}
	w.inner.Info(msg, wf)
}

func (w *watermillServiceLogger) Error(msg string, err error, fields LogFields) {
	w.inner.Error(msg, err, toWatermillFields(fields))
}

func (w *watermillServiceLogger) Trace(msg string, fields LogFields) {
	w.inner.Trace(msg, toWatermillFields(fields))
}

// NewWatermillAdapter lets watermill publishers log through a ServiceLogger.
func NewWatermillAdapter(log ServiceLogger) watermill.LoggerAdapter {
	if log == nil {
		panic("retailstream: ServiceLogger cannot be nil")
	}
	return &serviceLoggerAdapter{base: log}
}

type serviceLoggerAdapter struct {
	base ServiceLogger
}

func (s *serviceLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	s.base.Error(msg, err, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	s.base.Info(msg, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	s.base.Debug(msg, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	s.base.Trace(msg, fromWatermillFields(fields))
}

func (s *serviceLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &serviceLoggerAdapter{base: s.base.With(fromWatermillFields(fields))}
}

func toWatermillFields(fields LogFields) watermill.LogFields {
	if len(fields) == 0 {
		return nil
	}
	return watermill.LogFields(fields)
}

func fromWatermillFields(fields watermill.LogFields) LogFields {
	if len(fields) == 0 {
		return nil
	}
	return LogFields(fields)
}
