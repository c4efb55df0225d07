// Package logger provides structured, level-gated logging for the gateway.
//
// The call-site shape matches the teacher proxy's logger: one Logger per
// module, an action tag plus a message on every call. Underneath, entries
// are written through zerolog's console writer so output stays readable in a
// terminal (colorized, TTY-aware via mattn/go-isatty / mattn/go-colorable)
// while still being structured enough to swap for a JSON sink later.
//
// Usage:
//
//	log := logger.New("ROUTER", cfg.LogLevel)
//	log.Info("route_selected", "policy,pii,secrets")
//	log.Errorf("call_failed", "analyzer %s: %v", name, err)
package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger writes structured log lines for a single module.
type Logger struct {
	module string
	level  zerolog.Level
	base   zerolog.Logger
}

// New creates a Logger for the given module, gated at the given level string.
// Unrecognized level strings default to "info".
func New(module, levelStr string) *Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05.000"}
	base := zerolog.New(writer).With().Timestamp().Str("module", strings.ToUpper(module)).Logger()
	return &Logger{module: strings.ToUpper(module), level: parseLevel(levelStr), base: base}
}

// WithRequestID returns a derived Logger that tags every entry with
// requestID, so a single request's log lines can be grepped together.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		module: l.module,
		level:  l.level,
		base:   l.base.With().Str("request_id", requestID).Logger(),
	}
}

// SetLevel changes the minimum log level at runtime.
func (l *Logger) SetLevel(levelStr string) {
	l.level = parseLevel(levelStr)
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(action, msg string) { l.write(zerolog.DebugLevel, action, msg) }

// Info logs at INFO level.
func (l *Logger) Info(action, msg string) { l.write(zerolog.InfoLevel, action, msg) }

// Warn logs at WARN level.
func (l *Logger) Warn(action, msg string) { l.write(zerolog.WarnLevel, action, msg) }

// Error logs at ERROR level.
func (l *Logger) Error(action, msg string) { l.write(zerolog.ErrorLevel, action, msg) }

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(action, format string, args ...any) {
	l.Debug(action, fmt.Sprintf(format, args...))
}

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(action, format string, args ...any) {
	l.Info(action, fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at WARN level.
func (l *Logger) Warnf(action, format string, args ...any) {
	l.Warn(action, fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at ERROR level.
func (l *Logger) Errorf(action, format string, args ...any) {
	l.Error(action, fmt.Sprintf(format, args...))
}

// Fatal logs at ERROR level and then calls os.Exit(1).
func (l *Logger) Fatal(action, msg string) {
	l.Error(action, msg)
	os.Exit(1)
}

// Fatalf logs a formatted message at ERROR level and then calls os.Exit(1).
func (l *Logger) Fatalf(action, format string, args ...any) {
	l.Fatal(action, fmt.Sprintf(format, args...))
}

// write emits one log line if level >= l.level.
func (l *Logger) write(level zerolog.Level, action, msg string) {
	if level < l.level {
		return
	}
	l.base.WithLevel(level).Str("action", action).Msg(msg)
}

// parseLevel converts a string to a zerolog.Level, defaulting to InfoLevel.
func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
