// Package logger provides structured logging for the chat engine.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Session lifecycle logging (connect, teardown, TTL expiry)
//   - Routing-layer logging (drops, signals, relay negotiation)
//   - Automatic redaction of relay credentials
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger which can be configured
// for different output formats and log levels.
package logger

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// DefaultLogger is the global structured logger instance.
// It is safe for concurrent use and initialized with slog.LevelInfo by default.
var DefaultLogger *slog.Logger

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		switch strings.ToLower(envLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// Info logs an informational message with structured key-value attributes.
// Args should be provided in key-value pairs: key1, value1, key2, value2, ...
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or unexpected but non-critical situations.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// Session logs a session lifecycle event with the session id attached.
// Additional attributes can be passed as key-value pairs.
func Session(event, sessionID string, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs,
		"event", event,
		"session_id", sessionID,
	)
	allAttrs = append(allAttrs, attrs...)
	Info("session "+event, allAttrs...)
}

// RelaySelected logs the outcome of relay provider negotiation.
func RelaySelected(provider string, attrs ...any) {
	allAttrs := make([]any, 0, 2+len(attrs))
	allAttrs = append(allAttrs, "provider", provider)
	allAttrs = append(allAttrs, attrs...)
	Info("relay provider selected", allAttrs...)
}

var (
	// credentialPatterns matches relay credentials and tokens that must never
	// reach the logs in clear text.
	credentialPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(credential|auth_token|password)=\S+`),
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_-]+`),
	}
)

// RedactCredentials removes relay credentials and tokens from strings before
// they are logged. This function is safe for concurrent use as it only reads
// from the compiled patterns.
func RedactCredentials(input string) string {
	result := input

	for _, pattern := range credentialPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer ") {
				return "Bearer [REDACTED]"
			}
			if i := strings.IndexByte(match, '='); i >= 0 {
				return match[:i+1] + "[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}
