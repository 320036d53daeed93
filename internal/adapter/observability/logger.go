// Package observability wires structured logging configuration into
// the pipeline.
package observability

import (
	"context"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/NumeralTiger/AI-PR-Reviewer/internal/adapter/httpx"
	"github.com/NumeralTiger/AI-PR-Reviewer/internal/usecase/review"
)

// ParseLevel maps a config string to a log level. Unrecognized values
// fall back to info.
func ParseLevel(value string) httpx.LogLevel {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return httpx.LogLevelDebug
	case "info", "":
		return httpx.LogLevelInfo
	case "warn", "warning":
		return httpx.LogLevelWarning
	case "error":
		return httpx.LogLevelError
	default:
		return httpx.LogLevelInfo
	}
}

// ParseFormat maps a config string to a log format. "auto" (or empty)
// picks human output when stderr is a terminal and JSON otherwise, so
// CI logs stay machine-readable without configuration.
func ParseFormat(value string) httpx.LogFormat {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "human", "text":
		return httpx.LogFormatHuman
	case "json":
		return httpx.LogFormatJSON
	default:
		if IsTTY(os.Stderr.Fd()) {
			return httpx.LogFormatHuman
		}
		return httpx.LogFormatJSON
	}
}

// IsTTY checks if the given file descriptor is a terminal.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// NewLogger constructs the shared structured logger from config values.
func NewLogger(level, format string, redactSecrets bool) *httpx.DefaultLogger {
	return httpx.NewDefaultLogger(ParseLevel(level), ParseFormat(format), redactSecrets)
}

// PipelineLogger adapts httpx.Logger to the review.Logger interface so
// the orchestrator shares the logging infrastructure of the API clients.
type PipelineLogger struct {
	logger httpx.Logger
}

// NewPipelineLogger creates a pipeline logger adapter.
func NewPipelineLogger(logger httpx.Logger) review.Logger {
	return &PipelineLogger{logger: logger}
}

// LogInfo logs an informational message with structured fields.
func (l *PipelineLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogInfo(ctx, message, fields)
}

// LogWarning logs a warning message with structured fields.
func (l *PipelineLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogWarning(ctx, message, fields)
}

// LogError logs an error message with structured fields.
func (l *PipelineLogger) LogError(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogError(ctx, message, fields)
}
