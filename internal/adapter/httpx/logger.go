package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Logger provides structured logging for pipeline stages and API calls.
type Logger interface {
	LogDebug(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}

// LogLevel defines the logging verbosity level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
)

// LogFormat defines the output format for logs.
type LogFormat int

const (
	LogFormatHuman LogFormat = iota
	LogFormatJSON
)

// DefaultLogger writes leveled structured logs to the standard logger.
type DefaultLogger struct {
	level         LogLevel
	format        LogFormat
	redactSecrets bool
}

// NewDefaultLogger creates a logger with the specified config.
func NewDefaultLogger(level LogLevel, format LogFormat, redactSecrets bool) *DefaultLogger {
	return &DefaultLogger{
		level:         level,
		format:        format,
		redactSecrets: redactSecrets,
	}
}

// LogDebug logs a debug message with structured fields.
func (l *DefaultLogger) LogDebug(ctx context.Context, message string, fields map[string]interface{}) {
	l.write(LogLevelDebug, "debug", message, fields)
}

// LogInfo logs an informational message with structured fields.
func (l *DefaultLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	l.write(LogLevelInfo, "info", message, fields)
}

// LogWarning logs a warning message with structured fields.
func (l *DefaultLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	l.write(LogLevelWarning, "warning", message, fields)
}

// LogError logs an error message with structured fields.
func (l *DefaultLogger) LogError(ctx context.Context, message string, fields map[string]interface{}) {
	l.write(LogLevelError, "error", message, fields)
}

func (l *DefaultLogger) write(level LogLevel, name, message string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	fields = l.redactFields(fields)

	if l.format == LogFormatJSON {
		entry := map[string]interface{}{
			"level":     name,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"message":   message,
		}
		for key, value := range fields {
			entry[key] = value
		}
		data, err := json.Marshal(entry)
		if err != nil {
			log.Printf("[%s] %s (unserializable fields: %v)", strings.ToUpper(name), message, err)
			return
		}
		log.Print(string(data))
		return
	}

	log.Printf("[%s] %s%s", strings.ToUpper(name), message, formatFields(fields))
}

// redactFields masks values whose key suggests a credential.
func (l *DefaultLogger) redactFields(fields map[string]interface{}) map[string]interface{} {
	if !l.redactSecrets || len(fields) == 0 {
		return fields
	}
	out := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		if isSecretKey(key) {
			out[key] = RedactSecret(fmt.Sprintf("%v", value))
			continue
		}
		out[key] = value
	}
	return out
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "key") ||
		strings.Contains(lower, "token") ||
		strings.Contains(lower, "secret") ||
		strings.Contains(lower, "authorization")
}

// RedactSecret shows only the last 4 characters of a credential with
// explicit redaction markers.
func RedactSecret(value string) string {
	if len(value) <= 4 {
		return "[REDACTED]"
	}
	return fmt.Sprintf("[REDACTED-%s]", value[len(value)-4:])
}

func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(" (")
	for i, key := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", key, fields[key])
	}
	sb.WriteString(")")
	return sb.String()
}
