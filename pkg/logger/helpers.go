package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogFetch logs the final outcome of one fetch task
func LogFetch(l Logger, url, path, status string, attempts int, bytes int64, err error) {
	fields := map[string]interface{}{
		"url":      url,
		"path":     path,
		"status":   status,
		"attempts": attempts,
		"bytes":    bytes,
	}

	if err != nil {
		l.WithError(err).WarnWithFields("fetch failed", fields)
		return
	}
	l.DebugWithFields("fetch completed", fields)
}

// LogRateLimit logs a 429 response and the delay before the next request
func LogRateLimit(l Logger, url string, retryAfter time.Duration, fromHeader bool) {
	l.WarnWithFields("rate limited, backing off", map[string]interface{}{
		"url":         url,
		"retry_after": retryAfter,
		"from_header": fromHeader,
		"action":      "rate_limited",
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l = l.WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
