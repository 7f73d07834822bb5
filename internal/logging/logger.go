// Package logging provides structured logging with trace-ID propagation,
// adapted from the teacher's logrus-based logger for the mock-serving
// engine's concerns (requests, rate-limit decisions, broadcast failures,
// schema migrations).
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type used for context keys owned by this package.
type ContextKey string

// TraceIDKey is the context key under which a request's trace ID is stored.
const TraceIDKey ContextKey = "trace_id"

// Logger wraps logrus.Logger with tenant- and trace-aware helpers.
type Logger struct {
	*logrus.Logger
	tenant string
}

// New creates a Logger scoped to a tenant ID, with the given level
// ("debug", "info", "warn", "error") and format ("json" or "text").
func New(tenant, level, format string) *Logger {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if format == "text" {
		l.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}
	l.SetOutput(os.Stdout)

	return &Logger{Logger: l, tenant: tenant}
}

// NewFromEnv builds a Logger using LOG_LEVEL and LOG_FORMAT, defaulting to
// "info" and "json".
func NewFromEnv(tenant string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(tenant, level, format)
}

// NewTraceID generates a fresh trace ID.
func NewTraceID() string { return uuid.New().String() }

// WithTraceID stores a trace ID on the context.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

// GetTraceID retrieves the trace ID from the context, or "" if absent.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithContext returns a logrus entry carrying the tenant and trace ID.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	e := l.Logger.WithField("tenant", l.tenant)
	if traceID := GetTraceID(ctx); traceID != "" {
		e = e.WithField("trace_id", traceID)
	}
	return e
}

// LogRequest logs one served mock request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}).Info("served mock request")
}

// LogRateLimitDenied logs a rate-limit rejection.
func (l *Logger) LogRateLimitDenied(ctx context.Context, endpointID string, limit int) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"endpoint_id": endpointID,
		"limit":       limit,
	}).Warn("rate limit exceeded")
}

// LogBroadcastFailure logs a failed fan-out write to one inspector socket.
// Broadcast failures never fail the originating request.
func (l *Logger) LogBroadcastFailure(ctx context.Context, endpointID string, err error) {
	l.WithContext(ctx).WithField("endpoint_id", endpointID).WithError(err).Warn("inspector broadcast failed")
}

// LogMigration logs a schema migration step, including destructive ones.
func (l *Logger) LogMigration(ctx context.Context, step string, destructive bool) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"step":        step,
		"destructive": destructive,
	}).Info("schema migration")
}
