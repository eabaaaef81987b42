package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// Middleware stores logger in the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLogger(r.Context(), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// RequestIDMiddleware adds request ID to logger context
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := extractRequestID(r)
			if requestID == "" {
				next.ServeHTTP(w, r)
				return
			}
			logger := FromContext(r.Context()).With(FieldRequestID, requestID)
			next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
		})
	}
}

// StructuredLogger provides domain-specific logging helpers
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogLookup logs the outcome of a single region/month lookup.
func (sl *StructuredLogger) LogLookup(ctx context.Context, region, dealYMD string, rows int, durationMs int64, err error, kind string) {
	fields := NewFields().
		WithQuery(region, dealYMD).
		WithOperation(OpLookup).
		WithComponent(ComponentLookup).
		WithError(err, kind)
	fields[FieldItems] = rows
	fields[FieldDuration] = durationMs

	if err != nil {
		sl.logger.Logger.WarnContext(ctx, "Lookup failed", fields.ToSlice()...)
		return
	}
	sl.logger.Logger.InfoContext(ctx, "Lookup completed", fields.ToSlice()...)
}

// LogHistory logs the outcome of a multi-month history aggregation.
func (sl *StructuredLogger) LogHistory(ctx context.Context, region, building string, months, rows, skipped int, durationMs int64) {
	fields := NewFields().
		WithOperation(OpHistory).
		WithComponent(ComponentHistory)
	fields[FieldRegion] = region
	fields[FieldBuilding] = building
	fields[FieldMonths] = months
	fields[FieldItems] = rows
	fields[FieldSkipped] = skipped
	fields[FieldDuration] = durationMs

	level := slog.LevelInfo
	if skipped > 0 {
		level = slog.LevelWarn
	}
	sl.logger.Logger.Log(ctx, level, "History aggregation completed", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err, "").
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
