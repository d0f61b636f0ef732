package logging

import (
	"context"

	"github.com/Combine-Capital/rcache/pkg/config"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	loggerContextKey    = contextKey("rcache.logger")
	requestIDContextKey = contextKey("rcache.request_id")
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext extracts a logger from the context and enriches it with the
// active span and request IDs. If no logger is found, a default one is used.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(loggerContextKey).(*Logger)
	if !ok {
		logger = New(defaultLogConfig())
	}
	return enrichLoggerFromContext(ctx, logger)
}

// defaultLogConfig returns a default log configuration.
func defaultLogConfig() config.LogConfig {
	return config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}
}

// enrichLoggerFromContext adds trace/span/request IDs from context to logger.
func enrichLoggerFromContext(ctx context.Context, logger *Logger) *Logger {
	fields := make(map[string]interface{})

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields[TraceID] = sc.TraceID().String()
		fields[SpanID] = sc.SpanID().String()
	}

	if requestID := GetRequestID(ctx); requestID != "" {
		fields[RequestID] = requestID
	}

	if len(fields) > 0 {
		return logger.WithFields(fields)
	}

	return logger
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDContextKey).(string); ok {
		return requestID
	}
	return ""
}

// Ctx returns the zerolog.Logger for ctx.
func Ctx(ctx context.Context) *zerolog.Logger {
	return FromContext(ctx).GetZerolog()
}
