package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new span with the given name and options using the
// module's default tracer.
//
// Example:
//
//	ctx, span := tracing.StartSpan(ctx, "cache.warmup",
//	    trace.WithAttributes(tracing.CacheAttributes("redis", "warmup", "")...))
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer("rcache").Start(ctx, name, opts...)
}

// StartSpanWithTracer creates a new span using a specific tracer.
func StartSpanWithTracer(ctx context.Context, tracerName, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

// SetSpanError marks the span in ctx as errored and records err as an event.
func SetSpanError(ctx context.Context, err error) {
	if err == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanEvent adds an event to the span in ctx.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// CacheAttributes returns common cache attributes for a span.
func CacheAttributes(system, operation, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("cache.system", system),
		attribute.String("cache.operation", operation),
		attribute.String("cache.key", key),
	}
}

// CacheHit records whether a read found its key.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool("cache.hit", hit)
}

// GetTracer returns a tracer for the given name from the global tracer provider.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
