package tracing

import (
	"context"

	"github.com/Combine-Capital/rcache/pkg/observe"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Sink records dispatcher attempts as events on the span carried by the call's
// context. Calls without a recording span are ignored.
type Sink struct{}

// NewSink creates a Sink.
func NewSink() *Sink {
	return &Sink{}
}

func attemptAttributes(ev observe.Event) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("cache.operation", ev.Operation),
		attribute.String("cache.call_id", ev.CallID),
		attribute.Int("cache.attempt", ev.Attempt),
	}
}

// OnStart implements observe.Sink.
func (s *Sink) OnStart(ctx context.Context, ev observe.Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("cache.attempt.start",
		trace.WithTimestamp(ev.Timestamp),
		trace.WithAttributes(attemptAttributes(ev)...))
}

// OnSuccess implements observe.Sink.
func (s *Sink) OnSuccess(ctx context.Context, ev observe.Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.Int("cache.attempts", ev.Attempt))
	span.AddEvent("cache.attempt.success",
		trace.WithAttributes(append(attemptAttributes(ev),
			attribute.Int64("cache.duration_us", ev.Duration.Microseconds()))...))
}

// OnFailure implements observe.Sink.
func (s *Sink) OnFailure(ctx context.Context, ev observe.Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := append(attemptAttributes(ev),
		attribute.Int64("cache.duration_us", ev.Duration.Microseconds()),
		attribute.String("cache.failure_kind", ev.Kind.String()))
	if ev.Err != nil {
		attrs = append(attrs, attribute.String("error.message", ev.Err.Error()))
	}
	span.SetAttributes(attribute.Int("cache.attempts", ev.Attempt))
	span.AddEvent("cache.attempt.failure", trace.WithAttributes(attrs...))
}

// Trace implements observe.Sink.
func (s *Sink) Trace(ctx context.Context, message string, severity observe.Severity) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("cache.dispatch.trace", trace.WithAttributes(
		attribute.String("message", message),
		attribute.String("severity", severity.String()),
	))
}
