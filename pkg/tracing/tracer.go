// Package tracing provides OpenTelemetry tracing for cache calls. It sets up an
// OTLP exporter (gRPC or HTTP), helpers for client spans, and a Sink that
// records dispatcher attempts as span events.
//
// Example usage:
//
//	cfg := config.TracingConfig{
//	    Enabled:    true,
//	    Endpoint:   "localhost:4317",
//	    SampleRate: 0.1,
//	    ExportMode: "grpc",
//	}
//	tp, shutdown, err := tracing.NewTracerProvider(ctx, cfg, config.ServiceConfig{Name: "my-service"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer shutdown(ctx)
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/Combine-Capital/rcache/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"google.golang.org/grpc/credentials/insecure"
)

// ShutdownFunc flushes pending spans and stops the exporter.
type ShutdownFunc func(context.Context) error

// Default batching and shutdown bounds.
const (
	DefaultBatchTimeout    = 5 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// NewTracerProvider builds a TracerProvider exporting over OTLP and installs it
// as the global provider together with the W3C trace context propagator.
// The service name is cfg.ServiceName, falling back to svc.Name.
//
// When tracing is disabled it returns an unregistered provider whose spans go
// nowhere, so callers need no special casing.
func NewTracerProvider(ctx context.Context, cfg config.TracingConfig, svc config.ServiceConfig) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	if !cfg.Enabled {
		return sdktrace.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}
	if cfg.Endpoint == "" {
		return nil, nil, fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}

	res, err := newResource(ctx, cfg, svc)
	if err != nil {
		return nil, nil, err
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchTimeout
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SampleRate)),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return tp, shutdown, nil
}

func newResource(ctx context.Context, cfg config.TracingConfig, svc config.ServiceConfig) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = svc.Name
	}
	if name == "" {
		return nil, fmt.Errorf("service name is required for tracing")
	}

	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(name)}
	if svc.Version != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(svc.Version))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment.name", cfg.Environment))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// newExporter creates an OTLP exporter for cfg.ExportMode. Exporters connect
// lazily, so no collector needs to be reachable here.
func newExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch cfg.ExportMode {
	case "grpc", "":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		exp, err = otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err = otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported export mode: %s (use 'grpc' or 'http')", cfg.ExportMode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.ExportMode, err)
	}
	return exp, nil
}

// newSampler maps a sample rate onto a sampler. Rates outside (0, 1) clamp to
// never or always.
func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}
