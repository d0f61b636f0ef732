// Package logging provides structured logging with zerolog for the rcache client.
// It supports configurable log levels, output formats (JSON/console), and automatic
// extraction of OpenTelemetry trace/span IDs from context.
//
// Example usage:
//
//	cfg := config.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//	logger := logging.New(cfg)
//	logger.Info().Str(logging.Operation, "GetString").Msg("cache hit")
package logging

// Standard field names for structured logging.
const (
	// TraceID is the field name for distributed trace ID (W3C trace context).
	TraceID = "trace_id"

	// SpanID is the field name for current span ID within a trace.
	SpanID = "span_id"

	// ServiceName is the field name for the service generating the log.
	ServiceName = "service_name"

	// Error is the field name for error information.
	Error = "error"

	// RequestID is the field name for a caller supplied request ID.
	RequestID = "request_id"

	// Duration is the field name for operation duration.
	Duration = "duration_ms"

	// Component is the field name for the component/package generating the log.
	Component = "component"

	// Operation is the name of the cache operation being dispatched.
	Operation = "operation"

	// Correlation carries caller supplied correlation data, usually the key.
	Correlation = "correlation"

	// CallID identifies one dispatched call across its attempts.
	CallID = "call_id"

	// Attempt is the 1-based attempt number within a call.
	Attempt = "attempt"

	// FailureKind is the classified failure of an attempt.
	FailureKind = "failure_kind"

	// Severity is the severity of a dispatcher trace message.
	Severity = "severity"
)
