// Package observe defines the observability sink the retry dispatcher reports to.
//
// Every attempt of a dispatched cache call produces a start event followed by a
// success or failure event. Retry decisions are reported as trace messages with a
// severity. Sinks must be fast and must not block; the dispatcher recovers from
// sink panics so a broken sink can never interrupt a cache call.
//
// Example usage:
//
//	sink := observe.Multi(
//	    observe.NewLogSink(logger),
//	    metricsCollector,
//	    tracing.NewSink(),
//	)
//	d := dispatch.New(manager, dispatch.WithSink(sink))
package observe

import (
	"context"
	"time"

	"github.com/Combine-Capital/rcache/pkg/errors"
)

// Severity is the severity of a trace message.
type Severity int

const (
	SeverityVerbose Severity = iota
	SeverityInformation
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityVerbose:
		return "verbose"
	case SeverityInformation:
		return "information"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event describes one attempt of a dispatched call.
type Event struct {
	Operation   string
	Correlation any
	CallID      string
	Attempt     int
	Timestamp   time.Time

	// Set on success and failure events only.
	Duration time.Duration
	Success  bool
	Kind     errors.FailureKind
	Err      error
}

// Sink receives dispatcher events.
type Sink interface {
	OnStart(ctx context.Context, ev Event)
	OnSuccess(ctx context.Context, ev Event)
	OnFailure(ctx context.Context, ev Event)
	Trace(ctx context.Context, message string, severity Severity)
}

// Nop is a Sink that does nothing. It is used when no sink is configured.
var Nop Sink = nopSink{}

type nopSink struct{}

func (nopSink) OnStart(context.Context, Event) {}
func (nopSink) OnSuccess(context.Context, Event) {}
func (nopSink) OnFailure(context.Context, Event) {}
func (nopSink) Trace(context.Context, string, Severity) {}

// Multi fans every call out to each non-nil sink in order. A panic in one
// sink does not stop the others.
func Multi(sinks ...Sink) Sink {
	filtered := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	switch len(filtered) {
	case 0:
		return Nop
	case 1:
		return filtered[0]
	default:
		return filtered
	}
}

type multiSink []Sink

func (m multiSink) OnStart(ctx context.Context, ev Event) {
	for _, s := range m {
		guard(func() { s.OnStart(ctx, ev) })
	}
}

func (m multiSink) OnSuccess(ctx context.Context, ev Event) {
	for _, s := range m {
		guard(func() { s.OnSuccess(ctx, ev) })
	}
}

func (m multiSink) OnFailure(ctx context.Context, ev Event) {
	for _, s := range m {
		guard(func() { s.OnFailure(ctx, ev) })
	}
}

func (m multiSink) Trace(ctx context.Context, message string, severity Severity) {
	for _, s := range m {
		guard(func() { s.Trace(ctx, message, severity) })
	}
}

func guard(f func()) {
	defer func() { _ = recover() }()
	f()
}
