package observe

import (
	"context"
	"time"

	"github.com/Combine-Capital/rcache/pkg/logging"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// LogSink writes dispatcher events to a zerolog logger. Attempt events are
// logged at debug level; failures at warn. Warning traces are sampled so a
// failure storm does not flood the log.
type LogSink struct {
	logger   *logging.Logger
	warnings *rate.Sometimes
}

// LogSinkOption configures a LogSink.
type LogSinkOption func(*LogSink)

// WithWarningSampling logs the first n warnings and then at most one per interval.
func WithWarningSampling(first int, interval time.Duration) LogSinkOption {
	return func(s *LogSink) {
		s.warnings = &rate.Sometimes{First: first, Interval: interval}
	}
}

// NewLogSink creates a sink logging through logger. By default the first 10
// warnings are logged and then at most one per second.
func NewLogSink(logger *logging.Logger, opts ...LogSinkOption) *LogSink {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &LogSink{
		logger:   logger.WithComponent("dispatch"),
		warnings: &rate.Sometimes{First: 10, Interval: time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LogSink) event(e *zerolog.Event, ev Event) *zerolog.Event {
	e = e.Str(logging.Operation, ev.Operation).
		Str(logging.CallID, ev.CallID).
		Int(logging.Attempt, ev.Attempt)
	if ev.Correlation != nil {
		e = e.Interface(logging.Correlation, ev.Correlation)
	}
	return e
}

// OnStart implements Sink.
func (s *LogSink) OnStart(_ context.Context, ev Event) {
	s.event(s.logger.Debug(), ev).Msg("cache call started")
}

// OnSuccess implements Sink.
func (s *LogSink) OnSuccess(_ context.Context, ev Event) {
	s.event(s.logger.Debug(), ev).
		Float64(logging.Duration, float64(ev.Duration)/float64(time.Millisecond)).
		Msg("cache call succeeded")
}

// OnFailure implements Sink.
func (s *LogSink) OnFailure(_ context.Context, ev Event) {
	s.event(s.logger.Debug(), ev).
		Float64(logging.Duration, float64(ev.Duration)/float64(time.Millisecond)).
		Str(logging.FailureKind, ev.Kind.String()).
		Err(ev.Err).
		Msg("cache call failed")
}

// Trace implements Sink.
func (s *LogSink) Trace(_ context.Context, message string, severity Severity) {
	switch severity {
	case SeverityVerbose:
		s.logger.Debug().Msg(message)
	case SeverityInformation:
		s.logger.Info().Msg(message)
	case SeverityWarning:
		s.warnings.Do(func() {
			s.logger.Warn().Msg(message)
		})
	default:
		s.logger.Error().Str(logging.Severity, severity.String()).Msg(message)
	}
}
