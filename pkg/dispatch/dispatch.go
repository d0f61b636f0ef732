// Package dispatch runs cache calls inside a bounded retry envelope.
//
// Each failed attempt is classified. Connection failures are retried after
// asking the connection manager to consider a reconnect. Disposed-handle
// failures are retried without one, since a reconnect elsewhere has already
// replaced the handle. Anything else is returned immediately. The two retry
// counters are independent and each allows MaxAttempts retries, so the
// (MaxAttempts+1)-th failure of a class is returned to the caller unchanged.
//
// Example usage:
//
//	d := dispatch.New(manager,
//		dispatch.WithSink(observe.NewLogSink(logger)),
//		dispatch.WithMaxAttempts(5),
//	)
//
//	val, err := dispatch.Execute(ctx, d, "get", key, func(ctx context.Context) (string, error) {
//		h, err := manager.GetConnection(ctx)
//		if err != nil {
//			return "", err
//		}
//		return h.Client().Get(ctx, key).Result()
//	})
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/Combine-Capital/rcache/pkg/config"
	"github.com/Combine-Capital/rcache/pkg/conn"
	"github.com/Combine-Capital/rcache/pkg/errors"
	"github.com/Combine-Capital/rcache/pkg/logging"
	"github.com/Combine-Capital/rcache/pkg/observe"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// Reconnector is asked to consider a reconnect after a connection failure.
// *conn.Manager implements it.
type Reconnector interface {
	ForceReconnect() bool
}

// Classifier maps an error to a FailureKind.
type Classifier func(error) errors.FailureKind

// Dispatcher executes work with classification, bounded retry and sink events.
// It is safe for concurrent use and holds no per-call state.
type Dispatcher struct {
	reconnector      Reconnector
	sink             observe.Sink
	logger           *logging.Logger
	classify         Classifier
	maxAttempts      int
	operationTimeout time.Duration
	newBackOff       func() backoff.BackOff
	now              func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSink sets the observability sink. Default: observe.Nop.
func WithSink(s observe.Sink) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.sink = s
		}
	}
}

// WithMaxAttempts sets the number of retries allowed per failure class.
// Default: 5.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.maxAttempts = n
		}
	}
}

// WithClassifier replaces conn.Classify.
func WithClassifier(c Classifier) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.classify = c
		}
	}
}

// WithBackoff sets the pause between attempts. Default: no pause.
func WithBackoff(cfg BackoffConfig) Option {
	return func(d *Dispatcher) { d.newBackOff = cfg.newBackOff() }
}

// WithOperationTimeout bounds each attempt. An attempt that runs out of time
// while the caller's context is still live counts as a connection failure.
func WithOperationTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.operationTimeout = timeout }
}

// WithLogger sets the logger used for sink panics. Default: logging.Nop().
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a Dispatcher. A nil reconnector disables reconnect requests.
func New(r Reconnector, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reconnector: r,
		sink:        observe.Nop,
		logger:      logging.Nop(),
		classify:    conn.Classify,
		maxAttempts: config.DefaultMaxRetryAttempts,
		newBackOff:  BackoffConfig{}.newBackOff(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithComponent("dispatch")
	return d
}

// NewFromConfig creates a Dispatcher from cache configuration.
// config.NoRetries disables retries.
func NewFromConfig(cfg config.CacheConfig, r Reconnector, opts ...Option) *Dispatcher {
	config.ApplyCacheDefaults(&cfg)
	maxAttempts := cfg.MaxRetryAttempts
	if maxAttempts == config.NoRetries {
		maxAttempts = 0
	}
	base := []Option{
		WithMaxAttempts(maxAttempts),
		WithOperationTimeout(cfg.OperationTimeout),
		WithBackoff(BackoffConfig{InitialDelay: cfg.RetryDelay, MaxDelay: cfg.RetryMaxDelay}),
	}
	return New(r, append(base, opts...)...)
}

// MaxAttempts returns the number of retries allowed per failure class.
func (d *Dispatcher) MaxAttempts() int {
	return d.maxAttempts
}

// Do executes work that produces no value. See Execute.
func (d *Dispatcher) Do(ctx context.Context, operation string, correlation any, work func(context.Context) error) error {
	_, err := Execute(ctx, d, operation, correlation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, work(ctx)
	})
	return err
}

// Execute runs work until it succeeds, fails fatally, or exhausts the retry
// allowance of a failure class. The returned error is the one work returned.
//
// If ctx is done before a retry, the last error from work is returned.
func Execute[T any](ctx context.Context, d *Dispatcher, operation string, correlation any, work func(context.Context) (T, error)) (T, error) {
	var (
		zero            T
		connRetries     int
		disposedRetries int
		b               = d.newBackOff()
	)
	callID := uuid.NewString()
	b.Reset()

	for attempt := 1; ; attempt++ {
		ev := observe.Event{
			Operation:   operation,
			Correlation: correlation,
			CallID:      callID,
			Attempt:     attempt,
			Timestamp:   d.now(),
		}
		d.emit(func() { d.sink.OnStart(ctx, ev) })

		start := time.Now()
		val, timedOut, err := runAttempt(ctx, d.operationTimeout, work)
		ev.Duration = time.Since(start)

		if err == nil {
			ev.Success = true
			d.emit(func() { d.sink.OnSuccess(ctx, ev) })
			return val, nil
		}

		kind := d.classify(err)
		if timedOut {
			kind = errors.KindConnection
		}
		ev.Kind = kind
		ev.Err = err
		d.emit(func() { d.sink.OnFailure(ctx, ev) })

		switch kind {
		case errors.KindConnection:
			connRetries++
			if connRetries > d.maxAttempts {
				d.trace(ctx, observe.SeverityCritical, "%s: giving up after %d connection retries: %v", operation, d.maxAttempts, err)
				return zero, err
			}
			d.trace(ctx, observe.SeverityWarning, "%s: connection failure, retry %d of %d: %v", operation, connRetries, d.maxAttempts, err)
			if d.reconnector != nil {
				d.reconnector.ForceReconnect()
			}
		case errors.KindDisposed:
			disposedRetries++
			if disposedRetries > d.maxAttempts {
				d.trace(ctx, observe.SeverityCritical, "%s: giving up after %d disposed-handle retries: %v", operation, d.maxAttempts, err)
				return zero, err
			}
			d.trace(ctx, observe.SeverityWarning, "%s: handle disposed, retry %d of %d: %v", operation, disposedRetries, d.maxAttempts, err)
		default:
			return zero, err
		}

		if !wait(ctx, b) {
			return zero, err
		}
	}
}

// runAttempt invokes work once. timedOut reports that work failed with the
// per-attempt deadline while ctx itself was still live. Other errors returned
// after the deadline keep their own classification.
func runAttempt[T any](ctx context.Context, timeout time.Duration, work func(context.Context) (T, error)) (T, bool, error) {
	if timeout <= 0 {
		val, err := work(ctx)
		return val, false, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	val, err := work(attemptCtx)
	timedOut := errors.Is(err, context.DeadlineExceeded) &&
		attemptCtx.Err() == context.DeadlineExceeded &&
		ctx.Err() == nil
	return val, timedOut, err
}

// wait pauses before the next attempt. It returns false if ctx is done.
func wait(ctx context.Context, b backoff.BackOff) bool {
	if ctx.Err() != nil {
		return false
	}

	delay := b.NextBackOff()
	if delay <= 0 || delay == backoff.Stop {
		return true
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (d *Dispatcher) trace(ctx context.Context, severity observe.Severity, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.emit(func() { d.sink.Trace(ctx, msg, severity) })
}

// emit calls the sink, containing any panic so it cannot break the retry loop.
func (d *Dispatcher) emit(f func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Msg("Observability sink panicked")
		}
	}()
	f()
}
