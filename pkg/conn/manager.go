// Package conn owns the shared connection to the cache server.
//
// A Manager holds exactly one active Handle, dialed lazily on first use, and
// decides under concurrent failure pressure whether to replace it. Reconnects
// are debounced two ways: never more often than MinReconnectInterval, and only
// after connection errors have persisted for ReconnectErrorThreshold while the
// latest error is still recent.
//
// Example usage:
//
//	m := conn.NewManager(conn.WithLogger(logger))
//	if err := m.InitializeConnectionString("redis://localhost:6379/0"); err != nil {
//	    return err
//	}
//	h, err := m.GetConnection(ctx)
//	if err != nil {
//	    return err
//	}
//	val, err := h.Client().Get(ctx, "key").Result()
package conn

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Combine-Capital/rcache/pkg/config"
	"github.com/Combine-Capital/rcache/pkg/errors"
	"github.com/Combine-Capital/rcache/pkg/logging"
)

// ErrManagerClosed is returned by GetConnection after Close.
var ErrManagerClosed = stderrors.New("connection manager closed")

// Manager owns the shared connection handle and its reconnect policy.
// It is safe for concurrent use.
type Manager struct {
	dialer                  Dialer
	logger                  *logging.Logger
	now                     func() time.Time
	minReconnectInterval    time.Duration
	reconnectErrorThreshold time.Duration
	closeTimeout            time.Duration
	onReconnect             func()

	connString    atomic.Pointer[string]
	current       atomic.Pointer[lazyHandle]
	lastReconnect atomic.Pointer[time.Time]
	reconnects    atomic.Int64
	closed        atomic.Bool

	// mu serializes reconnect decisions and guards the error window.
	mu            sync.Mutex
	firstError    time.Time
	previousError time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer sets the dialer used to open handles. Default: a RedisDialer with
// driver defaults.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		if d != nil {
			m.dialer = d
		}
	}
}

// WithLogger sets the logger. Default: logging.Nop().
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces time.Now. Used by tests to drive the reconnect window.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMinReconnectInterval sets the minimum time between forced reconnects.
func WithMinReconnectInterval(d time.Duration) Option {
	return func(m *Manager) { m.minReconnectInterval = d }
}

// WithReconnectErrorThreshold sets how long errors must persist before a reconnect.
func WithReconnectErrorThreshold(d time.Duration) Option {
	return func(m *Manager) { m.reconnectErrorThreshold = d }
}

// WithCloseTimeout bounds how long closing a replaced handle may block.
func WithCloseTimeout(d time.Duration) Option {
	return func(m *Manager) { m.closeTimeout = d }
}

// WithOnReconnect registers a callback invoked after every forced reconnect.
func WithOnReconnect(fn func()) Option {
	return func(m *Manager) { m.onReconnect = fn }
}

// NewManager creates a Manager. No connection is opened until GetConnection.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		dialer:                  &RedisDialer{},
		logger:                  logging.Nop(),
		now:                     time.Now,
		minReconnectInterval:    config.DefaultMinReconnectInterval,
		reconnectErrorThreshold: config.DefaultReconnectErrorThreshold,
		closeTimeout:            config.DefaultCloseTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("conn")
	m.current.Store(newLazyHandle())
	return m
}

// NewFromConfig creates a Manager from cache configuration. When
// cfg.ConnectionString is set it is installed immediately.
func NewFromConfig(cfg config.CacheConfig, logger *logging.Logger, opts ...Option) (*Manager, error) {
	if err := config.ValidateCache(cfg); err != nil {
		return nil, errors.NewConfiguration("cache", err.Error())
	}
	config.ApplyCacheDefaults(&cfg)

	base := []Option{
		WithDialer(NewRedisDialer(cfg)),
		WithLogger(logger),
		WithMinReconnectInterval(cfg.MinReconnectInterval),
		WithReconnectErrorThreshold(cfg.ReconnectErrorThreshold),
		WithCloseTimeout(cfg.CloseTimeout),
	}
	m := NewManager(append(base, opts...)...)

	if cfg.ConnectionString != "" {
		if err := m.InitializeConnectionString(cfg.ConnectionString); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// InitializeConnectionString sets the connection string. It must be called
// before the first GetConnection. Setting the same value again is a no-op;
// a different value is rejected.
func (m *Manager) InitializeConnectionString(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.NewConfiguration("connection_string", "must not be blank")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur := m.connString.Load(); cur != nil {
		if *cur == s {
			return nil
		}
		return errors.NewConfiguration("connection_string", "already initialized with a different value")
	}
	m.connString.Store(&s)
	return nil
}

// GetConnection returns the active handle, dialing it on first access.
// Dial failures are not cached, so the next call dials again. Anything other
// than a configuration error is returned as a ConnectionError.
func (m *Manager) GetConnection(ctx context.Context) (Handle, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	cs := m.connString.Load()
	if cs == nil {
		return nil, errors.NewConfiguration("connection_string", "not initialized")
	}

	return m.current.Load().get(ctx, func(ctx context.Context) (Handle, error) {
		return m.dial(ctx, *cs)
	})
}

func (m *Manager) dial(ctx context.Context, connString string) (Handle, error) {
	start := m.now()
	h, err := m.dialer.Dial(ctx, connString)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to open cache connection")
		if ctx.Err() != nil || errors.IsConfiguration(err) || errors.IsConnection(err) {
			return nil, err
		}
		return nil, errors.NewConnection("failed to open cache connection", err)
	}
	m.logger.Info().
		Float64(logging.Duration, float64(m.now().Sub(start))/float64(time.Millisecond)).
		Msg("Cache connection opened")
	return h, nil
}

// ForceReconnect reports a connection failure and replaces the handle if the
// failures justify it. It returns true if this call performed the reconnect.
//
// A call within MinReconnectInterval of the last reconnect returns without
// taking the lock. The first failure after a reconnect only opens the error
// window. A reconnect happens once the window has been open for at least
// ReconnectErrorThreshold and the previous failure is no older than that.
// The window is reset only by a reconnect.
func (m *Manager) ForceReconnect() bool {
	if m.closed.Load() || m.tooSoon(m.now()) {
		return false
	}

	m.mu.Lock()
	now := m.now()
	if m.closed.Load() || m.tooSoon(now) {
		m.mu.Unlock()
		return false
	}

	if m.firstError.IsZero() {
		m.firstError = now
		m.previousError = now
		m.mu.Unlock()
		m.logger.Debug().Msg("Connection error window opened")
		return false
	}

	sinceFirst := now.Sub(m.firstError)
	sinceLatest := now.Sub(m.previousError)
	m.previousError = now

	if sinceFirst < m.reconnectErrorThreshold || sinceLatest > m.reconnectErrorThreshold {
		m.mu.Unlock()
		return false
	}

	m.firstError = time.Time{}
	m.previousError = time.Time{}
	old := m.current.Swap(newLazyHandle())
	m.lastReconnect.Store(&now)
	count := m.reconnects.Add(1)
	m.mu.Unlock()

	m.logger.Warn().
		Int64("reconnects", count).
		Float64("error_window_ms", float64(sinceFirst)/float64(time.Millisecond)).
		Msg("Forcing cache reconnect")

	m.closeRetired(old)
	m.notifyReconnect()
	return true
}

func (m *Manager) tooSoon(now time.Time) bool {
	last := m.lastReconnect.Load()
	return last != nil && now.Sub(*last) < m.minReconnectInterval
}

// closeRetired closes a replaced handle. Close errors and panics are logged
// and swallowed, and the wait is bounded by the close timeout.
func (m *Manager) closeRetired(old *lazyHandle) {
	if _, ok := old.retire(); !ok {
		return
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic while closing connection: %v", r)
			}
		}()
		done <- old.close()
	}()

	timer := time.NewTimer(m.closeTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			m.logger.Debug().Err(err).Msg("Error closing replaced cache connection")
		}
	case <-timer.C:
		m.logger.Warn().Dur("timeout", m.closeTimeout).Msg("Timed out closing replaced cache connection")
	}
}

func (m *Manager) notifyReconnect() {
	if m.onReconnect == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("Reconnect callback panicked")
		}
	}()
	m.onReconnect()
}

// Close closes the active handle. Later GetConnection calls fail with
// ErrManagerClosed.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.mu.Lock()
	lh := m.current.Load()
	m.mu.Unlock()

	if _, ok := lh.retire(); !ok {
		return nil
	}
	if err := lh.close(); err != nil {
		return errors.Wrap(err, "failed to close cache connection")
	}
	return nil
}

// Stats is a snapshot of the manager's reconnect state.
type Stats struct {
	Reconnects      int64
	LastReconnect   time.Time
	ErrorWindowOpen bool
	FirstError      time.Time
	Connected       bool
}

// Stats returns a snapshot of the reconnect state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Reconnects:      m.reconnects.Load(),
		ErrorWindowOpen: !m.firstError.IsZero(),
		FirstError:      m.firstError,
	}
	if last := m.lastReconnect.Load(); last != nil {
		s.LastReconnect = *last
	}
	_, s.Connected = m.current.Load().loaded()
	return s
}
