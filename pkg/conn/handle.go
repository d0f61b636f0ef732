package conn

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Combine-Capital/rcache/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Handle is one logical connection to the cache server.
type Handle interface {
	// Client returns the driver client used to issue commands.
	Client() redis.UniversalClient

	// Close releases the connection. Calls in flight on the client fail
	// with redis.ErrClosed.
	Close() error
}

// Dialer opens a Handle for a connection string.
type Dialer interface {
	Dial(ctx context.Context, connString string) (Handle, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, connString string) (Handle, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, connString string) (Handle, error) {
	return f(ctx, connString)
}

// lazyHandle dials on first use. Once retired by a reconnect it never dials
// again, and a dial that was already in flight closes its own result.
type lazyHandle struct {
	ready   atomic.Bool
	retired atomic.Bool

	mu     sync.Mutex
	handle Handle

	closeOnce sync.Once
}

func newLazyHandle() *lazyHandle {
	return &lazyHandle{}
}

// get returns the handle, dialing it if needed. The ready check is lock-free.
func (l *lazyHandle) get(ctx context.Context, dial func(context.Context) (Handle, error)) (Handle, error) {
	if l.ready.Load() {
		return l.handle, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ready.Load() {
		return l.handle, nil
	}
	if l.retired.Load() {
		return nil, errors.NewDisposed(nil)
	}

	h, err := dial(ctx)
	if err != nil {
		return nil, err
	}

	l.handle = h
	l.ready.Store(true)

	if l.retired.Load() {
		// retire ran while we were dialing and saw nothing to close
		l.close()
		return nil, errors.NewDisposed(nil)
	}
	return h, nil
}

// loaded returns the handle if it has been dialed.
func (l *lazyHandle) loaded() (Handle, bool) {
	if l.ready.Load() {
		return l.handle, true
	}
	return nil, false
}

// retire marks the handle as replaced and returns it if it was dialed.
func (l *lazyHandle) retire() (Handle, bool) {
	l.retired.Store(true)
	return l.loaded()
}

// close closes the dialed handle at most once.
func (l *lazyHandle) close() error {
	var err error
	l.closeOnce.Do(func() {
		if h, ok := l.loaded(); ok {
			err = h.Close()
		}
	})
	return err
}
