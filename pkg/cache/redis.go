package cache

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/Combine-Capital/rcache/pkg/config"
	"github.com/Combine-Capital/rcache/pkg/conn"
	"github.com/Combine-Capital/rcache/pkg/dispatch"
	"github.com/Combine-Capital/rcache/pkg/errors"
	"github.com/Combine-Capital/rcache/pkg/logging"
	"github.com/Combine-Capital/rcache/pkg/observe"
	"github.com/Combine-Capital/rcache/pkg/tracing"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/Combine-Capital/rcache/pkg/cache"

// Connector supplies the shared connection handle. *conn.Manager implements it.
type Connector interface {
	GetConnection(ctx context.Context) (conn.Handle, error)
	Close() error
}

// Client implements Cache on top of a Connector and a Dispatcher.
type Client struct {
	conn       Connector
	dispatcher *dispatch.Dispatcher
	codec      Codec
	prefix     string
	defaultTTL time.Duration
	logger     *logging.Logger

	loads *singleflight.Group
	bg    *background

	fireAndForget     bool
	backgroundTimeout time.Duration
}

// ErrClientClosed is returned by fire-and-forget calls issued after Close.
var ErrClientClosed = stderrors.New("cache client closed")

// background tracks fire-and-forget calls. It is shared by every view of a
// Client so Close drains all of them.
type background struct {
	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// start registers a background call. It reports false once Close has begun.
func (b *background) start() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.pending.Add(1)
	return true
}

// drain rejects new calls and waits for the running ones.
func (b *background) drain() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.pending.Wait()
}

// Option configures a Client.
type Option func(*Client)

// WithCodec sets the codec for typed values. Default: JSONCodec.
func WithCodec(codec Codec) Option {
	return func(c *Client) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithKeyPrefix prepends prefix and a colon to every key.
func WithKeyPrefix(prefix string) Option {
	return func(c *Client) { c.prefix = prefix }
}

// WithDefaultTTL sets the TTL used by Set and GetOrLoad when they are given 0.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Client) { c.defaultTTL = ttl }
}

// WithLogger sets the logger. Default: logging.Nop().
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBackgroundTimeout bounds fire-and-forget calls and the shared loader run
// by GetOrLoad. Default: 30 seconds.
func WithBackgroundTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.backgroundTimeout = timeout }
}

// New creates a Client.
func New(connector Connector, d *dispatch.Dispatcher, opts ...Option) *Client {
	c := &Client{
		conn:              connector,
		dispatcher:        d,
		codec:             JSONCodec{},
		logger:            logging.Nop(),
		loads:             &singleflight.Group{},
		bg:                &background{},
		backgroundTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("cache")
	return c
}

// NewFromConfig wires a conn.Manager, a dispatch.Dispatcher reporting to sink,
// and a Client from cache configuration. The connection is opened on first use.
func NewFromConfig(cfg config.CacheConfig, logger *logging.Logger, sink observe.Sink, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	config.ApplyCacheDefaults(&cfg)

	manager, err := conn.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	d := dispatch.NewFromConfig(cfg, manager, dispatch.WithSink(sink), dispatch.WithLogger(logger))

	base := []Option{
		WithKeyPrefix(cfg.KeyPrefix),
		WithDefaultTTL(cfg.DefaultTTL),
		WithLogger(logger),
	}
	return New(manager, d, append(base, opts...)...), nil
}

// FireAndForget returns a view of the client whose calls are issued in the
// background. They return the zero value and a nil error immediately, and
// failures are only logged. Validation errors are still returned, and so is
// ErrClientClosed once Close has begun.
func (c *Client) FireAndForget() *Client {
	cp := *c
	cp.fireAndForget = true
	return &cp
}

// run executes one cache command through the dispatcher inside a client span.
func run[T any](ctx context.Context, c *Client, op, key string, work func(context.Context, redis.UniversalClient) (T, error)) (T, error) {
	ctx, span := tracing.StartSpanWithTracer(ctx, tracerName, "cache."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.CacheAttributes("redis", op, key)...),
	)
	defer span.End()

	val, err := dispatch.Execute(ctx, c.dispatcher, op, key, func(ctx context.Context) (T, error) {
		h, err := c.conn.GetConnection(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		return work(ctx, h.Client())
	})
	if op == "get" && (err == nil || errors.IsNotFound(err)) {
		span.SetAttributes(tracing.CacheHit(err == nil))
	}
	if err != nil && !errors.IsNotFound(err) {
		tracing.SetSpanError(ctx, err)
	}
	return val, err
}

// exec runs work, or schedules it in the background in fire-and-forget mode.
func exec[T any](ctx context.Context, c *Client, op, key string, work func(context.Context, redis.UniversalClient) (T, error)) (T, error) {
	if !c.fireAndForget {
		return run(ctx, c, op, key, work)
	}

	var zero T
	if !c.bg.start() {
		return zero, ErrClientClosed
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		defer c.bg.pending.Done()
		ctx, cancel := context.WithTimeout(bg, c.backgroundTimeout)
		defer cancel()
		if _, err := run(ctx, c, op, key, work); err != nil {
			c.logger.Warn().
				Str(logging.Operation, op).
				Str("key", key).
				Err(err).
				Msg("Fire-and-forget cache call failed")
		}
	}()

	return zero, nil
}

// GetString returns the string stored at key.
func (c *Client) GetString(ctx context.Context, key string) (string, error) {
	k, err := c.key(key)
	if err != nil {
		return "", err
	}
	return exec(ctx, c, "get", k, func(ctx context.Context, rdb redis.UniversalClient) (string, error) {
		val, err := rdb.Get(ctx, k).Result()
		if stderrors.Is(err, redis.Nil) {
			return "", errors.NewNotFound("cache key", k)
		}
		return val, err
	})
}

// SetString stores value at key. A TTL of 0 means no expiration.
func (c *Client) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	k, err := c.key(key)
	if err != nil {
		return err
	}
	_, err = exec(ctx, c, "set", k, func(ctx context.Context, rdb redis.UniversalClient) (struct{}, error) {
		return struct{}{}, rdb.Set(ctx, k, value, ttl).Err()
	})
	return err
}

// Add stores value only if key does not exist.
func (c *Client) Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	k, err := c.key(key)
	if err != nil {
		return false, err
	}
	return exec(ctx, c, "add", k, func(ctx context.Context, rdb redis.UniversalClient) (bool, error) {
		return rdb.SetNX(ctx, k, value, ttl).Result()
	})
}

// Delete removes key and reports whether it existed.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	k, err := c.key(key)
	if err != nil {
		return false, err
	}
	return exec(ctx, c, "delete", k, func(ctx context.Context, rdb redis.UniversalClient) (bool, error) {
		n, err := rdb.Del(ctx, k).Result()
		return n > 0, err
	})
}

// Exists reports whether key exists.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	k, err := c.key(key)
	if err != nil {
		return false, err
	}
	return exec(ctx, c, "exists", k, func(ctx context.Context, rdb redis.UniversalClient) (bool, error) {
		n, err := rdb.Exists(ctx, k).Result()
		return n > 0, err
	})
}

// Increment adds delta to the integer at key. A missing key counts as 0.
func (c *Client) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	k, err := c.key(key)
	if err != nil {
		return 0, err
	}
	return exec(ctx, c, "increment", k, func(ctx context.Context, rdb redis.UniversalClient) (int64, error) {
		return rdb.IncrBy(ctx, k, delta).Result()
	})
}

// Decrement subtracts delta from the integer at key. A missing key counts as 0.
func (c *Client) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	k, err := c.key(key)
	if err != nil {
		return 0, err
	}
	return exec(ctx, c, "decrement", k, func(ctx context.Context, rdb redis.UniversalClient) (int64, error) {
		return rdb.DecrBy(ctx, k, delta).Result()
	})
}

// Get decodes the value at key into dest. Fire-and-forget mode does not apply.
func (c *Client) Get(ctx context.Context, key string, dest any) error {
	k, err := c.key(key)
	if err != nil {
		return err
	}
	data, err := c.getBytes(ctx, k)
	if err != nil {
		return err
	}
	if err := c.codec.Unmarshal(data, dest); err != nil {
		return errors.NewPermanent("failed to decode cached value", err)
	}
	return nil
}

func (c *Client) getBytes(ctx context.Context, k string) ([]byte, error) {
	return run(ctx, c, "get", k, func(ctx context.Context, rdb redis.UniversalClient) ([]byte, error) {
		data, err := rdb.Get(ctx, k).Bytes()
		if stderrors.Is(err, redis.Nil) {
			return nil, errors.NewNotFound("cache key", k)
		}
		return data, err
	})
}

// Set encodes value and stores it at key. A TTL of 0 uses the default TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	k, err := c.key(key)
	if err != nil {
		return err
	}
	data, err := c.codec.Marshal(value)
	if err != nil {
		return errors.NewPermanent("failed to encode value", err)
	}
	return c.setBytes(ctx, k, data, ttl)
}

func (c *Client) setBytes(ctx context.Context, k string, data []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	_, err := exec(ctx, c, "set", k, func(ctx context.Context, rdb redis.UniversalClient) (struct{}, error) {
		return struct{}{}, rdb.Set(ctx, k, data, ttl).Err()
	})
	return err
}

// GetOrLoad implements the cache-aside pattern. On a miss the loader runs at
// most once per key across concurrent callers and its result is stored with
// ttl. A failure to store the loaded value is logged and not returned.
//
// The shared loader is not canceled with any single caller. It keeps the
// first caller's values, is bounded by the background timeout, and each caller
// stops waiting when its own ctx is done.
func (c *Client) GetOrLoad(ctx context.Context, key string, dest any, ttl time.Duration, loader func(context.Context) (any, error)) error {
	k, err := c.key(key)
	if err != nil {
		return err
	}

	data, err := c.getBytes(ctx, k)
	if err == nil {
		if err := c.codec.Unmarshal(data, dest); err != nil {
			return errors.NewPermanent("failed to decode cached value", err)
		}
		return nil
	}
	if !errors.IsNotFound(err) {
		return err
	}

	ch := c.loads.DoChan(k, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.backgroundTimeout)
		defer cancel()

		loaded, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := c.codec.Marshal(loaded)
		if err != nil {
			return nil, errors.NewPermanent("failed to encode loaded value", err)
		}
		if err := c.setBytes(ctx, k, encoded, ttl); err != nil {
			c.logger.Warn().Str("key", k).Err(err).Msg("Failed to cache loaded value")
		}
		return encoded, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	if res.Err != nil {
		return res.Err
	}

	if err := c.codec.Unmarshal(res.Val.([]byte), dest); err != nil {
		return errors.NewPermanent("failed to decode loaded value", err)
	}
	return nil
}

// CheckHealth verifies connectivity using PING through the dispatcher.
func (c *Client) CheckHealth(ctx context.Context) error {
	_, err := run(ctx, c, "ping", "", func(ctx context.Context, rdb redis.UniversalClient) (struct{}, error) {
		return struct{}{}, rdb.Ping(ctx).Err()
	})
	if err != nil {
		return errors.NewTemporary("cache health check failed", err)
	}
	return nil
}

// Check implements health.Checker.
//
// Example usage:
//
//	h := health.New()
//	h.RegisterChecker("cache", client)
func (c *Client) Check(ctx context.Context) error {
	return c.CheckHealth(ctx)
}

// Close rejects new fire-and-forget calls, waits for pending ones and closes
// the connection.
func (c *Client) Close() error {
	c.bg.drain()
	return c.conn.Close()
}
