package conn

import (
	"context"
	"time"

	"github.com/Combine-Capital/rcache/pkg/config"
	"github.com/Combine-Capital/rcache/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisDialer dials a go-redis client from a Redis URL and verifies it with PING.
// Zero-valued fields keep whatever the URL or the go-redis defaults specify.
type RedisDialer struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// NewRedisDialer creates a RedisDialer from the driver overrides in cfg.
func NewRedisDialer(cfg config.CacheConfig) *RedisDialer {
	return &RedisDialer{
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	}
}

// Dial implements Dialer.
//
// A connection string that cannot be parsed is a ConfigurationError. A server
// that does not answer PING yields a ConnectionError.
func (d *RedisDialer) Dial(ctx context.Context, connString string) (Handle, error) {
	opts, err := redis.ParseURL(connString)
	if err != nil {
		return nil, errors.NewConfiguration("connection_string", err.Error())
	}

	if d.DialTimeout > 0 {
		opts.DialTimeout = d.DialTimeout
	}
	if d.ReadTimeout > 0 {
		opts.ReadTimeout = d.ReadTimeout
	}
	if d.WriteTimeout > 0 {
		opts.WriteTimeout = d.WriteTimeout
	}
	if d.PoolSize > 0 {
		opts.PoolSize = d.PoolSize
	}
	// Retries are owned by the dispatcher.
	opts.MaxRetries = -1

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.NewConnection("failed to connect to Redis", err)
	}

	return &redisHandle{client: client}, nil
}

type redisHandle struct {
	client *redis.Client
}

func (h *redisHandle) Client() redis.UniversalClient {
	return h.client
}

func (h *redisHandle) Close() error {
	return h.client.Close()
}
