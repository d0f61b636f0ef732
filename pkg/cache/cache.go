// Package cache provides a resilient Redis client. Every call obtains the
// shared connection from a conn.Manager and runs inside a dispatch.Dispatcher,
// so transient connection failures are retried and may trigger a reconnect.
//
// Strings and counters are stored as-is. Typed values go through a Codec
// (JSON by default, protobuf via ProtoCodec).
//
// Example usage:
//
//	c, err := cache.NewFromConfig(cfg.Cache, logger, sink)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	err = c.SetString(ctx, "greeting", "hello", time.Minute)
//	n, err := c.Increment(ctx, "visits", 1)
//
//	// Typed values
//	var user User
//	err = c.GetOrLoad(ctx, cache.Key("user", userID), &user, 5*time.Minute, func(ctx context.Context) (any, error) {
//	    return db.GetUser(ctx, userID)
//	})
//
//	// Writes that do not wait for the server
//	_ = c.FireAndForget().Delete(ctx, "stale")
package cache

import (
	"context"
	"time"
)

// Cache is the set of operations offered by Client.
// All methods respect context cancellation.
type Cache interface {
	// GetString returns the string stored at key, or a NotFoundError.
	GetString(ctx context.Context, key string) (string, error)

	// SetString stores value at key. A TTL of 0 means no expiration.
	SetString(ctx context.Context, key, value string, ttl time.Duration) error

	// Add stores value only if key does not exist. It reports whether the value was stored.
	Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key. It reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists reports whether key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Increment adds delta to the integer at key and returns the new value.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Decrement subtracts delta from the integer at key and returns the new value.
	Decrement(ctx context.Context, key string, delta int64) (int64, error)

	// Get decodes the value at key into dest using the client's codec.
	Get(ctx context.Context, key string, dest any) error

	// Set encodes value with the client's codec and stores it. A TTL of 0
	// uses the client's default TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// GetOrLoad reads key into dest, or calls loader on a miss and caches the result.
	// Concurrent misses for the same key share one loader call.
	GetOrLoad(ctx context.Context, key string, dest any, ttl time.Duration, loader func(context.Context) (any, error)) error

	// CheckHealth verifies connectivity with PING.
	CheckHealth(ctx context.Context) error

	// Close waits for background writes and closes the connection.
	Close() error
}
