// Package config provides configuration management for the rcache client.
// It supports loading configuration from YAML files, JSON files, and environment variables
// with automatic validation and default value application.
//
// Example usage:
//
//	cfg, err := config.Load("config.yaml", "RCACHE")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Or panic on error:
//	cfg := config.MustLoad("config.yaml", "RCACHE")
package config

import (
	"time"
)

// Config represents the complete configuration for a service using rcache.
type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Health  HealthConfig  `mapstructure:"health"`
}

// ServiceConfig contains general service information.
type ServiceConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"` // development, staging, production
}

// CacheConfig contains the Redis connection and resilience settings.
type CacheConfig struct {
	// ConnectionString is a Redis URL, e.g. "redis://:secret@localhost:6379/0".
	// It is required before the first cache call.
	ConnectionString string `mapstructure:"connection_string"`

	// MinReconnectInterval is the minimum time between two forced reconnects.
	// Default: 60 seconds.
	MinReconnectInterval time.Duration `mapstructure:"min_reconnect_interval"`

	// ReconnectErrorThreshold is how long connection errors must persist, and how
	// recent the latest one must be, before a reconnect is forced.
	// Default: 30 seconds.
	ReconnectErrorThreshold time.Duration `mapstructure:"reconnect_error_threshold"`

	// MaxRetryAttempts is the number of retries allowed per failure class
	// before the error is returned to the caller. 0 selects the default;
	// NoRetries (-1) disables retries.
	// Default: 5.
	MaxRetryAttempts int `mapstructure:"max_retry_attempts"`

	// CloseTimeout bounds how long closing a replaced connection may block.
	// Default: 5 seconds.
	CloseTimeout time.Duration `mapstructure:"close_timeout"`

	// OperationTimeout is applied to each attempt. 0 means no per-attempt timeout.
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`

	// RetryDelay is the initial pause between attempts. 0 retries immediately.
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// RetryMaxDelay caps the exponential pause between attempts.
	// Default: 2 seconds when RetryDelay is set.
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay"`

	// DefaultTTL is used by typed Set calls that pass a zero TTL.
	// Default: 5 minutes.
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	// KeyPrefix is prepended to every key, separated by a colon.
	KeyPrefix string `mapstructure:"key_prefix"`

	// Driver overrides. Zero values keep whatever the connection string or
	// the go-redis defaults specify.
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
}

// LogConfig contains structured logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Port      int    `mapstructure:"port"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"` // Metric prefix
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Endpoint     string        `mapstructure:"endpoint"`      // OTLP endpoint (e.g., "localhost:4317")
	SampleRate   float64       `mapstructure:"sample_rate"`   // 0.0 to 1.0
	ServiceName  string        `mapstructure:"service_name"`  // Override service name for traces
	Environment  string        `mapstructure:"environment"`   // Environment tag
	ExportMode   string        `mapstructure:"export_mode"`   // "grpc" or "http"
	Insecure     bool          `mapstructure:"insecure"`      // Use insecure connection
	BatchTimeout time.Duration `mapstructure:"batch_timeout"` // Batch export timeout
}

// HealthConfig contains health check configuration.
type HealthConfig struct {
	CheckTimeout time.Duration `mapstructure:"check_timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}
