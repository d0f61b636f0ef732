package config

import (
	"fmt"
	"strings"
	"time"
)

// Default resilience settings.
const (
	DefaultMinReconnectInterval    = 60 * time.Second
	DefaultReconnectErrorThreshold = 30 * time.Second
	DefaultMaxRetryAttempts        = 5
	DefaultCloseTimeout            = 5 * time.Second
)

// NoRetries as MaxRetryAttempts returns the first failure of every class.
const NoRetries = -1

// Validate validates the configuration and returns an error if any required fields are missing
// or have invalid values.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Cache.ConnectionString) == "" {
		return fmt.Errorf("cache.connection_string is required")
	}
	if err := ValidateCache(cfg.Cache); err != nil {
		return err
	}

	// Validate Tracing config (if enabled)
	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
		}
		if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0")
		}
		if cfg.Tracing.ExportMode != "grpc" && cfg.Tracing.ExportMode != "http" {
			return fmt.Errorf("tracing.export_mode must be \"grpc\" or \"http\"")
		}
	}

	// Validate Metrics config (if enabled)
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port == 0 {
			return fmt.Errorf("metrics.port is required when metrics are enabled")
		}
	}

	return nil
}

// ValidateCache checks the resilience settings. A blank connection string is
// allowed here because it may be supplied later at runtime.
func ValidateCache(c CacheConfig) error {
	if c.MinReconnectInterval < 0 {
		return fmt.Errorf("cache.min_reconnect_interval must not be negative")
	}
	if c.ReconnectErrorThreshold < 0 {
		return fmt.Errorf("cache.reconnect_error_threshold must not be negative")
	}
	if c.MaxRetryAttempts < NoRetries {
		return fmt.Errorf("cache.max_retry_attempts must be >= %d", NoRetries)
	}
	if c.CloseTimeout < 0 || c.OperationTimeout < 0 {
		return fmt.Errorf("cache timeouts must not be negative")
	}
	if c.RetryDelay < 0 || c.RetryMaxDelay < 0 {
		return fmt.Errorf("cache retry delays must not be negative")
	}
	if c.RetryDelay > 0 && c.RetryMaxDelay > 0 && c.RetryMaxDelay < c.RetryDelay {
		return fmt.Errorf("cache.retry_max_delay must be >= cache.retry_delay")
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("cache.pool_size must not be negative")
	}
	return nil
}

// applyDefaults applies default values to the configuration where values are not set.
func applyDefaults(cfg *Config) {
	// Service defaults
	if cfg.Service.Env == "" {
		cfg.Service.Env = "development"
	}

	ApplyCacheDefaults(&cfg.Cache)

	// Log defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	// Metrics defaults
	if cfg.Metrics.Port == 0 && cfg.Metrics.Enabled {
		cfg.Metrics.Port = 9090
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		if cfg.Service.Name != "" {
			cfg.Metrics.Namespace = sanitizeNamespace(cfg.Service.Name)
		} else {
			cfg.Metrics.Namespace = "rcache"
		}
	}

	// Tracing defaults
	if cfg.Tracing.SampleRate == 0 && cfg.Tracing.Enabled {
		cfg.Tracing.SampleRate = 0.1 // 10% sampling by default
	}
	if cfg.Tracing.ServiceName == "" {
		if cfg.Service.Name != "" {
			cfg.Tracing.ServiceName = cfg.Service.Name
		} else {
			cfg.Tracing.ServiceName = "rcache"
		}
	}
	if cfg.Tracing.Environment == "" {
		cfg.Tracing.Environment = cfg.Service.Env
	}
	if cfg.Tracing.ExportMode == "" {
		cfg.Tracing.ExportMode = "grpc"
	}
	if cfg.Tracing.BatchTimeout == 0 {
		cfg.Tracing.BatchTimeout = 5 * time.Second
	}

	// Health defaults
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = 5 * time.Second
	}
	if cfg.Health.CacheTTL == 0 {
		cfg.Health.CacheTTL = time.Second
	}
}

// ApplyCacheDefaults fills unset resilience settings with their defaults.
// NoRetries is kept as is, so applying defaults twice is harmless.
func ApplyCacheDefaults(c *CacheConfig) {
	if c.MinReconnectInterval == 0 {
		c.MinReconnectInterval = DefaultMinReconnectInterval
	}
	if c.ReconnectErrorThreshold == 0 {
		c.ReconnectErrorThreshold = DefaultReconnectErrorThreshold
	}
	if c.MaxRetryAttempts == 0 {
		c.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = DefaultCloseTimeout
	}
	if c.RetryDelay > 0 && c.RetryMaxDelay == 0 {
		c.RetryMaxDelay = 2 * time.Second
	}
	if c.DefaultTTL == 0 {
		c.DefaultTTL = 5 * time.Minute
	}
}

// sanitizeNamespace turns a service name into a valid Prometheus namespace.
func sanitizeNamespace(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
