package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envKeys lists every key that may be supplied through the environment alone.
// viper only maps environment variables onto keys it already knows about.
var envKeys = []string{
	"service.name",
	"service.version",
	"service.env",
	"cache.connection_string",
	"cache.min_reconnect_interval",
	"cache.reconnect_error_threshold",
	"cache.max_retry_attempts",
	"cache.close_timeout",
	"cache.operation_timeout",
	"cache.retry_delay",
	"cache.retry_max_delay",
	"cache.default_ttl",
	"cache.key_prefix",
	"cache.dial_timeout",
	"cache.read_timeout",
	"cache.write_timeout",
	"cache.pool_size",
	"log.level",
	"log.format",
	"log.output",
	"metrics.enabled",
	"metrics.port",
	"metrics.path",
	"metrics.namespace",
	"tracing.enabled",
	"tracing.endpoint",
	"tracing.sample_rate",
	"tracing.service_name",
	"tracing.environment",
	"tracing.export_mode",
	"tracing.insecure",
	"tracing.batch_timeout",
	"health.check_timeout",
	"health.cache_ttl",
}

// Load loads configuration from a file and environment variables.
// The prefix parameter is used for environment variable names (e.g., "RCACHE" -> RCACHE_CACHE_CONNECTION_STRING).
// If configPath is empty, only environment variables will be used.
func Load(configPath, envPrefix string) (*Config, error) {
	v := viper.New()

	// Configure environment variable handling
	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env key %s: %w", key, err)
		}
	}

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration and panics on error.
// This is useful in main() where configuration errors should be fatal.
func MustLoad(configPath, envPrefix string) *Config {
	cfg, err := Load(configPath, envPrefix)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration only from environment variables (no config file).
func LoadFromEnv(envPrefix string) (*Config, error) {
	return Load("", envPrefix)
}

// MustLoadFromEnv loads configuration from environment variables and panics on error.
func MustLoadFromEnv(envPrefix string) *Config {
	return MustLoad("", envPrefix)
}
