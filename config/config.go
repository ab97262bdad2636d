// Package config loads process configuration for a swarm from defaults, an
// optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/salesswarm/cache"
	"github.com/hupe1980/salesswarm/dispatch"
	"github.com/hupe1980/salesswarm/logging"
)

// EnvPrefix prefixes every environment variable except the Redis ones.
const EnvPrefix = "SALESSWARM"

// Config is the complete process configuration.
type Config struct {
	Cache     CacheConfig     `mapstructure:"cache"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// CacheConfig selects and tunes the durable cache.
type CacheConfig struct {
	// URL selects the backend: redis://, rediss:// or sqlite://path. Empty
	// runs memory-only. Also read from REDIS_URL.
	URL string `mapstructure:"url"`
	// Password overrides the URL password. Also read from REDIS_PASSWORD.
	Password        string        `mapstructure:"password"`
	Prefix          string        `mapstructure:"prefix"`
	TTL             time.Duration `mapstructure:"ttl"`
	CompanyIntelTTL time.Duration `mapstructure:"company_intel_ttl"`
}

// DispatchConfig sizes the delivery pool.
type DispatchConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig controls OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	// Endpoint is the OTLP/HTTP collector URL.
	Endpoint string `mapstructure:"endpoint"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			URL:             "redis://localhost:6379",
			Prefix:          cache.DefaultPrefix,
			TTL:             cache.DefaultTTL,
			CompanyIntelTTL: cache.CompanyIntelTTL,
		},
		Dispatch: DispatchConfig{
			Workers:   dispatch.DefaultConfig.Workers,
			QueueSize: dispatch.DefaultConfig.QueueSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "salesswarm",
			Endpoint:    "http://localhost:4318",
		},
	}
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("cache.url", defaults.Cache.URL)
	v.SetDefault("cache.password", defaults.Cache.Password)
	v.SetDefault("cache.prefix", defaults.Cache.Prefix)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)
	v.SetDefault("cache.company_intel_ttl", defaults.Cache.CompanyIntelTTL)

	v.SetDefault("dispatch.workers", defaults.Dispatch.Workers)
	v.SetDefault("dispatch.queue_size", defaults.Dispatch.QueueSize)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("telemetry.enabled", defaults.Telemetry.Enabled)
	v.SetDefault("telemetry.service_name", defaults.Telemetry.ServiceName)
	v.SetDefault("telemetry.endpoint", defaults.Telemetry.Endpoint)
}

// BindEnv maps SALESSWARM_* variables onto keys (cache.ttl becomes
// SALESSWARM_CACHE_TTL) and accepts REDIS_URL and REDIS_PASSWORD for the
// cache connection.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("cache.url", EnvPrefix+"_CACHE_URL", "REDIS_URL")
	_ = v.BindEnv("cache.password", EnvPrefix+"_CACHE_PASSWORD", "REDIS_PASSWORD")
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

// ReadFile merges a YAML config file into v. A missing path is an error; an
// empty path is ignored.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL))
	}
	if c.Cache.CompanyIntelTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.company_intel_ttl must be positive, got %s", c.Cache.CompanyIntelTTL))
	}
	if c.Dispatch.Workers <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.workers must be positive, got %d", c.Dispatch.Workers))
	}
	if c.Dispatch.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("dispatch.queue_size must not be negative, got %d", c.Dispatch.QueueSize))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Logger builds the structured logger described by the logging section,
// writing to w.
func (c *Config) Logger(w io.Writer) *logging.SwarmLogger {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.LogLevelInfo
	}
	cfg := logging.DefaultLoggerConfig()
	cfg.Level = level
	cfg.Format = c.Logging.Format
	cfg.Output = w
	return logging.NewLogger(cfg)
}
