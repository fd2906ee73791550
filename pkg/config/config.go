package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Development backend
	Server ServerConfig `mapstructure:"server"`

	// Backend the client talks to
	API APIConfig `mapstructure:"api"`

	// Query cache policy
	Cache CacheConfig `mapstructure:"cache"`

	// Redis invalidation bus
	Redis RedisConfig `mapstructure:"redis"`

	// Token signing for the development backend
	Auth AuthConfig `mapstructure:"auth"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	Monitoring MonitoringConfig `mapstructure:"monitoring"`

	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// APIConfig describes the REST backend
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// CacheConfig holds query cache policy. Durations are in milliseconds.
type CacheConfig struct {
	StaleTime       int `mapstructure:"stale_time"`
	GCTime          int `mapstructure:"gc_time"`
	Retry           int `mapstructure:"retry"`
	RetryDelay      int `mapstructure:"retry_delay"`
	MaxRetryDelay   int `mapstructure:"max_retry_delay"`
	CleanupInterval int `mapstructure:"cleanup_interval"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// AuthConfig holds JWT configuration
type AuthConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	TokenTTL  int    `mapstructure:"token_ttl"`
	Issuer    string `mapstructure:"issuer"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	RequestsPerMin  int  `mapstructure:"requests_per_min"`
	CleanupInterval int  `mapstructure:"cleanup_interval"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith loads configuration through v, so tests can supply their own reader
func LoadWith(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/clinic")

	setDefaults(v)

	v.SetEnvPrefix("clinic")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideWithEnv(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.idle_timeout", 120)

	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", 15)

	v.SetDefault("cache.stale_time", 30_000)
	v.SetDefault("cache.gc_time", 300_000)
	v.SetDefault("cache.retry", 3)
	v.SetDefault("cache.retry_delay", 1_000)
	v.SetDefault("cache.max_retry_delay", 30_000)
	v.SetDefault("cache.cleanup_interval", 60_000)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "clinic:cache-invalidation")

	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.token_ttl", 3600)
	v.SetDefault("auth.issuer", "clinic-devserver")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_min", 300)
	v.SetDefault("rate_limit.cleanup_interval", 60)

	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.metrics_port", 9090)

	v.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with un-prefixed environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		config.Auth.SecretKey = secret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if _, err := url.ParseRequestURI(config.API.BaseURL); err != nil {
		return fmt.Errorf("invalid api base url %q: %w", config.API.BaseURL, err)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Cache.Retry < 0 {
		return fmt.Errorf("cache retry must not be negative: %d", config.Cache.Retry)
	}

	if config.Cache.StaleTime < 0 || config.Cache.GCTime < 0 {
		return fmt.Errorf("cache stale_time and gc_time must not be negative")
	}

	return nil
}

// Duration converts a millisecond setting into a time.Duration
func Duration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Addr returns host:port of the Redis server
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
