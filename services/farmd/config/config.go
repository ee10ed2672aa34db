package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen        = ":8090"
	defaultDataDir       = "./farm-data"
	defaultFarmingConfig = "./farm.toml"
	defaultStorage       = "leveldb"
	defaultEventsDSN     = "farm-events.db"
	defaultScope         = "farm:admin"
	defaultReadTimeout   = 10 * time.Second
	defaultWriteTimeout  = 15 * time.Second
)

// Config captures the runtime settings for the farming service daemon.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	DataDir       string          `yaml:"data_dir"`
	Storage       string          `yaml:"storage"`
	FarmingConfig string          `yaml:"farming_config"`
	LogFile       string          `yaml:"log_file"`
	Events        EventsConfig    `yaml:"events"`
	Auth          AuthConfig      `yaml:"auth"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
	Webhook       WebhookConfig   `yaml:"webhook"`
	ReadTimeout   time.Duration   `yaml:"read_timeout"`
	WriteTimeout  time.Duration   `yaml:"write_timeout"`
}

// EventsConfig selects the database backing the persistent event log.
type EventsConfig struct {
	DSN string `yaml:"dsn"`
}

// AuthConfig describes the bearer tokens accepted on admin routes.
type AuthConfig struct {
	HMACSecret string        `yaml:"hmac_secret"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	AdminScope string        `yaml:"admin_scope"`
	ClockSkew  time.Duration `yaml:"clock_skew"`
}

// RateLimitConfig bounds per-client request rates. A zero rate disables
// limiting.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	Endpoint string            `yaml:"endpoint"`
	Insecure bool              `yaml:"insecure"`
	Headers  map[string]string `yaml:"headers"`
	Traces   bool              `yaml:"traces"`
	Metrics  bool              `yaml:"metrics"`
}

// WebhookConfig enables signed delivery of pool events to an HTTP endpoint.
type WebhookConfig struct {
	URL         string        `yaml:"url"`
	Secret      string        `yaml:"secret"`
	MaxAttempts int           `yaml:"max_attempts"`
	MinBackoff  time.Duration `yaml:"min_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

// Enabled reports whether a webhook endpoint is configured.
func (cfg WebhookConfig) Enabled() bool { return cfg.URL != "" }

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{ListenAddress: defaultListen}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	if cfg.Storage == "" {
		cfg.Storage = defaultStorage
	}
	cfg.FarmingConfig = strings.TrimSpace(cfg.FarmingConfig)
	if cfg.FarmingConfig == "" {
		cfg.FarmingConfig = defaultFarmingConfig
	}
	cfg.LogFile = strings.TrimSpace(cfg.LogFile)
	cfg.Events.DSN = strings.TrimSpace(cfg.Events.DSN)
	if cfg.Events.DSN == "" {
		cfg.Events.DSN = defaultEventsDSN
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	cfg.Auth.normalize()
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
	cfg.Webhook.URL = strings.TrimSpace(cfg.Webhook.URL)
	cfg.Webhook.Secret = strings.TrimSpace(cfg.Webhook.Secret)
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	switch cfg.Storage {
	case "leveldb", "bolt":
	default:
		return fmt.Errorf("storage: unsupported backend %q", cfg.Storage)
	}
	if err := cfg.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if cfg.Webhook.Enabled() && cfg.Webhook.Secret == "" {
		return fmt.Errorf("webhook: secret is required when url is set")
	}
	if cfg.Webhook.MinBackoff > 0 && cfg.Webhook.MaxBackoff > 0 && cfg.Webhook.MinBackoff > cfg.Webhook.MaxBackoff {
		return fmt.Errorf("webhook: min_backoff exceeds max_backoff")
	}
	return nil
}

func (cfg *AuthConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.HMACSecret = strings.TrimSpace(cfg.HMACSecret)
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	cfg.AdminScope = strings.TrimSpace(cfg.AdminScope)
	if cfg.AdminScope == "" {
		cfg.AdminScope = defaultScope
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
}

func (cfg AuthConfig) validate() error {
	if cfg.HMACSecret == "" {
		return fmt.Errorf("hmac_secret is required")
	}
	if len(cfg.HMACSecret) < 32 {
		return fmt.Errorf("hmac_secret must be at least 32 characters")
	}
	return nil
}
