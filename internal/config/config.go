// Package config loads per-service configuration from environment
// variables (with .env file support for local development), the way
// every binary in this fleet does it.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// load reads a .env file (optional) then parses env vars into cfg.
func load(cfg any) error {
	if err := godotenv.Load(); err != nil {
		// No .env file is fine; production runs on real env vars.
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// InstanceConfig is the Chatroom Instance process's configuration.
type InstanceConfig struct {
	ListenAddress    string `env:"LISTEN_ADDRESS,required"`
	DiscoveryAddress string `env:"DISCOVERY_ADDRESS,required"`
	DatabaseURL      string `env:"DATABASE_URL"`
	ScyllaURL        string `env:"SCYLLA_URL"`

	HeartbeatPeriod time.Duration `env:"HEARTBEAT_PERIOD" envDefault:"2s"`
	LeaseTTL        time.Duration `env:"LEASE_TTL" envDefault:"10s"`

	MaxConnections     int     `env:"WS_MAX_CONNECTIONS" envDefault:"10000"`
	CPURejectThreshold float64 `env:"WS_CPU_REJECT_THRESHOLD" envDefault:"85.0"`
	ConnectRatePerSec  float64 `env:"WS_CONNECT_RATE_PER_SEC" envDefault:"50"`
	ConnectBurst       int     `env:"WS_CONNECT_BURST" envDefault:"100"`
	MetricsAddr        string  `env:"METRICS_ADDR" envDefault:":9100"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

func LoadInstanceConfig() (*InstanceConfig, error) {
	cfg := &InstanceConfig{}
	if err := load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *InstanceConfig) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("LISTEN_ADDRESS is required")
	}
	if c.DiscoveryAddress == "" {
		return fmt.Errorf("DISCOVERY_ADDRESS is required")
	}
	if c.DatabaseURL == "" && c.ScyllaURL == "" {
		return fmt.Errorf("one of DATABASE_URL or SCYLLA_URL is required")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("WS_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.CPURejectThreshold <= 0 || c.CPURejectThreshold > 100 {
		return fmt.Errorf("WS_CPU_REJECT_THRESHOLD must be in (0,100], got %.1f", c.CPURejectThreshold)
	}
	if c.HeartbeatPeriod <= 0 || c.LeaseTTL <= 0 {
		return fmt.Errorf("HEARTBEAT_PERIOD and LEASE_TTL must be positive")
	}
	if c.LeaseTTL <= c.HeartbeatPeriod {
		return fmt.Errorf("LEASE_TTL (%s) must exceed HEARTBEAT_PERIOD (%s)", c.LeaseTTL, c.HeartbeatPeriod)
	}
	return validateLogFields(c.LogLevel, c.LogFormat)
}

// DiscoveryConfig is the Discovery Service's configuration.
type DiscoveryConfig struct {
	ListenAddress string `env:"LISTEN_ADDRESS,required"`
	DatabaseURL   string `env:"DATABASE_URL"`
	ScyllaURL     string `env:"SCYLLA_URL"`
	Region        string `env:"DISCOVERY_REGION" envDefault:"US1"`

	LeaseTTL       time.Duration `env:"LEASE_TTL" envDefault:"10s"`
	ReapInterval   time.Duration `env:"DISCOVERY_REAP_INTERVAL" envDefault:"10s"`
	ReapMultiplier float64       `env:"DISCOVERY_REAP_MULTIPLIER" envDefault:"3.0"`
	MetricsAddr    string        `env:"METRICS_ADDR" envDefault:":9100"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

func LoadDiscoveryConfig() (*DiscoveryConfig, error) {
	cfg := &DiscoveryConfig{}
	if err := load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *DiscoveryConfig) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("LISTEN_ADDRESS is required")
	}
	if c.DatabaseURL == "" && c.ScyllaURL == "" {
		return fmt.Errorf("one of DATABASE_URL or SCYLLA_URL is required")
	}
	if c.Region == "" {
		return fmt.Errorf("DISCOVERY_REGION must not be empty")
	}
	if c.LeaseTTL <= 0 {
		return fmt.Errorf("LEASE_TTL must be positive")
	}
	if c.ReapMultiplier < 1 {
		return fmt.Errorf("DISCOVERY_REAP_MULTIPLIER must be >= 1, got %.1f", c.ReapMultiplier)
	}
	return validateLogFields(c.LogLevel, c.LogFormat)
}

// GatewayConfig is the Search Gateway's configuration.
type GatewayConfig struct {
	ListenAddress    string `env:"LISTEN_ADDRESS,required"`
	DiscoveryAddress string `env:"DISCOVERY_ADDRESS,required"`

	FanoutWorkers  int           `env:"GATEWAY_FANOUT_WORKERS" envDefault:"16"`
	RequestTimeout time.Duration `env:"GATEWAY_REQUEST_TIMEOUT" envDefault:"3s"`
	CORSOrigins    string        `env:"GATEWAY_CORS_ORIGINS" envDefault:"*"`
	MetricsAddr    string        `env:"METRICS_ADDR" envDefault:":9100"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

func LoadGatewayConfig() (*GatewayConfig, error) {
	cfg := &GatewayConfig{}
	if err := load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *GatewayConfig) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("LISTEN_ADDRESS is required")
	}
	if c.DiscoveryAddress == "" {
		return fmt.Errorf("DISCOVERY_ADDRESS is required")
	}
	if c.FanoutWorkers < 1 {
		return fmt.Errorf("GATEWAY_FANOUT_WORKERS must be > 0, got %d", c.FanoutWorkers)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("GATEWAY_REQUEST_TIMEOUT must be positive")
	}
	return validateLogFields(c.LogLevel, c.LogFormat)
}

func validateLogFields(level, format string) error {
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", level)
	}
	switch format {
	case "json", "pretty":
	default:
		return fmt.Errorf("LOG_FORMAT must be one of json, pretty (got %q)", format)
	}
	return nil
}
