package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the service
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	Server   ServerConfig
	Database DatabaseConfig
	Chain    ChainConfig
	IPFS     IPFSConfig
	Cache    CacheConfig
	Monitor  MonitorConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `envconfig:"SERVER_PORT" default:"8080"`
}

// DatabaseConfig holds relational store configuration
type DatabaseConfig struct {
	Driver   string `envconfig:"DB_DRIVER" default:"postgres"` // "postgres" or "sqlite3"
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName   string `envconfig:"DB_NAME" default:"nft_marketplace"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	Path     string `envconfig:"DB_PATH" default:"marketplace.db"` // sqlite3 only
}

// ChainConfig holds the upstream JSON-RPC node the gateway relays to
type ChainConfig struct {
	RPCEndpoint string        `envconfig:"CHAIN_RPC_ENDPOINT" default:"https://api-testnet.shardeum.org"`
	RPCTimeout  time.Duration `envconfig:"CHAIN_RPC_TIMEOUT" default:"30s"`
}

// IPFSConfig holds token metadata resolution settings
type IPFSConfig struct {
	Gateway         string        `envconfig:"IPFS_GATEWAY" default:"https://ipfs.io/ipfs/"`
	MetadataTimeout time.Duration `envconfig:"METADATA_TIMEOUT" default:"15s"`
}

// CacheConfig holds the optional metadata cache. Caching is disabled when
// RedisURL is empty.
type CacheConfig struct {
	RedisURL    string        `envconfig:"REDIS_URL"`
	MetadataTTL time.Duration `envconfig:"METADATA_CACHE_TTL" default:"1h"`
}

// MonitorConfig holds the pending-transaction receipt monitor settings
type MonitorConfig struct {
	Enabled   bool          `envconfig:"MONITOR_ENABLED" default:"false"`
	Interval  time.Duration `envconfig:"MONITOR_INTERVAL" default:"30s"`
	BatchSize int           `envconfig:"MONITOR_BATCH_SIZE" default:"50"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
	case "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite3")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	if !strings.HasPrefix(c.Chain.RPCEndpoint, "http://") && !strings.HasPrefix(c.Chain.RPCEndpoint, "https://") {
		return fmt.Errorf("chain RPC endpoint must be an http(s) URL: %q", c.Chain.RPCEndpoint)
	}

	if c.IPFS.Gateway == "" {
		return fmt.Errorf("IPFS gateway is required")
	}

	if c.Monitor.Enabled {
		if c.Monitor.Interval <= 0 {
			return fmt.Errorf("invalid monitor interval: %s", c.Monitor.Interval)
		}
		if c.Monitor.BatchSize <= 0 {
			return fmt.Errorf("invalid monitor batch size: %d", c.Monitor.BatchSize)
		}
	}

	return nil
}
