// Package config loads and validates the process configuration.
//
// Configuration comes from a YAML file with ${VAR} environment
// expansion; a .env file is loaded first when present. Every section
// follows the SetDefaults/Validate convention and is injected into the
// components that need it rather than read from ambient globals.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Logger    LoggerConfig    `yaml:"logger,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Secrets   SecretsConfig   `yaml:"secrets,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
	Scheduler SchedulerConfig `yaml:"scheduler,omitempty"`
	Telegram  TelegramConfig  `yaml:"telegram,omitempty"`
	Memory    MemoryConfig    `yaml:"memory,omitempty"`
}

// LoggerConfig configures the structured logger.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	File   string `yaml:"file,omitempty"`   // empty = stderr
	Format string `yaml:"format,omitempty"` // text or json
}

// StoreConfig configures the persisted workspace store.
type StoreConfig struct {
	Driver   string `yaml:"driver,omitempty"` // sqlite, postgres or mysql
	DSN      string `yaml:"dsn,omitempty"`
	MaxConns int    `yaml:"max_conns,omitempty"`
	MaxIdle  int    `yaml:"max_idle,omitempty"`
}

// SecretsConfig configures encryption of API keys at rest.
type SecretsConfig struct {
	// MasterKey is 64 hex characters (32 bytes). Usually supplied as
	// ${ENCRYPTION_MASTER_KEY}.
	MasterKey string `yaml:"master_key,omitempty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// SchedulerConfig configures the heartbeat scheduler.
type SchedulerConfig struct {
	// DefaultWakeInterval applies to agents without an interval of
	// their own.
	DefaultWakeInterval time.Duration `yaml:"default_wake_interval,omitempty"`

	// WakeTimeout bounds one wake cycle. A cycle that exceeds it is
	// treated like any other failure and forces the agent offline.
	WakeTimeout time.Duration `yaml:"wake_timeout,omitempty"`
}

// TelegramConfig configures the notification sink and webhook.
type TelegramConfig struct {
	BotToken   string `yaml:"bot_token,omitempty"`
	WebhookURL string `yaml:"webhook_url,omitempty"`
}

// MemoryConfig configures the agent memory store.
type MemoryConfig struct {
	// BaseDir is the root under which per-agent memory directories
	// live.
	BaseDir string `yaml:"base_dir,omitempty"`
}

// Load reads, expands, defaults and validates the configuration file.
// A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies default values to every section.
func (c *Config) SetDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "text"
	}

	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.DSN == "" && c.Store.Driver == "sqlite" {
		c.Store.DSN = "crewd.db"
	}
	if c.Store.MaxConns == 0 {
		c.Store.MaxConns = 10
	}
	if c.Store.MaxIdle == 0 {
		c.Store.MaxIdle = 2
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}

	if c.Scheduler.DefaultWakeInterval == 0 {
		c.Scheduler.DefaultWakeInterval = 15 * time.Minute
	}
	if c.Scheduler.WakeTimeout == 0 {
		c.Scheduler.WakeTimeout = 5 * time.Minute
	}

	if c.Memory.BaseDir == "" {
		c.Memory.BaseDir = "data/agents"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("invalid store driver %q (valid: sqlite, postgres, mysql)", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store dsn is required for driver %q", c.Store.Driver)
	}

	if c.Secrets.MasterKey == "" {
		return fmt.Errorf("secrets master_key is required (set ENCRYPTION_MASTER_KEY)")
	}
	if len(c.Secrets.MasterKey) != 64 {
		return fmt.Errorf("secrets master_key must be 64 hex characters, got %d", len(c.Secrets.MasterKey))
	}
	if _, err := hex.DecodeString(c.Secrets.MasterKey); err != nil {
		return fmt.Errorf("secrets master_key is not valid hex: %w", err)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}

	if c.Scheduler.DefaultWakeInterval < time.Second {
		return fmt.Errorf("scheduler default_wake_interval must be at least 1s")
	}
	if c.Scheduler.WakeTimeout < time.Second {
		return fmt.Errorf("scheduler wake_timeout must be at least 1s")
	}

	return nil
}
