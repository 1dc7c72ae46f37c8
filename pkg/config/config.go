// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
)

// Defaults applied by Validate.
const (
	DefaultAgentName      = "Nanobridge Agent"
	DefaultListen         = ":4000"
	DefaultRequestTimeout = 30 // seconds
	DefaultProbeTimeout   = 5  // seconds
	DefaultLogFile        = "nanobridge.log"
)

// Config is the per-instance settings file.
type Config struct {
	AgentName      string `toml:"agent_name"`
	WebhookID      string `toml:"webhook_id"`
	ListenAddress  string `toml:"listen_address"`
	RequestTimeout int    `toml:"request_timeout"` // seconds
	ProbeTimeout   int    `toml:"probe_timeout"`   // seconds
	AuthSecretEnv  string `toml:"auth_secret_env"` // env var holding the bearer secret
	AuthIssuer     string `toml:"auth_issuer"`
	LogFile        string `toml:"log_file"`
}

// Default returns a runnable config with a fresh webhook id. Used when no
// settings file exists.
func Default() Config {
	c := Config{WebhookID: uuid.NewString()}
	_ = c.Validate()
	return c
}

// Load reads and validates the TOML settings at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default()
// when it does not.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate fills defaults and rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.WebhookID == "" {
		return errors.New("webhook_id is required")
	}
	if c.AgentName == "" {
		c.AgentName = DefaultAgentName
	}
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListen
	}
	if c.RequestTimeout < 0 || c.ProbeTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.LogFile == "" {
		c.LogFile = DefaultLogFile
	}
	return nil
}

// RequestTimeoutDuration is RequestTimeout as a time.Duration.
func (c Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// ProbeTimeoutDuration is ProbeTimeout as a time.Duration.
func (c Config) ProbeTimeoutDuration() time.Duration {
	return time.Duration(c.ProbeTimeout) * time.Second
}

// AuthSecret resolves the bearer secret from the configured env var.
// Empty means the register endpoint runs unguarded (local/dev).
func (c Config) AuthSecret() []byte {
	if c.AuthSecretEnv == "" {
		return nil
	}
	if v := os.Getenv(c.AuthSecretEnv); v != "" {
		return []byte(v)
	}
	return nil
}
