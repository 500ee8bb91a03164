// Package config loads YAML configuration for the admin console and
// the reference backend. Environment variables in the file are
// expanded before parsing, so credentials can stay out of the file
// itself.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigName is the config file looked up in the working
// directory when --config is not given.
const DefaultConfigName = "variant.yaml"

// Config is the root configuration shared by variantctl and variantd.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Console ConsoleConfig `yaml:"console"`
	Server  ServerConfig  `yaml:"server"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConsoleConfig configures the admin console client.
type ConsoleConfig struct {
	// BaseURL is the backend the console talks to.
	BaseURL string `yaml:"base_url"`

	// CacheDir overrides the credential cache location (~/.variant).
	CacheDir string `yaml:"cache_dir"`

	// Timeout bounds each backend call. There are no retries; a
	// failed call surfaces immediately and recovery is manual.
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures the reference backend.
type ServerConfig struct {
	Listen string `yaml:"listen"`

	// AdminKey is the shared operator credential. Login exchanges it
	// for the allowed-apps list below.
	AdminKey string `yaml:"admin_key"`

	// AllowedApps are the application ids the credential may manage.
	AllowedApps []string `yaml:"allowed_apps"`

	// PostgresDSN selects the durable store. Empty means the
	// in-memory store, which is enough for local development.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Console: ConsoleConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		Server: ServerConfig{Listen: ":8080"},
	}
}

// Load reads and validates the config at path. A missing file is not
// an error; defaults apply, so the console works out of the box
// against a local backend.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields both binaries depend on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Console.BaseURL) == "" {
		return fmt.Errorf("console.base_url is required")
	}
	if _, err := url.Parse(c.Console.BaseURL); err != nil {
		return fmt.Errorf("console.base_url: %w", err)
	}
	if c.Console.Timeout < 0 {
		return fmt.Errorf("console.timeout must not be negative")
	}
	if c.Console.Timeout == 0 {
		c.Console.Timeout = 10 * time.Second
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		c.Server.Listen = ":8080"
	}
	return nil
}
