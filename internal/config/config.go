// ABOUTME: Configuration loading and parsing for fold-client
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete fold-client configuration
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Identity IdentityConfig `yaml:"identity"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig holds gateway connection configuration
type GatewayConfig struct {
	// URL is the WebSocket endpoint, e.g. "ws://localhost:18789/gateway"
	URL string `yaml:"url"`

	// Token overrides the device token and environment when set
	Token string `yaml:"token"`

	CallTimeout    time.Duration `yaml:"-"`
	ExecuteTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	CallTimeoutRaw    string `yaml:"call_timeout"`
	ExecuteTimeoutRaw string `yaml:"execute_timeout"`
}

// IdentityConfig holds device identity storage configuration
type IdentityConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration suitable for running without a config
// file, driven entirely by environment variables.
func Default() *Config {
	cfg := &Config{}
	cfg.Gateway.URL = os.Getenv("FOLD_GATEWAY_URL")
	if cfg.Gateway.URL == "" {
		cfg.Gateway.URL = "ws://localhost:18789/gateway"
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Identity.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Identity.Path = filepath.Join(home, ".fold", "identity.db")
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	if !strings.HasPrefix(c.Gateway.URL, "ws://") && !strings.HasPrefix(c.Gateway.URL, "wss://") {
		return fmt.Errorf("gateway.url must use a ws:// or wss:// scheme, got %q", c.Gateway.URL)
	}
	if c.Identity.Path == "" {
		return fmt.Errorf("identity.path is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Gateway.CallTimeoutRaw != "" {
		cfg.Gateway.CallTimeout, err = time.ParseDuration(cfg.Gateway.CallTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing call_timeout %q: %w", cfg.Gateway.CallTimeoutRaw, err)
		}
	}

	if cfg.Gateway.ExecuteTimeoutRaw != "" {
		cfg.Gateway.ExecuteTimeout, err = time.ParseDuration(cfg.Gateway.ExecuteTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing execute_timeout %q: %w", cfg.Gateway.ExecuteTimeoutRaw, err)
		}
	}

	return nil
}
