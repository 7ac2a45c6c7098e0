package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides (GATEWAY_BIND, ...)
const EnvPrefix = "GATEWAY"

// Config represents the application configuration
type Config struct {
	// Bind is the listen address (host:port)
	Bind string `yaml:"bind" envconfig:"BIND"`
	// TLSCert and TLSKey are PEM file paths. TLS is only enabled when both are set.
	TLSCert string `yaml:"tls_cert" envconfig:"TLS_CERT"`
	TLSKey  string `yaml:"tls_key" envconfig:"TLS_KEY"`
	// APIKey is the bearer token callers must present. Empty disables authentication.
	APIKey string `yaml:"api_key" envconfig:"API_KEY"`
	// Debug switches logging to debug level
	Debug bool `yaml:"debug" envconfig:"DEBUG"`

	Timeout         int `yaml:"timeout" envconfig:"TIMEOUT"`                   // seconds, outbound request timeout
	ConnectTimeout  int `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`   // seconds, outbound dial timeout
	TCPKeepalive    int `yaml:"tcp_keepalive" envconfig:"TCP_KEEPALIVE"`       // seconds, 0 = unset
	ShutdownTimeout int `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"` // seconds, 0 = wait for all requests

	Upstream UpstreamConfig `yaml:"upstream" envconfig:"UPSTREAM"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Metrics  MetricsConfig  `yaml:"metrics" envconfig:"METRICS"`
}

// UpstreamConfig describes the chat-completion provider requests are forwarded to
type UpstreamConfig struct {
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL"`
	APIKey  string `yaml:"api_key" envconfig:"API_KEY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" envconfig:"FORMAT"` // json, text
}

// MetricsConfig controls the prometheus endpoint served at /metrics
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`
}

// Load loads configuration from file and environment variables.
// A path that is not a regular file (missing, a directory) is not an
// error: defaults and environment apply.
func Load(configFile string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Load from YAML file if provided (overrides defaults)
	if isRegularFile(configFile) {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func isRegularFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Bind:           "0.0.0.0:8000",
		Timeout:        600,
		ConnectTimeout: 10,
		TCPKeepalive:   90,
		Upstream: UpstreamConfig{
			BaseURL: "https://api.openai.com",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Bind); err != nil {
		return fmt.Errorf("invalid bind address %q: %w", c.Bind, err)
	}

	if c.Timeout < 0 || c.ConnectTimeout < 0 || c.TCPKeepalive < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid upstream base_url: %q", c.Upstream.BaseURL)
	}

	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid logging format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}

// TLSEnabled reports whether both certificate and key are configured.
// A lone cert or key leaves TLS disabled.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// TimeoutDuration returns the outbound request timeout
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// ConnectTimeoutDuration returns the outbound dial timeout
func (c *Config) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// TCPKeepaliveDuration returns the keep-alive interval, zero when not configured
func (c *Config) TCPKeepaliveDuration() time.Duration {
	return time.Duration(c.TCPKeepalive) * time.Second
}

// ShutdownTimeoutDuration returns the drain deadline, zero meaning none
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

// LogLevel returns the effective log level; Debug wins over Logging.Level
func (c *Config) LogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.Logging.Level
}
