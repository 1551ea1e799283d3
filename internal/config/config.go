// ABOUTME: Configuration loading and parsing for snagbox
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete snagbox configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	// BaseURL is the external URL clients reach the service on; the
	// WebAuthn relying party is derived from it.
	BaseURL string `yaml:"base_url"`
	// SecureCookies marks session cookies Secure. Leave off only for
	// local plain-HTTP development.
	SecureCookies bool `yaml:"secure_cookies"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds signing secrets. Both secrets must be at least 32 bytes.
type AuthConfig struct {
	// ChallengeSecret signs WebAuthn ceremony challenges.
	ChallengeSecret string `yaml:"challenge_secret"`
	// InviteSecret signs organization invitation tokens.
	InviteSecret string `yaml:"invite_secret"`
	// RPName is the human-readable relying party name shown by browsers.
	RPName string `yaml:"rp_name"`
}

// SessionConfig holds session lifetime configuration
type SessionConfig struct {
	TTL              time.Duration `yaml:"-"`
	RefreshThreshold time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TTLRaw              string `yaml:"ttl"`
	RefreshThresholdRaw string `yaml:"refresh_threshold"`
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

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
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
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Auth.RPName == "" {
		c.Auth.RPName = "snagbox"
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.Auth.ChallengeSecret) < 32 {
		return fmt.Errorf("auth.challenge_secret must be at least 32 bytes")
	}
	if len(c.Auth.InviteSecret) < 32 {
		return fmt.Errorf("auth.invite_secret must be at least 32 bytes")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Session.TTLRaw != "" {
		cfg.Session.TTL, err = time.ParseDuration(cfg.Session.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session.ttl %q: %w", cfg.Session.TTLRaw, err)
		}
	}

	if cfg.Session.RefreshThresholdRaw != "" {
		cfg.Session.RefreshThreshold, err = time.ParseDuration(cfg.Session.RefreshThresholdRaw)
		if err != nil {
			return fmt.Errorf("parsing session.refresh_threshold %q: %w", cfg.Session.RefreshThresholdRaw, err)
		}
	}

	return nil
}
