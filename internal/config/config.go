// ABOUTME: Configuration loading and parsing for zero-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete zero-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Lockout  LockoutConfig  `yaml:"lockout"`
	Session  SessionConfig  `yaml:"session"`
	Panic    PanicConfig    `yaml:"panic"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`

	// AllowInsecureControlUI relaxes the control-UI posture: shared local
	// secrets become sufficient for device connections. Off by default.
	AllowInsecureControlUI bool `yaml:"allow_insecure_control_ui"`
}

// LockoutConfig holds the brute-force defense parameters
type LockoutConfig struct {
	Threshold  int `yaml:"threshold"`
	MaxClients int `yaml:"max_clients"`

	Window    time.Duration `yaml:"-"`
	BaseBan   time.Duration `yaml:"-"`
	MaxBan    time.Duration `yaml:"-"`
	Retention time.Duration `yaml:"-"`
	BaseDelay time.Duration `yaml:"-"`
	MaxDelay  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	WindowRaw    string `yaml:"window"`
	BaseBanRaw   string `yaml:"base_ban"`
	MaxBanRaw    string `yaml:"max_ban"`
	RetentionRaw string `yaml:"retention"`
	BaseDelayRaw string `yaml:"base_delay"`
	MaxDelayRaw  string `yaml:"max_delay"`
}

// SessionConfig holds browser session configuration
type SessionConfig struct {
	Lifetime time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	LifetimeRaw string `yaml:"lifetime"`
}

// PanicConfig holds emergency lockdown configuration
type PanicConfig struct {
	// ResetKeyHash is the bcrypt hash of the reset key. When empty,
	// a lockdown can only be cleared by replacing this value.
	ResetKeyHash string `yaml:"reset_key_hash"`
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

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.GRPCAddr == "" {
		return fmt.Errorf("server.grpc_addr is required")
	}
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Lockout.Threshold < 0 {
		return fmt.Errorf("lockout.threshold must not be negative")
	}
	if c.Lockout.MaxDelay != 0 && c.Lockout.BaseDelay > c.Lockout.MaxDelay {
		return fmt.Errorf("lockout.base_delay %s exceeds lockout.max_delay %s",
			c.Lockout.BaseDelay, c.Lockout.MaxDelay)
	}
	if c.Lockout.MaxBan != 0 && c.Lockout.BaseBan > c.Lockout.MaxBan {
		return fmt.Errorf("lockout.base_ban %s exceeds lockout.max_ban %s",
			c.Lockout.BaseBan, c.Lockout.MaxBan)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{cfg.Lockout.WindowRaw, &cfg.Lockout.Window, "lockout.window"},
		{cfg.Lockout.BaseBanRaw, &cfg.Lockout.BaseBan, "lockout.base_ban"},
		{cfg.Lockout.MaxBanRaw, &cfg.Lockout.MaxBan, "lockout.max_ban"},
		{cfg.Lockout.RetentionRaw, &cfg.Lockout.Retention, "lockout.retention"},
		{cfg.Lockout.BaseDelayRaw, &cfg.Lockout.BaseDelay, "lockout.base_delay"},
		{cfg.Lockout.MaxDelayRaw, &cfg.Lockout.MaxDelay, "lockout.max_delay"},
		{cfg.Session.LifetimeRaw, &cfg.Session.Lifetime, "session.lifetime"},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
