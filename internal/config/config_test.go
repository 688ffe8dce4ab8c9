// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  grpc_addr: "0.0.0.0:50051"
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "test-secret"
  allow_insecure_control_ui: false

lockout:
  threshold: 30
  window: "10m"
  base_ban: "30m"
  max_ban: "24h"
  retention: "2h"
  base_delay: "100ms"
  max_delay: "10s"
  max_clients: 4096

session:
  lifetime: "8760h"

panic:
  reset_key_hash: "$2a$10$abcdefghijklmnopqrstuv"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify server config
	if cfg.Server.GRPCAddr != "0.0.0.0:50051" {
		t.Errorf("Server.GRPCAddr = %q, want %q", cfg.Server.GRPCAddr, "0.0.0.0:50051")
	}
	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}

	// Verify database config
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}

	// Verify auth config
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "test-secret")
	}
	if cfg.Auth.AllowInsecureControlUI {
		t.Error("Auth.AllowInsecureControlUI = true, want false")
	}

	// Verify lockout config with duration parsing
	if cfg.Lockout.Threshold != 30 {
		t.Errorf("Lockout.Threshold = %d, want 30", cfg.Lockout.Threshold)
	}
	if cfg.Lockout.Window != 10*time.Minute {
		t.Errorf("Lockout.Window = %v, want %v", cfg.Lockout.Window, 10*time.Minute)
	}
	if cfg.Lockout.BaseBan != 30*time.Minute {
		t.Errorf("Lockout.BaseBan = %v, want %v", cfg.Lockout.BaseBan, 30*time.Minute)
	}
	if cfg.Lockout.MaxBan != 24*time.Hour {
		t.Errorf("Lockout.MaxBan = %v, want %v", cfg.Lockout.MaxBan, 24*time.Hour)
	}
	if cfg.Lockout.Retention != 2*time.Hour {
		t.Errorf("Lockout.Retention = %v, want %v", cfg.Lockout.Retention, 2*time.Hour)
	}
	if cfg.Lockout.BaseDelay != 100*time.Millisecond {
		t.Errorf("Lockout.BaseDelay = %v, want %v", cfg.Lockout.BaseDelay, 100*time.Millisecond)
	}
	if cfg.Lockout.MaxDelay != 10*time.Second {
		t.Errorf("Lockout.MaxDelay = %v, want %v", cfg.Lockout.MaxDelay, 10*time.Second)
	}
	if cfg.Lockout.MaxClients != 4096 {
		t.Errorf("Lockout.MaxClients = %d, want 4096", cfg.Lockout.MaxClients)
	}

	// Verify session config
	if cfg.Session.Lifetime != 8760*time.Hour {
		t.Errorf("Session.Lifetime = %v, want %v", cfg.Session.Lifetime, 8760*time.Hour)
	}

	// Verify panic config
	if cfg.Panic.ResetKeyHash != "$2a$10$abcdefghijklmnopqrstuv" {
		t.Errorf("Panic.ResetKeyHash = %q, want the configured hash", cfg.Panic.ResetKeyHash)
	}

	// Verify logging config
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "secret-from-env")
	t.Setenv("TEST_RESET_HASH", "hash-from-env")

	configPath := writeConfig(t, `
server:
  grpc_addr: "0.0.0.0:50051"
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "${TEST_JWT_SECRET}"

panic:
  reset_key_hash: "${TEST_RESET_HASH}"

logging:
  level: "info"
  format: "text"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify env var expansion
	if cfg.Auth.JWTSecret != "secret-from-env" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "secret-from-env")
	}
	if cfg.Panic.ResetKeyHash != "hash-from-env" {
		t.Errorf("Panic.ResetKeyHash = %q, want %q", cfg.Panic.ResetKeyHash, "hash-from-env")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	// Ensure the env var is NOT set
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	configPath := writeConfig(t, `
server:
  grpc_addr: "0.0.0.0:50051"
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "literal-secret"

panic:
  reset_key_hash: "${UNSET_VAR_FOR_TEST}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Unset env vars should expand to empty string
	if cfg.Panic.ResetKeyHash != "" {
		t.Errorf("Panic.ResetKeyHash = %q, want empty string for unset env var", cfg.Panic.ResetKeyHash)
	}
}

func TestLoad_DurationParsing(t *testing.T) {
	configPath := writeConfig(t, `
server:
  grpc_addr: "0.0.0.0:50051"
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "test-secret"

lockout:
  window: "1m30s"
  base_ban: "2h"
  retention: "10m"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Verify complex duration parsing
	expectedWindow := 1*time.Minute + 30*time.Second
	if cfg.Lockout.Window != expectedWindow {
		t.Errorf("Lockout.Window = %v, want %v", cfg.Lockout.Window, expectedWindow)
	}

	if cfg.Lockout.BaseBan != 2*time.Hour {
		t.Errorf("Lockout.BaseBan = %v, want %v", cfg.Lockout.BaseBan, 2*time.Hour)
	}

	if cfg.Lockout.Retention != 10*time.Minute {
		t.Errorf("Lockout.Retention = %v, want %v", cfg.Lockout.Retention, 10*time.Minute)
	}

	// Unset durations stay zero so components fall back to their defaults
	if cfg.Lockout.BaseDelay != 0 {
		t.Errorf("Lockout.BaseDelay = %v, want 0", cfg.Lockout.BaseDelay)
	}
	if cfg.Session.Lifetime != 0 {
		t.Errorf("Session.Lifetime = %v, want 0", cfg.Session.Lifetime)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `
server:
  grpc_addr: "0.0.0.0:50051"
  http_addr "missing colon"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  grpc_addr: "0.0.0.0:50051"
  http_addr: "0.0.0.0:8080"

database:
  path: "./test.db"

auth:
  jwt_secret: "test-secret"

lockout:
  window: "invalid-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid duration, got nil")
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		wantErrSubstr string
	}{
		{
			name: "missing grpc_addr",
			configContent: `
server:
  grpc_addr: ""
  http_addr: "0.0.0.0:8080"
database:
  path: "./test.db"
auth:
  jwt_secret: "test-secret"
`,
			wantErrSubstr: "server.grpc_addr is required",
		},
		{
			name: "missing http_addr",
			configContent: `
server:
  grpc_addr: "0.0.0.0:50051"
  http_addr: ""
database:
  path: "./test.db"
auth:
  jwt_secret: "test-secret"
`,
			wantErrSubstr: "server.http_addr is required",
		},
		{
			name: "missing database path",
			configContent: `
server:
  grpc_addr: "0.0.0.0:50051"
  http_addr: "0.0.0.0:8080"
database:
  path: ""
auth:
  jwt_secret: "test-secret"
`,
			wantErrSubstr: "database.path is required",
		},
		{
			name: "missing jwt secret",
			configContent: `
server:
  grpc_addr: "0.0.0.0:50051"
  http_addr: "0.0.0.0:8080"
database:
  path: "./test.db"
auth:
  jwt_secret: ""
`,
			wantErrSubstr: "auth.jwt_secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, tt.configContent)

			_, err := Load(configPath)
			if err == nil {
				t.Errorf("Load() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}

			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestValidate_LockoutBounds(t *testing.T) {
	tests := []struct {
		name          string
		cfg           Config
		wantErr       bool
		wantErrSubstr string
	}{
		{
			name: "base delay above max delay rejected",
			cfg: Config{
				Server:   ServerConfig{GRPCAddr: "a", HTTPAddr: "b"},
				Database: DatabaseConfig{Path: "./test.db"},
				Auth:     AuthConfig{JWTSecret: "s"},
				Lockout: LockoutConfig{
					BaseDelay: time.Second,
					MaxDelay:  100 * time.Millisecond,
				},
			},
			wantErr:       true,
			wantErrSubstr: "lockout.base_delay",
		},
		{
			name: "base ban above max ban rejected",
			cfg: Config{
				Server:   ServerConfig{GRPCAddr: "a", HTTPAddr: "b"},
				Database: DatabaseConfig{Path: "./test.db"},
				Auth:     AuthConfig{JWTSecret: "s"},
				Lockout: LockoutConfig{
					BaseBan: 2 * time.Hour,
					MaxBan:  time.Hour,
				},
			},
			wantErr:       true,
			wantErrSubstr: "lockout.base_ban",
		},
		{
			name: "negative threshold rejected",
			cfg: Config{
				Server:   ServerConfig{GRPCAddr: "a", HTTPAddr: "b"},
				Database: DatabaseConfig{Path: "./test.db"},
				Auth:     AuthConfig{JWTSecret: "s"},
				Lockout:  LockoutConfig{Threshold: -1},
			},
			wantErr:       true,
			wantErrSubstr: "lockout.threshold",
		},
		{
			name: "zero values fall back to defaults",
			cfg: Config{
				Server:   ServerConfig{GRPCAddr: "a", HTTPAddr: "b"},
				Database: DatabaseConfig{Path: "./test.db"},
				Auth:     AuthConfig{JWTSecret: "s"},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErrSubstr)
					return
				}
				if !strings.Contains(err.Error(), tt.wantErrSubstr) {
					t.Errorf("Validate() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
				}
			} else {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single env var",
			input:    "${FOO}",
			expected: "bar",
		},
		{
			name:     "env var with surrounding text",
			input:    "prefix-${FOO}-suffix",
			expected: "prefix-bar-suffix",
		},
		{
			name:     "multiple env vars",
			input:    "${FOO}/${BAZ}",
			expected: "bar/qux",
		},
		{
			name:     "no env vars",
			input:    "no-vars-here",
			expected: "no-vars-here",
		},
		{
			name:     "unset env var",
			input:    "${UNSET_VAR}",
			expected: "",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
