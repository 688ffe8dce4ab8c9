// Package config handles configuration loading for zero-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults: unset durations stay
// zero and the consuming component applies its own default.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${ZERO_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	lockout:
//	  window: "10m"
//	  base_ban: "30m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  grpc_addr: "0.0.0.0:50051"  # Device and agent connections
//	  http_addr: "0.0.0.0:8080"   # API and control UI
//
// Database:
//
//	database:
//	  path: "/var/lib/zero/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${ZERO_JWT_SECRET}"   # Required
//	  allow_insecure_control_ui: false   # Shared local secrets for devices
//
// Brute-force lockout:
//
//	lockout:
//	  threshold: 30        # Failures within the window before a block
//	  window: "10m"
//	  base_ban: "30m"      # Doubles per repeat offense, capped at max_ban
//	  max_ban: "24h"
//	  retention: "2h"      # Idle record garbage collection
//	  base_delay: "100ms"  # Tarpit, doubles per consecutive failure
//	  max_delay: "10s"
//	  max_clients: 4096    # Ledger capacity, least-recent evicted
//
// Browser sessions:
//
//	session:
//	  lifetime: "8760h"  # One year
//
// Emergency lockdown:
//
//	panic:
//	  reset_key_hash: "${ZERO_PANIC_RESET_HASH}"  # bcrypt; empty disables reset
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
