// Package config provides configuration management for Sentinel.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SENTINEL_SECTION_FIELD.
// For example:
//
//   - SENTINEL_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - SENTINEL_RATE_LIMIT_STRATEGY overrides governance.rate_limit.strategy
//   - SENTINEL_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// When watch is enabled, a FileWatcher monitors the configuration file and
// invokes a reload callback after changes settle:
//
//	watcher, err := config.NewFileWatcher("config.yaml", logger)
//	go watcher.Watch(ctx, func() error {
//	    cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	    ...
//	})
//
// # Validation
//
// All configuration is validated automatically during loading. Validation includes:
//
//   - Required field checks (e.g., listen address)
//   - Range validation (e.g., failure rate threshold must be in [0, 1])
//   - Enum validation (e.g., strategy, storage backend, log level)
//
// Validation errors include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - governance.rate_limit.strategy: unknown strategy "ip"
//	  - storage.backend: unknown backend "postgres" (expected memory or sqlite)
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	server:
//	  listen_address: "127.0.0.1:8080"
//
//	governance:
//	  rate_limit:
//	    strategy: "user"
//	    bucket_capacity: 100
//	    token_rate: 10
//	  circuit_breaker:
//	    failure_threshold: 5
//	    reset_timeout: "30s"
//
//	storage:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "data/sentinel.db"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
package config
