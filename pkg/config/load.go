package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. The configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention SENTINEL_SECTION_FIELD (e.g., SENTINEL_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	// Re-validate after overrides
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format SENTINEL_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("SENTINEL_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("SENTINEL_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("SENTINEL_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("SENTINEL_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := os.Getenv("SENTINEL_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if val := os.Getenv("SENTINEL_SERVER_MAX_HEADER_BYTES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.MaxHeaderBytes = i
		}
	}
	if val := os.Getenv("SENTINEL_SERVER_UPSTREAM_URL"); val != "" {
		cfg.Server.UpstreamURL = val
	}

	// Rate limit overrides
	if val := os.Getenv("SENTINEL_RATE_LIMIT_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Governance.RateLimit.Window = d
		}
	}
	if val := os.Getenv("SENTINEL_RATE_LIMIT_BUCKET_CAPACITY"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Governance.RateLimit.BucketCapacity = f
		}
	}
	if val := os.Getenv("SENTINEL_RATE_LIMIT_TOKEN_RATE"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Governance.RateLimit.TokenRate = f
		}
	}
	if val := os.Getenv("SENTINEL_RATE_LIMIT_STRATEGY"); val != "" {
		cfg.Governance.RateLimit.Strategy = val
	}

	// Circuit breaker overrides
	if val := os.Getenv("SENTINEL_CIRCUIT_BREAKER_FAILURE_THRESHOLD"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Governance.CircuitBreaker.FailureThreshold = i
		}
	}
	if val := os.Getenv("SENTINEL_CIRCUIT_BREAKER_RESET_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Governance.CircuitBreaker.ResetTimeout = d
		}
	}
	if val := os.Getenv("SENTINEL_CIRCUIT_BREAKER_FAILURE_RATE_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Governance.CircuitBreaker.FailureRateThreshold = f
		}
	}

	// Performance monitor overrides
	if val := os.Getenv("SENTINEL_PERF_MONITOR_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Governance.PerfMonitor.Window = d
		}
	}

	// Storage overrides
	if val := os.Getenv("SENTINEL_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("SENTINEL_STORAGE_SQLITE_PATH"); val != "" {
		cfg.Storage.SQLite.Path = val
	}
	if val := os.Getenv("SENTINEL_STORAGE_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Storage.RetentionDays = i
		}
	}

	// Maintenance overrides
	if val := os.Getenv("SENTINEL_MAINTENANCE_CLEANUP_SCHEDULE"); val != "" {
		cfg.Maintenance.CleanupSchedule = val
	}

	// Telemetry overrides
	if val := os.Getenv("SENTINEL_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("SENTINEL_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("SENTINEL_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
}
