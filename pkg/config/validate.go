package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateRateLimit(&cfg.Governance.RateLimit)...)
	errs = append(errs, validateCircuitBreaker(&cfg.Governance.CircuitBreaker)...)
	errs = append(errs, validatePerfMonitor(&cfg.Governance.PerfMonitor)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates HTTP server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.UpstreamURL != "" {
		if u, err := url.Parse(cfg.UpstreamURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "server.upstream_url",
				Message: "upstream URL must be an absolute http(s) URL",
			})
		}
	}

	return errs
}

// validateRateLimit validates rate limiter configuration.
func validateRateLimit(cfg *RateLimitConfig) []FieldError {
	var errs []FieldError

	if cfg.Window < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.rate_limit.window",
			Message: "window must be positive",
		})
	}
	if cfg.BucketCapacity < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.rate_limit.bucket_capacity",
			Message: "bucket capacity must be positive",
		})
	}
	if cfg.TokenRate < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.rate_limit.token_rate",
			Message: "token rate must be positive",
		})
	}
	if cfg.TokensPerRequest < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.rate_limit.tokens_per_request",
			Message: "tokens per request must be positive",
		})
	}
	if cfg.TokensPerRequest > cfg.BucketCapacity && cfg.BucketCapacity > 0 {
		errs = append(errs, FieldError{
			Field:   "governance.rate_limit.tokens_per_request",
			Message: "tokens per request cannot exceed bucket capacity",
		})
	}
	switch cfg.Strategy {
	case "", "global", "user", "tenant", "endpoint":
	default:
		errs = append(errs, FieldError{
			Field:   "governance.rate_limit.strategy",
			Message: fmt.Sprintf("unknown strategy %q (expected global, user, tenant, or endpoint)", cfg.Strategy),
		})
	}
	if cfg.ResponseStatusCode != 0 && (cfg.ResponseStatusCode < 400 || cfg.ResponseStatusCode > 599) {
		errs = append(errs, FieldError{
			Field:   "governance.rate_limit.response_status_code",
			Message: "response status code must be a 4xx or 5xx status",
		})
	}

	return errs
}

// validateCircuitBreaker validates circuit breaker configuration.
func validateCircuitBreaker(cfg *CircuitBreakerConfig) []FieldError {
	var errs []FieldError

	if cfg.FailureThreshold < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.circuit_breaker.failure_threshold",
			Message: "failure threshold must be positive",
		})
	}
	if cfg.FailureRateThreshold < 0 || cfg.FailureRateThreshold > 1 {
		errs = append(errs, FieldError{
			Field:   "governance.circuit_breaker.failure_rate_threshold",
			Message: "failure rate threshold must be between 0 and 1",
		})
	}
	if cfg.VolumeThreshold < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.circuit_breaker.volume_threshold",
			Message: "volume threshold must be non-negative",
		})
	}
	if cfg.ResetTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.circuit_breaker.reset_timeout",
			Message: "reset timeout must be positive",
		})
	}
	if cfg.HalfOpenMaxRequests < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.circuit_breaker.half_open_max_requests",
			Message: "half open max requests must be positive",
		})
	}
	if cfg.ResponseStatusCode != 0 && (cfg.ResponseStatusCode < 400 || cfg.ResponseStatusCode > 599) {
		errs = append(errs, FieldError{
			Field:   "governance.circuit_breaker.response_status_code",
			Message: "response status code must be a 4xx or 5xx status",
		})
	}

	return errs
}

// validatePerfMonitor validates performance monitor configuration.
func validatePerfMonitor(cfg *PerfMonitorConfig) []FieldError {
	var errs []FieldError

	if cfg.Window < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.perf_monitor.window",
			Message: "window must be positive",
		})
	}
	if cfg.KeepWindows < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.perf_monitor.keep_windows",
			Message: "keep windows must be positive",
		})
	}
	if cfg.RingCapacity < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.perf_monitor.ring_capacity",
			Message: "ring capacity must be positive",
		})
	}

	return errs
}

// validateStorage validates storage configuration.
func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "", "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("unknown backend %q (expected memory or sqlite)", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "storage.sqlite.path",
			Message: "sqlite path is required when backend is sqlite",
		})
	}
	if cfg.MaxEntries < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.max_entries",
			Message: "max entries must be non-negative",
		})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.retention_days",
			Message: "retention days must be non-negative",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown log level %q (expected debug, info, warn, or error)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown log format %q (expected json or text)", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	return errs
}
