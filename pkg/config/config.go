package config

import "time"

// Config is the root configuration structure for Sentinel.
// It contains all configuration sections for the HTTP server, the
// governance subsystems (rate limiting, circuit breaking, performance
// monitoring), storage, maintenance, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and header limits.
	Server ServerConfig `yaml:"server"`

	// Governance contains configuration for the request governance
	// subsystems: rate limiter, circuit breaker, and performance monitor.
	Governance GovernanceConfig `yaml:"governance"`

	// Storage contains configuration for the flight recorder backend that
	// persists closed performance windows and breaker transitions.
	Storage StorageConfig `yaml:"storage"`

	// Maintenance contains configuration for background maintenance jobs
	// such as idle bucket eviction and breaker re-evaluation.
	Maintenance MaintenanceConfig `yaml:"maintenance"`

	// Telemetry contains configuration for observability including logging
	// and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Watch enables automatic reloading when the configuration file changes.
	// Default: false
	Watch bool `yaml:"watch"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A zero or negative value means no timeout.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If IdleTimeout is zero, ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// If requests are still in-flight after this timeout, the server will
	// force shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values, including the
	// request line. It does not limit the size of the request body.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// UpstreamURL is the backend the governed traffic is proxied to.
	// When empty, a built-in status handler answers instead, which is
	// useful for smoke testing the governance chain.
	UpstreamURL string `yaml:"upstream_url"`
}

// GovernanceConfig contains configuration for the governance subsystems.
type GovernanceConfig struct {
	// BreakerName identifies the circuit breaker in logs and persisted
	// transition records.
	// Default: "default"
	BreakerName string `yaml:"breaker_name"`

	// RateLimit contains token bucket rate limiter configuration.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// CircuitBreaker contains circuit breaker configuration.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`

	// PerfMonitor contains performance monitor configuration.
	PerfMonitor PerfMonitorConfig `yaml:"perf_monitor"`
}

// RateLimitConfig contains configuration for the token bucket rate limiter.
type RateLimitConfig struct {
	// Window is the nominal quota window. It sizes the idle eviction
	// horizon (buckets untouched for 2x the window are evicted).
	// Default: 1m
	Window time.Duration `yaml:"window"`

	// BucketCapacity is the maximum number of tokens a bucket can hold.
	// Default: 100
	BucketCapacity float64 `yaml:"bucket_capacity"`

	// TokenRate is the refill rate in tokens per second.
	// Default: 10
	TokenRate float64 `yaml:"token_rate"`

	// TokensPerRequest is the token cost of a single request.
	// Default: 1
	TokensPerRequest float64 `yaml:"tokens_per_request"`

	// MaxRequests is the advisory limit reported to clients in rate limit
	// headers. Zero means BucketCapacity is reported instead.
	MaxRequests int `yaml:"max_requests"`

	// Strategy selects the bucket key derivation.
	// Options: "global", "user", "tenant", "endpoint"
	// Default: "global"
	Strategy string `yaml:"strategy"`

	// SkipSuccessfulRequests refunds tokens for requests that complete
	// successfully.
	// Default: false
	SkipSuccessfulRequests bool `yaml:"skip_successful_requests"`

	// SkipFailedRequests refunds tokens for requests that fail.
	// Default: false
	SkipFailedRequests bool `yaml:"skip_failed_requests"`

	// ResponseStatusCode is the HTTP status returned on rate limited
	// requests.
	// Default: 429
	ResponseStatusCode int `yaml:"response_status_code"`

	// ResponseMessage is an optional message body override for rate
	// limited responses.
	ResponseMessage string `yaml:"response_message"`
}

// CircuitBreakerConfig contains configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	// Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// FailureRateThreshold is the failure ratio (0..1] that opens the
	// circuit once VolumeThreshold requests have been observed.
	// Default: 0.5
	FailureRateThreshold float64 `yaml:"failure_rate_threshold"`

	// VolumeThreshold is the minimum number of observed requests before
	// the failure rate is considered.
	// Default: 10
	VolumeThreshold int `yaml:"volume_threshold"`

	// ResetTimeout is how long the circuit stays open before admitting
	// trial requests.
	// Default: 30s
	ResetTimeout time.Duration `yaml:"reset_timeout"`

	// MonitoringPeriod is the interval of the background re-evaluation
	// ticker.
	// Default: 1s
	MonitoringPeriod time.Duration `yaml:"monitoring_period"`

	// HalfOpenMaxRequests is the number of concurrent trial requests
	// admitted in the half-open state.
	// Default: 1
	HalfOpenMaxRequests int `yaml:"half_open_max_requests"`

	// DisableAutoRecovery keeps the circuit open until an operator closes
	// it manually.
	// Default: false
	DisableAutoRecovery bool `yaml:"disable_auto_recovery"`

	// ResponseStatusCode is the HTTP status returned while the circuit is
	// open.
	// Default: 503
	ResponseStatusCode int `yaml:"response_status_code"`

	// ResponseMessage is an optional message body override for rejected
	// requests.
	ResponseMessage string `yaml:"response_message"`
}

// PerfMonitorConfig contains configuration for the performance monitor.
type PerfMonitorConfig struct {
	// Window is the duration of each aggregation window.
	// Default: 1m
	Window time.Duration `yaml:"window"`

	// KeepWindows is the number of closed windows retained in memory.
	// Default: 5
	KeepWindows int `yaml:"keep_windows"`

	// RingCapacity is the per-window latency sample capacity. Once full,
	// the oldest samples are overwritten.
	// Default: 2048
	RingCapacity int `yaml:"ring_capacity"`

	// ByRoute enables per-route latency rollups within each window.
	// Default: false
	ByRoute bool `yaml:"by_route"`

	// ByMethod enables per-method latency rollups within each window.
	// Default: false
	ByMethod bool `yaml:"by_method"`

	// ByStatusBucket enables per-status-class (2xx/4xx/5xx) rollups
	// within each window.
	// Default: false
	ByStatusBucket bool `yaml:"by_status_bucket"`
}

// StorageConfig contains configuration for the flight recorder backend.
type StorageConfig struct {
	// Disabled turns off persistence of closed windows and breaker
	// transitions.
	// Default: false
	Disabled bool `yaml:"disabled"`

	// Backend selects the storage backend.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// MaxEntries bounds the number of records kept per record type in the
	// memory backend.
	// Default: 4096
	MaxEntries int `yaml:"max_entries"`

	// SQLite contains SQLite backend settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// RetentionDays is how long persisted records are kept before the
	// maintenance sweep removes them. Zero disables retention cleanup.
	// Default: 7
	RetentionDays int `yaml:"retention_days"`
}

// SQLiteConfig contains SQLite-specific storage settings.
type SQLiteConfig struct {
	// Path is the SQLite database file path.
	// Default: "data/sentinel.db"
	Path string `yaml:"path"`
}

// MaintenanceConfig contains configuration for background maintenance jobs.
type MaintenanceConfig struct {
	// Disabled turns off the maintenance scheduler.
	// Default: false
	Disabled bool `yaml:"disabled"`

	// CleanupSchedule is the cron expression for the idle bucket eviction
	// and storage retention sweep.
	// Default: "*/5 * * * *" (every 5 minutes)
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Disabled turns off the metrics endpoint.
	// Default: false
	Disabled bool `yaml:"disabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
