package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Governance defaults
	DefaultBreakerName = "default"

	// Rate limit defaults
	DefaultRateLimitWindow           = time.Minute
	DefaultRateLimitBucketCapacity   = 100.0
	DefaultRateLimitTokenRate        = 10.0
	DefaultRateLimitTokensPerRequest = 1.0
	DefaultRateLimitStrategy         = "global"
	DefaultRateLimitStatusCode       = 429

	// Circuit breaker defaults
	DefaultBreakerFailureThreshold     = 5
	DefaultBreakerFailureRateThreshold = 0.5
	DefaultBreakerVolumeThreshold      = 10
	DefaultBreakerResetTimeout         = 30 * time.Second
	DefaultBreakerMonitoringPeriod     = time.Second
	DefaultBreakerHalfOpenMaxRequests  = 1
	DefaultBreakerStatusCode           = 503

	// Performance monitor defaults
	DefaultPerfWindow       = time.Minute
	DefaultPerfKeepWindows  = 5
	DefaultPerfRingCapacity = 2048

	// Storage defaults
	DefaultStorageBackend       = "memory"
	DefaultStorageMaxEntries    = 4096
	DefaultStorageSQLitePath    = "data/sentinel.db"
	DefaultStorageRetentionDays = 7

	// Maintenance defaults
	DefaultCleanupSchedule = "*/5 * * * *"

	// Telemetry defaults
	DefaultLoggingLevel = "info"
	DefaultLoggingFormat = "json"
	DefaultMetricsPath   = "/metrics"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Governance defaults
	if cfg.Governance.BreakerName == "" {
		cfg.Governance.BreakerName = DefaultBreakerName
	}

	// Rate limit defaults
	rl := &cfg.Governance.RateLimit
	if rl.Window == 0 {
		rl.Window = DefaultRateLimitWindow
	}
	if rl.BucketCapacity == 0 {
		rl.BucketCapacity = DefaultRateLimitBucketCapacity
	}
	if rl.TokenRate == 0 {
		rl.TokenRate = DefaultRateLimitTokenRate
	}
	if rl.TokensPerRequest == 0 {
		rl.TokensPerRequest = DefaultRateLimitTokensPerRequest
	}
	if rl.Strategy == "" {
		rl.Strategy = DefaultRateLimitStrategy
	}
	if rl.ResponseStatusCode == 0 {
		rl.ResponseStatusCode = DefaultRateLimitStatusCode
	}

	// Circuit breaker defaults
	cb := &cfg.Governance.CircuitBreaker
	if cb.FailureThreshold == 0 {
		cb.FailureThreshold = DefaultBreakerFailureThreshold
	}
	if cb.FailureRateThreshold == 0 {
		cb.FailureRateThreshold = DefaultBreakerFailureRateThreshold
	}
	if cb.VolumeThreshold == 0 {
		cb.VolumeThreshold = DefaultBreakerVolumeThreshold
	}
	if cb.ResetTimeout == 0 {
		cb.ResetTimeout = DefaultBreakerResetTimeout
	}
	if cb.MonitoringPeriod == 0 {
		cb.MonitoringPeriod = DefaultBreakerMonitoringPeriod
	}
	if cb.HalfOpenMaxRequests == 0 {
		cb.HalfOpenMaxRequests = DefaultBreakerHalfOpenMaxRequests
	}
	if cb.ResponseStatusCode == 0 {
		cb.ResponseStatusCode = DefaultBreakerStatusCode
	}

	// Performance monitor defaults
	pm := &cfg.Governance.PerfMonitor
	if pm.Window == 0 {
		pm.Window = DefaultPerfWindow
	}
	if pm.KeepWindows == 0 {
		pm.KeepWindows = DefaultPerfKeepWindows
	}
	if pm.RingCapacity == 0 {
		pm.RingCapacity = DefaultPerfRingCapacity
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.MaxEntries == 0 {
		cfg.Storage.MaxEntries = DefaultStorageMaxEntries
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultStorageSQLitePath
	}
	if cfg.Storage.RetentionDays == 0 {
		cfg.Storage.RetentionDays = DefaultStorageRetentionDays
	}

	// Maintenance defaults
	if cfg.Maintenance.CleanupSchedule == "" {
		cfg.Maintenance.CleanupSchedule = DefaultCleanupSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
