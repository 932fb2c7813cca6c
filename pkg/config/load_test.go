package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfigFile writes a temporary YAML config file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// =============================================================================
// LoadConfig Tests
// =============================================================================

func TestLoadConfig_Minimal(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "127.0.0.1:9090"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:9090" {
		t.Errorf("ListenAddress = %q, want 127.0.0.1:9090", cfg.Server.ListenAddress)
	}
	// Defaults filled in for everything else.
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, DefaultReadTimeout)
	}
	if cfg.Governance.RateLimit.BucketCapacity != DefaultRateLimitBucketCapacity {
		t.Errorf("BucketCapacity = %v, want %v", cfg.Governance.RateLimit.BucketCapacity, DefaultRateLimitBucketCapacity)
	}
	if cfg.Governance.CircuitBreaker.ResetTimeout != DefaultBreakerResetTimeout {
		t.Errorf("ResetTimeout = %v, want %v", cfg.Governance.CircuitBreaker.ResetTimeout, DefaultBreakerResetTimeout)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Storage.Backend)
	}
}

func TestLoadConfig_FullGovernanceSection(t *testing.T) {
	path := writeConfigFile(t, `
governance:
  breaker_name: "upstream"
  rate_limit:
    strategy: "tenant"
    bucket_capacity: 50
    token_rate: 5
    window: 30s
    skip_failed_requests: true
  circuit_breaker:
    failure_threshold: 3
    reset_timeout: 10s
    half_open_max_requests: 2
  perf_monitor:
    window: 30s
    keep_windows: 10
    by_route: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Governance.BreakerName != "upstream" {
		t.Errorf("BreakerName = %q, want upstream", cfg.Governance.BreakerName)
	}
	rl := cfg.Governance.RateLimit
	if rl.Strategy != "tenant" || rl.BucketCapacity != 50 || rl.TokenRate != 5 {
		t.Errorf("rate limit = %+v, want tenant/50/5", rl)
	}
	if rl.Window != 30*time.Second {
		t.Errorf("Window = %v, want 30s", rl.Window)
	}
	if !rl.SkipFailedRequests {
		t.Error("SkipFailedRequests should be true")
	}
	cb := cfg.Governance.CircuitBreaker
	if cb.FailureThreshold != 3 || cb.ResetTimeout != 10*time.Second || cb.HalfOpenMaxRequests != 2 {
		t.Errorf("circuit breaker = %+v, want 3/10s/2", cb)
	}
	pm := cfg.Governance.PerfMonitor
	if pm.Window != 30*time.Second || pm.KeepWindows != 10 || !pm.ByRoute {
		t.Errorf("perf monitor = %+v, want 30s/10/by_route", pm)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("LoadConfig() with missing file should return error")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not a mapping")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig() with invalid YAML should return error")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfigFile(t, `
governance:
  rate_limit:
    strategy: "ip"
`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig() with unknown strategy should return error")
	}
}

// =============================================================================
// Environment Override Tests
// =============================================================================

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "127.0.0.1:8080"
governance:
  rate_limit:
    strategy: "user"
`)

	t.Setenv("SENTINEL_SERVER_LISTEN_ADDRESS", "0.0.0.0:9999")
	t.Setenv("SENTINEL_RATE_LIMIT_STRATEGY", "tenant")
	t.Setenv("SENTINEL_CIRCUIT_BREAKER_FAILURE_THRESHOLD", "7")
	t.Setenv("SENTINEL_STORAGE_BACKEND", "sqlite")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9999" {
		t.Errorf("ListenAddress = %q, env override should win", cfg.Server.ListenAddress)
	}
	if cfg.Governance.RateLimit.Strategy != "tenant" {
		t.Errorf("Strategy = %q, env override should win", cfg.Governance.RateLimit.Strategy)
	}
	if cfg.Governance.CircuitBreaker.FailureThreshold != 7 {
		t.Errorf("FailureThreshold = %d, want 7", cfg.Governance.CircuitBreaker.FailureThreshold)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", cfg.Storage.Backend)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "127.0.0.1:8080"
`)

	// Invalid values should fail re-validation after overrides.
	t.Setenv("SENTINEL_RATE_LIMIT_STRATEGY", "bogus")

	_, err := LoadConfigWithEnvOverrides(path)
	if err == nil {
		t.Fatal("invalid env override should fail validation")
	}
}
