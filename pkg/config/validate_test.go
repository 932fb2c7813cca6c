package config

import (
	"strings"
	"testing"
)

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate_DefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidate_MissingListenAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.ListenAddress = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("empty listen address should fail validation")
	}
	if !strings.Contains(err.Error(), "server.listen_address") {
		t.Errorf("error should name the field, got: %v", err)
	}
}

func TestValidate_RateLimit(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RateLimitConfig)
		field  string
	}{
		{
			name:   "negative token rate",
			mutate: func(c *RateLimitConfig) { c.TokenRate = -1 },
			field:  "governance.rate_limit.token_rate",
		},
		{
			name:   "negative capacity",
			mutate: func(c *RateLimitConfig) { c.BucketCapacity = -5 },
			field:  "governance.rate_limit.bucket_capacity",
		},
		{
			name:   "cost exceeds capacity",
			mutate: func(c *RateLimitConfig) { c.TokensPerRequest = 200 },
			field:  "governance.rate_limit.tokens_per_request",
		},
		{
			name:   "unknown strategy",
			mutate: func(c *RateLimitConfig) { c.Strategy = "ip" },
			field:  "governance.rate_limit.strategy",
		},
		{
			name:   "non-error status code",
			mutate: func(c *RateLimitConfig) { c.ResponseStatusCode = 200 },
			field:  "governance.rate_limit.response_status_code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg.Governance.RateLimit)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error should mention %s, got: %v", tt.field, err)
			}
		})
	}
}

func TestValidate_CircuitBreaker(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CircuitBreakerConfig)
		field  string
	}{
		{
			name:   "failure rate above one",
			mutate: func(c *CircuitBreakerConfig) { c.FailureRateThreshold = 1.5 },
			field:  "governance.circuit_breaker.failure_rate_threshold",
		},
		{
			name:   "negative reset timeout",
			mutate: func(c *CircuitBreakerConfig) { c.ResetTimeout = -1 },
			field:  "governance.circuit_breaker.reset_timeout",
		},
		{
			name:   "negative failure threshold",
			mutate: func(c *CircuitBreakerConfig) { c.FailureThreshold = -2 },
			field:  "governance.circuit_breaker.failure_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg.Governance.CircuitBreaker)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error should mention %s, got: %v", tt.field, err)
			}
		})
	}
}

func TestValidate_Storage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = "postgres"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("unknown backend should fail validation")
	}
	if !strings.Contains(err.Error(), "storage.backend") {
		t.Errorf("error should mention storage.backend, got: %v", err)
	}
}

func TestValidate_SQLiteRequiresPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.SQLite.Path = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("sqlite backend without path should fail validation")
	}
}

func TestValidate_Telemetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telemetry.Logging.Level = "verbose"
	cfg.Telemetry.Metrics.Path = "metrics"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(verr.Errors), verr)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.ListenAddress = ""
	cfg.Governance.RateLimit.TokenRate = -1
	cfg.Storage.Backend = "bogus"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if len(verr.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(verr.Errors), verr)
	}
}

// =============================================================================
// Defaults Tests
// =============================================================================

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	first := *cfg
	ApplyDefaults(cfg)
	if *cfg != first {
		t.Error("ApplyDefaults should be idempotent")
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Governance.RateLimit.BucketCapacity = 42
	cfg.Governance.CircuitBreaker.FailureThreshold = 9
	cfg.Telemetry.Logging.Format = "text"

	ApplyDefaults(cfg)

	if cfg.Governance.RateLimit.BucketCapacity != 42 {
		t.Errorf("BucketCapacity = %v, explicit value should survive", cfg.Governance.RateLimit.BucketCapacity)
	}
	if cfg.Governance.CircuitBreaker.FailureThreshold != 9 {
		t.Errorf("FailureThreshold = %v, explicit value should survive", cfg.Governance.CircuitBreaker.FailureThreshold)
	}
	if cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("Format = %q, explicit value should survive", cfg.Telemetry.Logging.Format)
	}
}
