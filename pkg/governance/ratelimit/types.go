package ratelimit

import (
	"fmt"
	"time"
)

// Strategy selects how the rate-limit key is derived from a request.
type Strategy string

const (
	// StrategyGlobal applies one shared bucket to all traffic.
	StrategyGlobal Strategy = "global"

	// StrategyUser derives the key from the authenticated user.
	StrategyUser Strategy = "user"

	// StrategyTenant derives the key from the tenant identifier.
	StrategyTenant Strategy = "tenant"

	// StrategyEndpoint derives the key from method and path.
	StrategyEndpoint Strategy = "endpoint"

	// StrategyCustom delegates key derivation to Config.KeyFunc.
	StrategyCustom Strategy = "custom"
)

// globalKey is the bucket used when no more specific key can be derived.
const globalKey = "global"

// Request carries the request attributes key derivation may use.
// It is a plain value type with no hidden state.
type Request struct {
	ClientIP string
	UserID   string
	TenantID string
	Method   string
	Path     string
}

// KeyFunc derives a rate-limit key from a request. Returning an error (or
// panicking) makes the limiter fall back to the global key.
type KeyFunc func(Request) (string, error)

// ResponseConfig describes the HTTP response emitted on rejection.
type ResponseConfig struct {
	// StatusCode is the rejection status. Defaults to 429.
	StatusCode int

	// Message is the human-readable rejection message.
	Message string

	// Headers are extra headers added to the rejection response.
	Headers map[string]string
}

// Config configures a Limiter. Zero values take the documented defaults.
type Config struct {
	// Window is the nominal rate-limit window. It is informational for
	// reporting and drives idle-bucket eviction (buckets untouched for
	// 2×Window are removed). Defaults to 1 minute.
	Window time.Duration

	// MaxRequests is the limit reported in X-RateLimit-Limit. Defaults to
	// BucketCapacity.
	MaxRequests int

	// BucketCapacity is the maximum number of tokens per key. Defaults to 100.
	BucketCapacity float64

	// TokenRate is the refill speed in tokens per second. Defaults to 10.
	TokenRate float64

	// TokensPerRequest is the cost of one admitted request. Defaults to 1.
	TokensPerRequest float64

	// Strategy selects key derivation. Defaults to StrategyGlobal.
	Strategy Strategy

	// KeyFunc overrides Strategy when set.
	KeyFunc KeyFunc

	// SkipSuccessfulRequests leaves the bucket untouched when the request
	// completed successfully.
	SkipSuccessfulRequests bool

	// SkipFailedRequests leaves the bucket untouched when the request failed.
	SkipFailedRequests bool

	// Response configures the rejection response.
	Response ResponseConfig
}

// Decision is the immutable result of a single admission check.
type Decision struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Key is the bucket key the decision was made against. Pass it to
	// Consume once the request outcome is known.
	Key string

	// Remaining is the token count left in the bucket after the check.
	Remaining float64

	// ResetAt is when enough tokens for one request will be available.
	ResetAt time.Time

	// Limit is the reported request limit.
	Limit int

	// RetryAfter is how long the caller should wait before retrying.
	// Zero when the request was allowed.
	RetryAfter time.Duration
}

// applyDefaults fills zero config fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Window == 0 {
		c.Window = time.Minute
	}
	if c.BucketCapacity == 0 {
		c.BucketCapacity = 100
	}
	if c.TokenRate == 0 {
		c.TokenRate = 10
	}
	if c.TokensPerRequest == 0 {
		c.TokensPerRequest = 1
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = int(c.BucketCapacity)
	}
	if c.Strategy == "" {
		c.Strategy = StrategyGlobal
	}
	if c.Response.StatusCode == 0 {
		c.Response.StatusCode = 429
	}
	if c.Response.Message == "" {
		c.Response.Message = "rate limit exceeded"
	}
}

// validate rejects configurations that could never serve a request.
// Validation runs at construction time, before any traffic is admitted.
func (c *Config) validate() error {
	if c.Window < 0 {
		return fmt.Errorf("window must not be negative, got %v", c.Window)
	}
	if c.BucketCapacity < 0 {
		return fmt.Errorf("bucket capacity must not be negative, got %v", c.BucketCapacity)
	}
	if c.TokenRate < 0 {
		return fmt.Errorf("token rate must not be negative, got %v", c.TokenRate)
	}
	if c.TokensPerRequest < 0 {
		return fmt.Errorf("tokens per request must not be negative, got %v", c.TokensPerRequest)
	}
	if c.TokensPerRequest > c.BucketCapacity {
		return fmt.Errorf("tokens per request (%v) exceeds bucket capacity (%v)",
			c.TokensPerRequest, c.BucketCapacity)
	}
	if c.Strategy == StrategyCustom && c.KeyFunc == nil {
		return fmt.Errorf("custom strategy requires a key function")
	}
	switch c.Strategy {
	case StrategyGlobal, StrategyUser, StrategyTenant, StrategyEndpoint, StrategyCustom:
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	return nil
}
