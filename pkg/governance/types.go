package governance

import (
	"time"

	"relay-hq/sentinel/pkg/governance/circuit"
	"relay-hq/sentinel/pkg/governance/ratelimit"
)

// RequestInfo carries the request attributes the governance layer needs.
// It is decoupled from net/http so the facade can sit behind any adapter.
type RequestInfo struct {
	ClientIP string
	UserID   string
	TenantID string
	Method   string
	Path     string
}

// DenialKind classifies why admission was refused.
type DenialKind string

const (
	// DenialRateLimit means the per-key quota is exhausted (429).
	DenialRateLimit DenialKind = "rate_limit"

	// DenialCircuitOpen means the breaker is rejecting traffic (503).
	DenialCircuitOpen DenialKind = "circuit_open"
)

// Decision is the outcome of an admission check. When Denied is empty the
// request may proceed; RateLimit is populated either way so the adapter can
// set X-RateLimit-* headers on admitted responses too.
type Decision struct {
	// Denied is empty for admitted requests.
	Denied DenialKind

	// RateLimit is the rate limiter's decision for this request.
	RateLimit ratelimit.Decision

	// Breaker is a snapshot of breaker stats, taken when the breaker was
	// consulted (admitted requests and circuit denials; zero for rate-limit
	// denials, which short-circuit before the breaker).
	Breaker circuit.Stats

	// BreakerAdmitted records whether the breaker admitted this request.
	// The adapter must hand it back via AfterSuccess/AfterFailure so
	// half-open trial accounting stays balanced.
	BreakerAdmitted bool
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Denied == ""
}

// Admitter decides whether a request may proceed. Both the rate limiter
// and the circuit breaker satisfy this capability through the Governor.
type Admitter interface {
	BeforeRoute(req RequestInfo) Decision
}

// OutcomeRecorder receives request outcomes after the handler ran.
type OutcomeRecorder interface {
	AfterSuccess(req RequestInfo, decision Decision, duration time.Duration, statusCode int)
	AfterFailure(req RequestInfo, decision Decision, duration time.Duration, err error)
}
