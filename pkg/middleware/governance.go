package middleware

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"relay-hq/sentinel/pkg/governance"
)

// Header names set by the governance middleware.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
	HeaderBreakerState       = "X-Circuit-Breaker-State"
	HeaderBreakerFailureRate = "X-Circuit-Breaker-Failure-Rate"

	// Headers request attributes are extracted from by default.
	headerUserID   = "X-User-ID"
	headerTenantID = "X-Tenant-ID"
)

// ExtractFunc derives the governance request attributes from an incoming
// HTTP request.
type ExtractFunc func(*http.Request) governance.RequestInfo

// Governance is the request-lifecycle adapter for the governance layer.
//
// Per request it:
//   - calls BeforeRoute and short-circuits with 429 (rate limited) or 503
//     (circuit open), with diagnostic headers and a structured JSON body
//   - sets X-RateLimit-* headers on admitted responses as well
//   - records the outcome: AfterSuccess once the handler returned, or
//     AfterFailure when the handler panicked (the panic is re-raised for
//     the outer Recovery middleware to answer)
//
// A nil extract uses DefaultExtract.
func Governance(gov *governance.Governor, extract ExtractFunc) func(http.Handler) http.Handler {
	if extract == nil {
		extract = DefaultExtract
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := extract(r)

			decision := gov.BeforeRoute(info)
			setRateLimitHeaders(w, decision)

			switch decision.Denied {
			case governance.DenialRateLimit:
				writeRateLimited(w, gov, decision)
				return
			case governance.DenialCircuitOpen:
				writeCircuitOpen(w, gov, decision)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)

			defer func() {
				if p := recover(); p != nil {
					gov.AfterFailure(info, decision, time.Since(start),
						fmt.Errorf("handler panic: %v", p))
					panic(p)
				}
			}()

			next.ServeHTTP(rw, r)

			gov.AfterSuccess(info, decision, time.Since(start), rw.statusCode)
		})
	}
}

// DefaultExtract derives request attributes from standard headers: the
// client IP from X-Forwarded-For or the remote address, the user from
// X-User-ID, and the tenant from X-Tenant-ID.
func DefaultExtract(r *http.Request) governance.RequestInfo {
	return governance.RequestInfo{
		ClientIP: clientIP(r),
		UserID:   r.Header.Get(headerUserID),
		TenantID: r.Header.Get(headerTenantID),
		Method:   r.Method,
		Path:     r.URL.Path,
	}
}

// clientIP extracts the originating client IP.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the original client.
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// setRateLimitHeaders sets X-RateLimit-* on every governed response, so
// clients can pace themselves before hitting the limit.
func setRateLimitHeaders(w http.ResponseWriter, decision governance.Decision) {
	rl := decision.RateLimit
	w.Header().Set(HeaderRateLimitLimit, fmt.Sprintf("%d", rl.Limit))
	remaining := int(rl.Remaining)
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set(HeaderRateLimitRemaining, fmt.Sprintf("%d", remaining))
	w.Header().Set(HeaderRateLimitReset, fmt.Sprintf("%d", rl.ResetAt.Unix()))
}

// writeRateLimited emits the configured rate-limit rejection.
func writeRateLimited(w http.ResponseWriter, gov *governance.Governor, decision governance.Decision) {
	cfg := gov.Limiter().Config().Response
	retryAfter := int(decision.RateLimit.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set(HeaderRetryAfter, fmt.Sprintf("%d", retryAfter))
	for k, v := range cfg.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(cfg.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":      "rate_limit_exceeded",
		"message":    cfg.Message,
		"retryAfter": retryAfter,
	})
}

// writeCircuitOpen emits the configured breaker rejection.
func writeCircuitOpen(w http.ResponseWriter, gov *governance.Governor, decision governance.Decision) {
	cfg := gov.Breaker().Config().Response
	stats := decision.Breaker

	w.Header().Set(HeaderBreakerState, stats.State.String())
	w.Header().Set(HeaderBreakerFailureRate, fmt.Sprintf("%.4f", stats.FailureRate))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(cfg.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":               "circuit_open",
		"message":             cfg.Message,
		"circuitBreakerState": stats.State.String(),
		"failureRate":         stats.FailureRate,
	})
}
