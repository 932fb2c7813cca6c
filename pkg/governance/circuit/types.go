package circuit

import (
	"fmt"
	"time"
)

// State is the circuit breaker state.
type State int32

const (
	// StateClosed passes all requests through.
	StateClosed State = iota

	// StateOpen rejects all requests immediately.
	StateOpen

	// StateHalfOpen admits a bounded number of trial requests.
	StateHalfOpen
)

// String returns the state in the form used by diagnostic headers.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ResponseConfig describes the HTTP response emitted when the breaker
// rejects a request.
type ResponseConfig struct {
	// StatusCode is the rejection status. Defaults to 503.
	StatusCode int

	// Message is the human-readable rejection message.
	Message string
}

// Config configures a Breaker.
type Config struct {
	// FailureThreshold opens the breaker after this many consecutive
	// failures. Required.
	FailureThreshold uint64

	// FailureRateThreshold opens the breaker when the overall failure rate
	// reaches this fraction (0–1), once VolumeThreshold requests have been
	// seen. Defaults to 0.5.
	FailureRateThreshold float64

	// VolumeThreshold is the minimum request count before rate-based
	// evaluation applies. Defaults to 10.
	VolumeThreshold uint64

	// ResetTimeout is how long the breaker stays Open before probing
	// recovery. Required.
	ResetTimeout time.Duration

	// MonitoringPeriod is the interval between background re-evaluation
	// ticks. Defaults to 1 second.
	MonitoringPeriod time.Duration

	// HalfOpenMaxRequests bounds concurrent trial probes while HalfOpen.
	// Defaults to 1.
	HalfOpenMaxRequests uint32

	// DisableAutoRecovery keeps an Open breaker open until an operator
	// calls Close. Automatic Open→HalfOpen probing is on by default.
	DisableAutoRecovery bool

	// Response configures the rejection response.
	Response ResponseConfig
}

// Stats is a point-in-time snapshot of breaker state and counters.
type Stats struct {
	State                 State
	TotalRequests         uint64
	SuccessCount          uint64
	FailureCount          uint64
	ConsecutiveFailures   uint64
	FailureRate           float64
	AverageResponseTimeMs float64
	LastStateChangeAt     time.Time
	LastFailureAt         time.Time
	HalfOpenInFlight      uint32
}

// applyDefaults fills zero config fields with their defaults.
func (c *Config) applyDefaults() {
	if c.FailureRateThreshold == 0 {
		c.FailureRateThreshold = 0.5
	}
	if c.VolumeThreshold == 0 {
		c.VolumeThreshold = 10
	}
	if c.MonitoringPeriod == 0 {
		c.MonitoringPeriod = time.Second
	}
	if c.HalfOpenMaxRequests == 0 {
		c.HalfOpenMaxRequests = 1
	}
	if c.Response.StatusCode == 0 {
		c.Response.StatusCode = 503
	}
	if c.Response.Message == "" {
		c.Response.Message = "service temporarily unavailable"
	}
}

// validate rejects configurations that can never trip or recover sanely.
func (c *Config) validate() error {
	if c.FailureThreshold == 0 {
		return fmt.Errorf("failure threshold is required")
	}
	if c.ResetTimeout <= 0 {
		return fmt.Errorf("reset timeout is required, got %v", c.ResetTimeout)
	}
	if c.FailureRateThreshold < 0 || c.FailureRateThreshold > 1 {
		return fmt.Errorf("failure rate threshold must be in [0, 1], got %v", c.FailureRateThreshold)
	}
	if c.MonitoringPeriod < 0 {
		return fmt.Errorf("monitoring period must not be negative, got %v", c.MonitoringPeriod)
	}
	return nil
}
