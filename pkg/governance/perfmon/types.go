package perfmon

import (
	"fmt"
	"time"
)

// WindowSnapshot is an immutable copy of one aggregation window.
//
// For every window, SuccessCount + FailureCount == Total: request totals
// are attributed to the window in which the request completed.
type WindowSnapshot struct {
	StartAt        time.Time
	EndAt          time.Time
	Total          uint64
	SuccessCount   uint64
	FailureCount   uint64
	Concurrency    uint32
	MaxConcurrency uint32
	SumDurationMs  float64
	P50            float64
	P90            float64
	P99            float64

	// Dimensions holds optional per-route/method/status rollups, keyed by
	// the derived dimension key. Nil when no dimension flags are set.
	Dimensions map[string]DimensionStats
}

// AvgDurationMs returns the mean request duration for the window.
func (w WindowSnapshot) AvgDurationMs() float64 {
	if w.Total == 0 {
		return 0
	}
	return w.SumDurationMs / float64(w.Total)
}

// DimensionStats aggregates request outcomes for one dimension key.
type DimensionStats struct {
	Count         uint64
	FailureCount  uint64
	SumDurationMs float64
}

// SystemMetrics is a snapshot of process-level readings. These are
// trend-only telemetry, not billing-grade measurements.
type SystemMetrics struct {
	HeapAllocBytes  uint64
	HeapSysBytes    uint64
	TotalAllocBytes uint64
	HeapObjects     uint64
	NumGC           uint32
	Goroutines      int
	UptimeSeconds   float64
}

// Snapshot combines the current window with system metrics.
type Snapshot struct {
	Window WindowSnapshot
	System SystemMetrics
}

// DimensionKeyFunc derives the rollup key for a completed request.
type DimensionKeyFunc func(method, path string, statusCode int) string

// Config configures a Monitor.
type Config struct {
	// Window is the aggregation window size. Defaults to 1 minute.
	Window time.Duration

	// KeepWindows is the retained history depth. Defaults to 5.
	KeepWindows int

	// RingCapacity is the percentile sample buffer size. Defaults to 2048.
	RingCapacity int

	// ByRoute, ByMethod, and ByStatusBucket enable per-dimension rollups
	// inside each window.
	ByRoute        bool
	ByMethod       bool
	ByStatusBucket bool

	// KeyFunc overrides the built-in dimension key derivation.
	KeyFunc DimensionKeyFunc
}

func (c *Config) applyDefaults() {
	if c.Window == 0 {
		c.Window = time.Minute
	}
	if c.KeepWindows == 0 {
		c.KeepWindows = 5
	}
	if c.RingCapacity == 0 {
		c.RingCapacity = 2048
	}
}

func (c *Config) validate() error {
	if c.Window < 0 {
		return fmt.Errorf("window must not be negative, got %v", c.Window)
	}
	if c.KeepWindows < 0 {
		return fmt.Errorf("keep windows must not be negative, got %d", c.KeepWindows)
	}
	if c.RingCapacity < 0 {
		return fmt.Errorf("ring capacity must not be negative, got %d", c.RingCapacity)
	}
	return nil
}
