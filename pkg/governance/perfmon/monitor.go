package perfmon

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"relay-hq/sentinel/pkg/governance/clock"
)

// Monitor records request durations and outcomes into rotating windows and
// exposes approximate latency percentiles and throughput.
type Monitor struct {
	cfg Config
	clk clock.Clock

	mu      sync.Mutex
	current window
	history []WindowSnapshot
	ring    *sampleRing
	startAt time.Time

	// rotateHook receives each rotated-out window, outside the lock.
	rotateHook func(WindowSnapshot)
}

// window is the mutable current aggregation window.
type window struct {
	startAt        time.Time
	endAt          time.Time
	total          uint64
	successCount   uint64
	failureCount   uint64
	concurrency    uint32
	maxConcurrency uint32
	sumDurationMs  float64
	p50, p90, p99  float64
	dims           map[string]*DimensionStats
}

// NewMonitor creates a monitor with its first window starting now.
func NewMonitor(cfg Config, clk clock.Clock) (*Monitor, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid performance monitor config: %w", err)
	}
	if clk == nil {
		clk = clock.System()
	}
	m := &Monitor{
		cfg:     cfg,
		clk:     clk,
		ring:    newSampleRing(cfg.RingCapacity),
		startAt: clk.Now(),
	}
	m.current = m.newWindow(m.startAt)
	return m, nil
}

// OnRotate registers a hook invoked with every rotated-out window. The hook
// runs outside the monitor lock.
func (m *Monitor) OnRotate(fn func(WindowSnapshot)) {
	m.mu.Lock()
	m.rotateHook = fn
	m.mu.Unlock()
}

// OnRequestStart marks a request in flight. It rotates the window first if
// the current one has expired.
func (m *Monitor) OnRequestStart() {
	m.mu.Lock()
	rotated, hook := m.rotateIfNeededLocked(m.clk.Now())

	m.current.concurrency++
	if m.current.concurrency > m.current.maxConcurrency {
		m.current.maxConcurrency = m.current.concurrency
	}
	m.mu.Unlock()

	deliver(hook, rotated)
}

// OnRequestEnd records a completed request. Status codes below 400 count
// as success. The total is attributed here, in the window the request
// completed in, so SuccessCount+FailureCount==Total holds for every window.
func (m *Monitor) OnRequestEnd(duration time.Duration, statusCode int, method, path string) {
	ms := float64(duration) / float64(time.Millisecond)
	if ms < 0 {
		// Malformed duration: drop the sample rather than corrupt the window.
		return
	}

	m.mu.Lock()
	rotated, hook := m.rotateIfNeededLocked(m.clk.Now())

	if m.current.concurrency > 0 {
		m.current.concurrency--
	}
	m.current.total++
	if statusCode < 400 {
		m.current.successCount++
	} else {
		m.current.failureCount++
	}
	m.current.sumDurationMs += ms

	m.ring.push(ms)
	qs := m.ring.quantiles(0.5, 0.9, 0.99)
	m.current.p50, m.current.p90, m.current.p99 = qs[0], qs[1], qs[2]

	if m.current.dims != nil {
		key := m.dimensionKey(method, path, statusCode)
		ds, ok := m.current.dims[key]
		if !ok {
			ds = &DimensionStats{}
			m.current.dims[key] = ds
		}
		ds.Count++
		if statusCode >= 400 {
			ds.FailureCount++
		}
		ds.SumDurationMs += ms
	}
	m.mu.Unlock()

	deliver(hook, rotated)
}

// Snapshot returns a copy of the current window plus process-level
// readings.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	rotated, hook := m.rotateIfNeededLocked(m.clk.Now())
	win := m.current.snapshot()
	m.mu.Unlock()

	deliver(hook, rotated)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Snapshot{
		Window: win,
		System: SystemMetrics{
			HeapAllocBytes:  mem.HeapAlloc,
			HeapSysBytes:    mem.HeapSys,
			TotalAllocBytes: mem.TotalAlloc,
			HeapObjects:     mem.HeapObjects,
			NumGC:           mem.NumGC,
			Goroutines:      runtime.NumGoroutine(),
			UptimeSeconds:   m.clk.Since(m.startAt).Seconds(),
		},
	}
}

// RecentWindows returns the retained history followed by a copy of the
// current window, oldest first. Every element is an immutable copy.
func (m *Monitor) RecentWindows() []WindowSnapshot {
	m.mu.Lock()
	rotated, hook := m.rotateIfNeededLocked(m.clk.Now())

	out := make([]WindowSnapshot, 0, len(m.history)+1)
	out = append(out, m.history...)
	out = append(out, m.current.snapshot())
	m.mu.Unlock()

	deliver(hook, rotated)
	return out
}

// rotateIfNeededLocked closes out the current window if its end has
// passed. The rotated-out snapshot and the hook are returned so the caller
// can deliver it after releasing the lock. Caller must hold the mutex.
func (m *Monitor) rotateIfNeededLocked(now time.Time) (WindowSnapshot, func(WindowSnapshot)) {
	if now.Before(m.current.endAt) {
		return WindowSnapshot{}, nil
	}

	closed := m.current.snapshot()
	m.history = append(m.history, closed)
	if excess := len(m.history) - m.cfg.KeepWindows; excess > 0 {
		m.history = m.history[excess:]
	}

	// Contiguous windows while traffic keeps flowing; after an idle gap
	// longer than one window, restart at the present instead of emitting a
	// chain of empty windows.
	start := m.current.endAt
	if now.Sub(start) >= m.cfg.Window {
		start = now
	}
	inFlight := m.current.concurrency
	m.current = m.newWindow(start)
	m.current.concurrency = inFlight
	m.current.maxConcurrency = inFlight
	m.ring.reset()

	return closed, m.rotateHook
}

func (m *Monitor) newWindow(start time.Time) window {
	w := window{
		startAt: start,
		endAt:   start.Add(m.cfg.Window),
	}
	if m.cfg.ByRoute || m.cfg.ByMethod || m.cfg.ByStatusBucket || m.cfg.KeyFunc != nil {
		w.dims = make(map[string]*DimensionStats)
	}
	return w
}

// dimensionKey derives the rollup key for a completed request.
func (m *Monitor) dimensionKey(method, path string, statusCode int) string {
	if m.cfg.KeyFunc != nil {
		return m.cfg.KeyFunc(method, path, statusCode)
	}
	var parts []string
	if m.cfg.ByMethod {
		parts = append(parts, method)
	}
	if m.cfg.ByRoute {
		parts = append(parts, path)
	}
	if m.cfg.ByStatusBucket {
		parts = append(parts, strconv.Itoa(statusCode/100*100))
	}
	return strings.Join(parts, " ")
}

// snapshot copies the window, including its dimension map.
func (w *window) snapshot() WindowSnapshot {
	s := WindowSnapshot{
		StartAt:        w.startAt,
		EndAt:          w.endAt,
		Total:          w.total,
		SuccessCount:   w.successCount,
		FailureCount:   w.failureCount,
		Concurrency:    w.concurrency,
		MaxConcurrency: w.maxConcurrency,
		SumDurationMs:  w.sumDurationMs,
		P50:            w.p50,
		P90:            w.p90,
		P99:            w.p99,
	}
	if w.dims != nil {
		s.Dimensions = make(map[string]DimensionStats, len(w.dims))
		for k, v := range w.dims {
			s.Dimensions[k] = *v
		}
	}
	return s
}

// deliver invokes the rotate hook for a closed window, if any.
func deliver(hook func(WindowSnapshot), win WindowSnapshot) {
	if hook != nil {
		hook(win)
	}
}
