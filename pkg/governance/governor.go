package governance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"relay-hq/sentinel/pkg/governance/circuit"
	"relay-hq/sentinel/pkg/governance/clock"
	"relay-hq/sentinel/pkg/governance/perfmon"
	"relay-hq/sentinel/pkg/governance/ratelimit"
	"relay-hq/sentinel/pkg/governance/storage"
)

// Config assembles a Governor.
type Config struct {
	// RateLimit configures the per-key token bucket limiter.
	RateLimit ratelimit.Config

	// Circuit configures the circuit breaker.
	Circuit circuit.Config

	// Perf configures the performance monitor.
	Perf perfmon.Config

	// BreakerName labels the breaker in logs and flight-recorder entries.
	// Defaults to "default".
	BreakerName string

	// Clock is the shared time source. Defaults to the system clock.
	Clock clock.Clock

	// Registry receives governance metrics. Nil uses the default
	// registerer; set DisableMetrics to skip registration entirely.
	Registry       prometheus.Registerer
	DisableMetrics bool

	// Recorder is the optional flight recorder for rotated windows and
	// breaker transitions. Nil disables recording. The Governor takes
	// ownership and closes it on Close.
	Recorder storage.Backend
}

// Governor owns the three governance components and exposes the
// request-lifecycle facade the HTTP adapter calls.
type Governor struct {
	limiter  *ratelimit.Limiter
	breaker  *circuit.Breaker
	monitor  *perfmon.Monitor
	metrics  *Metrics
	recorder storage.Backend
	clk      clock.Clock
	logger   *slog.Logger
	name     string
}

var (
	_ Admitter        = (*Governor)(nil)
	_ OutcomeRecorder = (*Governor)(nil)
)

// NewGovernor builds the governor and its components. Configuration
// problems fail here, before any request is served.
func NewGovernor(cfg Config) (*Governor, error) {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System()
	}
	name := cfg.BreakerName
	if name == "" {
		name = "default"
	}

	limiter, err := ratelimit.NewLimiter(cfg.RateLimit, clk)
	if err != nil {
		return nil, fmt.Errorf("governance: %w", err)
	}
	breaker, err := circuit.NewBreaker(cfg.Circuit, clk)
	if err != nil {
		return nil, fmt.Errorf("governance: %w", err)
	}
	monitor, err := perfmon.NewMonitor(cfg.Perf, clk)
	if err != nil {
		breaker.Stop()
		return nil, fmt.Errorf("governance: %w", err)
	}

	var metrics *Metrics
	if !cfg.DisableMetrics {
		metrics = NewMetrics(cfg.Registry)
	}

	g := &Governor{
		limiter:  limiter,
		breaker:  breaker,
		monitor:  monitor,
		metrics:  metrics,
		recorder: cfg.Recorder,
		clk:      clk,
		logger:   slog.Default().With("component", "governance"),
		name:     name,
	}

	breaker.OnStateChange(g.onBreakerTransition)
	if g.recorder != nil {
		monitor.OnRotate(g.onWindowRotated)
	}

	return g, nil
}

// BeforeRoute performs the admission check: rate limit first, then the
// circuit breaker. Internal failures resolve to an allow decision; a bug
// here must not reject the traffic it is supposed to protect.
func (g *Governor) BeforeRoute(req RequestInfo) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("admission check recovered, failing open", "panic", r)
			decision = Decision{
				RateLimit: ratelimit.Decision{
					Allowed: true,
					Limit:   g.limiter.Config().MaxRequests,
				},
			}
		}
	}()

	rl := g.limiter.Check(ratelimit.Request{
		ClientIP: req.ClientIP,
		UserID:   req.UserID,
		TenantID: req.TenantID,
		Method:   req.Method,
		Path:     req.Path,
	})
	if !rl.Allowed {
		g.metrics.RecordAdmission(DenialRateLimit)
		return Decision{Denied: DenialRateLimit, RateLimit: rl}
	}

	if !g.breaker.AllowRequest() {
		stats := g.breaker.Stats()
		g.metrics.RecordAdmission(DenialCircuitOpen)
		return Decision{Denied: DenialCircuitOpen, RateLimit: rl, Breaker: stats}
	}

	g.monitor.OnRequestStart()
	g.metrics.RecordAdmission("")
	return Decision{
		RateLimit:       rl,
		Breaker:         g.breaker.Stats(),
		BreakerAdmitted: true,
	}
}

// AfterSuccess records the outcome of a request whose handler returned.
// For the breaker, a 5xx response still counts as a downstream failure;
// for quota consumption, anything below 400 is a success.
func (g *Governor) AfterSuccess(req RequestInfo, decision Decision, duration time.Duration, statusCode int) {
	defer g.recoverRecording("after-success")

	g.limiter.RecordOutcome(decision.RateLimit.Key, statusCode < 400)
	if decision.BreakerAdmitted {
		g.breaker.RecordRequest(statusCode < 500, duration)
	}
	g.monitor.OnRequestEnd(duration, statusCode, req.Method, req.Path)
	g.metrics.RecordOutcome(statusCode < 400, duration)
}

// AfterFailure records the outcome of a request whose handler failed with
// an error before producing a response.
func (g *Governor) AfterFailure(req RequestInfo, decision Decision, duration time.Duration, err error) {
	defer g.recoverRecording("after-failure")

	g.limiter.RecordOutcome(decision.RateLimit.Key, false)
	if decision.BreakerAdmitted {
		g.breaker.RecordRequest(false, duration)
	}
	g.monitor.OnRequestEnd(duration, 500, req.Method, req.Path)
	g.metrics.RecordOutcome(false, duration)
	g.logger.Debug("recorded handler failure", "path", req.Path, "error", err)
}

// Tick drives time-based re-evaluation from an external scheduler,
// independent of request traffic.
func (g *Governor) Tick() {
	g.breaker.Evaluate()
	stats := g.breaker.Stats()
	g.metrics.UpdateBreaker(float64(stats.State), stats.FailureRate)
	g.metrics.UpdateBucketCount(g.limiter.Len())
}

// CleanupBuckets evicts idle rate-limit buckets and returns the count.
func (g *Governor) CleanupBuckets() int {
	evicted := g.limiter.Cleanup()
	if evicted > 0 {
		g.logger.Debug("evicted idle rate limit buckets", "count", evicted)
	}
	g.metrics.RecordEvictions(evicted)
	g.metrics.UpdateBucketCount(g.limiter.Len())
	return evicted
}

// GovernorSnapshot bundles the state the admin surface exposes.
type GovernorSnapshot struct {
	Perf        perfmon.Snapshot
	Breaker     circuit.Stats
	BucketCount int
}

// Snapshot returns a point-in-time view of all three components.
func (g *Governor) Snapshot() GovernorSnapshot {
	return GovernorSnapshot{
		Perf:        g.monitor.Snapshot(),
		Breaker:     g.breaker.Stats(),
		BucketCount: g.limiter.Len(),
	}
}

// Limiter returns the rate limiter.
func (g *Governor) Limiter() *ratelimit.Limiter { return g.limiter }

// Breaker returns the circuit breaker.
func (g *Governor) Breaker() *circuit.Breaker { return g.breaker }

// Monitor returns the performance monitor.
func (g *Governor) Monitor() *perfmon.Monitor { return g.monitor }

// RecentWindows returns the monitor's retained windows plus the current
// one.
func (g *Governor) RecentWindows() []perfmon.WindowSnapshot {
	return g.monitor.RecentWindows()
}

// Close stops the breaker's background monitor and closes the flight
// recorder.
func (g *Governor) Close() error {
	g.breaker.Stop()
	if g.recorder != nil {
		return g.recorder.Close()
	}
	return nil
}

// onBreakerTransition logs, gauges, and records a breaker state change.
func (g *Governor) onBreakerTransition(tr circuit.Transition) {
	stats := g.breaker.Stats()
	g.logger.Info("circuit breaker state changed",
		"breaker", g.name,
		"from", tr.From.String(),
		"to", tr.To.String(),
		"failure_rate", stats.FailureRate,
	)
	g.metrics.UpdateBreaker(float64(tr.To), stats.FailureRate)

	if g.recorder == nil {
		return
	}
	rec := &storage.TransitionRecord{
		Breaker:     g.name,
		FromState:   tr.From.String(),
		ToState:     tr.To.String(),
		FailureRate: stats.FailureRate,
		At:          tr.At,
	}
	// Persist off the request path; recording failures are logged and
	// dropped.
	go func() {
		if err := g.recorder.SaveTransition(context.Background(), rec); err != nil {
			g.logger.Warn("failed to record breaker transition", "error", err)
		}
	}()
}

// onWindowRotated persists a rotated-out perf window.
func (g *Governor) onWindowRotated(win perfmon.WindowSnapshot) {
	rec := &storage.WindowRecord{
		StartAt:        win.StartAt,
		EndAt:          win.EndAt,
		Total:          win.Total,
		SuccessCount:   win.SuccessCount,
		FailureCount:   win.FailureCount,
		MaxConcurrency: win.MaxConcurrency,
		SumDurationMs:  win.SumDurationMs,
		P50:            win.P50,
		P90:            win.P90,
		P99:            win.P99,
		RecordedAt:     g.clk.Now(),
	}
	go func() {
		if err := g.recorder.SaveWindow(context.Background(), rec); err != nil {
			g.logger.Warn("failed to record perf window", "error", err)
		}
	}()
}

// recoverRecording contains panics in outcome recording; a malformed
// outcome is logged and dropped, never re-thrown into the response path.
func (g *Governor) recoverRecording(site string) {
	if r := recover(); r != nil {
		g.logger.Error("outcome recording recovered", "site", site, "panic", r)
	}
}
