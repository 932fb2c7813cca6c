package governance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"relay-hq/sentinel/pkg/governance/circuit"
	"relay-hq/sentinel/pkg/governance/clock"
	"relay-hq/sentinel/pkg/governance/ratelimit"
	"relay-hq/sentinel/pkg/governance/storage"
)

func testStart() time.Time {
	return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
}

// newTestGovernor builds a governor on a manual clock with an isolated
// metrics registry. The circuit config gets workable required fields unless
// the test sets its own.
func newTestGovernor(t *testing.T, cfg Config) (*Governor, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(testStart())
	cfg.Clock = clk
	cfg.Registry = prometheus.NewRegistry()
	if cfg.Circuit.FailureThreshold == 0 {
		cfg.Circuit.FailureThreshold = 5
	}
	if cfg.Circuit.ResetTimeout == 0 {
		cfg.Circuit.ResetTimeout = 30 * time.Second
	}
	if cfg.Circuit.MonitoringPeriod == 0 {
		cfg.Circuit.MonitoringPeriod = time.Hour
	}
	g, err := NewGovernor(cfg)
	if err != nil {
		t.Fatalf("NewGovernor() error = %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g, clk
}

func testRequest() RequestInfo {
	return RequestInfo{
		ClientIP: "10.0.0.1",
		UserID:   "u-1",
		TenantID: "acme",
		Method:   "GET",
		Path:     "/v1/items",
	}
}

// waitFor polls cond until it holds or the deadline passes. Used for state
// persisted by background goroutines.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// ============================================================================
// Construction Tests
// ============================================================================

func TestNewGovernor_InvalidComponentConfig(t *testing.T) {
	_, err := NewGovernor(Config{
		RateLimit:      ratelimit.Config{TokenRate: -1},
		Circuit:        circuit.Config{FailureThreshold: 1, ResetTimeout: time.Second},
		DisableMetrics: true,
	})
	if err == nil {
		t.Fatal("NewGovernor() should reject an invalid rate limit config")
	}

	_, err = NewGovernor(Config{
		Circuit:        circuit.Config{}, // missing required thresholds
		DisableMetrics: true,
	})
	if err == nil {
		t.Fatal("NewGovernor() should reject an invalid circuit config")
	}
}

// ============================================================================
// Admission Tests
// ============================================================================

func TestGovernor_AdmitsHealthyRequest(t *testing.T) {
	g, _ := newTestGovernor(t, Config{})

	d := g.BeforeRoute(testRequest())
	if !d.Allowed() {
		t.Fatalf("healthy request denied: %v", d.Denied)
	}
	if !d.BreakerAdmitted {
		t.Error("BreakerAdmitted = false, want true")
	}
	if !d.RateLimit.Allowed {
		t.Error("RateLimit.Allowed = false, want true")
	}
	if d.Breaker.State != circuit.StateClosed {
		t.Errorf("Breaker.State = %v, want CLOSED", d.Breaker.State)
	}
}

func TestGovernor_DeniesWhenQuotaExhausted(t *testing.T) {
	g, _ := newTestGovernor(t, Config{
		RateLimit: ratelimit.Config{BucketCapacity: 1, TokenRate: 0.001},
	})
	req := testRequest()

	d := g.BeforeRoute(req)
	if !d.Allowed() {
		t.Fatal("first request should be admitted")
	}
	g.AfterSuccess(req, d, 10*time.Millisecond, 200)

	d = g.BeforeRoute(req)
	if d.Allowed() {
		t.Fatal("second request should be denied")
	}
	if d.Denied != DenialRateLimit {
		t.Errorf("Denied = %v, want %v", d.Denied, DenialRateLimit)
	}
	if d.RateLimit.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", d.RateLimit.RetryAfter)
	}
	// Rate-limit denials short-circuit before the breaker.
	if d.BreakerAdmitted {
		t.Error("BreakerAdmitted = true on a rate-limit denial")
	}
}

func TestGovernor_DeniesWhenCircuitOpen(t *testing.T) {
	g, _ := newTestGovernor(t, Config{})

	g.Breaker().Open()
	d := g.BeforeRoute(testRequest())

	if d.Allowed() {
		t.Fatal("request should be denied while the circuit is open")
	}
	if d.Denied != DenialCircuitOpen {
		t.Errorf("Denied = %v, want %v", d.Denied, DenialCircuitOpen)
	}
	if d.Breaker.State != circuit.StateOpen {
		t.Errorf("Breaker.State = %v, want OPEN", d.Breaker.State)
	}
	// The rate limit decision is still populated for response headers.
	if !d.RateLimit.Allowed {
		t.Error("RateLimit.Allowed = false; quota was not the problem")
	}
}

// ============================================================================
// Outcome Recording Tests
// ============================================================================

func TestGovernor_ServerErrorsCountAgainstBreaker(t *testing.T) {
	g, _ := newTestGovernor(t, Config{
		Circuit: circuit.Config{FailureThreshold: 2, ResetTimeout: 30 * time.Second, VolumeThreshold: 1000},
	})
	req := testRequest()

	for i := 0; i < 2; i++ {
		d := g.BeforeRoute(req)
		if !d.Allowed() {
			t.Fatalf("request %d denied early", i)
		}
		// The handler produced a response, but a 503 is still a downstream
		// failure.
		g.AfterSuccess(req, d, 10*time.Millisecond, 503)
	}

	if got := g.Breaker().State(); got != circuit.StateOpen {
		t.Errorf("State = %v, want OPEN after two 5xx responses", got)
	}
}

func TestGovernor_ClientErrorsDoNotTripBreaker(t *testing.T) {
	g, _ := newTestGovernor(t, Config{
		Circuit: circuit.Config{FailureThreshold: 2, ResetTimeout: 30 * time.Second, VolumeThreshold: 1000},
	})
	req := testRequest()

	for i := 0; i < 10; i++ {
		d := g.BeforeRoute(req)
		g.AfterSuccess(req, d, 10*time.Millisecond, 404)
	}

	if got := g.Breaker().State(); got != circuit.StateClosed {
		t.Errorf("State = %v, 4xx responses are the client's fault, not the service's", got)
	}
	// They still count as failures for the perf window.
	w := g.Snapshot().Perf.Window
	if w.FailureCount != 10 {
		t.Errorf("FailureCount = %d, want 10", w.FailureCount)
	}
}

func TestGovernor_AfterFailure(t *testing.T) {
	g, _ := newTestGovernor(t, Config{
		Circuit: circuit.Config{FailureThreshold: 1, ResetTimeout: 30 * time.Second},
	})
	req := testRequest()

	d := g.BeforeRoute(req)
	g.AfterFailure(req, d, 25*time.Millisecond, errors.New("handler exploded"))

	if got := g.Breaker().State(); got != circuit.StateOpen {
		t.Errorf("State = %v, want OPEN after a handler failure", got)
	}
	w := g.Snapshot().Perf.Window
	if w.Total != 1 || w.FailureCount != 1 {
		t.Errorf("window = %d total / %d failures, want 1/1", w.Total, w.FailureCount)
	}
}

func TestGovernor_SkipSuccessfulLeavesQuotaUntouched(t *testing.T) {
	g, _ := newTestGovernor(t, Config{
		RateLimit: ratelimit.Config{
			BucketCapacity:         1,
			TokenRate:              0.001,
			SkipSuccessfulRequests: true,
		},
	})
	req := testRequest()

	for i := 0; i < 5; i++ {
		d := g.BeforeRoute(req)
		if !d.Allowed() {
			t.Fatalf("request %d denied; successes should not consume quota", i)
		}
		g.AfterSuccess(req, d, time.Millisecond, 200)
	}
}

// ============================================================================
// Fail-Open Tests
// ============================================================================

func TestGovernor_FailsOpenOnKeyFuncPanic(t *testing.T) {
	g, _ := newTestGovernor(t, Config{
		RateLimit: ratelimit.Config{
			Strategy: ratelimit.StrategyCustom,
			KeyFunc:  func(ratelimit.Request) (string, error) { panic("bad key func") },
		},
	})

	d := g.BeforeRoute(testRequest())
	if !d.Allowed() {
		t.Error("admission must fail open when key derivation panics")
	}
}

// ============================================================================
// Maintenance Tests
// ============================================================================

func TestGovernor_TickDrivesRecovery(t *testing.T) {
	g, clk := newTestGovernor(t, Config{
		Circuit: circuit.Config{FailureThreshold: 1, ResetTimeout: time.Second},
	})
	req := testRequest()

	d := g.BeforeRoute(req)
	g.AfterSuccess(req, d, time.Millisecond, 500)
	if g.Breaker().State() != circuit.StateOpen {
		t.Fatal("breaker should be open")
	}

	clk.Advance(2 * time.Second)
	g.Tick()
	if got := g.Breaker().State(); got != circuit.StateHalfOpen {
		t.Errorf("State = %v, Tick should drive recovery without traffic", got)
	}
}

func TestGovernor_CleanupBuckets(t *testing.T) {
	g, clk := newTestGovernor(t, Config{
		RateLimit: ratelimit.Config{Strategy: ratelimit.StrategyUser, Window: time.Minute},
	})

	for _, user := range []string{"a", "b", "c"} {
		g.BeforeRoute(RequestInfo{UserID: user, Method: "GET", Path: "/x"})
	}
	clk.Advance(3 * time.Minute)

	if evicted := g.CleanupBuckets(); evicted != 3 {
		t.Errorf("CleanupBuckets() = %d, want 3", evicted)
	}
	if got := g.Snapshot().BucketCount; got != 0 {
		t.Errorf("BucketCount = %d, want 0", got)
	}
}

func TestGovernor_Snapshot(t *testing.T) {
	g, _ := newTestGovernor(t, Config{})
	req := testRequest()

	d := g.BeforeRoute(req)
	g.AfterSuccess(req, d, 15*time.Millisecond, 200)

	snap := g.Snapshot()
	if snap.Perf.Window.Total != 1 {
		t.Errorf("Perf.Window.Total = %d, want 1", snap.Perf.Window.Total)
	}
	if snap.Breaker.TotalRequests != 1 {
		t.Errorf("Breaker.TotalRequests = %d, want 1", snap.Breaker.TotalRequests)
	}
	if snap.BucketCount != 1 {
		t.Errorf("BucketCount = %d, want 1", snap.BucketCount)
	}
}

// ============================================================================
// Flight Recorder Tests
// ============================================================================

func TestGovernor_RecordsBreakerTransitions(t *testing.T) {
	rec := storage.NewMemoryBackend(0)
	g, _ := newTestGovernor(t, Config{
		BreakerName: "upstream",
		Recorder:    rec,
	})

	g.Breaker().Open()

	waitFor(t, func() bool {
		trs, _ := rec.RecentTransitions(context.Background(), 0)
		return len(trs) == 1
	}, "transition never reached the recorder")

	trs, _ := rec.RecentTransitions(context.Background(), 0)
	if trs[0].Breaker != "upstream" {
		t.Errorf("Breaker = %q, want upstream", trs[0].Breaker)
	}
	if trs[0].FromState != "CLOSED" || trs[0].ToState != "OPEN" {
		t.Errorf("transition = %s->%s, want CLOSED->OPEN", trs[0].FromState, trs[0].ToState)
	}
}

func TestGovernor_RecordsRotatedWindows(t *testing.T) {
	rec := storage.NewMemoryBackend(0)
	g, clk := newTestGovernor(t, Config{Recorder: rec})
	req := testRequest()

	d := g.BeforeRoute(req)
	g.AfterSuccess(req, d, 10*time.Millisecond, 200)
	clk.Advance(time.Minute)
	g.Snapshot() // forces rotation

	waitFor(t, func() bool {
		ws, _ := rec.RecentWindows(context.Background(), 0)
		return len(ws) == 1
	}, "rotated window never reached the recorder")

	ws, _ := rec.RecentWindows(context.Background(), 0)
	if ws[0].Total != 1 || ws[0].SuccessCount != 1 {
		t.Errorf("window record = %d/%d, want 1 total 1 success", ws[0].Total, ws[0].SuccessCount)
	}
}

func TestGovernor_CloseClosesRecorder(t *testing.T) {
	rec := storage.NewMemoryBackend(0)
	g, _ := newTestGovernor(t, Config{Recorder: rec})

	if err := g.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := rec.SaveTransition(context.Background(), &storage.TransitionRecord{}); err == nil {
		t.Error("recorder should be closed after Governor.Close")
	}
}
