package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"relay-hq/sentinel/pkg/governance"
	"relay-hq/sentinel/pkg/governance/perfmon"
	"relay-hq/sentinel/pkg/governance/storage"
)

// adminHandler serves the operator endpoints: health, governance snapshots,
// window history, and manual circuit breaker controls.
type adminHandler struct {
	governor *governance.Governor
	recorder storage.Backend
	logger   *slog.Logger
}

func newAdminHandler(gov *governance.Governor, recorder storage.Backend) *adminHandler {
	return &adminHandler{
		governor: gov,
		recorder: recorder,
		logger:   slog.Default().With("component", "admin"),
	}
}

// healthResponse is the JSON body of the health endpoint.
type healthResponse struct {
	Status       string  `json:"status"`
	BreakerState string  `json:"circuitBreakerState"`
	FailureRate  float64 `json:"failureRate"`
	Buckets      int     `json:"rateLimitBuckets"`
	Goroutines   int     `json:"goroutines"`
	UptimeSec    float64 `json:"uptimeSeconds"`
}

// health reports liveness plus a compact governance summary.
func (h *adminHandler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.governor.Snapshot()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		BreakerState: snap.Breaker.State.String(),
		FailureRate:  snap.Breaker.FailureRate,
		Buckets:      snap.BucketCount,
		Goroutines:   snap.Perf.System.Goroutines,
		UptimeSec:    snap.Perf.System.UptimeSeconds,
	})
}

// windowBody is the JSON shape of one performance window.
type windowBody struct {
	StartAt        time.Time          `json:"startAt"`
	EndAt          time.Time          `json:"endAt,omitzero"`
	Total          uint64             `json:"total"`
	SuccessCount   uint64             `json:"successCount"`
	FailureCount   uint64             `json:"failureCount"`
	Concurrency    uint32             `json:"concurrency"`
	MaxConcurrency uint32             `json:"maxConcurrency"`
	AvgDurationMs  float64            `json:"avgDurationMs"`
	P50            float64            `json:"p50"`
	P90            float64            `json:"p90"`
	P99            float64            `json:"p99"`
	Dimensions     map[string]dimBody `json:"dimensions,omitempty"`
}

type dimBody struct {
	Count         uint64  `json:"count"`
	FailureCount  uint64  `json:"failureCount"`
	AvgDurationMs float64 `json:"avgDurationMs"`
}

func toWindowBody(win perfmon.WindowSnapshot) windowBody {
	body := windowBody{
		StartAt:        win.StartAt,
		EndAt:          win.EndAt,
		Total:          win.Total,
		SuccessCount:   win.SuccessCount,
		FailureCount:   win.FailureCount,
		Concurrency:    win.Concurrency,
		MaxConcurrency: win.MaxConcurrency,
		AvgDurationMs:  win.AvgDurationMs(),
		P50:            win.P50,
		P90:            win.P90,
		P99:            win.P99,
	}
	if len(win.Dimensions) > 0 {
		body.Dimensions = make(map[string]dimBody, len(win.Dimensions))
		for key, stats := range win.Dimensions {
			dim := dimBody{Count: stats.Count, FailureCount: stats.FailureCount}
			if stats.Count > 0 {
				dim.AvgDurationMs = stats.SumDurationMs / float64(stats.Count)
			}
			body.Dimensions[key] = dim
		}
	}
	return body
}

// snapshotResponse is the JSON body of the snapshot endpoint.
type snapshotResponse struct {
	Window  windowBody  `json:"window"`
	System  systemBody  `json:"system"`
	Breaker breakerBody `json:"circuitBreaker"`
	Buckets int         `json:"rateLimitBuckets"`
}

type systemBody struct {
	HeapAllocBytes  uint64  `json:"heapAllocBytes"`
	HeapSysBytes    uint64  `json:"heapSysBytes"`
	TotalAllocBytes uint64  `json:"totalAllocBytes"`
	HeapObjects     uint64  `json:"heapObjects"`
	NumGC           uint32  `json:"numGc"`
	Goroutines      int     `json:"goroutines"`
	UptimeSeconds   float64 `json:"uptimeSeconds"`
}

type breakerBody struct {
	State                 string    `json:"state"`
	TotalRequests         uint64    `json:"totalRequests"`
	SuccessCount          uint64    `json:"successCount"`
	FailureCount          uint64    `json:"failureCount"`
	ConsecutiveFailures   uint64    `json:"consecutiveFailures"`
	FailureRate           float64   `json:"failureRate"`
	AverageResponseTimeMs float64   `json:"averageResponseTimeMs"`
	LastStateChangeAt     time.Time `json:"lastStateChangeAt,omitzero"`
	HalfOpenInFlight      uint32    `json:"halfOpenInFlight"`
}

// snapshot returns a point-in-time view of all governance components.
func (h *adminHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.governor.Snapshot()
	writeJSON(w, http.StatusOK, snapshotResponse{
		Window: toWindowBody(snap.Perf.Window),
		System: systemBody{
			HeapAllocBytes:  snap.Perf.System.HeapAllocBytes,
			HeapSysBytes:    snap.Perf.System.HeapSysBytes,
			TotalAllocBytes: snap.Perf.System.TotalAllocBytes,
			HeapObjects:     snap.Perf.System.HeapObjects,
			NumGC:           snap.Perf.System.NumGC,
			Goroutines:      snap.Perf.System.Goroutines,
			UptimeSeconds:   snap.Perf.System.UptimeSeconds,
		},
		Breaker: breakerBody{
			State:                 snap.Breaker.State.String(),
			TotalRequests:         snap.Breaker.TotalRequests,
			SuccessCount:          snap.Breaker.SuccessCount,
			FailureCount:          snap.Breaker.FailureCount,
			ConsecutiveFailures:   snap.Breaker.ConsecutiveFailures,
			FailureRate:           snap.Breaker.FailureRate,
			AverageResponseTimeMs: snap.Breaker.AverageResponseTimeMs,
			LastStateChangeAt:     snap.Breaker.LastStateChangeAt,
			HalfOpenInFlight:      snap.Breaker.HalfOpenInFlight,
		},
		Buckets: snap.BucketCount,
	})
}

// windows returns the retained in-memory windows, oldest first, with the
// current window last.
func (h *adminHandler) windows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wins := h.governor.RecentWindows()
	bodies := make([]windowBody, 0, len(wins))
	for _, win := range wins {
		bodies = append(bodies, toWindowBody(win))
	}
	writeJSON(w, http.StatusOK, map[string]any{"windows": bodies})
}

// historyResponse is the JSON body of the persisted history endpoint.
type historyResponse struct {
	Windows     []*storage.WindowRecord     `json:"windows"`
	Transitions []*storage.TransitionRecord `json:"transitions"`
}

// history returns persisted windows and breaker transitions from the flight
// recorder.
func (h *adminHandler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.recorder == nil {
		http.Error(w, "flight recorder disabled", http.StatusNotFound)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	wins, err := h.recorder.RecentWindows(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read persisted windows", "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	trans, err := h.recorder.RecentTransitions(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read persisted transitions", "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{Windows: wins, Transitions: trans})
}

// circuitOpen forces the breaker open.
func (h *adminHandler) circuitOpen(w http.ResponseWriter, r *http.Request) {
	h.circuitControl(w, r, "open", h.governor.Breaker().Open)
}

// circuitClose forces the breaker closed.
func (h *adminHandler) circuitClose(w http.ResponseWriter, r *http.Request) {
	h.circuitControl(w, r, "close", h.governor.Breaker().Close)
}

// circuitReset closes the breaker and clears all counters.
func (h *adminHandler) circuitReset(w http.ResponseWriter, r *http.Request) {
	h.circuitControl(w, r, "reset", h.governor.Breaker().Reset)
}

func (h *adminHandler) circuitControl(w http.ResponseWriter, r *http.Request, action string, apply func()) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	apply()
	stats := h.governor.Breaker().Stats()
	h.logger.Info("manual circuit breaker control",
		"action", action,
		"state", stats.State.String(),
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"action": action,
		"state":  stats.State.String(),
	})
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
