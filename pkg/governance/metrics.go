package governance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics for the governance layer.
type Metrics struct {
	admissionChecks  *prometheus.CounterVec
	admissionDenials *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	breakerState     prometheus.Gauge
	breakerFailRate  prometheus.Gauge
	bucketCount      prometheus.Gauge
	bucketEvictions  prometheus.Counter
}

// NewMetrics creates governance metrics registered with the given
// registry. A nil registry registers with the default registerer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		admissionChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_admission_checks_total",
				Help: "Total admission checks by result",
			},
			[]string{"result"},
		),
		admissionDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_admission_denials_total",
				Help: "Total admission denials by kind",
			},
			[]string{"kind"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_request_duration_seconds",
				Help:    "Duration of governed requests in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
			},
			[]string{"outcome"},
		),
		breakerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentinel_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
		breakerFailRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentinel_circuit_breaker_failure_rate",
				Help: "Circuit breaker failure rate (0.0-1.0)",
			},
		),
		bucketCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentinel_rate_limit_buckets",
				Help: "Current number of live rate limit buckets",
			},
		),
		bucketEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sentinel_rate_limit_bucket_evictions_total",
				Help: "Total idle rate limit buckets evicted",
			},
		),
	}

	registry.MustRegister(
		m.admissionChecks,
		m.admissionDenials,
		m.requestDuration,
		m.breakerState,
		m.breakerFailRate,
		m.bucketCount,
		m.bucketEvictions,
	)
	return m
}

// RecordAdmission records one admission check and, when denied, the denial
// kind.
func (m *Metrics) RecordAdmission(denied DenialKind) {
	if m == nil {
		return
	}
	if denied == "" {
		m.admissionChecks.WithLabelValues("allowed").Inc()
		return
	}
	m.admissionChecks.WithLabelValues("denied").Inc()
	m.admissionDenials.WithLabelValues(string(denied)).Inc()
}

// RecordOutcome records a completed request.
func (m *Metrics) RecordOutcome(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.requestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// UpdateBreaker updates the breaker gauges.
func (m *Metrics) UpdateBreaker(state float64, failureRate float64) {
	if m == nil {
		return
	}
	m.breakerState.Set(state)
	m.breakerFailRate.Set(failureRate)
}

// UpdateBucketCount updates the live bucket gauge.
func (m *Metrics) UpdateBucketCount(n int) {
	if m == nil {
		return
	}
	m.bucketCount.Set(float64(n))
}

// RecordEvictions adds evicted buckets to the eviction counter.
func (m *Metrics) RecordEvictions(n int) {
	if m == nil {
		return
	}
	m.bucketEvictions.Add(float64(n))
}
