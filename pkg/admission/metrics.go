package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the admission controller.
type Metrics struct {
	checks        *prometheus.CounterVec
	denials       *prometheus.CounterVec
	blocks        *prometheus.CounterVec
	trackedKeys   *prometheus.GaugeVec
	checkDuration prometheus.Histogram
}

// NewMetrics creates admission metrics registered with the default
// Prometheus registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		checks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_admission_checks_total",
				Help: "Total number of admission checks performed",
			},
			[]string{"result"},
		),

		denials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_admission_denials_total",
				Help: "Total number of denied admission checks",
			},
			[]string{"reason", "window"},
		),

		blocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_admission_blocks_total",
				Help: "Total number of escalation blocks issued",
			},
			[]string{"scope"},
		),

		trackedKeys: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "turnstile_admission_tracked_keys",
				Help: "Current number of keys tracked per counter scope",
			},
			[]string{"scope"},
		),

		checkDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "turnstile_admission_check_duration_seconds",
				Help:    "Duration of admission checks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),
	}
}

// RecordCheck records a completed check and its outcome.
func (m *Metrics) RecordCheck(allowed bool, seconds float64) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	m.checks.WithLabelValues(result).Inc()
	m.checkDuration.Observe(seconds)
}

// RecordDenial records a denial by reason and window.
func (m *Metrics) RecordDenial(reason, window string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(reason, window).Inc()
}

// RecordBlock records an escalation block for a scope (user or ip).
func (m *Metrics) RecordBlock(scope string) {
	if m == nil {
		return
	}
	m.blocks.WithLabelValues(scope).Inc()
}

// UpdateTrackedKeys updates the tracked key gauge for a scope.
func (m *Metrics) UpdateTrackedKeys(scope string, count int) {
	if m == nil {
		return
	}
	m.trackedKeys.WithLabelValues(scope).Set(float64(count))
}
