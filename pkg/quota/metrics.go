package quota

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the usage ledger.
type Metrics struct {
	tracked       *prometheus.CounterVec
	tokens        prometheus.Counter
	cost          prometheus.Counter
	storageErrors prometheus.Counter
}

// NewMetrics creates ledger metrics registered with the default
// Prometheus registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		tracked: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_quota_tracked_total",
				Help: "Total number of usage samples by tracking outcome",
			},
			[]string{"result"},
		),

		tokens: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "turnstile_quota_tokens_total",
				Help: "Total tokens recorded in the usage ledger",
			},
		),

		cost: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "turnstile_quota_cost_usd_total",
				Help: "Total cost in USD recorded in the usage ledger",
			},
		),

		storageErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "turnstile_quota_storage_errors_total",
				Help: "Total ledger writes dropped due to storage failures",
			},
		),
	}
}

// RecordTracked records a persisted usage sample.
func (m *Metrics) RecordTracked(totalTokens int64, cost float64) {
	if m == nil {
		return
	}
	m.tracked.WithLabelValues("tracked").Inc()
	m.tokens.Add(float64(totalTokens))
	m.cost.Add(cost)
}

// RecordDropped records a usage sample that was not persisted.
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.tracked.WithLabelValues(reason).Inc()
	if reason == ReasonStorageError {
		m.storageErrors.Inc()
	}
}
