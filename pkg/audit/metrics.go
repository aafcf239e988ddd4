package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the audit trail.
type Metrics struct {
	recorded *prometheus.CounterVec
	dropped  prometheus.Counter
	failures prometheus.Counter
	pruned   prometheus.Counter
}

// NewMetrics creates audit metrics registered with the default
// Prometheus registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		recorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_audit_events_recorded_total",
				Help: "Total number of audit events written to the store",
			},
			[]string{"kind"},
		),

		dropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "turnstile_audit_events_dropped_total",
				Help: "Total number of audit events dropped due to a full buffer",
			},
		),

		failures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "turnstile_audit_write_failures_total",
				Help: "Total number of failed audit store writes",
			},
		),

		pruned: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "turnstile_audit_events_pruned_total",
				Help: "Total number of audit events removed by retention pruning",
			},
		),
	}
}

// RecordWrite records a successful store write for an event kind.
func (m *Metrics) RecordWrite(kind string) {
	if m == nil {
		return
	}
	m.recorded.WithLabelValues(kind).Inc()
}

// RecordDrop records an event discarded because the buffer was full.
func (m *Metrics) RecordDrop() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// RecordWriteFailure records a failed store write.
func (m *Metrics) RecordWriteFailure() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

// RecordPruned records events removed by a retention pass.
func (m *Metrics) RecordPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.pruned.Add(float64(n))
}
