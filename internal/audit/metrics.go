package audit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricAuditWrites        = "audit_writes_total"
	MetricAuditWriteFailures = "audit_write_failures_total"
	MetricAuditWriteDuration = "audit_write_duration_seconds"
)

// Metrics contains Prometheus metrics for audit writes.
type Metrics struct {
	writes        *prometheus.CounterVec
	writeFailures *prometheus.CounterVec
	writeDuration *prometheus.HistogramVec
}

// NewMetrics creates audit metrics. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAuditWrites,
				Help: "Total number of audit record writes by backend and status",
			},
			[]string{"backend", "status"},
		),
		writeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAuditWriteFailures,
				Help: "Total number of audit writes that failed and were swallowed",
			},
			[]string{"backend"},
		),
		writeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricAuditWriteDuration,
				Help:    "Audit store write latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 3.0},
			},
			[]string{"backend"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.writes, m.writeFailures, m.writeDuration}
}

func (m *Metrics) observeWrite(backend, status string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(backend, status).Inc()
	m.writeDuration.WithLabelValues(backend).Observe(seconds)
	if failed {
		m.writeFailures.WithLabelValues(backend).Inc()
	}
}
