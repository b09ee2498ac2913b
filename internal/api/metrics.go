package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricCalcOperations = "calc_operations_total"
	MetricLoginAttempts  = "auth_login_attempts_total"
)

// Metrics contains Prometheus metrics for the API handlers.
type Metrics struct {
	operations    *prometheus.CounterVec
	loginAttempts *prometheus.CounterVec
}

// NewMetrics creates handler metrics. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCalcOperations,
				Help: "Total number of arithmetic requests by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		loginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLoginAttempts,
				Help: "Total number of token requests by result",
			},
			[]string{"result"},
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
	return []prometheus.Collector{m.operations, m.loginAttempts}
}

// incOperation counts one request. status is "success" or an error code.
func (m *Metrics) incOperation(operation, status string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) incLogin(result string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(result).Inc()
}
