package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	notifications      *prometheus.CounterVec
	gatewayRequests    *prometheus.CounterVec
	gatewayLatency     *prometheus.HistogramVec
	ledgerTransitions  *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Gateway notifications by outcome",
			},
			[]string{"outcome"},
		),
		gatewayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_requests_total",
				Help:      "Outbound gateway calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		gatewayLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_request_duration_seconds",
				Help:      "Outbound gateway call latency including retries",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		ledgerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_transitions_total",
				Help:      "Applied ledger status transitions by target status",
			},
			[]string{"to"},
		),
		sideEffectFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "side_effect_failures_total",
				Help:      "Failed event publications and alerts",
			},
			[]string{"kind"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.notifications,
			m.gatewayRequests,
			m.gatewayLatency,
			m.ledgerTransitions,
			m.sideEffectFailures,
		)
	}
	return m
}

func (m *Metrics) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordGatewayRequest(operation, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(operation, result).Inc()
	m.gatewayLatency.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) RecordTransition(to string) {
	if m == nil {
		return
	}
	m.ledgerTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) RecordSideEffectFailure(kind string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(kind).Inc()
}
