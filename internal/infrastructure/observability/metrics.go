package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Payment metrics
	STKPushTotal          *prometheus.CounterVec
	CallbacksTotal        *prometheus.CounterVec
	ReconciliationsTotal  *prometheus.CounterVec
	ReconcileConflicts    prometheus.Counter
	PendingTransactions   prometheus.Gauge
	DarajaRequestDuration *prometheus.HistogramVec
	TokenRefreshes        *prometheus.CounterVec

	// Order metrics
	OrdersTotal     *prometheus.CounterVec
	OrdersPaidTotal prometheus.Counter

	// Email metrics
	EmailsSent *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		STKPushTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stk_push_total",
				Help:      "Total number of STK push initiations by outcome",
			},
			[]string{"outcome"},
		),
		CallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mpesa_callbacks_total",
				Help:      "Total number of provider callbacks by result",
			},
			[]string{"result"},
		),
		ReconciliationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliations_total",
				Help:      "Total number of status-query reconciliations by result",
			},
			[]string{"result"},
		),
		ReconcileConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliation_conflicts_total",
				Help:      "Callbacks or status results referencing unknown or terminal transactions",
			},
		),
		PendingTransactions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_transactions",
				Help:      "Number of M-Pesa transactions currently pending",
			},
		),
		DarajaRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "daraja_request_duration_seconds",
				Help:      "Outbound Daraja API call duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"endpoint", "outcome"},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "daraja_token_refreshes_total",
				Help:      "Total number of OAuth token fetches by outcome",
			},
			[]string{"outcome"},
		),
		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_total",
				Help:      "Total number of orders by status",
			},
			[]string{"status"},
		),
		OrdersPaidTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_paid_total",
				Help:      "Total number of orders marked paid",
			},
		),
		EmailsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emails_sent_total",
				Help:      "Total number of transactional emails by template and outcome",
			},
			[]string{"template", "outcome"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.STKPushTotal,
		m.CallbacksTotal,
		m.ReconciliationsTotal,
		m.ReconcileConflicts,
		m.PendingTransactions,
		m.DarajaRequestDuration,
		m.TokenRefreshes,
		m.OrdersTotal,
		m.OrdersPaidTotal,
		m.EmailsSent,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CircuitBreakerState,
	)

	return m
}
