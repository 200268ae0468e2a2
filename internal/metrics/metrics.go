package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the relay
type Metrics struct {
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec
	// HTTPRequestsTotal total HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestsInFlight current HTTP requests being processed
	HTTPRequestsInFlight prometheus.Gauge
	// DispatchOutcomes counts relay dispatches by credential mode and outcome
	DispatchOutcomes *prometheus.CounterVec
	// SessionAttempts counts session-pool iterations by classified outcome
	SessionAttempts *prometheus.CounterVec
	// AccountDemotions counts pool demotions by reason
	AccountDemotions *prometheus.CounterVec
	// PoolAccounts tracks the account pool composition by status
	PoolAccounts *prometheus.GaugeVec
	// PoolRecoveries counts accounts recovered from cooldown
	PoolRecoveries prometheus.Counter
	// TokenRefreshes counts scheduled token refresh attempts by result
	TokenRefreshes *prometheus.CounterVec
	// ErrorCounter counts errors by type and endpoint
	ErrorCounter *prometheus.CounterVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		DispatchOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_outcomes_total",
				Help:      "Total relay dispatches by credential mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		SessionAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_attempts_total",
				Help:      "Total session-pool attempts by classified outcome",
			},
			[]string{"outcome"},
		),
		AccountDemotions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "account_demotions_total",
				Help:      "Total pool account demotions by reason",
			},
			[]string{"reason"},
		),
		PoolAccounts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_accounts",
				Help:      "Session account pool composition by status",
			},
			[]string{"status"},
		),
		PoolRecoveries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pool_recoveries_total",
				Help:      "Total accounts recovered from rate-limit cooldown",
			},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Total scheduled token refresh attempts by result",
			},
			[]string{"result"},
		),
		ErrorCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"type", "endpoint"},
		),
	}

	registry.MustRegister(
		m.RequestLatency,
		m.HTTPRequestsTotal,
		m.HTTPRequestsInFlight,
		m.DispatchOutcomes,
		m.SessionAttempts,
		m.AccountDemotions,
		m.PoolAccounts,
		m.PoolRecoveries,
		m.TokenRefreshes,
		m.ErrorCounter,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequestLatency records the latency of an HTTP request
func (m *Metrics) RecordRequestLatency(endpoint, method, status string, durationSeconds float64) {
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}

// RecordHTTPRequest increments the request counter
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// IncHTTPRequestsInFlight increments the in-flight gauge
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecHTTPRequestsInFlight decrements the in-flight gauge
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordDispatch records one completed relay dispatch
func (m *Metrics) RecordDispatch(mode, outcome string) {
	m.DispatchOutcomes.WithLabelValues(mode, outcome).Inc()
}

// RecordSessionAttempt records one session-pool attempt outcome
func (m *Metrics) RecordSessionAttempt(outcome string) {
	m.SessionAttempts.WithLabelValues(outcome).Inc()
}

// RecordDemotion records a pool account demotion
func (m *Metrics) RecordDemotion(reason string) {
	m.AccountDemotions.WithLabelValues(reason).Inc()
}

// SetPoolAccounts sets the pool composition gauge for a status
func (m *Metrics) SetPoolAccounts(status string, count int) {
	m.PoolAccounts.WithLabelValues(status).Set(float64(count))
}

// RecordRecoveries adds recovered accounts to the recovery counter
func (m *Metrics) RecordRecoveries(count int) {
	m.PoolRecoveries.Add(float64(count))
}

// RecordTokenRefresh records a scheduled refresh attempt result
func (m *Metrics) RecordTokenRefresh(result string) {
	m.TokenRefreshes.WithLabelValues(result).Inc()
}

// RecordError increments the error counter
func (m *Metrics) RecordError(errorType, endpoint string) {
	m.ErrorCounter.WithLabelValues(errorType, endpoint).Inc()
}
