// Package metrics exposes Prometheus instrumentation for the HTTP API
// and the simulation engines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	backtestsTotal    *prometheus.CounterVec
	backtestDuration  prometheus.Histogram
	deploymentsActive prometheus.Gauge
	forwardCycles     *prometheus.CounterVec
	tradesExecuted    *prometheus.CounterVec
	portfolioEquity   *prometheus.GaugeVec
}

// NewRegistry creates a metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantblocks_backtests_total",
			Help: "Total number of backtest runs",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quantblocks_backtest_duration_seconds",
			Help:    "Backtest run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)
	r.deploymentsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantblocks_deployments_active",
			Help: "Number of running forward-test deployments",
		},
	)
	r.forwardCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantblocks_forward_cycles_total",
			Help: "Total number of forward-test polling cycles",
		},
		[]string{"deployment", "status"},
	)
	r.tradesExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantblocks_trades_executed_total",
			Help: "Total number of simulated trades executed",
		},
		[]string{"mode", "side"},
	)
	r.portfolioEquity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quantblocks_portfolio_equity",
			Help: "Current mark-to-market equity per portfolio",
		},
		[]string{"portfolio"},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.deploymentsActive)
	reg.MustRegister(r.forwardCycles)
	reg.MustRegister(r.tradesExecuted)
	reg.MustRegister(r.portfolioEquity)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	if r == nil {
		return
	}
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// SetDeploymentsActive sets the running deployment count.
func (r *Registry) SetDeploymentsActive(count int) {
	if r == nil {
		return
	}
	r.deploymentsActive.Set(float64(count))
}

// RecordForwardCycle records one polling cycle outcome.
func (r *Registry) RecordForwardCycle(deployment, status string) {
	if r == nil {
		return
	}
	r.forwardCycles.WithLabelValues(deployment, status).Inc()
}

// RecordTrade records an executed simulated trade.
func (r *Registry) RecordTrade(mode, side string) {
	if r == nil {
		return
	}
	r.tradesExecuted.WithLabelValues(mode, side).Inc()
}

// SetPortfolioEquity records the latest equity mark for a portfolio.
func (r *Registry) SetPortfolioEquity(portfolioID string, equity float64) {
	if r == nil {
		return
	}
	r.portfolioEquity.WithLabelValues(portfolioID).Set(equity)
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
