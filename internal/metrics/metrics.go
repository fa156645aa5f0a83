// Package metrics provides Prometheus instrumentation for trading cycles.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersPlaced counts orders acknowledged by the gateway, by action.
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratbook_orders_placed_total",
		Help: "Orders acknowledged by the execution gateway",
	}, []string{"action"})

	// OrdersFailed counts submissions that returned no order id.
	OrdersFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratbook_orders_failed_total",
		Help: "Order submissions that failed",
	}, []string{"action"})

	// Fills counts resolved orders by final status.
	Fills = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratbook_fills_total",
		Help: "Resolved orders by gateway status",
	}, []string{"status"})

	// CycleDuration tracks how long a trading cycle takes, by outcome.
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stratbook_cycle_duration_seconds",
		Help:    "Trading cycle duration in seconds",
		Buckets: []float64{1, 5, 30, 60, 300, 600, 900, 1200, 1800},
	}, []string{"outcome"})

	// StrategyNAV is the last computed NAV per strategy.
	StrategyNAV = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stratbook_strategy_nav",
		Help: "Strategy NAV after the last cycle",
	}, []string{"strategy"})

	// StrategyCash is the last computed cash per strategy.
	StrategyCash = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stratbook_strategy_cash",
		Help: "Strategy cash after the last cycle",
	}, []string{"strategy"})

	// LedgerDrift is the number of tickers where combined and strategy ledgers disagree.
	LedgerDrift = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stratbook_ledger_drift_tickers",
		Help: "Tickers whose combined position differs from the sum of strategy positions",
	})

	// SheetFailures counts per-strategy spreadsheet update failures.
	SheetFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratbook_sheet_failures_total",
		Help: "Spreadsheet updates that failed, by stage",
	}, []string{"stage"})

	// JobRuns counts scheduler job executions by job and outcome.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratbook_job_runs_total",
		Help: "Scheduled job executions",
	}, []string{"job", "outcome"})

	// HTTPRequestsTotal counts status API requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratbook_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stratbook_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// StrategyLabel is the label value for strategy idx (1-based, like the sheets)
func StrategyLabel(idx int) string {
	return strconv.Itoa(idx + 1)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
