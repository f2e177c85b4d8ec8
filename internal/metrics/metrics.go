// Package metrics provides Prometheus instrumentation for the settlement
// engine.
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
	// MarketsCreated counts markets opened.
	MarketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prizepool_markets_created_total",
		Help: "Total number of markets created",
	})

	// BetsPlaced counts accepted bets.
	BetsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prizepool_bets_placed_total",
		Help: "Total number of bets accepted",
	})

	// MarketsResolved counts creator resolutions.
	MarketsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prizepool_markets_resolved_total",
		Help: "Total number of markets resolved by their creator",
	})

	// MarketsSettled counts completed settlements.
	MarketsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prizepool_markets_settled_total",
		Help: "Total number of markets settled and paid out",
	})

	// DisputesOpened counts disputes posted.
	DisputesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prizepool_disputes_opened_total",
		Help: "Total number of disputes opened",
	})

	// DisputesUpheld counts disputes that overturned a resolution.
	DisputesUpheld = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prizepool_disputes_upheld_total",
		Help: "Disputes adjudicated in the challenger's favor",
	})

	// DisputesRejected counts disputes where the original resolution stood.
	DisputesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prizepool_disputes_rejected_total",
		Help: "Disputes adjudicated in the creator's favor",
	})

	// PayoutLegs counts individual ledger transfers issued at settlement.
	PayoutLegs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prizepool_payout_legs_total",
		Help: "Individual payout transfers issued",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prizepool_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prizepool_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

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

		// Use the route pattern for path label to avoid high cardinality.
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
