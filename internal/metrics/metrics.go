// Package metrics provides Prometheus instrumentation for the fund engine.
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
	// TransactionsTotal counts investor and manager transactions by method
	// (buy, sell, trade) and outcome (ok, rejected, failed).
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundd_transactions_total",
		Help: "Total fund transactions processed",
	}, []string{"method", "outcome"})

	// TransactionDuration tracks end-to-end transaction latency by method.
	TransactionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fundd_transaction_duration_seconds",
		Help:    "Fund transaction duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// PriceCacheHits counts token price reads served from the fresh cache.
	PriceCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundd_price_cache_hits_total",
		Help: "Token price reads served from the fresh in-memory cache",
	})

	// PriceCacheMisses counts token price reads that required a refresh.
	PriceCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundd_price_cache_misses_total",
		Help: "Token price reads that missed the fresh cache",
	})

	// PriceFallbacks counts price reads served from stale data after an
	// external feed failure.
	PriceFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundd_price_fallbacks_total",
		Help: "Token price reads degraded to stale or persisted prices",
	})

	// ValuationFallbacks counts fund token price computations that fell back
	// to the bootstrap price.
	ValuationFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundd_valuation_fallbacks_total",
		Help: "Fund token price computations degraded to the bootstrap price",
	})

	// VersionConflicts counts optimistic-concurrency retries on fund saves.
	VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundd_version_conflicts_total",
		Help: "Optimistic concurrency conflicts detected on fund writes",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundd_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fundd_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
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

		// Use the route pattern for the path label to avoid high cardinality.
		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}
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
