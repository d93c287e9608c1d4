// Package metrics exposes the process's Prometheus instrumentation.
// The HTTP middleware shape is lifted directly from the teacher's
// lake/api/metrics/metrics.go; the ClickHouse/Anthropic metric groups
// are replaced with object-store and crash-ingest groups that this
// domain actually exercises.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oasis_build_info",
			Help: "Build information of the Oasis update server",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oasis_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oasis_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oasis_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	ObjectStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oasis_objectstore_operations_total",
			Help: "Total number of object-store operations",
		},
		[]string{"operation", "status"},
	)

	ObjectStoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oasis_objectstore_operation_duration_seconds",
			Help:    "Duration of object-store operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"operation"},
	)

	UpdateChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oasis_update_checks_total",
			Help: "Total number of update-resolution requests, by outcome",
		},
		[]string{"outcome"}, // "served", "no_update", "not_found", "error"
	)

	CrashReportsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oasis_crash_reports_ingested_total",
			Help: "Total number of crash reports ingested",
		},
		[]string{"is_new_group"},
	)
)

// Middleware records per-request HTTP metrics using the chi route
// pattern as the path label so cardinality stays bounded by route
// count rather than by concrete URL.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordObjectStoreOperation records metrics for one object-store call.
func RecordObjectStoreOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ObjectStoreOperationsTotal.WithLabelValues(operation, status).Inc()
	ObjectStoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordUpdateCheck records the outcome of one update-resolution request.
func RecordUpdateCheck(outcome string) {
	UpdateChecksTotal.WithLabelValues(outcome).Inc()
}

// RecordCrashIngest records one ingested crash report.
func RecordCrashIngest(isNewGroup bool) {
	CrashReportsIngestedTotal.WithLabelValues(strconv.FormatBool(isNewGroup)).Inc()
}
