package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// sizeBuckets spans 100 B to 1 GB. Request bodies are capped well below that.
var sizeBuckets = prometheus.ExponentialBuckets(100, 10, 8)

// Collectors of the dev backend, registered on the default registry.
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	httpRequestSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_size_bytes",
		Help:    "HTTP request body size in bytes",
		Buckets: sizeBuckets,
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_size_bytes",
		Help:    "HTTP response body size in bytes",
		Buckets: sizeBuckets,
	}, []string{"method", "path"})

	// result: signup_success, signup_rejected, email_taken, login_success, invalid_credentials
	authAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Signup and login attempts by result",
	}, []string{"result"})

	// status: the simulated intake status served to the poller
	intakeStatusReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_status_reads_total",
		Help: "Intake status reads by served status",
	}, []string{"status"})
)

// Metrics records count, latency and body sizes of every request, labelled
// by route pattern rather than raw path.
//
//	histogram_quantile(0.95, sum by (le, path) (rate(http_request_duration_seconds_bucket[5m])))
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			path := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			httpResponseSize.WithLabelValues(r.Method, path).Observe(float64(ww.BytesWritten()))
			if r.ContentLength > 0 {
				httpRequestSize.WithLabelValues(r.Method, path).Observe(float64(r.ContentLength))
			}
		})
	}
}

// MetricsHandler serves the default registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// routePattern returns the chi route pattern (/api/intakes/{intakeId}) so
// resource ids do not become label values. Falls back to the raw path
// outside a chi router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// IncrementAuthAttempts counts one signup or login outcome.
func IncrementAuthAttempts(result string) {
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordIntakeStatusRead counts one intake status read.
func RecordIntakeStatusRead(status string) {
	intakeStatusReadsTotal.WithLabelValues(status).Inc()
}
