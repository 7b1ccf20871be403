package apiclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// clientRequestsTotal counts backend requests by method, route and status.
	// Transport failures are recorded with status "error".
	//
	// Labels: method, route (/api/intakes/{id}), status (200, 404, error)
	// Type: Counter
	clientRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispenser_client_requests_total",
			Help: "Total number of requests sent to the dispenser backend",
		},
		[]string{"method", "route", "status"},
	)

	// clientRequestDuration measures round trip latency to the backend.
	//
	// Labels: method, route
	// Type: Histogram
	clientRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispenser_client_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(clientRequestsTotal)
	prometheus.MustRegister(clientRequestDuration)
}

// metricsTransport records request counts and latency.
type metricsTransport struct {
	next http.RoundTripper
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	route := Route(req.URL.Path)

	resp, err := t.next.RoundTrip(req)

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	clientRequestsTotal.WithLabelValues(req.Method, route, status).Inc()
	clientRequestDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())

	return resp, err
}

// Route collapses numeric path segments into {id} to keep label
// cardinality bounded.
func Route(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := strconv.ParseInt(seg, 10, 64); err == nil {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
