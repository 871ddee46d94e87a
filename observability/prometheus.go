package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements MetricsRecorder with Prometheus collectors.
// It is safe for concurrent use.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	reroutesTotal   *prometheus.CounterVec
	rateLimitWait   *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
}

// NewPrometheusRecorder registers the client collectors on registry.
// A nil registry uses prometheus.DefaultRegisterer.
func NewPrometheusRecorder(registry prometheus.Registerer) *PrometheusRecorder {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fetch_client_requests_total",
			Help: "Total HTTP requests issued by the client.",
		}, []string{"method", "status_code", "path"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fetch_client_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		reroutesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fetch_client_reroutes_total",
			Help: "Requests whose path was rewritten by a rerouting rule.",
		}, []string{"method"}),

		rateLimitWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fetch_client_rate_limit_wait_seconds",
			Help:    "Time spent waiting for the client-side rate limiter.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fetch_client_errors_total",
			Help: "Client errors by operation and type.",
		}, []string{"operation", "error_type"}),
	}
}

func (r *PrometheusRecorder) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	r.requestsTotal.WithLabelValues(method, strconv.Itoa(statusCode), path).Inc()
	r.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordReroute(method string) {
	r.reroutesTotal.WithLabelValues(method).Inc()
}

func (r *PrometheusRecorder) RecordRateLimit(endpoint string, wait time.Duration) {
	r.rateLimitWait.WithLabelValues(endpoint).Observe(wait.Seconds())
}

func (r *PrometheusRecorder) RecordError(operation, errorType string) {
	r.errorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RequestsTotal exposes the request counter, mainly for tests.
func (r *PrometheusRecorder) RequestsTotal() *prometheus.CounterVec { return r.requestsTotal }

// ReroutesTotal exposes the reroute counter.
func (r *PrometheusRecorder) ReroutesTotal() *prometheus.CounterVec { return r.reroutesTotal }

// ErrorsTotal exposes the error counter.
func (r *PrometheusRecorder) ErrorsTotal() *prometheus.CounterVec { return r.errorsTotal }
