package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects application metrics for the backend and the admin
// client.
type Metrics struct {
	// HTTPRequestDuration measures backend request latency in seconds.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts backend requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// AdminCallCounter counts admin API calls issued by the console.
	// Labels: operation (login|list|summary|create|update|delete|reset),
	// status (success|error|unauthorized)
	AdminCallCounter *prometheus.CounterVec

	// AdminCallDuration measures admin API call latency in seconds.
	// Labels: operation
	AdminCallDuration *prometheus.HistogramVec

	// StoreQueryCounter counts experiment-store queries.
	// Labels: operation (select|insert|update|delete), status
	StoreQueryCounter *prometheus.CounterVec

	// ExperimentsGauge tracks experiments per application id.
	// Labels: app_id
	ExperimentsGauge *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics with the default
// Prometheus registry. Call once at startup.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers against an explicit registerer, which tests
// use to avoid duplicate registration panics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "variant_http_request_duration_seconds",
				Help:    "Duration of backend HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "variant_http_requests_total",
				Help: "Total backend HTTP requests by method, path, and status",
			},
			[]string{"method", "path", "status_code"},
		),
		AdminCallCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "variant_admin_calls_total",
				Help: "Total admin API calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		AdminCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "variant_admin_call_duration_seconds",
				Help:    "Duration of admin API calls in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"operation"},
		),
		StoreQueryCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "variant_store_queries_total",
				Help: "Total experiment-store queries by operation and status",
			},
			[]string{"operation", "status"},
		),
		ExperimentsGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "variant_experiments",
				Help: "Number of experiments loaded per application id",
			},
			[]string{"app_id"},
		),
	}
}

// ObserveHTTPRequest records one backend request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	m.HTTPRequestCounter.WithLabelValues(method, path, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}
