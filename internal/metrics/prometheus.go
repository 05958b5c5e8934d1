package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the activity feed service
type PrometheusMetrics struct {
	// Activity log metrics
	ActivityAppendedTotal *prometheus.CounterVec
	TombstonesTotal       prometheus.Counter

	// Feed metrics
	FeedRequestsTotal   *prometheus.CounterVec
	FeedRequestDuration prometheus.Histogram
	FeedResultSize      prometheus.Histogram

	// Bookmark metrics
	BookmarksTotal *prometheus.CounterVec
	RetriesTotal   *prometheus.CounterVec

	// Storage metrics
	DatabaseOperationsTotal   *prometheus.CounterVec
	DatabaseOperationDuration *prometheus.HistogramVec

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates all metrics and registers them with reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		ActivityAppendedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_entries_appended_total",
				Help: "Total number of activity entries appended",
			},
			[]string{"scope", "status"},
		),

		TombstonesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "activity_tombstones_total",
				Help: "Total number of entities tombstoned",
			},
		),

		FeedRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_feed_requests_total",
				Help: "Total number of important changes requests",
			},
			[]string{"status"},
		),

		FeedRequestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "activity_feed_request_duration_seconds",
				Help:    "Time spent computing important changes",
				Buckets: prometheus.DefBuckets,
			},
		),

		FeedResultSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "activity_feed_result_size",
				Help:    "Number of items returned per important changes request",
				Buckets: []float64{0, 1, 2, 5, 10},
			},
		),

		BookmarksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_bookmarks_total",
				Help: "Total number of bookmark requests by outcome",
			},
			[]string{"outcome"},
		),

		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_storage_retries_total",
				Help: "Total number of internal retries of transient storage errors",
			},
			[]string{"operation", "error_code"},
		),

		DatabaseOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_database_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),

		DatabaseOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "activity_database_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "activity_http_requests_total",
				Help: "Total number of HTTP requests received",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "activity_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ApplicationUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "activity_application_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "activity_component_health",
				Help: "Health status of application components (1=healthy, 0=unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "activity_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "activity_goroutines",
				Help: "Number of running goroutines",
			},
		),
	}
}

// RecordActivityAppended records an append attempt
func (m *PrometheusMetrics) RecordActivityAppended(scope, status string) {
	m.ActivityAppendedTotal.WithLabelValues(scope, status).Inc()
}

// RecordTombstone records an entity deletion
func (m *PrometheusMetrics) RecordTombstone() {
	m.TombstonesTotal.Inc()
}

// RecordFeedRequest records an important changes request
func (m *PrometheusMetrics) RecordFeedRequest(status string, results int, duration time.Duration) {
	m.FeedRequestsTotal.WithLabelValues(status).Inc()
	m.FeedRequestDuration.Observe(duration.Seconds())
	if status == "success" {
		m.FeedResultSize.Observe(float64(results))
	}
}

// RecordBookmark records a bookmark outcome: advanced, unchanged or error
func (m *PrometheusMetrics) RecordBookmark(outcome string) {
	m.BookmarksTotal.WithLabelValues(outcome).Inc()
}

// RecordRetry records an internal retry of a transient error
func (m *PrometheusMetrics) RecordRetry(operation, errorCode string) {
	m.RetriesTotal.WithLabelValues(operation, errorCode).Inc()
}

// RecordDatabaseOperation records a database operation
func (m *PrometheusMetrics) RecordDatabaseOperation(operation, table, status string, duration time.Duration) {
	m.DatabaseOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.DatabaseOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the application uptime metric
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateComponentHealth updates the health status of a component
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.ComponentHealth.WithLabelValues(component).Set(value)
}

// UpdateMemoryUsage updates the memory usage metric
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count metric
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}
