// Package metrics provides Prometheus metrics for the astrolabe service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the astrolabe service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Calculation Metrics
	chartsComputed   prometheus.Counter
	chartsFailed     *prometheus.CounterVec
	chartLatency     prometheus.Histogram
	aspectsDetected  prometheus.Counter
	synastryComputed prometheus.Counter
	synastryScore    prometheus.Histogram
	skySnapshots     prometheus.Counter

	// Ephemeris Metrics
	ephemerisLatency     prometheus.Histogram
	ephemerisErrors      *prometheus.CounterVec
	ephemerisCacheHits   prometheus.Counter
	ephemerisCacheMisses prometheus.Counter
	ephemerisReloads     *prometheus.CounterVec

	// Chart Store Metrics
	chartStoreSize      prometheus.Gauge
	chartStoreEvictions prometheus.Counter

	// Queue Metrics - Batch job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "astrolabe",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.chartsComputed = m.counter("charts_computed_total", "Total number of charts computed successfully")
	m.chartsFailed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "charts_failed_total",
			Help:      "Total number of failed chart calculations by error kind",
		},
		[]string{"kind"},
	)
	m.chartLatency = m.histogram("chart_latency_milliseconds", "Histogram of chart calculation latency in milliseconds", m.histogramBuckets)
	m.aspectsDetected = m.counter("aspects_detected_total", "Total number of natal aspects detected")
	m.synastryComputed = m.counter("synastry_computed_total", "Total number of synastry reports computed")
	m.synastryScore = m.histogram("synastry_score", "Distribution of overall compatibility scores",
		[]float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100})
	m.skySnapshots = m.counter("sky_snapshots_total", "Total number of sky snapshots computed")

	m.ephemerisLatency = m.histogram("ephemeris_latency_milliseconds", "Ephemeris provider call latency in milliseconds", m.histogramBuckets)
	m.ephemerisErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "ephemeris_errors_total",
			Help:      "Total number of ephemeris failures by provider",
		},
		[]string{"provider"},
	)
	m.ephemerisCacheHits = m.counter("ephemeris_cache_hits_total", "Total number of ephemeris cache hits")
	m.ephemerisCacheMisses = m.counter("ephemeris_cache_misses_total", "Total number of ephemeris cache misses")
	m.ephemerisReloads = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "ephemeris_table_reloads_total",
			Help:      "Total number of ephemeris table reloads by outcome",
		},
		[]string{"outcome"},
	)

	m.chartStoreSize = m.gauge("chart_store_size", "Number of charts held in the chart store")
	m.chartStoreEvictions = m.counter("chart_store_evictions_total", "Total number of charts evicted from the chart store")

	m.queueSize = m.gauge("queue_size", "Current size of the batch job queue (backlog indicator)")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of jobs rejected by a full or closed queue")

	m.workerCount = m.gauge("worker_count", "Current number of workers (processing capacity)")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently computing a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds", m.histogramBuckets)
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of jobs that finished with a failure")

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds (user experience)",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of errors by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordChartComputed counts a successful chart and observes its latency.
func RecordChartComputed(latencyMs float64) {
	globalManager.chartsComputed.Inc()
	globalManager.chartLatency.Observe(latencyMs)
}

// RecordChartFailed counts a failed chart calculation.
func RecordChartFailed(kind string) {
	globalManager.chartsFailed.WithLabelValues(kind).Inc()
}

// RecordAspectsDetected adds n natal aspects.
func RecordAspectsDetected(n int) {
	globalManager.aspectsDetected.Add(float64(n))
}

// RecordSynastryComputed counts a synastry report and observes its score.
func RecordSynastryComputed(score float64) {
	globalManager.synastryComputed.Inc()
	globalManager.synastryScore.Observe(score)
}

// RecordSkySnapshot counts a sky snapshot.
func RecordSkySnapshot() {
	globalManager.skySnapshots.Inc()
}

// Ephemeris Metrics Functions.

// RecordEphemerisLatency records a provider call latency in milliseconds.
func RecordEphemerisLatency(latencyMs float64) {
	globalManager.ephemerisLatency.Observe(latencyMs)
}

// RecordEphemerisError counts a provider failure.
func RecordEphemerisError(provider string) {
	globalManager.ephemerisErrors.WithLabelValues(provider).Inc()
}

// RecordEphemerisCacheHit increments the cache hit counter.
func RecordEphemerisCacheHit() {
	globalManager.ephemerisCacheHits.Inc()
}

// RecordEphemerisCacheMiss increments the cache miss counter.
func RecordEphemerisCacheMiss() {
	globalManager.ephemerisCacheMisses.Inc()
}

// RecordEphemerisReload counts a table reload; outcome is "ok" or "error".
func RecordEphemerisReload(outcome string) {
	globalManager.ephemerisReloads.WithLabelValues(outcome).Inc()
}

// Chart Store Metrics Functions.

// UpdateChartStoreSize sets the number of stored charts.
func UpdateChartStoreSize(size int) {
	globalManager.chartStoreSize.Set(float64(size))
}

// RecordChartStoreEviction counts an evicted chart.
func RecordChartStoreEviction() {
	globalManager.chartStoreEvictions.Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
