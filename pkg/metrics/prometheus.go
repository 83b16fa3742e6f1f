// Package metrics provides Prometheus metrics for the vessel trail service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	latencyBuckets   []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Data source
	fetchLatency   *prometheus.HistogramVec
	fetchErrors    *prometheus.CounterVec
	pointsLoaded   prometheus.Gauge
	cacheRequests  *prometheus.CounterVec
	kafkaConsumed  prometheus.Counter
	kafkaDecodeErr prometheus.Counter
	kafkaBuffered  prometheus.Gauge
	kafkaDupes     prometheus.Counter

	// Pipeline
	filterRuns       prometheus.Counter
	pointsRetained   prometheus.Histogram
	segmentsRendered prometheus.Counter
	segmentsSkipped  prometheus.Counter
	renderLatency    prometheus.Histogram

	// Sessions
	sessionsActive  prometheus.Gauge
	staleResponses  prometheus.Counter
	notifications   *prometheus.CounterVec
	sessionsExpired prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// defaultLatencyBuckets spans 1ms to about 16s; every latency metric here is in milliseconds.
var defaultLatencyBuckets = prometheus.ExponentialBuckets(1, 2, 15) //nolint:gochecknoglobals // bucket layout

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "vesseltrail",
		subsystem:        "dashboard",
		latencyBuckets:   defaultLatencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.latencyBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.fetchLatency = m.histogramVec("fetch_latency_milliseconds",
		"Upstream data fetch latency in milliseconds", "source")
	m.fetchErrors = m.counterVec("fetch_errors_total",
		"Total number of failed upstream fetches", "source")
	m.pointsLoaded = m.gauge("points_loaded",
		"Number of data points returned by the last upstream fetch")
	m.cacheRequests = m.counterVec("cache_requests_total",
		"Data source cache lookups by result", "result")
	m.kafkaConsumed = m.counter("kafka_messages_consumed_total",
		"Total number of telemetry messages consumed from Kafka")
	m.kafkaDecodeErr = m.counter("kafka_decode_errors_total",
		"Total number of Kafka messages that failed to decode")
	m.kafkaBuffered = m.gauge("kafka_buffered_points",
		"Number of data points currently buffered from Kafka")
	m.kafkaDupes = m.counter("kafka_duplicates_total",
		"Total number of redelivered Kafka points dropped")

	m.filterRuns = m.counter("filter_runs_total",
		"Total number of filter engine invocations")
	m.pointsRetained = m.histogram("filter_points_retained",
		"Number of points surviving a filter run",
		[]float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000, 50000})
	m.segmentsRendered = m.counter("trail_segments_rendered_total",
		"Total number of trail segments emitted")
	m.segmentsSkipped = m.counter("trail_segments_skipped_total",
		"Total number of trail segments skipped for invalid positions")
	m.renderLatency = m.histogram("trail_render_latency_milliseconds",
		"Trail render latency in milliseconds", m.latencyBuckets)

	m.sessionsActive = m.gauge("sessions_active",
		"Number of live dashboard sessions")
	m.staleResponses = m.counter("stale_responses_total",
		"Total number of fetch results discarded because a newer submission superseded them")
	m.notifications = m.counterVec("notifications_total",
		"Notifications raised by kind", "kind")
	m.sessionsExpired = m.counter("sessions_expired_total",
		"Total number of idle sessions swept")

	m.queueSize = m.gauge("queue_size", "Current size of the fetch queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum fetch queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Total number of fetch jobs enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Total number of fetch jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")

	m.workerCount = m.gauge("worker_count", "Configured number of fetch workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently processing a job")
	m.workerIdleCount = m.gauge("worker_idle_count", "Number of idle workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Worker job latency in milliseconds", m.latencyBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of failed worker jobs")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total",
		"Total number of errors by type", "error_type", "severity")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordFetch records one upstream fetch and its outcome.
func RecordFetch(source string, latencyMs float64, points int, err error) {
	globalManager.fetchLatency.WithLabelValues(source).Observe(latencyMs)
	if err != nil {
		globalManager.fetchErrors.WithLabelValues(source).Inc()
		return
	}
	globalManager.pointsLoaded.Set(float64(points))
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() { globalManager.cacheRequests.WithLabelValues("hit").Inc() }

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() { globalManager.cacheRequests.WithLabelValues("miss").Inc() }

// RecordKafkaMessage counts a consumed message; ok=false marks a decode failure.
func RecordKafkaMessage(ok bool) {
	globalManager.kafkaConsumed.Inc()
	if !ok {
		globalManager.kafkaDecodeErr.Inc()
	}
}

// RecordKafkaDuplicate counts a redelivered point that was dropped.
func RecordKafkaDuplicate() { globalManager.kafkaDupes.Inc() }

// UpdateKafkaBuffered sets the number of buffered Kafka points.
func UpdateKafkaBuffered(n int) { globalManager.kafkaBuffered.Set(float64(n)) }

// RecordFilterRun records a filter engine run and how many points survived.
func RecordFilterRun(retained int) {
	globalManager.filterRuns.Inc()
	globalManager.pointsRetained.Observe(float64(retained))
}

// RecordTrailRender records a finished render.
func RecordTrailRender(segments, skipped int, latencyMs float64) {
	globalManager.segmentsRendered.Add(float64(segments))
	globalManager.segmentsSkipped.Add(float64(skipped))
	globalManager.renderLatency.Observe(latencyMs)
}

// UpdateSessionsActive sets the live session count.
func UpdateSessionsActive(n int) { globalManager.sessionsActive.Set(float64(n)) }

// RecordStaleResponse increments the discarded-result counter.
func RecordStaleResponse() { globalManager.staleResponses.Inc() }

// RecordNotification counts a notification of the given kind.
func RecordNotification(kind string) { globalManager.notifications.WithLabelValues(kind).Inc() }

// RecordSessionsExpired adds n swept sessions.
func RecordSessionsExpired(n int) { globalManager.sessionsExpired.Add(float64(n)) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) { globalManager.workerIdleCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

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

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// UpdateSystemMemoryUsage sets the heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
