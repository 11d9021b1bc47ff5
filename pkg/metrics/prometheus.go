// Package metrics provides Prometheus metrics for the gradebook service and
// the grade-entry workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every metric the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Grade batches accepted by the store
	gradeBatches      *prometheus.CounterVec
	gradesSaved       prometheus.Counter
	idempotentReplays prometheus.Counter
	saveLatency       prometheus.Histogram

	// Workflow (client side)
	collaboratorLoads       *prometheus.CounterVec
	collaboratorLoadLatency *prometheus.HistogramVec
	staleResponses          *prometheus.CounterVec
	submissions             *prometheus.CounterVec
	dirtyRows               prometheus.Gauge

	// Statistics recomputation
	statisticsRecomputed prometheus.Counter
	evaluationsTracked   prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // avoids default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gradebook",
		subsystem:        "grades",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	// Apply all options
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.gradeBatches = m.counterVec("batches_total", "Grade batches received by the store, by result", "result")
	m.gradesSaved = m.counter("saved_total", "Individual grade entries persisted")
	m.idempotentReplays = m.counter("idempotent_replays_total", "Save requests rejected as replays of an idempotency key")
	m.saveLatency = m.histogram("save_latency_milliseconds", "Store latency for a grade batch")

	m.collaboratorLoads = m.counterVec("collaborator_loads_total", "Workflow collaborator calls by tier and outcome", "tier", "outcome")
	m.collaboratorLoadLatency = m.histogramVec("collaborator_load_latency_milliseconds", "Workflow collaborator call latency by tier", "tier")
	m.staleResponses = m.counterVec("stale_responses_total", "Collaborator responses discarded because the selection changed", "tier")
	m.submissions = m.counterVec("submissions_total", "Workflow submissions by result", "result")
	m.dirtyRows = m.gauge("dirty_rows", "Rows edited but not yet saved in the last touched workflow")

	m.statisticsRecomputed = m.counter("statistics_recomputed_total", "Evaluation statistics recomputed by workers")
	m.evaluationsTracked = m.gauge("evaluations_tracked", "Evaluations known to the store")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")

	m.queueSize = m.gauge("queue_size", "Grade events waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size / capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Grade events enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Grade events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Grade events dropped at enqueue")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency")

	m.workerCount = m.gauge("worker_count", "Statistics workers running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time to recompute statistics for one event")
	m.workerErrors = m.counter("worker_errors_total", "Worker failures")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause")
}

// Store metrics.

// RecordGradeBatch counts a grade batch with result "success", "rejected" or "error".
func RecordGradeBatch(result string, entries int) {
	globalManager.gradeBatches.WithLabelValues(result).Inc()
	if result == "success" {
		globalManager.gradesSaved.Add(float64(entries))
	}
}

// RecordIdempotentReplay counts a save rejected by the idempotency check.
func RecordIdempotentReplay() {
	globalManager.idempotentReplays.Inc()
}

// RecordSaveLatency records store latency for a grade batch.
func RecordSaveLatency(latencyMs float64) {
	globalManager.saveLatency.Observe(latencyMs)
}

// UpdateEvaluationsTracked sets the number of evaluations in the store.
func UpdateEvaluationsTracked(count int) {
	globalManager.evaluationsTracked.Set(float64(count))
}

// RecordStatisticsRecomputed counts a statistics recomputation.
func RecordStatisticsRecomputed() {
	globalManager.statisticsRecomputed.Inc()
}

// Workflow metrics.

// RecordCollaboratorLoad records a collaborator call for a cascade tier.
func RecordCollaboratorLoad(tier, outcome string, latencyMs float64) {
	globalManager.collaboratorLoads.WithLabelValues(tier, outcome).Inc()
	globalManager.collaboratorLoadLatency.WithLabelValues(tier).Observe(latencyMs)
}

// RecordStaleResponse counts a response dropped because the selection moved on.
func RecordStaleResponse(tier string) {
	globalManager.staleResponses.WithLabelValues(tier).Inc()
}

// RecordSubmission counts a workflow submission by result.
func RecordSubmission(result string) {
	globalManager.submissions.WithLabelValues(result).Inc()
}

// UpdateDirtyRows sets the dirty-row gauge.
func UpdateDirtyRows(count int) {
	globalManager.dirtyRows.Set(float64(count))
}

// HTTP metrics.

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker metrics.

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an HTTP error with endpoint, method and type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets heap usage in bytes.
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
