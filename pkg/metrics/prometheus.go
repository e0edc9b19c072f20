// Package metrics provides Prometheus metrics for the laprank engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ranking
	finishes        *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	leaderboardSize prometheus.Gauge
	pendingChanges  prometheus.Gauge
	mapActive       prometheus.Gauge

	// Enrichment
	enrichmentLatency  prometheus.Histogram
	enrichmentFailures prometheus.Counter
	rollbacks          prometheus.Counter
	drainDuration      prometheus.Histogram

	// Authority
	sessionOpens     *prometheus.CounterVec
	sessionState     prometheus.Gauge
	authorityCalls   *prometheus.CounterVec
	authorityLatency *prometheus.HistogramVec
	snapshotPushes   *prometheus.CounterVec
	flushes          *prometheus.CounterVec
	flushBatchSize   prometheus.Histogram

	// Events
	eventsProcessed *prometheus.CounterVec
	eventsDuplicate prometheus.Counter

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

	// Worker
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "laprank",
		subsystem:        "engine",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.finishes = auto.NewCounterVec(m.counterOpts("finishes_total", "Finished runs by classification"), []string{"classification"})
	m.rejections = auto.NewCounterVec(m.counterOpts("rejections_total", "Finished runs rejected before touching the leaderboard"), []string{"reason"})
	m.leaderboardSize = auto.NewGauge(m.gaugeOpts("leaderboard_records", "Records on the current map leaderboard"))
	m.pendingChanges = auto.NewGauge(m.gaugeOpts("pending_changes", "Accepted changes waiting for submission"))
	m.mapActive = auto.NewGauge(m.gaugeOpts("map_active", "1 when the current map is rankable"))

	m.enrichmentLatency = auto.NewHistogram(m.histogramOpts("enrichment_latency_milliseconds", "Replay enrichment latency per pending change", nil))
	m.enrichmentFailures = auto.NewCounter(m.counterOpts("enrichment_failures_total", "Replay enrichment failures"))
	m.rollbacks = auto.NewCounter(m.counterOpts("rollbacks_total", "Leaderboard rollbacks after failed enrichment"))
	m.drainDuration = auto.NewHistogram(m.histogramOpts("drain_duration_milliseconds", "Duration of a full enrichment drain", nil))

	m.sessionOpens = auto.NewCounterVec(m.counterOpts("session_opens_total", "Authority session open attempts"), []string{"result"})
	m.sessionState = auto.NewGauge(m.gaugeOpts("session_state", "Authority session state (0 none, 1 opening, 2 ready)"))
	m.authorityCalls = auto.NewCounterVec(m.counterOpts("authority_calls_total", "Remote calls to the ranking authority"), []string{"method", "result"})
	m.authorityLatency = auto.NewHistogramVec(m.histogramOpts("authority_call_latency_milliseconds", "Ranking authority call latency", nil), []string{"method"})
	m.snapshotPushes = auto.NewCounterVec(m.counterOpts("snapshot_pushes_total", "Periodic server/player snapshot pushes"), []string{"result"})
	m.flushes = auto.NewCounterVec(m.counterOpts("flushes_total", "End-of-map pending change submissions"), []string{"result"})
	m.flushBatchSize = auto.NewHistogram(m.histogramOpts("flush_batch_size", "Pending changes per submission", []float64{0, 1, 2, 5, 10, 25, 50, 100}))

	m.eventsProcessed = auto.NewCounterVec(m.counterOpts("events_processed_total", "Game host events processed by kind"), []string{"kind"})
	m.eventsDuplicate = auto.NewCounter(m.counterOpts("events_duplicate_total", "Duplicate game host events dropped"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration", nil), []string{"endpoint", "method", "status_code"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Events waiting in the inbound queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Inbound queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Inbound queue utilization (0-1)"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Events enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Events dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Events refused by the queue"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds", "Time events wait in the queue", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100}))

	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Event handling latency on the engine loop", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250}))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Events whose handler returned an error"))

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total", "Errors by type and severity"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "HTTP errors by endpoint"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds", "Latency of failed operations", nil), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100}))
}

// RecordFinish counts a classified finish ("new", "improved", "gained", "equal", "ignored").
func RecordFinish(classification string) {
	globalManager.finishes.WithLabelValues(classification).Inc()
}

// RecordRejection counts a finish rejected for reason.
func RecordRejection(reason string) {
	globalManager.rejections.WithLabelValues(reason).Inc()
}

// UpdateLeaderboardSize sets the number of records on the board.
func UpdateLeaderboardSize(n int) {
	globalManager.leaderboardSize.Set(float64(n))
}

// UpdatePendingChanges sets the number of queued changes.
func UpdatePendingChanges(n int) {
	globalManager.pendingChanges.Set(float64(n))
}

// UpdateMapActive records whether the current map is rankable.
func UpdateMapActive(active bool) {
	if active {
		globalManager.mapActive.Set(1)
		return
	}
	globalManager.mapActive.Set(0)
}

// RecordEnrichmentLatency observes one enrichment in milliseconds.
func RecordEnrichmentLatency(ms float64) {
	globalManager.enrichmentLatency.Observe(ms)
}

// RecordEnrichmentFailure counts a failed enrichment.
func RecordEnrichmentFailure() {
	globalManager.enrichmentFailures.Inc()
}

// RecordRollback counts a leaderboard rollback.
func RecordRollback() {
	globalManager.rollbacks.Inc()
}

// RecordDrainDuration observes a full drain in milliseconds.
func RecordDrainDuration(ms float64) {
	globalManager.drainDuration.Observe(ms)
}

// RecordSessionOpen counts a session open attempt with result "ok" or "error".
func RecordSessionOpen(result string) {
	globalManager.sessionOpens.WithLabelValues(result).Inc()
}

// UpdateSessionState sets the numeric session state.
func UpdateSessionState(state int) {
	globalManager.sessionState.Set(float64(state))
}

// RecordAuthorityCall counts and times a remote authority call.
func RecordAuthorityCall(method, result string, ms float64) {
	globalManager.authorityCalls.WithLabelValues(method, result).Inc()
	globalManager.authorityLatency.WithLabelValues(method).Observe(ms)
}

// RecordSnapshotPush counts a snapshot push.
func RecordSnapshotPush(result string) {
	globalManager.snapshotPushes.WithLabelValues(result).Inc()
}

// RecordFlush counts an end-of-map submission and its size.
func RecordFlush(result string, size int) {
	globalManager.flushes.WithLabelValues(result).Inc()
	globalManager.flushBatchSize.Observe(float64(size))
}

// RecordEventProcessed counts a processed event of kind.
func RecordEventProcessed(kind string) {
	globalManager.eventsProcessed.WithLabelValues(kind).Inc()
}

// RecordEventDuplicate counts a duplicate event.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

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

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// RecordWorkerProcessingLatency records event handling latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

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
