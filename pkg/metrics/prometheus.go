package metrics

import (
	"net/http"
	"runtime"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query kinds used as the "kind" label.
const (
	QueryLearnerClasses = "learner_classes"
	QueryGlobalStats    = "global_stats"
	QueryClassStats     = "class_stats"
)

// Manager owns every collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         *prometheus.Registry

	// Aggregation
	queries             *prometheus.CounterVec
	queryLatency        *prometheus.HistogramVec
	compositesComputed  prometheus.Counter
	compositesUndefined prometheus.Counter
	entriesSkipped      *prometheus.CounterVec

	// Ingestion
	recordsIngested  prometheus.Counter
	recordsDuplicate prometheus.Counter
	recordsFailed    prometheus.Counter

	// Store
	storeLatency *prometheus.HistogramVec
	storeRecords prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount   prometheus.Gauge
	workerErrors  prometheus.Counter
	workerLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
	configReloads     *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var global atomic.Pointer[Manager] //nolint:gochecknoglobals // process-wide metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	global.Store(NewManager())
}

// Default returns the process-wide manager.
func Default() *Manager { return global.Load() }

// SetDefault replaces the process-wide manager and returns the previous one.
func SetDefault(m *Manager) *Manager {
	if m == nil {
		return global.Load()
	}
	return global.Swap(m)
}

// NewManager creates a manager on a private registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gradestats",
		subsystem:        "",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
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

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.queries = m.counterVec("queries_total", "Aggregation queries served by kind", "kind")
	m.queryLatency = m.histogramVec("query_latency_milliseconds", "Aggregation query latency in milliseconds", "kind")
	m.compositesComputed = m.counter("composites_computed_total", "Composite averages computed")
	m.compositesUndefined = m.counter("composites_undefined_total", "Composite averages that were undefined (missing category)")
	m.entriesSkipped = m.counterVec("entries_skipped_total", "Score entries excluded from averaging by reason", "reason")

	m.recordsIngested = m.counter("records_ingested_total", "Score records persisted")
	m.recordsDuplicate = m.counter("records_duplicate_total", "Score records rejected as duplicates")
	m.recordsFailed = m.counter("records_failed_total", "Score records that failed to persist")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Record store latency in milliseconds", "op")
	m.storeRecords = m.gauge("store_records", "Number of score records in the store")

	m.queueSize = m.gauge("queue_size", "Records waiting in the ingest queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the ingest queue")
	m.queueEnqueue = m.counter("queue_enqueue_total", "Records enqueued")
	m.queueDequeue = m.counter("queue_dequeue_total", "Records dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue attempts rejected")

	m.workerCount = m.gauge("worker_count", "Running ingest workers")
	m.workerErrors = m.counter("worker_errors_total", "Errors while processing queued records")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Time to persist one queued record in milliseconds")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")
	m.configReloads = m.counterVec("config_reloads_total", "Configuration reloads by result", "result")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// Registry returns the registry the manager writes to.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the manager's registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) RecordQuery(kind string, latencyMs float64) {
	m.queries.WithLabelValues(kind).Inc()
	m.queryLatency.WithLabelValues(kind).Observe(latencyMs)
}

func (m *Manager) RecordComposites(computed, undefined int) {
	m.compositesComputed.Add(float64(computed))
	m.compositesUndefined.Add(float64(undefined))
}

func (m *Manager) RecordEntrySkipped(reason string) { m.entriesSkipped.WithLabelValues(reason).Inc() }
func (m *Manager) RecordIngested()                  { m.recordsIngested.Inc() }
func (m *Manager) RecordDuplicate()                 { m.recordsDuplicate.Inc() }
func (m *Manager) RecordFailed()                    { m.recordsFailed.Inc() }

func (m *Manager) RecordStoreLatency(op string, latencyMs float64) {
	m.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

func (m *Manager) UpdateStoreRecords(n int)       { m.storeRecords.Set(float64(n)) }
func (m *Manager) UpdateQueueSize(n int)          { m.queueSize.Set(float64(n)) }
func (m *Manager) UpdateQueueCapacity(n int)      { m.queueCapacity.Set(float64(n)) }
func (m *Manager) RecordQueueEnqueue()            { m.queueEnqueue.Inc() }
func (m *Manager) RecordQueueDequeue()            { m.queueDequeue.Inc() }
func (m *Manager) RecordQueueEnqueueError()       { m.queueEnqueueErrors.Inc() }
func (m *Manager) UpdateWorkerCount(n int)        { m.workerCount.Set(float64(n)) }
func (m *Manager) RecordWorkerError()             { m.workerErrors.Inc() }
func (m *Manager) RecordWorkerLatency(ms float64) { m.workerLatency.Observe(ms) }

func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func (m *Manager) RecordError(component, errorType string) {
	m.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

func (m *Manager) RecordConfigReload(result string) { m.configReloads.WithLabelValues(result).Inc() }

// UpdateSystem samples runtime memory and goroutine counts.
func (m *Manager) UpdateSystem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.systemMemoryUsage.Set(float64(ms.HeapInuse))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// Package-level helpers write to the default manager.

func RecordQuery(kind string, latencyMs float64)      { Default().RecordQuery(kind, latencyMs) }
func RecordComposites(computed, undefined int)        { Default().RecordComposites(computed, undefined) }
func RecordEntrySkipped(reason string)                { Default().RecordEntrySkipped(reason) }
func RecordIngested()                                 { Default().RecordIngested() }
func RecordDuplicate()                                { Default().RecordDuplicate() }
func RecordFailed()                                   { Default().RecordFailed() }
func RecordStoreLatency(op string, latencyMs float64) { Default().RecordStoreLatency(op, latencyMs) }
func UpdateStoreRecords(n int)                        { Default().UpdateStoreRecords(n) }
func UpdateQueueSize(n int)                           { Default().UpdateQueueSize(n) }
func UpdateQueueCapacity(n int)                       { Default().UpdateQueueCapacity(n) }
func RecordQueueEnqueue()                             { Default().RecordQueueEnqueue() }
func RecordQueueDequeue()                             { Default().RecordQueueDequeue() }
func RecordQueueEnqueueError()                        { Default().RecordQueueEnqueueError() }
func UpdateWorkerCount(n int)                         { Default().UpdateWorkerCount(n) }
func RecordWorkerError()                              { Default().RecordWorkerError() }
func RecordWorkerLatency(ms float64)                  { Default().RecordWorkerLatency(ms) }
func RecordError(component, errorType string)         { Default().RecordError(component, errorType) }
func RecordConfigReload(result string)                { Default().RecordConfigReload(result) }
func UpdateSystem()                                   { Default().UpdateSystem() }
func Handler() http.Handler                           { return Default().Handler() }
func RecordHTTPRequest(endpoint, method, code string, ms float64) {
	Default().RecordHTTPRequest(endpoint, method, code, ms)
}
