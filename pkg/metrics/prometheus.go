// Package metrics provides Prometheus metrics for the hoopsrank service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector the service exposes.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Ingestion
	ingestBatches        *prometheus.CounterVec
	ingestRows           *prometheus.CounterVec
	ingestFailures       *prometheus.CounterVec
	degenerateNormalized *prometheus.CounterVec

	// Backfill
	backfillRuns         *prometheus.CounterVec
	backfillDuration     prometheus.Histogram
	backfillRows         prometheus.Counter
	backfillSkippedDates prometheus.Counter
	backfillSubsets      prometheus.Gauge

	// Query path
	compositeCacheHits   prometheus.Counter
	compositeCacheMisses prometheus.Counter
	compositeLatency     *prometheus.HistogramVec
	rerankRows           prometheus.Histogram

	// Similarity
	similarityScored  *prometheus.CounterVec
	similarityDropped *prometheus.CounterVec

	// Queue and workers
	queueSize               prometheus.Gauge
	queueCapacity           prometheus.Gauge
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Store
	repositoryUpsertLatency *prometheus.HistogramVec
	repositoryQueryLatency  *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // service metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hoopsrank",
		subsystem:        "composite",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval reports how often gauges should be refreshed by callers.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.ingestBatches = m.counterVec("ingest_batches_total", "Source batches ingested by outcome", "source", "outcome")
	m.ingestRows = m.counterVec("ingest_rows_total", "Per-team metric rows written", "source")
	m.ingestFailures = m.counterVec("ingest_failures_total", "Ingestion cycles rejected", "reason")
	m.degenerateNormalized = m.counterVec("normalize_degenerate_total", "Columns normalized over a zero-variance population", "source", "dimension")

	m.backfillRuns = m.counterVec("backfill_runs_total", "Combination backfill runs by outcome", "outcome")
	m.backfillDuration = m.histogram("backfill_duration_milliseconds", "Combination backfill duration in milliseconds")
	m.backfillRows = m.counter("backfill_rows_total", "Composite rows staged by the backfill")
	m.backfillSkippedDates = m.counter("backfill_skipped_dates_total", "Dates skipped because a source was missing")
	m.backfillSubsets = m.gauge("backfill_subsets", "Number of source subsets enumerated per date")

	m.compositeCacheHits = m.counter("cache_hits_total", "Default composite cache hits")
	m.compositeCacheMisses = m.counter("cache_misses_total", "Default composite cache misses")
	m.compositeLatency = m.histogramVec("query_latency_milliseconds", "Composite query latency in milliseconds", "kind")
	m.rerankRows = m.histogram("rerank_population", "Population size handed to the relative re-ranker")

	m.similarityScored = m.counterVec("similarity_scored_total", "Candidates scored per category", "category")
	m.similarityDropped = m.counterVec("similarity_dropped_total", "Candidates dropped per reason", "category", "reason")

	m.queueSize = m.gauge("queue_size", "Current size of the ingestion job queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum ingestion job queue capacity")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Jobs rejected by a full or closed queue")
	m.workerCount = m.gauge("worker_count", "Number of normalization workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Normalize-and-write latency per job")
	m.workerErrors = m.counter("worker_errors_total", "Jobs that failed inside a worker")

	m.repositoryUpsertLatency = m.histogramVec("repository_upsert_latency_milliseconds", "Store upsert latency", "table")
	m.repositoryQueryLatency = m.histogramVec("repository_query_latency_milliseconds", "Store query latency", "table")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordIngestBatch counts one source batch with its outcome ("ok" or "error").
func RecordIngestBatch(source, outcome string) {
	globalManager.ingestBatches.WithLabelValues(source, outcome).Inc()
}

// RecordIngestRows adds written rows for a source.
func RecordIngestRows(source string, n int) {
	globalManager.ingestRows.WithLabelValues(source).Add(float64(n))
}

// RecordIngestFailure counts a rejected ingestion cycle.
func RecordIngestFailure(reason string) {
	globalManager.ingestFailures.WithLabelValues(reason).Inc()
}

// RecordDegenerateNormalization counts a zero-variance column.
func RecordDegenerateNormalization(source, dimension string) {
	globalManager.degenerateNormalized.WithLabelValues(source, dimension).Inc()
}

// RecordBackfillRun counts a backfill run and its duration.
func RecordBackfillRun(outcome string, durationMs float64) {
	globalManager.backfillRuns.WithLabelValues(outcome).Inc()
	globalManager.backfillDuration.Observe(durationMs)
}

// RecordBackfillRows adds staged composite rows.
func RecordBackfillRows(n int) {
	globalManager.backfillRows.Add(float64(n))
}

// RecordBackfillSkippedDate counts a date skipped for missing sources.
func RecordBackfillSkippedDate() {
	globalManager.backfillSkippedDates.Inc()
}

// UpdateBackfillSubsets sets the subset count of the active catalog.
func UpdateBackfillSubsets(n int) {
	globalManager.backfillSubsets.Set(float64(n))
}

// RecordCacheHit counts a default composite cache hit.
func RecordCacheHit() {
	globalManager.compositeCacheHits.Inc()
}

// RecordCacheMiss counts a default composite cache miss.
func RecordCacheMiss() {
	globalManager.compositeCacheMisses.Inc()
}

// RecordQueryLatency observes a composite query latency in milliseconds.
func RecordQueryLatency(kind string, latencyMs float64) {
	globalManager.compositeLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordRerankPopulation observes the filtered population size.
func RecordRerankPopulation(n int) {
	globalManager.rerankRows.Observe(float64(n))
}

// RecordSimilarityScored counts scored candidates for a category.
func RecordSimilarityScored(category string, n int) {
	globalManager.similarityScored.WithLabelValues(category).Add(float64(n))
}

// RecordSimilarityDropped counts dropped candidates for a category.
func RecordSimilarityDropped(category, reason string, n int) {
	globalManager.similarityDropped.WithLabelValues(category, reason).Add(float64(n))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency observes per-job latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordRepositoryUpsertLatency observes a store upsert.
func RecordRepositoryUpsertLatency(table string, latencyMs float64) {
	globalManager.repositoryUpsertLatency.WithLabelValues(table).Observe(latencyMs)
}

// RecordRepositoryQueryLatency observes a store query.
func RecordRepositoryQueryLatency(table string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(table).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by the service.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
