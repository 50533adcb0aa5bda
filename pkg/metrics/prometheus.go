// Package metrics provides Prometheus metrics for the Phigros backend service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Save Pipeline Metrics
	savesDecoded      prometheus.Counter
	saveDecodeErrors  *prometheus.CounterVec
	saveDecodeLatency prometheus.Histogram

	// Catalog Metrics
	catalogSongs        prometheus.Gauge
	catalogCharts       prometheus.Gauge
	catalogReloads      prometheus.Counter
	catalogReloadErrors prometheus.Counter

	// Refresh Pipeline Metrics
	refreshProcessed prometheus.Counter
	refreshDuplicate prometheus.Counter

	// Prediction Metrics
	predictionCacheHits   prometheus.Counter
	predictionCacheMisses prometheus.Counter

	// Leaderboard Metrics
	leaderboardPlayers          prometheus.Gauge
	leaderboardUpdateLatency    prometheus.Histogram
	leaderboardQueryLatency     prometheus.Histogram
	leaderboardSnapshotDuration prometheus.Histogram
	leaderboardSnapshotCount    prometheus.Counter
	leaderboardSnapshotLastUnix prometheus.Gauge

	// Queue Metrics
	queueSize           prometheus.Gauge
	queueCapacity       prometheus.Gauge
	queueEnqueueRate    prometheus.Counter
	queueDequeueRate    prometheus.Counter
	queueEnqueueErrors  prometheus.Counter
	queueEnqueueLatency prometheus.Histogram

	// Worker Metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "phi",
		subsystem:        "backend",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Save Pipeline Metrics
	m.savesDecoded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "saves_decoded_total",
		Help:      "Total number of cloud saves successfully decoded",
	})

	m.saveDecodeErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "save_decode_errors_total",
			Help:      "Total number of save decode failures by kind",
		},
		[]string{"kind"},
	)

	m.saveDecodeLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "save_decode_latency_milliseconds",
		Help:      "Histogram of save decode latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Catalog Metrics
	m.catalogSongs = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "catalog_songs",
		Help:      "Number of songs in the active difficulty catalog",
	})

	m.catalogCharts = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "catalog_charts",
		Help:      "Number of charts in the active difficulty catalog",
	})

	m.catalogReloads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "catalog_reloads_total",
		Help:      "Total number of successful catalog reloads",
	})

	m.catalogReloadErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "catalog_reload_errors_total",
		Help:      "Total number of failed catalog reloads",
	})

	// Refresh Pipeline Metrics
	m.refreshProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_processed_total",
		Help:      "Total number of rating refreshes processed",
	})

	m.refreshDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_duplicate_total",
		Help:      "Total number of refreshes skipped because one was already pending",
	})

	// Prediction Metrics
	m.predictionCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "prediction_cache_hits_total",
		Help:      "Total number of push accuracy lookups served from the cache",
	})

	m.predictionCacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "prediction_cache_misses_total",
		Help:      "Total number of push accuracy lookups that required recomputation",
	})

	// Leaderboard Metrics
	m.leaderboardPlayers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_players",
		Help:      "Total number of players on the leaderboard",
	})

	m.leaderboardUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_update_latency_milliseconds",
		Help:      "Leaderboard update operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.leaderboardQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_query_latency_milliseconds",
		Help:      "Leaderboard query operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.leaderboardSnapshotDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_snapshot_duration_milliseconds",
		Help:      "Leaderboard snapshot rebuild duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.leaderboardSnapshotCount = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_snapshot_count_total",
		Help:      "Total number of leaderboard snapshots published",
	})

	m.leaderboardSnapshotLastUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_snapshot_last_unix",
		Help:      "Unix timestamp of the last leaderboard snapshot publish",
	})

	// Queue Metrics
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the refresh task queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum queue capacity",
	})

	m.queueEnqueueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_total",
		Help:      "Total number of tasks enqueued",
	})

	m.queueDequeueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeue_total",
		Help:      "Total number of tasks dequeued",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of enqueue errors",
	})

	m.queueEnqueueLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_latency_milliseconds",
		Help:      "Enqueue latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// Worker Metrics
	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active_count",
		Help:      "Number of active workers",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Worker processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.workerErrorRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of worker errors",
	})

	// HTTP Performance Metrics
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
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Enhanced Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total number of errors by type",
		},
		[]string{"error_type", "severity"},
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

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "error_latency_milliseconds",
			Help:      "Latency of operations that resulted in errors",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// Save Pipeline Metrics Functions.

// RecordSaveDecoded increments the decoded saves counter.
func RecordSaveDecoded() {
	globalManager.savesDecoded.Inc()
}

// RecordSaveDecodeError increments the decode error counter for the given kind.
func RecordSaveDecodeError(kind string) {
	globalManager.saveDecodeErrors.WithLabelValues(kind).Inc()
}

// RecordSaveDecodeLatency records save decode latency in milliseconds.
func RecordSaveDecodeLatency(latencyMs float64) {
	globalManager.saveDecodeLatency.Observe(latencyMs)
}

// Catalog Metrics Functions.

// UpdateCatalogSongs sets the number of songs in the active catalog.
func UpdateCatalogSongs(count int) {
	globalManager.catalogSongs.Set(float64(count))
}

// UpdateCatalogCharts sets the number of charts in the active catalog.
func UpdateCatalogCharts(count int) {
	globalManager.catalogCharts.Set(float64(count))
}

// RecordCatalogReload increments the successful reload counter.
func RecordCatalogReload() {
	globalManager.catalogReloads.Inc()
}

// RecordCatalogReloadError increments the failed reload counter.
func RecordCatalogReloadError() {
	globalManager.catalogReloadErrors.Inc()
}

// Refresh Pipeline Metrics Functions.

// RecordRefreshProcessed increments the processed refresh counter.
func RecordRefreshProcessed() {
	globalManager.refreshProcessed.Inc()
}

// RecordRefreshDuplicate increments the duplicate refresh counter.
func RecordRefreshDuplicate() {
	globalManager.refreshDuplicate.Inc()
}

// Prediction Metrics Functions.

// RecordPredictionCacheHit increments the prediction cache hit counter.
func RecordPredictionCacheHit() {
	globalManager.predictionCacheHits.Inc()
}

// RecordPredictionCacheMiss increments the prediction cache miss counter.
func RecordPredictionCacheMiss() {
	globalManager.predictionCacheMisses.Inc()
}

// Leaderboard Metrics Functions.

// UpdateLeaderboardPlayers sets the total number of ranked players.
func UpdateLeaderboardPlayers(count int) {
	globalManager.leaderboardPlayers.Set(float64(count))
}

// RecordLeaderboardUpdateLatency records leaderboard update latency.
func RecordLeaderboardUpdateLatency(latencyMs float64) {
	globalManager.leaderboardUpdateLatency.Observe(latencyMs)
}

// RecordLeaderboardQueryLatency records leaderboard query latency.
func RecordLeaderboardQueryLatency(latencyMs float64) {
	globalManager.leaderboardQueryLatency.Observe(latencyMs)
}

// RecordLeaderboardSnapshotDuration records snapshot rebuild duration and
// stamps the publish time.
func RecordLeaderboardSnapshotDuration(durationMs float64) {
	globalManager.leaderboardSnapshotDuration.Observe(durationMs)
	globalManager.leaderboardSnapshotLastUnix.Set(float64(time.Now().Unix()))
}

// IncrementLeaderboardSnapshotCount increments the snapshot counter.
func IncrementLeaderboardSnapshotCount() {
	globalManager.leaderboardSnapshotCount.Inc()
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

// RecordQueueEnqueueLatency records enqueue latency.
func RecordQueueEnqueueLatency(latencyMs float64) {
	globalManager.queueEnqueueLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

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

// Enhanced Error Metrics Functions.

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

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
