// Package metrics provides Prometheus metrics for the pace progress service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Session lifecycle
	sessionsActive   prometheus.Gauge
	sessionsOpened   prometheus.Counter
	sessionsReplaced prometheus.Counter
	sessionsClosed   prometheus.Counter

	// Inbound protocol
	fullSyncsApplied  prometheus.Counter
	progressUpdates   prometheus.Counter
	studyItemSyncs    prometheus.Counter
	usernameChanges   prometheus.Counter
	malformedMessages prometheus.Counter
	leaderboardPulls  prometheus.Counter

	// Broadcast pipeline
	broadcastsSent      prometheus.Counter
	broadcastsCoalesced prometheus.Counter
	broadcastErrors     prometheus.Counter
	broadcastLatency    prometheus.Histogram
	queueSize           prometheus.Gauge
	queueCapacity       prometheus.Gauge
	queueUtilization    prometheus.Gauge
	queueEnqueueErrors  prometheus.Counter

	// Store
	trackedUsers prometheus.Gauge
	storeShards  prometheus.Gauge

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pace",
		subsystem:        "progress",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.sessionsActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_active",
		Help: "Number of live websocket sessions.",
	})
	m.sessionsOpened = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_opened_total",
		Help: "Total websocket sessions opened.",
	})
	m.sessionsReplaced = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_replaced_total",
		Help: "Sessions evicted because the same user reconnected.",
	})
	m.sessionsClosed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_closed_total",
		Help: "Total websocket sessions closed for any reason.",
	})

	m.fullSyncsApplied = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "full_syncs_applied_total",
		Help: "Full progress snapshots applied to the store.",
	})
	m.progressUpdates = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "progress_updates_total",
		Help: "Incremental progress updates applied.",
	})
	m.studyItemSyncs = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "study_item_syncs_total",
		Help: "Study item list syncs applied.",
	})
	m.usernameChanges = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "username_changes_total",
		Help: "Display name changes applied.",
	})
	m.malformedMessages = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "malformed_messages_total",
		Help: "Inbound frames dropped because they could not be parsed.",
	})
	m.leaderboardPulls = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "leaderboard_requests_total",
		Help: "Explicit leaderboard requests from clients.",
	})

	m.broadcastsSent = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcasts_sent_total",
		Help: "Leaderboard broadcasts pushed to subscribers.",
	})
	m.broadcastsCoalesced = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcasts_coalesced_total",
		Help: "Broadcast requests collapsed into an already-pending job.",
	})
	m.broadcastErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_errors_total",
		Help: "Failures while pushing a leaderboard to a subscriber.",
	})
	m.broadcastLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "broadcast_latency_ms",
		Help:    "Recompute-and-push latency per broadcast job in milliseconds.",
		Buckets: m.histogramBuckets,
	})
	m.queueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_queue_size",
		Help: "Broadcast jobs currently queued.",
	})
	m.queueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_queue_capacity",
		Help: "Configured broadcast queue capacity.",
	})
	m.queueUtilization = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_queue_utilization",
		Help: "Broadcast queue utilization ratio (0-1).",
	})
	m.queueEnqueueErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_enqueue_errors_total",
		Help: "Broadcast jobs rejected by the queue.",
	})

	m.trackedUsers = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "tracked_users",
		Help: "Users with recorded progress in the store.",
	})
	m.storeShards = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_shards",
		Help: "Configured progress store shard count.",
	})

	m.workerCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_workers",
		Help: "Configured broadcast worker count.",
	})
	m.workerProcessingLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "worker_processing_latency_ms",
		Help:    "Worker job processing latency in milliseconds.",
		Buckets: m.histogramBuckets,
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds.",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.systemMemoryUsage = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_memory_bytes",
		Help: "Allocated heap bytes.",
	})
	m.systemGoroutineCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_goroutines",
		Help: "Current goroutine count.",
	})
}

// Session lifecycle helpers.

func UpdateSessionsActive(n int) {
	if globalManager.enabled {
		globalManager.sessionsActive.Set(float64(n))
	}
}

func RecordSessionOpened() {
	if globalManager.enabled {
		globalManager.sessionsOpened.Inc()
	}
}

func RecordSessionReplaced() {
	if globalManager.enabled {
		globalManager.sessionsReplaced.Inc()
	}
}

func RecordSessionClosed() {
	if globalManager.enabled {
		globalManager.sessionsClosed.Inc()
	}
}

// Inbound protocol helpers.

func RecordFullSync() {
	if globalManager.enabled {
		globalManager.fullSyncsApplied.Inc()
	}
}

func RecordProgressUpdate() {
	if globalManager.enabled {
		globalManager.progressUpdates.Inc()
	}
}

func RecordStudyItemSync() {
	if globalManager.enabled {
		globalManager.studyItemSyncs.Inc()
	}
}

func RecordUsernameChange() {
	if globalManager.enabled {
		globalManager.usernameChanges.Inc()
	}
}

func RecordMalformedMessage() {
	if globalManager.enabled {
		globalManager.malformedMessages.Inc()
	}
}

func RecordLeaderboardRequest() {
	if globalManager.enabled {
		globalManager.leaderboardPulls.Inc()
	}
}

// Broadcast pipeline helpers.

func RecordBroadcastSent() {
	if globalManager.enabled {
		globalManager.broadcastsSent.Inc()
	}
}

func RecordBroadcastCoalesced() {
	if globalManager.enabled {
		globalManager.broadcastsCoalesced.Inc()
	}
}

func RecordBroadcastError() {
	if globalManager.enabled {
		globalManager.broadcastErrors.Inc()
	}
}

func RecordBroadcastLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.broadcastLatency.Observe(latencyMs)
	}
}

func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

func UpdateQueueUtilization(utilization float64) {
	if globalManager.enabled {
		globalManager.queueUtilization.Set(utilization)
	}
}

func RecordQueueEnqueueError() {
	if globalManager.enabled {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// Store helpers.

func UpdateTrackedUsers(n int) {
	if globalManager.enabled {
		globalManager.trackedUsers.Set(float64(n))
	}
}

func UpdateStoreShards(n int) {
	if globalManager.enabled {
		globalManager.storeShards.Set(float64(n))
	}
}

// Worker helpers.

func UpdateWorkerCount(n int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(n))
	}
}

func RecordWorkerProcessingLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// HTTP helpers.

func RecordHTTPRequest(endpoint, method, status string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	}
}

func RecordHTTPRequestDuration(endpoint, method, status string, durationMs float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(durationMs)
	}
}

// System helpers.

func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// GetRegistry returns the custom registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
