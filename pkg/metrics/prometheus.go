package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// Latency buckets in milliseconds. Upstream calls are bounded by a 60s timeout.
var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

// Manager manages all Prometheus metrics for the bot.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Chat ingress
	messagesReceived  *prometheus.CounterVec
	messagesIgnored   *prometheus.CounterVec
	messagesDuplicate prometheus.Counter
	messagesDropped   prometheus.Counter
	invites           *prometheus.CounterVec

	// Commands
	commands       *prometheus.CounterVec
	commandLatency *prometheus.HistogramVec

	// Upstream statistics API
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec

	// Queue
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueDequeued prometheus.Counter

	// Workers
	workerCount   prometheus.Gauge
	workerActive  prometheus.Gauge
	workerLatency prometheus.Histogram
	workerPanics  prometheus.Counter

	// Ops HTTP server
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "wiglebot",
		subsystem:        "",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// constLabelsFor drops constant labels that collide with a metric's variable
// labels; the variable label wins.
func (m *Manager) constLabelsFor(labels []string) prometheus.Labels {
	out := make(prometheus.Labels, len(m.constLabels))
	for k, v := range m.constLabels {
		out[k] = v
	}
	for _, l := range labels {
		delete(out, l)
	}
	return out
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabelsFor(labels),
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabelsFor(labels), Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.messagesReceived = m.counterVec("messages_received_total", "Chat messages delivered by the gateway", "platform")
	m.messagesIgnored = m.counterVec("messages_ignored_total", "Chat messages ignored before dispatch", "reason")
	m.messagesDuplicate = m.counter("messages_duplicate_total", "Chat events dropped as redeliveries")
	m.messagesDropped = m.counter("messages_dropped_total", "Chat messages dropped because the queue was full")
	m.invites = m.counterVec("invites_total", "Room invitations handled", "outcome")

	m.commands = m.counterVec("commands_total", "Commands dispatched by verb and outcome", "verb", "outcome")
	m.commandLatency = m.histogramVec("command_latency_milliseconds", "End-to-end command latency", "verb")

	m.upstreamRequests = m.counterVec("upstream_requests_total", "Requests sent to the statistics API", "endpoint", "status_code")
	m.upstreamLatency = m.histogramVec("upstream_latency_milliseconds", "Statistics API latency", "endpoint")
	m.upstreamErrors = m.counterVec("upstream_errors_total", "Statistics API failures by kind", "endpoint", "kind")

	m.queueSize = m.gauge("queue_size", "Messages waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Messages enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Messages dequeued")

	m.workerCount = m.gauge("worker_count", "Configured worker count")
	m.workerActive = m.gauge("worker_active_count", "Workers currently handling a message")
	m.workerLatency = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "worker_processing_latency_milliseconds",
		Help: "Time a worker spends on one message", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	})
	m.workerPanics = m.counter("worker_panics_total", "Handler panics recovered by workers")

	m.httpRequests = m.counterVec("http_requests_total", "Ops HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "Ops HTTP request duration", "endpoint", "method", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// CollectSystem samples runtime gauges every refresh interval until ctx ends.
func (m *Manager) CollectSystem(ctx context.Context) {
	t := time.NewTicker(m.refreshInterval)
	defer t.Stop()
	for {
		m.sampleSystem()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (m *Manager) sampleSystem() {
	if !m.enabled {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.systemMemoryUsage.Set(float64(ms.HeapInuse))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// CollectSystem runs the global manager's runtime sampler.
func CollectSystem(ctx context.Context) { globalManager.CollectSystem(ctx) }

// RecordMessageReceived counts a message delivered by a gateway.
func RecordMessageReceived(platform string) {
	if globalManager.enabled {
		globalManager.messagesReceived.WithLabelValues(platform).Inc()
	}
}

// RecordMessageIgnored counts a message that never reached dispatch.
func RecordMessageIgnored(reason string) {
	if globalManager.enabled {
		globalManager.messagesIgnored.WithLabelValues(reason).Inc()
	}
}

// RecordMessageDuplicate counts a redelivered chat event.
func RecordMessageDuplicate() {
	if globalManager.enabled {
		globalManager.messagesDuplicate.Inc()
	}
}

// RecordMessageDropped counts a message lost to backpressure.
func RecordMessageDropped() {
	if globalManager.enabled {
		globalManager.messagesDropped.Inc()
	}
}

// RecordInvite counts a room invitation by outcome ("joined", "failed").
func RecordInvite(outcome string) {
	if globalManager.enabled {
		globalManager.invites.WithLabelValues(outcome).Inc()
	}
}

// RecordCommand counts a dispatched command and observes its latency.
func RecordCommand(verb, outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.commands.WithLabelValues(verb, outcome).Inc()
	globalManager.commandLatency.WithLabelValues(verb).Observe(latencyMs)
}

// RecordUpstreamRequest counts a statistics API response and observes its latency.
// statusCode is "0" when no response was received.
func RecordUpstreamRequest(endpoint, statusCode string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.upstreamRequests.WithLabelValues(endpoint, statusCode).Inc()
	globalManager.upstreamLatency.WithLabelValues(endpoint).Observe(latencyMs)
}

// RecordUpstreamError counts a classified statistics API failure.
func RecordUpstreamError(endpoint, kind string) {
	if globalManager.enabled {
		globalManager.upstreamErrors.WithLabelValues(endpoint, kind).Inc()
	}
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if globalManager.enabled {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if globalManager.enabled {
		globalManager.queueDequeued.Inc()
	}
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

// AddWorkerActive adjusts the number of busy workers by delta.
func AddWorkerActive(delta int) {
	if globalManager.enabled {
		globalManager.workerActive.Add(float64(delta))
	}
}

// RecordWorkerProcessingLatency records the time spent on one message.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.workerLatency.Observe(latencyMs)
	}
}

// RecordWorkerPanic counts a recovered handler panic.
func RecordWorkerPanic() {
	if globalManager.enabled {
		globalManager.workerPanics.Inc()
	}
}

// RecordHTTPRequest records an ops HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
