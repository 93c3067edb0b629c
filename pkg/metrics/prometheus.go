// Package metrics provides Prometheus metrics for the pricetrace service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the pricetrace service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          atomic.Bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Lookup Metrics
	lookups *prometheus.CounterVec

	// Stream Metrics - reactive emission lifecycle
	streamElements      prometheus.Counter
	streamCompletions   prometheus.Counter
	streamErrors        prometheus.Counter
	streamCancellations prometheus.Counter
	streamActive        prometheus.Gauge

	// Upstream Metrics - chained calls
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  prometheus.Histogram

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pricetrace",
		subsystem:        "restaurants",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 1500, 2500, 5000},
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}
	m.enabled.Store(true)

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// name applies the optional metric prefix.
func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// A manager created disabled keeps working collectors but registers none.
	var reg prometheus.Registerer
	if m.enabled.Load() {
		reg = m.registry
	}
	auto := promauto.With(reg)
	labels := prometheus.Labels(m.customLabels)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds, including streamed bodies",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.lookups = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("lookups_total"),
			Help:        "Total number of restaurant lookups by mode (stream or list)",
			ConstLabels: labels,
		},
		[]string{"mode"},
	)

	m.streamElements = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stream_elements_total"),
		Help:        "Total number of elements emitted by reactive streams",
		ConstLabels: labels,
	})

	m.streamCompletions = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stream_completions_total"),
		Help:        "Total number of streams that completed normally",
		ConstLabels: labels,
	})

	m.streamErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stream_errors_total"),
		Help:        "Total number of streams terminated by an error signal",
		ConstLabels: labels,
	})

	m.streamCancellations = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("stream_cancellations_total"),
		Help:        "Total number of streams abandoned because the subscriber went away",
		ConstLabels: labels,
	})

	m.streamActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("streams_active"),
		Help:        "Number of stream subscriptions currently running",
		ConstLabels: labels,
	})

	m.upstreamRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("upstream_requests_total"),
			Help:        "Total number of chained upstream calls by outcome",
			ConstLabels: labels,
		},
		[]string{"outcome"},
	)

	m.upstreamLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("upstream_latency_milliseconds"),
		Help:        "Time until upstream response headers arrive, in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_component_total"),
			Help:        "Total number of errors by component and type",
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_type_total"),
			Help:        "Total number of errors by type and severity",
			ConstLabels: labels,
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_endpoint_total"),
			Help:        "Total number of errors by endpoint, method and type",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("error_latency_milliseconds"),
			Help:        "Latency of operations that ended in an error, in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("memory_usage_bytes"),
		Help:        "Current heap allocation in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("goroutines"),
		Help:        "Current number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        m.name("gc_pause_milliseconds"),
		Help:        "Average GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
		ConstLabels: labels,
	})
}

func (m *Manager) active() bool {
	return m != nil && m.enabled.Load()
}

// Enabled reports whether the manager records observations.
func (m *Manager) Enabled() bool {
	return m.active()
}

// SetEnabled turns recording on or off.
func (m *Manager) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// RefreshInterval returns how often gauge metrics should be refreshed.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

// Manager recording methods.

// RecordHTTPRequest increments the HTTP request counter.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	if !m.active() {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records the HTTP request duration in milliseconds.
func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !m.active() {
		return
	}
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordLookup increments the lookup counter for mode ("stream" or "list").
func (m *Manager) RecordLookup(mode string) {
	if !m.active() {
		return
	}
	m.lookups.WithLabelValues(mode).Inc()
}

// RecordStreamElement increments the emitted elements counter.
func (m *Manager) RecordStreamElement() {
	if !m.active() {
		return
	}
	m.streamElements.Inc()
}

// RecordStreamComplete increments the completed streams counter.
func (m *Manager) RecordStreamComplete() {
	if !m.active() {
		return
	}
	m.streamCompletions.Inc()
}

// RecordStreamError increments the errored streams counter.
func (m *Manager) RecordStreamError() {
	if !m.active() {
		return
	}
	m.streamErrors.Inc()
}

// RecordStreamCancel increments the cancelled streams counter.
func (m *Manager) RecordStreamCancel() {
	if !m.active() {
		return
	}
	m.streamCancellations.Inc()
}

// StreamStarted increments the active streams gauge.
func (m *Manager) StreamStarted() {
	if !m.active() {
		return
	}
	m.streamActive.Inc()
}

// StreamFinished decrements the active streams gauge.
func (m *Manager) StreamFinished() {
	if !m.active() {
		return
	}
	m.streamActive.Dec()
}

// RecordUpstreamRequest increments the upstream call counter for outcome.
func (m *Manager) RecordUpstreamRequest(outcome string) {
	if !m.active() {
		return
	}
	m.upstreamRequests.WithLabelValues(outcome).Inc()
}

// RecordUpstreamLatency records time to upstream response headers.
func (m *Manager) RecordUpstreamLatency(latencyMs float64) {
	if !m.active() {
		return
	}
	m.upstreamLatency.Observe(latencyMs)
}

// RecordErrorByComponent records an error with component and type labels.
func (m *Manager) RecordErrorByComponent(component, errorType string) {
	if !m.active() {
		return
	}
	m.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func (m *Manager) RecordErrorByType(errorType, severity string) {
	if !m.active() {
		return
	}
	m.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !m.active() {
		return
	}
	m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func (m *Manager) RecordErrorLatency(component, errorType string, latencyMs float64) {
	if !m.active() {
		return
	}
	m.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) {
	if !m.active() {
		return
	}
	m.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func (m *Manager) UpdateSystemGoroutineCount(count int) {
	if !m.active() {
		return
	}
	m.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func (m *Manager) RecordSystemGCPauseTime(pauseMs float64) {
	if !m.active() {
		return
	}
	m.systemGCPauseTime.Observe(pauseMs)
}

// HTTP Performance Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode)
}

// RecordHTTPRequestDuration records the HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, statusCode, duration)
}

// Lookup Metrics Functions.

// RecordLookup increments the lookup counter for mode ("stream" or "list").
func RecordLookup(mode string) {
	globalManager.RecordLookup(mode)
}

// Stream Metrics Functions.

// RecordStreamElement increments the emitted elements counter.
func RecordStreamElement() {
	globalManager.RecordStreamElement()
}

// RecordStreamComplete increments the completed streams counter.
func RecordStreamComplete() {
	globalManager.RecordStreamComplete()
}

// RecordStreamError increments the errored streams counter.
func RecordStreamError() {
	globalManager.RecordStreamError()
}

// RecordStreamCancel increments the cancelled streams counter.
func RecordStreamCancel() {
	globalManager.RecordStreamCancel()
}

// StreamStarted increments the active streams gauge.
func StreamStarted() {
	globalManager.StreamStarted()
}

// StreamFinished decrements the active streams gauge.
func StreamFinished() {
	globalManager.StreamFinished()
}

// Upstream Metrics Functions.

// RecordUpstreamRequest increments the upstream call counter for outcome.
func RecordUpstreamRequest(outcome string) {
	globalManager.RecordUpstreamRequest(outcome)
}

// RecordUpstreamLatency records time to upstream response headers.
func RecordUpstreamLatency(latencyMs float64) {
	globalManager.RecordUpstreamLatency(latencyMs)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.RecordErrorByComponent(component, errorType)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.RecordErrorByType(errorType, severity)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.RecordErrorByEndpoint(endpoint, method, errorType)
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.RecordErrorLatency(component, errorType, latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.UpdateSystemMemoryUsage(bytes)
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.UpdateSystemGoroutineCount(count)
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.RecordSystemGCPauseTime(pauseMs)
}

// SetEnabled turns recording on or off for the global manager.
func SetEnabled(enabled bool) {
	globalManager.SetEnabled(enabled)
}

// Enabled reports whether the global manager records observations.
func Enabled() bool {
	return globalManager.Enabled()
}

// RefreshInterval returns the global manager's gauge refresh interval.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
