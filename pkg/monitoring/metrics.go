package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector holds the Prometheus series of one process. Each collector
// owns its registry so several can coexist in tests.
type MetricsCollector struct {
	serviceName string
	registry    *prometheus.Registry

	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheLoads         *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec
	cacheEntries       *prometheus.GaugeVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	busMessages *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	m := &MetricsCollector{
		serviceName: serviceName,
		registry:    prometheus.NewRegistry(),

		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_cache_hits_total",
				Help: "Fetches served from a fresh cache entry",
			},
			[]string{"query", "service"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_cache_misses_total",
				Help: "Fetches that started or joined a load",
			},
			[]string{"query", "service"},
		),
		cacheLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_cache_loads_total",
				Help: "Completed loader invocations by outcome",
			},
			[]string{"query", "outcome", "service"},
		),
		cacheInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_cache_invalidated_entries_total",
				Help: "Entries marked stale by invalidation",
			},
			[]string{"query", "service"},
		),
		cacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "query_cache_entries",
				Help: "Live cache entries",
			},
			[]string{"service"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_client_requests_total",
				Help: "Total number of backend requests",
			},
			[]string{"method", "status_code", "service"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_client_request_duration_seconds",
				Help:    "Duration of backend requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "service"},
		),

		busMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invalidation_bus_messages_total",
				Help: "Invalidation messages by direction",
			},
			[]string{"direction", "service"},
		),
	}

	m.registry.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.cacheLoads,
		m.cacheInvalidations,
		m.cacheEntries,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.busMessages,
	)

	return m
}

// Registry exposes the collector's registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCacheHit records a fetch answered from cache
func (m *MetricsCollector) RecordCacheHit(query string) {
	m.cacheHits.WithLabelValues(query, m.serviceName).Inc()
}

// RecordCacheMiss records a fetch that had to wait for a load
func (m *MetricsCollector) RecordCacheMiss(query string) {
	m.cacheMisses.WithLabelValues(query, m.serviceName).Inc()
}

// RecordCacheLoad records the outcome of a loader invocation
func (m *MetricsCollector) RecordCacheLoad(query string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.cacheLoads.WithLabelValues(query, outcome, m.serviceName).Inc()
}

// RecordInvalidation records entries marked stale under one query root
func (m *MetricsCollector) RecordInvalidation(query string, entries int) {
	m.cacheInvalidations.WithLabelValues(query, m.serviceName).Add(float64(entries))
}

// SetCacheEntries records the number of live entries
func (m *MetricsCollector) SetCacheEntries(n int) {
	m.cacheEntries.WithLabelValues(m.serviceName).Set(float64(n))
}

// RecordHTTPRequest records backend request metrics. statusCode 0 means no response.
func (m *MetricsCollector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(statusCode), m.serviceName).Inc()
	m.httpRequestDuration.WithLabelValues(method, m.serviceName).Observe(duration.Seconds())
}

// RecordBusMessage records an invalidation message sent or received
func (m *MetricsCollector) RecordBusMessage(direction string) {
	m.busMessages.WithLabelValues(direction, m.serviceName).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
