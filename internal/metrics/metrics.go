// Package metrics provides Prometheus metrics for the fact resolver.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the fact resolver.
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Resolution metrics
	ResolutionsTotal   *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram
	ResolversExecuted  prometheus.Histogram

	// Resolver metrics
	ResolverRuns     *prometheus.CounterVec
	ResolverDuration *prometheus.HistogramVec

	// Fact metrics
	FactStatuses *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Rate limit metrics
	RateLimitHits *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	// Request metrics
	m.RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fact_resolver_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fact_resolver_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fact_resolver_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Resolution metrics
	m.ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fact_resolver_resolutions_total",
			Help: "Total number of resolution runs",
		},
		[]string{"status"},
	)

	m.ResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fact_resolver_resolution_duration_seconds",
			Help:    "End-to-end resolution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.ResolversExecuted = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fact_resolver_resolvers_executed",
			Help:    "Number of resolvers executed per resolution",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	// Resolver metrics
	m.ResolverRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fact_resolver_resolver_runs_total",
			Help: "Total number of resolver executions",
		},
		[]string{"resolver", "status"},
	)

	m.ResolverDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fact_resolver_resolver_duration_seconds",
			Help:    "Resolver execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resolver"},
	)

	// Fact metrics
	m.FactStatuses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fact_resolver_facts_total",
			Help: "Total number of resolved facts by final status",
		},
		[]string{"status"},
	)

	// Cache metrics
	m.CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fact_resolver_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	m.CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fact_resolver_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// Rate limit metrics
	m.RateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fact_resolver_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"client"},
	)

	// Register all collectors
	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.ResolutionsTotal,
		m.ResolutionDuration,
		m.ResolversExecuted,
		m.ResolverRuns,
		m.ResolverDuration,
		m.FactStatuses,
		m.CacheHits,
		m.CacheMisses,
		m.RateLimitHits,
	)

	// Also register the default collectors (go runtime, process info)
	m.registry.MustRegister(prometheus.NewGoCollector())
	m.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Middleware returns HTTP middleware that records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics endpoint itself
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		m.RequestsInFlight.Inc()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.RequestsInFlight.Dec()
		duration := time.Since(start).Seconds()

		path := normalizePath(r.URL.Path)

		m.RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes a URL path to reduce cardinality.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/api/") {
		return path
	}
	if strings.HasPrefix(path, "/health/") {
		return path
	}
	switch path {
	case "/", "/metrics":
		return path
	}
	return "/other"
}

// RecordResolution records a completed resolution run.
func (m *Metrics) RecordResolution(success bool, executed int, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.ResolutionsTotal.WithLabelValues(status).Inc()
	m.ResolutionDuration.Observe(duration.Seconds())
	m.ResolversExecuted.Observe(float64(executed))
}

// RecordResolverRun records one resolver execution.
func (m *Metrics) RecordResolverRun(resolver string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ResolverRuns.WithLabelValues(resolver, status).Inc()
	m.ResolverDuration.WithLabelValues(resolver).Observe(duration.Seconds())
}

// RecordFactStatus records the final status of one resolved fact.
func (m *Metrics) RecordFactStatus(status string) {
	m.FactStatuses.WithLabelValues(status).Inc()
}

// RecordCacheAccess records a cache access.
func (m *Metrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(cache).Inc()
	} else {
		m.CacheMisses.WithLabelValues(cache).Inc()
	}
}

// RecordRateLimitHit records a rate limit rejection.
func (m *Metrics) RecordRateLimitHit(client string) {
	m.RateLimitHits.WithLabelValues(client).Inc()
}
