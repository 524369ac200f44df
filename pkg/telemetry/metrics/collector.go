package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vandamme"

// Collector owns every prometheus metric the proxy exports. One instance is
// created at startup and threaded to the components that record into it.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec

	upstreamErrorsTotal *prometheus.CounterVec

	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec
	cacheEntries     *prometheus.GaugeVec

	oauthRefreshTotal *prometheus.CounterVec
}

// NewCollector creates a collector and registers its metrics. A nil registry
// gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Completed proxy requests by provider, model and outcome.",
		}, []string{"provider", "model", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Wall-clock request duration.",
			// LLM latencies: sub-second for cache hits, tens of seconds
			// for long generations.
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider", "stream"}),

		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens reported by upstreams, by direction.",
		}, []string{"provider", "direction"}),

		upstreamErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Upstream failures by provider and error kind.",
		}, []string{"provider", "kind"}),

		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache name.",
		}, []string{"cache"}),

		cacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache misses by cache name.",
		}, []string{"cache"}),

		cacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Current cache entry count by cache name.",
		}, []string{"cache"}),

		oauthRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_refresh_total",
			Help:      "OAuth token refresh attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.tokensTotal,
		c.upstreamErrorsTotal,
		c.cacheHitsTotal,
		c.cacheMissesTotal,
		c.cacheEntries,
		c.oauthRefreshTotal,
	)

	return c
}

// RecordRequest records one completed request. status is "success" or the
// client-visible error kind.
func (c *Collector) RecordRequest(provider, model, status string, stream bool, duration time.Duration, inputTokens, outputTokens int) {
	c.requestsTotal.WithLabelValues(provider, model, status).Inc()
	c.requestDuration.WithLabelValues(provider, boolLabel(stream)).Observe(duration.Seconds())
	if inputTokens > 0 {
		c.tokensTotal.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		c.tokensTotal.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
}

// RecordUpstreamError counts an upstream failure.
func (c *Collector) RecordUpstreamError(provider, kind string) {
	c.upstreamErrorsTotal.WithLabelValues(provider, kind).Inc()
}

// RecordCacheHit counts a hit on the named cache.
func (c *Collector) RecordCacheHit(cache string) {
	c.cacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss counts a miss on the named cache.
func (c *Collector) RecordCacheMiss(cache string) {
	c.cacheMissesTotal.WithLabelValues(cache).Inc()
}

// SetCacheEntries updates the entry gauge for the named cache.
func (c *Collector) SetCacheEntries(cache string, n int) {
	c.cacheEntries.WithLabelValues(cache).Set(float64(n))
}

// RecordOAuthRefresh counts a token refresh attempt. outcome is "success" or
// "failure".
func (c *Collector) RecordOAuthRefresh(provider, outcome string) {
	c.oauthRefreshTotal.WithLabelValues(provider, outcome).Inc()
}

// Registry returns the prometheus registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
