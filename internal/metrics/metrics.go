// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrascope_http_requests_total",
		Help: "Total HTTP requests by route pattern and status code",
	}, []string{"method", "route", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "terrascope_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route"})
	StoreOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "terrascope_store_op_duration_seconds",
		Help:    "Property store operation duration in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"backend", "op"})
	StoreErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrascope_store_errors_total",
		Help: "Property store operation failures (not-found excluded)",
	}, []string{"backend", "op"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrascope_cache_hits_total",
		Help: "Response cache hits",
	}, []string{"cache"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrascope_cache_misses_total",
		Help: "Response cache misses",
	}, []string{"cache"})
	CacheEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "terrascope_cache_entries",
		Help: "Live entries held by the response cache",
	}, []string{"cache"})
	CacheHitRatio = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "terrascope_cache_hit_ratio",
		Help: "Response cache hits over lookups since start",
	}, []string{"cache"})
	HarvestFeaturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrascope_harvest_features_total",
		Help: "Features produced by each harvest source",
	}, []string{"source"})
	OverpassRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrascope_overpass_requests_total",
		Help: "Overpass API requests by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		StoreOpDuration,
		StoreErrorsTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEntries,
		CacheHitRatio,
		HarvestFeaturesTotal,
		OverpassRequestsTotal,
	)
}

// ObserveStore records the duration of a store operation and counts failures.
func ObserveStore(backend, op string, start time.Time, failed bool) {
	StoreOpDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	if failed {
		StoreErrorsTotal.WithLabelValues(backend, op).Inc()
	}
}

// ObserveCache publishes a cache's occupancy and hit ratio.
func ObserveCache(cache string, entries int, hitRatio float64) {
	CacheEntries.WithLabelValues(cache).Set(float64(entries))
	CacheHitRatio.WithLabelValues(cache).Set(hitRatio)
}

// Handler exposes the default registry for Prometheus scraping.
func Handler() http.Handler { return promhttp.Handler() }
