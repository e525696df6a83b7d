// Package metrics provides Prometheus metrics for the faresearch system.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SearchesTotal is a counter of search requests by service type and status.
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searches_total",
			Help: "Total number of search requests",
		},
		[]string{"service", "status"},
	)

	// SearchDuration is a histogram of end-to-end search durations.
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_duration_seconds",
			Help:    "Duration of search requests including provider fan-out",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// ProviderBatchesTotal is a counter of inventory provider responses.
	ProviderBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_batches_total",
			Help: "Total number of inventory provider response batches",
		},
		[]string{"provider", "status"},
	)

	// RateLookupsTotal is a counter of exchange-rate lookups by provider.
	RateLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_lookups_total",
			Help: "Total number of exchange-rate provider lookups",
		},
		[]string{"provider", "status"},
	)

	// RateCacheHitsTotal is a counter of exchange-rate cache hits.
	RateCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_cache_hits_total",
			Help: "Total number of exchange-rate cache hits",
		},
	)

	// RateCacheMissesTotal is a counter of exchange-rate cache misses.
	RateCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_cache_misses_total",
			Help: "Total number of exchange-rate cache misses",
		},
	)

	// ConversionFailuresTotal is a counter of failed currency conversions.
	ConversionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversion_failures_total",
			Help: "Total number of currency conversions that exhausted all providers",
		},
		[]string{"currency"},
	)

	// UnpricedResultsTotal is a counter of results with no recognized price field.
	UnpricedResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unpriced_results_total",
			Help: "Total number of results carrying no recognized price field",
		},
		[]string{"source"},
	)

	// DiversificationDropsTotal is a counter of results dropped by the source cap.
	DiversificationDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diversification_drops_total",
			Help: "Total number of results dropped by the per-source cap",
		},
		[]string{"source"},
	)

	// ResultCacheHitsTotal is a counter of search response cache hits.
	ResultCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "result_cache_hits_total",
			Help: "Total number of search response cache hits",
		},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)
)

// Init registers all metrics with the default Prometheus registry.
func Init() {
	prometheus.MustRegister(
		SearchesTotal,
		SearchDuration,
		ProviderBatchesTotal,
		RateLookupsTotal,
		RateCacheHitsTotal,
		RateCacheMissesTotal,
		ConversionFailuresTotal,
		UnpricedResultsTotal,
		DiversificationDropsTotal,
		ResultCacheHitsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordSearch records a completed search request.
func RecordSearch(service, status string, duration time.Duration) {
	SearchesTotal.WithLabelValues(service, status).Inc()
	SearchDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordProviderBatch records an inventory provider response.
func RecordProviderBatch(provider, status string) {
	ProviderBatchesTotal.WithLabelValues(provider, status).Inc()
}

// RecordRateLookup records an exchange-rate provider lookup.
func RecordRateLookup(provider, status string) {
	RateLookupsTotal.WithLabelValues(provider, status).Inc()
}

// RecordRateCache records a rate cache probe.
func RecordRateCache(hit bool) {
	if hit {
		RateCacheHitsTotal.Inc()
	} else {
		RateCacheMissesTotal.Inc()
	}
}

// RecordConversionFailure records a conversion that exhausted all providers.
func RecordConversionFailure(currency string) {
	ConversionFailuresTotal.WithLabelValues(currency).Inc()
}

// RecordUnpricedResult records a result with no recognized price field.
func RecordUnpricedResult(source string) {
	UnpricedResultsTotal.WithLabelValues(source).Inc()
}

// RecordDiversificationDrop records a result dropped by the source cap.
func RecordDiversificationDrop(source string) {
	DiversificationDropsTotal.WithLabelValues(source).Inc()
}

// RecordResultCacheHit records a search response cache hit.
func RecordResultCacheHit() {
	ResultCacheHitsTotal.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
