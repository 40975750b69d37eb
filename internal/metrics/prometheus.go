// Package metrics exposes the storefront pipeline's Prometheus collectors.
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the prometheus collectors for one storefront process.
type Metrics struct {
	registry *prometheus.Registry

	// Cache
	cacheLookups       *prometheus.CounterVec
	cacheInvalidations prometheus.Counter

	// Catalog
	fetchDuration *prometheus.HistogramVec
	fetchErrors   *prometheus.CounterVec
	dropped       prometheus.Counter

	// Rendering
	renders          prometheus.Counter
	productsRendered prometheus.Counter
	imagesByPolicy   *prometheus.CounterVec
	lazyImagesLoaded prometheus.Counter

	// Page loads
	pageLoads    *prometheus.CounterVec
	pageDuration prometheus.Histogram
	inflight     prometheus.Gauge
}

// Default histogram buckets for fetch and page durations (in milliseconds).
var defaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// New creates the collectors under namespace and registers them, together
// with the Go and process collectors, in a fresh registry.
func New(namespace string, buckets []float64) *Metrics {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Product cache lookups by result (hit, miss, expired)",
			},
			[]string{"result"},
		),

		cacheInvalidations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidations_total",
				Help:      "Explicit product cache invalidations",
			},
		),

		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "catalog_fetch_duration_milliseconds",
				Help:      "Duration of remote catalog fetches in milliseconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		fetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_fetch_errors_total",
				Help:      "Failed catalog fetches by error kind",
			},
			[]string{"kind"},
		),

		dropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_products_dropped_total",
				Help:      "Catalog records skipped because they cannot be rendered",
			},
		),

		renders: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Product grid renders",
			},
		),

		productsRendered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "products_rendered_total",
				Help:      "Product cards rendered",
			},
		),

		imagesByPolicy: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "images_rendered_total",
				Help:      "Rendered product images by loading policy",
			},
			[]string{"policy"},
		),

		lazyImagesLoaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lazy_images_loaded_total",
				Help:      "Lazy images swapped in after intersecting the viewport",
			},
		),

		pageLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "page_loads_total",
				Help:      "Page-load cycles by source and final state",
			},
			[]string{"source", "state"},
		),

		pageDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "page_load_duration_milliseconds",
				Help:      "Duration of page-load cycles in milliseconds",
				Buckets:   buckets,
			},
		),

		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "page_loads_in_flight",
				Help:      "Page-load cycles currently running",
			},
		),
	}

	registry.MustRegister(
		m.cacheLookups,
		m.cacheInvalidations,
		m.fetchDuration,
		m.fetchErrors,
		m.dropped,
		m.renders,
		m.productsRendered,
		m.imagesByPolicy,
		m.lazyImagesLoaded,
		m.pageLoads,
		m.pageDuration,
		m.inflight,
	)

	return m
}

// RecordCacheLookup records a cache lookup result: "hit", "miss" or "expired".
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordCacheInvalidation counts an explicit invalidation.
func (m *Metrics) RecordCacheInvalidation() {
	if m == nil {
		return
	}
	m.cacheInvalidations.Inc()
}

// RecordFetch records a catalog fetch. kind is empty on success.
func (m *Metrics) RecordFetch(d time.Duration, kind string) {
	if m == nil {
		return
	}
	status := "success"
	if kind != "" {
		status = "failed"
		m.fetchErrors.WithLabelValues(kind).Inc()
	}
	m.fetchDuration.WithLabelValues(status).Observe(float64(d.Milliseconds()))
}

// RecordDroppedProducts counts catalog records skipped during decoding.
func (m *Metrics) RecordDroppedProducts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.Add(float64(n))
}

// RecordRender records one grid render with its eager and lazy image counts.
func (m *Metrics) RecordRender(products, eager, lazy int) {
	if m == nil {
		return
	}
	m.renders.Inc()
	m.productsRendered.Add(float64(products))
	m.imagesByPolicy.WithLabelValues("eager").Add(float64(eager))
	m.imagesByPolicy.WithLabelValues("lazy").Add(float64(lazy))
}

// RecordLazyImageLoaded counts one lazy image transition.
func (m *Metrics) RecordLazyImageLoaded() {
	if m == nil {
		return
	}
	m.lazyImagesLoaded.Inc()
}

// IncInFlight marks a page load as started.
func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

// DecInFlight marks a page load as finished.
func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.inflight.Dec()
}

// RecordPageLoad records a finished page-load cycle.
func (m *Metrics) RecordPageLoad(source, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.pageLoads.WithLabelValues(source, state).Inc()
	m.pageDuration.Observe(float64(d.Milliseconds()))
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
