package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the registry behind /metrics. Each server gets its own, so
// tests can build several servers in one process.
type Collector struct {
	registry *prometheus.Registry
	factory  promauto.Factory
}

// NewCollector returns a Collector preloaded with Go runtime and process metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Collector{
		registry: registry,
		factory:  promauto.With(registry),
	}
}

// RegisterCounter adds a counter family. It panics if name is taken.
func (c *Collector) RegisterCounter(name, help string, labels []string) *prometheus.CounterVec {
	return c.factory.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

// RegisterHistogram adds a histogram family; nil buckets means prometheus.DefBuckets.
func (c *Collector) RegisterHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	return c.factory.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
}

// RegisterDB exports connection pool statistics for db under the given name.
func (c *Collector) RegisterDB(db *sql.DB, name string) {
	c.registry.MustRegister(collectors.NewDBStatsCollector(db, name))
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format. Scrape errors
// are logged by promhttp and the remaining metrics are still served.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		Registry:      c.registry,
		ErrorHandling: promhttp.ContinueOnError,
	})
}
