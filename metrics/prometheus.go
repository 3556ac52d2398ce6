// Package metrics provides a Prometheus-backed collector for engine
// metrics. It satisfies the root Collector interface structurally, so
// the core packages stay free of the Prometheus dependency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector records build, train, optimize and search
// measurements as Prometheus metrics.
type PrometheusCollector struct {
	buildSeconds    prometheus.Histogram
	buildNodes      prometheus.Gauge
	trainSeconds    prometheus.Histogram
	optimizePO      prometheus.Gauge
	optimizePL      prometheus.Gauge
	searchesTotal   *prometheus.CounterVec
	searchSeconds   prometheus.Histogram
	searchRequested prometheus.Histogram
}

// NewPrometheusCollector registers the collector's metrics with the
// given registerer; nil uses the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		buildSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gannet_build_duration_seconds",
			Help:    "Time spent constructing the proximity graph",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		buildNodes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gannet_build_nodes",
			Help: "Number of nodes in the last built graph",
		}),
		trainSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gannet_train_duration_seconds",
			Help:    "Time spent training the quantizer",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		optimizePO: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gannet_prefetch_po",
			Help: "Tuned neighbor-ahead prefetch offset",
		}),
		optimizePL: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gannet_prefetch_pl",
			Help: "Tuned prefetch cache-line count",
		}),
		searchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gannet_searches_total",
			Help: "Total search calls by outcome",
		}, []string{"status"}),
		searchSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gannet_search_duration_seconds",
			Help:    "Per-query search latency",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
		searchRequested: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gannet_search_k",
			Help:    "Requested neighbor counts",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 500},
		}),
	}
}

// RecordBuild records a graph build.
func (c *PrometheusCollector) RecordBuild(n int, d time.Duration) {
	c.buildSeconds.Observe(d.Seconds())
	c.buildNodes.Set(float64(n))
}

// RecordTrain records a quantizer training run.
func (c *PrometheusCollector) RecordTrain(d time.Duration) {
	c.trainSeconds.Observe(d.Seconds())
}

// RecordOptimize records the tuned prefetch parameters.
func (c *PrometheusCollector) RecordOptimize(po, pl int, _ time.Duration) {
	c.optimizePO.Set(float64(po))
	c.optimizePL.Set(float64(pl))
}

// RecordSearch records one search call.
func (c *PrometheusCollector) RecordSearch(k int, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.searchesTotal.WithLabelValues(status).Inc()
	c.searchSeconds.Observe(d.Seconds())
	c.searchRequested.Observe(float64(k))
}
