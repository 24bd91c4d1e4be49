package metrics

import "github.com/prometheus/client_golang/prometheus"

// Crawl and indexing Prometheus metrics.
var (
	CrawlPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "siteqa",
			Name:      "crawl_pages_total",
			Help:      "Crawled pages and documents by outcome",
		},
		[]string{"result"}, // "ok" / "empty" / "error" / "too_large"
	)

	CrawlFetchRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "siteqa",
			Name:      "crawl_fetch_retries_total",
			Help:      "Fetch attempts repeated after a transient failure",
		},
	)

	IndexChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "siteqa",
			Name:      "index_chunks",
			Help:      "Chunk count of the most recently built or extended index",
		},
	)

	IndexBuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "siteqa",
			Name:      "index_build_duration_seconds",
			Help:      "Index build and extend duration in seconds",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"op"}, // "build" / "extend"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers crawl and indexing metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(CrawlPagesTotal)
	prometheus.MustRegister(CrawlFetchRetriesTotal)
	prometheus.MustRegister(IndexChunks)
	prometheus.MustRegister(IndexBuildDuration)
	pipelineMetricsRegistered = true
}
