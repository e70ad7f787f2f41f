package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the crawl counters and gauges to Prometheus. All fields
// are registered against the registerer passed to NewMetrics; pass
// prometheus.DefaultRegisterer for the usual global registry.
type Metrics struct {
	PagesFound    prometheus.Counter
	PagesCrawled  prometheus.Counter
	ExternalLinks prometheus.Counter
	ExcludedLinks prometheus.Counter
	FetchErrors   prometheus.Counter
	ActiveJobs    prometheus.Gauge
	QueueDepth    prometheus.Gauge
}

// NewMetrics registers and returns the crawl metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PagesFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "webreach",
			Name:      "pages_found_total",
			Help:      "URLs admitted into the visited set.",
		}),
		PagesCrawled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "webreach",
			Name:      "pages_crawled_total",
			Help:      "Pages fetched successfully.",
		}),
		ExternalLinks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "webreach",
			Name:      "external_links_total",
			Help:      "URLs rejected by the domain scope.",
		}),
		ExcludedLinks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "webreach",
			Name:      "excluded_links_total",
			Help:      "URLs rejected by the regex filter or robots.txt.",
		}),
		FetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "webreach",
			Name:      "fetch_errors_total",
			Help:      "Fetches that failed with a transport error or non-2xx status.",
		}),
		ActiveJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "webreach",
			Name:      "active_jobs",
			Help:      "Jobs enqueued plus jobs in flight.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "webreach",
			Name:      "queue_depth",
			Help:      "Jobs currently buffered in the queue.",
		}),
	}
}
