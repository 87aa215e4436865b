package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page outcomes recorded by ObservePage.
const (
	PageOK     = "ok"
	PageEmpty  = "empty"
	PageFailed = "failed"
)

// Collector records crawl and index metrics.
type Collector struct {
	registry *prometheus.Registry

	responses     *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	redirects     *prometheus.CounterVec
	pages         *prometheus.CounterVec
	documents     prometheus.Counter
	bytesIndexed  prometheus.Counter
	sitesIndexed  prometheus.Counter
}

// New creates a Collector with its own registry. Go runtime and process
// collectors are registered too.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		responses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecrawler_responses_total",
				Help: "HTTP responses received, by status code.",
			},
			[]string{"status"},
		),
		fetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitecrawler_fetch_duration_seconds",
				Help:    "Duration of a fetch including all redirect hops.",
				Buckets: prometheus.DefBuckets,
			},
		),
		redirects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecrawler_redirects_total",
				Help: "Redirects seen, by outcome (followed, external, limit).",
			},
			[]string{"outcome"},
		),
		pages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitecrawler_pages_total",
				Help: "Pages crawled, by outcome (ok, empty, failed).",
			},
			[]string{"outcome"},
		),
		documents: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sitecrawler_documents_indexed_total",
				Help: "Documents written to the store.",
			},
		),
		bytesIndexed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sitecrawler_indexed_bytes_total",
				Help: "Bytes of HTML written to the store.",
			},
		),
		sitesIndexed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sitecrawler_sites_indexed_total",
				Help: "Sites fully indexed.",
			},
		),
	}
}

// ObserveResponse counts one HTTP response.
func (c *Collector) ObserveResponse(status int) {
	if c == nil {
		return
	}
	c.responses.WithLabelValues(strconv.Itoa(status)).Inc()
}

// ObserveFetch records how long a fetch took.
func (c *Collector) ObserveFetch(d time.Duration) {
	if c == nil {
		return
	}
	c.fetchDuration.Observe(d.Seconds())
}

// ObserveRedirect counts a redirect with the given outcome.
func (c *Collector) ObserveRedirect(outcome string) {
	if c == nil {
		return
	}
	c.redirects.WithLabelValues(outcome).Inc()
}

// ObservePage counts a crawled page with the given outcome.
func (c *Collector) ObservePage(outcome string) {
	if c == nil {
		return
	}
	c.pages.WithLabelValues(outcome).Inc()
}

// AddIndexed counts documents stored and their HTML size.
func (c *Collector) AddIndexed(docs, bytes int) {
	if c == nil {
		return
	}
	c.documents.Add(float64(docs))
	c.bytesIndexed.Add(float64(bytes))
}

// IncSitesIndexed counts one indexed site.
func (c *Collector) IncSitesIndexed() {
	if c == nil {
		return
	}
	c.sitesIndexed.Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
