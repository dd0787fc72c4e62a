package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "snaplink"

// PrometheusRecorder records metrics into its own registry, which also
// carries the Go runtime and process collectors.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	redirectCache    *prometheus.CounterVec
	redirectDuration prometheus.Histogram
	links            *prometheus.CounterVec
	clicksEnqueued   prometheus.Counter
	clicksDropped    prometheus.Counter
	clicksProcessed  *prometheus.CounterVec
	clickQueueDepth  prometheus.Gauge
	rateLimited      *prometheus.CounterVec
}

// NewPrometheus creates a PrometheusRecorder with a fresh registry.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		redirectCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirect_cache_total",
			Help:      "Redirect link lookups by cache result.",
		}, []string{"result"}),
		redirectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redirect_duration_seconds",
			Help:      "Time to resolve a slug for a redirect.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		links: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_total",
			Help:      "Link writes by operation.",
		}, []string{"op"}),
		clicksEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_enqueued_total",
			Help:      "Clicks accepted into the recorder queue.",
		}),
		clicksDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_dropped_total",
			Help:      "Clicks dropped because the recorder queue was full or closed.",
		}),
		clicksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_processed_total",
			Help:      "Click writes by outcome.",
		}, []string{"status"}),
		clickQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "click_queue_depth",
			Help:      "Clicks waiting to be stored.",
		}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests denied by the rate limiter, by bucket.",
		}, []string{"bucket"}),
	}
}

// Gatherer returns the registry to serve at /metrics.
func (p *PrometheusRecorder) Gatherer() prometheus.Gatherer { return p.registry }

func (p *PrometheusRecorder) IncRedirectCacheHit()  { p.redirectCache.WithLabelValues("hit").Inc() }
func (p *PrometheusRecorder) IncRedirectCacheMiss() { p.redirectCache.WithLabelValues("miss").Inc() }

func (p *PrometheusRecorder) ObserveRedirectDuration(duration time.Duration) {
	p.redirectDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) IncLinkCreated() { p.links.WithLabelValues("create").Inc() }
func (p *PrometheusRecorder) IncLinkUpdated() { p.links.WithLabelValues("update").Inc() }
func (p *PrometheusRecorder) IncLinkDeleted() { p.links.WithLabelValues("delete").Inc() }

func (p *PrometheusRecorder) IncClickEnqueued() { p.clicksEnqueued.Inc() }
func (p *PrometheusRecorder) IncClickDropped()  { p.clicksDropped.Inc() }

// IncClickProcessed counts a finished click write. Any status other than
// "success" is reported as "failed".
func (p *PrometheusRecorder) IncClickProcessed(status string) {
	if status != "success" {
		status = "failed"
	}
	p.clicksProcessed.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) SetClickQueueDepth(depth int64) {
	p.clickQueueDepth.Set(float64(depth))
}

func (p *PrometheusRecorder) IncRateLimited(bucket string) {
	p.rateLimited.WithLabelValues(bucket).Inc()
}
