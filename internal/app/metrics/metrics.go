// Package metrics wraps Prometheus collectors for the HTTP surface and the
// processing pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the service's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge

	pipelineResults  *prometheus.CounterVec
	upstreamFailures *prometheus.CounterVec
	quotaExceeded    prometheus.Counter
}

// NewCollector creates and registers the service metrics.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "insideout"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	c.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	c.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Requests currently being served.",
	})

	c.pipelineResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "results_total",
		Help:      "Pipeline outcomes by detected emotion.",
	}, []string{"emotion"})

	c.upstreamFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "upstream_failures_total",
		Help:      "Degraded stages by name (decode, classify, generate).",
	}, []string{"stage"})

	c.quotaExceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quota",
		Name:      "limit_exceeded_total",
		Help:      "Accounted requests past the free call limit.",
	})

	c.registry.MustRegister(
		c.httpRequests, c.httpDuration, c.inFlight,
		c.pipelineResults, c.upstreamFailures, c.quotaExceeded,
	)

	return c
}

// Handler exposes the registry for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, status).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncrementInFlight marks a request as in progress.
func (c *Collector) IncrementInFlight() { c.inFlight.Inc() }

// DecrementInFlight marks a request as finished.
func (c *Collector) DecrementInFlight() { c.inFlight.Dec() }

// RecordPipelineResult counts one pipeline outcome by emotion label.
func (c *Collector) RecordPipelineResult(emotionLabel string) {
	c.pipelineResults.WithLabelValues(emotionLabel).Inc()
}

// RecordUpstreamFailure counts a degraded external call.
func (c *Collector) RecordUpstreamFailure(stage string) {
	c.upstreamFailures.WithLabelValues(stage).Inc()
}

// RecordQuotaExceeded counts an accounted request past the free limit.
func (c *Collector) RecordQuotaExceeded() { c.quotaExceeded.Inc() }
