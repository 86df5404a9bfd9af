package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics exported by the API. A nil Collector
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	linkChanges     *prometheus.CounterVec
	progressChanges *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry under the namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	linkChanges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_changes_total",
			Help:      "Total number of link create, update and delete operations",
		},
		[]string{"action"},
	)

	progressChanges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_changes_total",
			Help:      "Total number of progress completions and removals",
		},
		[]string{"action"},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		linkChanges,
		progressChanges,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		registry:        registry,
		httpRequests:    httpRequests,
		httpDuration:    httpDuration,
		linkChanges:     linkChanges,
		progressChanges: progressChanges,
	}
}

// ObserveRequest records one finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordLinkChange counts a link mutation ("created", "updated", "deleted").
func (c *Collector) RecordLinkChange(action string) {
	if c == nil {
		return
	}
	c.linkChanges.WithLabelValues(action).Inc()
}

// RecordProgressChange counts a progress mutation ("completed", "cleared").
func (c *Collector) RecordProgressChange(action string) {
	if c == nil {
		return
	}
	c.progressChanges.WithLabelValues(action).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
