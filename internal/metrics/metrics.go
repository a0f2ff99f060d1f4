// Package metrics collects Prometheus metrics for the lending lifecycle and
// the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements lending.Recorder and the HTTP recorder used by the
// request logging middleware.
type Collector struct {
	checkouts       prometheus.Counter
	returns         *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "library_checkouts_total",
			Help: "Number of checkouts created.",
		}),
		returns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_returns_total",
			Help: "Number of checkouts returned, by lookup method.",
		}, []string{"method"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_lending_rejections_total",
			Help: "Checkout and return attempts rejected by a business rule.",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "library_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.checkouts,
		c.returns,
		c.rejections,
		c.httpStatus,
		c.requestDuration,
	)

	return c
}

func (c *Collector) RecordCheckout() {
	c.checkouts.Inc()
}

// RecordReturn counts a return; method is "id" or "pair".
func (c *Collector) RecordReturn(method string) {
	c.returns.WithLabelValues(method).Inc()
}

func (c *Collector) RecordRejection(reason string) {
	c.rejections.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordRequestDuration(d time.Duration) {
	c.requestDuration.Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
