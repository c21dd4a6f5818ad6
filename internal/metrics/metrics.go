// Package metrics holds the Prometheus collectors for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wifi_portal"

// Collector owns a private registry so tests can build as many as they like.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	Transitions         *prometheus.CounterVec
	FraudConflicts      prometheus.Counter
	ForcedApprovals     prometheus.Counter
	Sweeps              *prometheus.CounterVec
	ProbeResults        *prometheus.CounterVec
	DevicesObserved     prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{registry: reg}

	c.Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscription_transitions_total",
		Help:      "Subscription status transitions",
	}, []string{"from", "to"})

	c.FraudConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fraud_conflicts_total",
		Help:      "Approvals refused because the transaction id was already used",
	})

	c.ForcedApprovals = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forced_approvals_total",
		Help:      "Approvals that overrode a duplicate transaction id",
	})

	c.Sweeps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeps_total",
		Help:      "Expiry sweeps by outcome",
	}, []string{"status"})

	c.ProbeResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connectivity_probes_total",
		Help:      "Connectivity probes by outcome",
	}, []string{"result"})

	c.DevicesObserved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "devices_discovered_total",
		Help:      "Devices seen for the first time",
	})

	c.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status_code"})

	c.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	reg.MustRegister(
		c.Transitions,
		c.FraudConflicts,
		c.ForcedApprovals,
		c.Sweeps,
		c.ProbeResults,
		c.DevicesObserved,
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
	)
	return c
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordTransition(from, to string) {
	if c == nil {
		return
	}
	c.Transitions.WithLabelValues(from, to).Inc()
}

func (c *Collector) RecordFraudConflict() {
	if c == nil {
		return
	}
	c.FraudConflicts.Inc()
}

func (c *Collector) RecordForcedApproval() {
	if c == nil {
		return
	}
	c.ForcedApprovals.Inc()
}

func (c *Collector) RecordSweep(err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.Sweeps.WithLabelValues(status).Inc()
}

func (c *Collector) RecordProbe(ok bool) {
	if c == nil {
		return
	}
	result := "offline"
	if ok {
		result = "online"
	}
	c.ProbeResults.WithLabelValues(result).Inc()
}

func (c *Collector) RecordDeviceDiscovered() {
	if c == nil {
		return
	}
	c.DevicesObserved.Inc()
}

// RecordHTTPRequest records an HTTP request metric.
func (c *Collector) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
