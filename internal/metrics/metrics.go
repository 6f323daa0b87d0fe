// Package metrics holds the Prometheus collectors of the chat engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatdesk"

// Metrics collectors, registered on one registry
type Metrics struct {
	registry *prometheus.Registry

	SessionsOpened   prometheus.Counter
	MessagesAppended *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	Ratings          *prometheus.CounterVec
	LockWait         prometheus.Histogram
	LockBusy         prometheus.Counter
	Routed           *prometheus.CounterVec
	AnalyticsCompute prometheus.Histogram
	PublishFailures  *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_opened_total",
			Help: "Chat sessions opened.",
		}),
		MessagesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_appended_total",
			Help: "Messages appended to the log by sender type.",
		}, []string{"sender"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "status_transitions_total",
			Help: "Session status transitions.",
		}, []string{"from", "to"}),
		Ratings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ratings_total",
			Help: "Submitted ratings by value.",
		}, []string{"rating"}),
		LockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "session_lock_wait_seconds",
			Help:    "Time spent waiting for the per-session lock.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2, 5},
		}),
		LockBusy: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "session_lock_busy_total",
			Help: "Operations rejected because the session stayed locked.",
		}),
		Routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "routed_total",
			Help: "Router outcomes: agent, inbox or unrouted.",
		}, []string{"outcome"}),
		AnalyticsCompute: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "analytics_compute_seconds",
			Help:    "Analytics summary computation time.",
			Buckets: prometheus.DefBuckets,
		}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "publish_failures_total",
			Help: "Failed event publications by target.",
		}, []string{"target"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SessionsOpened, m.MessagesAppended, m.Transitions, m.Ratings,
		m.LockWait, m.LockBusy, m.Routed, m.AnalyticsCompute, m.PublishFailures,
		m.HTTPRequests, m.HTTPDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSince records elapsed time since start on h
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
