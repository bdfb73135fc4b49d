// Package metrics collects Prometheus metrics for the store, sessions and HTTP layer.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements store.Observer and records session and HTTP activity
type Collector struct {
	storeOps         *prometheus.CounterVec
	storeLatency     *prometheus.HistogramVec
	transitions      *prometheus.CounterVec
	authDecisions    *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	summarizeLatency prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contractdesk_store_operations_total",
			Help: "Store operations by collection, operation and outcome",
		}, []string{"collection", "op", "outcome"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contractdesk_store_operation_seconds",
			Help:    "Store operation latency including simulated delay",
			Buckets: prometheus.DefBuckets,
		}, []string{"collection", "op"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contractdesk_session_transitions_total",
			Help: "Session state transitions",
		}, []string{"from", "to"}),
		authDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contractdesk_authorization_decisions_total",
			Help: "Authorization decisions by outcome",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contractdesk_http_responses_total",
			Help: "HTTP responses by method and status code",
		}, []string{"method", "status_code"}),
		summarizeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "contractdesk_summarize_seconds",
			Help:    "Latency of AI summary requests",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}

	reg.MustRegister(
		c.storeOps,
		c.storeLatency,
		c.transitions,
		c.authDecisions,
		c.httpStatus,
		c.summarizeLatency,
	)

	return c
}

// ObserveOp records a store operation
func (c *Collector) ObserveOp(collection, op string, err error, took time.Duration) {
	c.storeOps.WithLabelValues(collection, op, Outcome(err)).Inc()
	c.storeLatency.WithLabelValues(collection, op).Observe(took.Seconds())
}

// ObserveSession counts every state change of s until the returned func is called
func (c *Collector) ObserveSession(s *session.Context) func() {
	return s.Subscribe(func(from, to session.State, _ *model.Identity) {
		c.transitions.WithLabelValues(from.String(), to.String()).Inc()
	})
}

// RecordAuthorization records the result of an authorization check
func (c *Collector) RecordAuthorization(err error) {
	c.authDecisions.WithLabelValues(Outcome(err)).Inc()
}

// RecordHTTPStatus records a response status code
func (c *Collector) RecordHTTPStatus(method string, statusCode int) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// RecordSummarizeLatency records how long a summary request took
func (c *Collector) RecordSummarizeLatency(d time.Duration) {
	c.summarizeLatency.Observe(d.Seconds())
}

// Outcome maps an error to a low-cardinality label
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	case errors.Is(err, model.ErrStoreClosed):
		return "closed"
	case errors.Is(err, model.ErrSessionLoading):
		return "loading"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case model.IsValidation(err):
		return "invalid"
	case model.IsAuthorization(err):
		return "denied"
	case model.IsExternal(err):
		return "external"
	default:
		return "error"
	}
}

// Handler returns the Prometheus scrape handler
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
