// Package metrics defines the Prometheus collectors exported by the bot.
// All methods are safe to call on a nil *Collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medtechbot"

// Collectors groups the bot's metrics and the registry they are registered with.
type Collectors struct {
	registry *prometheus.Registry

	transitions        *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	declines           *prometheus.CounterVec
	submissions        *prometheus.CounterVec
	deliveryDuration   *prometheus.HistogramVec
	redeliveries       *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry that also carries the Go
// runtime and process collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_entries_total",
			Help:      "Number of times a conversation step was entered.",
		}, []string{"flow", "step"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Inputs rejected by a field validator.",
		}, []string{"flow", "step"}),
		declines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "equipment_declines_total",
			Help:      "Unrecognized equipment inputs answered with a soft decline.",
		}, []string{"flow"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Completed requests by flow and delivery outcome.",
		}, []string{"flow", "outcome"}),
		deliveryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time spent sending a request to its destination channel.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow"}),
		redeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redeliveries_total",
			Help:      "Redelivery attempts of journaled requests by outcome.",
		}, []string{"outcome"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.transitions,
		c.validationFailures,
		c.declines,
		c.submissions,
		c.deliveryDuration,
		c.redeliveries,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collectors) StepEntered(flow, step string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(flow, step).Inc()
}

func (c *Collectors) ValidationFailed(flow, step string) {
	if c == nil {
		return
	}
	c.validationFailures.WithLabelValues(flow, step).Inc()
}

func (c *Collectors) EquipmentDeclined(flow string) {
	if c == nil {
		return
	}
	c.declines.WithLabelValues(flow).Inc()
}

// Submitted records a completed request; delivered is the outcome of the first send.
func (c *Collectors) Submitted(flow string, delivered bool, seconds float64) {
	if c == nil {
		return
	}
	c.submissions.WithLabelValues(flow, outcome(delivered)).Inc()
	c.deliveryDuration.WithLabelValues(flow).Observe(seconds)
}

func (c *Collectors) Redelivered(delivered bool) {
	if c == nil {
		return
	}
	c.redeliveries.WithLabelValues(outcome(delivered)).Inc()
}

func outcome(delivered bool) string {
	if delivered {
		return "delivered"
	}
	return "failed"
}
