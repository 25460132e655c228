// Package metrics records eventbus events as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/hanpama/graphstitch/internal/eventbus"
	events "github.com/hanpama/graphstitch/internal/events"
)

const namespace = "graphstitch"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	operations         *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	plans              *prometheus.CounterVec
	steps              *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
	subrequests        *prometheus.CounterVec
	subrequestDuration *prometheus.HistogramVec
}

// New creates metrics on their own registry, together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests.",
			},
			[]string{"method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "graphql",
				Name:      "operations_total",
				Help:      "GraphQL operations by type and outcome.",
			},
			[]string{"type", "success"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "graphql",
				Name:      "operation_duration_seconds",
				Help:      "GraphQL operation duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		plans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "planner",
				Name:      "plans_total",
				Help:      "Plans served, by cache outcome.",
			},
			[]string{"cache", "success"},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "executor",
				Name:      "calls_total",
				Help:      "Location calls made by the executor.",
			},
			[]string{"location", "kind", "success"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "executor",
				Name:      "call_duration_seconds",
				Help:      "Location call duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"location", "kind"},
		),
		subrequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "subrequests_total",
				Help:      "HTTP sub-requests to locations.",
			},
			[]string{"location", "status"},
		),
		subrequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "subrequest_duration_seconds",
				Help:      "HTTP sub-request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"location"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.operations, m.operationDuration,
		m.plans,
		m.steps, m.stepDuration,
		m.subrequests, m.subrequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Register subscribes the recorders to b.
func (m *Metrics) Register(b *eventbus.Bus) (unregister func()) {
	unsubs := []func(){
		eventbus.On(b, func(ctx context.Context, e events.HTTPFinish) {
			m.httpRequests.WithLabelValues(e.Request.Method, strconv.Itoa(e.Status)).Inc()
			m.httpDuration.WithLabelValues(e.Request.Method).Observe(e.Duration.Seconds())
		}),
		eventbus.On(b, func(ctx context.Context, e events.GraphQLFinish) {
			m.operations.WithLabelValues(e.OperationType, strconv.FormatBool(len(e.Errors) == 0)).Inc()
			m.operationDuration.WithLabelValues(e.OperationType).Observe(e.Duration.Seconds())
		}),
		eventbus.On(b, func(ctx context.Context, e events.PlanFinish) {
			cache := "miss"
			if e.Cached {
				cache = "hit"
			}
			m.plans.WithLabelValues(cache, strconv.FormatBool(e.Err == nil)).Inc()
		}),
		eventbus.On(b, func(ctx context.Context, e events.StepFinish) {
			kind := "root"
			if e.Resolver {
				kind = "resolver"
			}
			success := e.Err == nil && e.Errors == 0
			m.steps.WithLabelValues(e.Location, kind, strconv.FormatBool(success)).Inc()
			m.stepDuration.WithLabelValues(e.Location, kind).Observe(e.Duration.Seconds())
		}),
		eventbus.On(b, func(ctx context.Context, e events.SubrequestFinish) {
			status := strconv.Itoa(e.Status)
			if e.Err != nil && e.Status == 0 {
				status = "error"
			}
			m.subrequests.WithLabelValues(e.Location, status).Inc()
			m.subrequestDuration.WithLabelValues(e.Location).Observe(e.Duration.Seconds())
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
