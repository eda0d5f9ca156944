// Package metrics exposes Prometheus collectors for the ninja dashboard.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
)

const namespace = "dojo"

// Recorder owns a registry and every dashboard collector.
// It implements command.ProgressObserver, query.LookupObserver and
// messaging.HandlerObserver.
type Recorder struct {
	registry *prometheus.Registry

	advances      *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	lookups       *prometheus.CounterVec
	events        *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with its own registry.
// Go runtime and process collectors are registered alongside.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progression",
			Name:      "advances_total",
			Help:      "Lesson Up requests by path and odometer outcome.",
		}, []string{"path", "rollover"}),

		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progression",
			Name:      "fallback_states_total",
			Help:      "Progressions that landed on a (path, belt) row missing from the curriculum.",
		}, []string{"path", "belt"}),

		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curriculum",
			Name:      "lookups_total",
			Help:      "Bound lookups by kind and outcome.",
		}, []string{"kind", "outcome"}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handled_total",
			Help:      "Event handler executions by event type and status.",
		}, []string{"event_type", "status"}),

		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_duration_seconds",
			Help:      "Event handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"route", "method"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.advances,
		r.fallbacks,
		r.lookups,
		r.events,
		r.eventDuration,
		r.httpRequests,
		r.httpDuration,
	)

	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveAdvance counts a Lesson Up by its odometer outcome.
func (r *Recorder) ObserveAdvance(path progression.Path, rollover progression.Rollover) {
	r.advances.WithLabelValues(path.String(), string(rollover)).Inc()
}

// ObserveFallback counts a progression onto an unconfigured row.
func (r *Recorder) ObserveFallback(path progression.Path, belt progression.Belt) {
	r.fallbacks.WithLabelValues(path.String(), belt.String()).Inc()
}

// ObserveLookup counts a bound lookup.
func (r *Recorder) ObserveLookup(kind string, fallback bool) {
	outcome := "hit"
	if fallback {
		outcome = "fallback"
	}
	r.lookups.WithLabelValues(kind, outcome).Inc()
}

// ObserveEvent records an event handler execution.
func (r *Recorder) ObserveEvent(eventType string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.events.WithLabelValues(eventType, status).Inc()
	r.eventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// ObserveRequest records a served HTTP request.
func (r *Recorder) ObserveRequest(route, method string, code int, duration time.Duration) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}
