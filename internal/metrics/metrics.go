// Package metrics exposes prometheus collectors for runs, specialist
// dispatch, the result cache and the rate limiter.
//
// Collectors are fed from the event bus rather than called directly, so
// the engine packages stay free of metrics imports:
//
//	m := metrics.New()
//	m.Subscribe(bus)
//	http.Handle("/metrics", m.Handler())
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Iron-Ham/basecamp/internal/event"
)

const namespace = "basecamp"

// Metrics owns a dedicated registry and the basecamp collectors.
type Metrics struct {
	registry *prometheus.Registry

	runsSubmitted   prometheus.Counter
	runsFinished    *prometheus.CounterVec
	runsPaused      prometheus.Counter
	runDuration     prometheus.Histogram
	phaseChanges    *prometheus.CounterVec
	dispatched      *prometheus.CounterVec
	completed       *prometheus.CounterVec
	specialistTime  *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	lockouts        *prometheus.CounterVec
	analyzeFallback *prometheus.CounterVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_submitted_total",
			Help:      "Runs accepted by the engine.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Runs that reached DONE, by outcome.",
		}, []string{"outcome"}),
		runsPaused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_paused_total",
			Help:      "Runs halted for human review.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time from submit to DONE.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		phaseChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Scheduler state transitions.",
		}, []string{"to"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "specialist",
			Name:      "dispatched_total",
			Help:      "Specialists handed to a worker.",
		}, []string{"specialist"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "specialist",
			Name:      "completed_total",
			Help:      "Specialist completions by error kind (ok on success).",
		}, []string{"specialist", "kind"}),
		specialistTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "specialist",
			Name:      "duration_seconds",
			Help:      "Specialist run time including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"specialist"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "specialist",
			Name:      "in_flight",
			Help:      "Specialists currently running across all runs.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache-around lookups by endpoint and result.",
		}, []string{"endpoint", "result"}),
		lockouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "lockouts_total",
			Help:      "Endpoint lockouts triggered by rate-limit errors.",
		}, []string{"endpoint"}),
		analyzeFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intent",
			Name:      "analyses_total",
			Help:      "Intent analyses by path (llm, heuristic, minimal).",
		}, []string{"path"}),
	}

	m.registry.MustRegister(
		m.runsSubmitted,
		m.runsFinished,
		m.runsPaused,
		m.runDuration,
		m.phaseChanges,
		m.dispatched,
		m.completed,
		m.specialistTime,
		m.inFlight,
		m.cacheLookups,
		m.lockouts,
		m.analyzeFallback,
	)
	return m
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Subscribe wires the collectors to bus and returns the subscription id.
func (m *Metrics) Subscribe(bus *event.Bus) string {
	return bus.SubscribeAll(m.observe)
}

func (m *Metrics) observe(e event.Event) {
	switch ev := e.(type) {
	case event.RunSubmittedEvent:
		m.runsSubmitted.Inc()
	case event.RunAnalyzedEvent:
		path := ev.Fallback
		if path == "" {
			path = "llm"
		}
		m.analyzeFallback.WithLabelValues(path).Inc()
	case event.PhaseChangedEvent:
		m.phaseChanges.WithLabelValues(ev.To).Inc()
	case event.RunPausedEvent:
		m.runsPaused.Inc()
	case event.RunFinishedEvent:
		outcome := "planned"
		switch {
		case ev.Rejected:
			outcome = "rejected"
		case !ev.HasPlan:
			outcome = "failed"
		}
		m.runsFinished.WithLabelValues(outcome).Inc()
		m.runDuration.Observe(ev.Duration.Seconds())
	case event.SpecialistDispatchedEvent:
		m.dispatched.WithLabelValues(ev.Specialist).Inc()
		m.inFlight.Inc()
	case event.SpecialistCompletedEvent:
		kind := ev.Kind
		if kind == "" {
			kind = "ok"
		}
		m.completed.WithLabelValues(ev.Specialist, kind).Inc()
		m.specialistTime.WithLabelValues(ev.Specialist).Observe(ev.Duration.Seconds())
		m.inFlight.Dec()
	case event.CacheLookupEvent:
		result := "miss"
		if ev.Hit {
			result = "hit"
		}
		m.cacheLookups.WithLabelValues(ev.Endpoint, result).Inc()
	case event.LockoutEvent:
		m.lockouts.WithLabelValues(ev.Endpoint).Inc()
	}
}
