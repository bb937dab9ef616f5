// internal/app/system/metrics/metrics.go
// Package metrics defines the Prometheus collectors for the realtime layer
// and the collaboration workflow.
package metrics

import (
	"github.com/dalemusser/coderoom/internal/app/system/realtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors. A nil *Metrics is valid and records
// nothing, so tests and tools can skip wiring it.
type Metrics struct {
	// InboundEvents counts realtime events by name and outcome
	// (handled, dropped, rate_limited or an error kind).
	InboundEvents *prometheus.CounterVec

	// DroppedFrames counts outbound frames a full queue rejected, by event.
	DroppedFrames *prometheus.CounterVec

	// Transitions counts workflow and video transitions by name and result
	// (ok or the error kind).
	Transitions *prometheus.CounterVec

	// CodeRuns counts code executions by language and outcome.
	CodeRuns *prometheus.CounterVec

	// CodeRunDuration observes code execution wall time.
	CodeRunDuration *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InboundEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coderoom_realtime_events_total",
				Help: "Inbound realtime events by event name and outcome",
			},
			[]string{"event", "outcome"},
		),
		DroppedFrames: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coderoom_realtime_dropped_frames_total",
				Help: "Outbound frames dropped because a connection queue was full",
			},
			[]string{"event"},
		),
		Transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coderoom_collab_transitions_total",
				Help: "Collaboration and video transitions by name and result",
			},
			[]string{"transition", "result"},
		),
		CodeRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coderoom_code_runs_total",
				Help: "Code executions by language and outcome",
			},
			[]string{"language", "outcome"},
		),
		CodeRunDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coderoom_code_run_duration_seconds",
				Help:    "Wall time of code executions",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"language"},
		),
	}
}

// ObserveRegistry exports live registry sizes as gauges read at scrape
// time.
func ObserveRegistry(reg prometheus.Registerer, r *realtime.Registry) {
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "coderoom_realtime_connections",
		Help: "Open realtime connections",
	}, func() float64 { return float64(r.Stats().Connections) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "coderoom_realtime_rooms",
		Help: "Rooms with at least one connection",
	}, func() float64 { return float64(r.Stats().Rooms) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "coderoom_realtime_users",
		Help: "Distinct identified users with an open connection",
	}, func() float64 { return float64(r.Stats().Users) })
}

// Event records one inbound realtime event.
func (m *Metrics) Event(event, outcome string) {
	if m == nil {
		return
	}
	m.InboundEvents.WithLabelValues(event, outcome).Inc()
}

// Dropped records one outbound frame that was not queued. It matches
// realtime.Options.OnDrop.
func (m *Metrics) Dropped(_ string, event string) {
	if m == nil {
		return
	}
	m.DroppedFrames.WithLabelValues(event).Inc()
}

// Transition records a workflow or video transition result.
func (m *Metrics) Transition(name, result string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(name, result).Inc()
}

// CodeRun records one execution.
func (m *Metrics) CodeRun(language, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.CodeRuns.WithLabelValues(language, outcome).Inc()
	m.CodeRunDuration.WithLabelValues(language).Observe(seconds)
}
