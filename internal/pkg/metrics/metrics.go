// Package metrics provides Prometheus metrics for the pick loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Tick outcomes.
const (
	OutcomeOK               = "ok"
	OutcomeError            = "error"
	OutcomeInvalidSelection = "invalid_selection"
	OutcomeSkipped          = "skipped"
)

// LoopMetrics collects the control loop's counters on a private registry.
type LoopMetrics struct {
	registry *prometheus.Registry

	Ticks             *prometheus.CounterVec
	TickDuration      prometheus.Histogram
	PicksSent         prometheus.Counter
	SendFailures      prometheus.Counter
	PicksResolved     *prometheus.CounterVec
	InvalidSelections prometheus.Counter
	Awaiting          prometheus.Gauge
}

func NewLoopMetrics() *LoopMetrics {
	registry := prometheus.NewRegistry()

	m := &LoopMetrics{
		registry: registry,

		Ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bttsbot_ticks_total",
				Help: "Loop iterations by state and outcome",
			},
			[]string{"state", "outcome"},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bttsbot_tick_duration_seconds",
				Help:    "Time spent in one loop iteration",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
		),
		PicksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bttsbot_picks_sent_total",
			Help: "Recommendations published to the chat",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bttsbot_send_failures_total",
			Help: "Recommendations that could not be published",
		}),
		PicksResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bttsbot_picks_resolved_total",
				Help: "Resolved picks by result",
			},
			[]string{"result"},
		),
		InvalidSelections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bttsbot_invalid_selections_total",
			Help: "Model answers whose selection did not match an upcoming match",
		}),
		Awaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bttsbot_awaiting_result",
			Help: "1 while a pick is waiting for its result",
		}),
	}

	registry.MustRegister(
		m.Ticks,
		m.TickDuration,
		m.PicksSent,
		m.SendFailures,
		m.PicksResolved,
		m.InvalidSelections,
		m.Awaiting,
	)
	return m
}

// Registry returns the registry to expose over HTTP.
func (m *LoopMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ResultLabel maps a BTTS outcome to the picks_resolved label.
func ResultLabel(bothScored bool) string {
	if bothScored {
		return "btts"
	}
	return "no_btts"
}
