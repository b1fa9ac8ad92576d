package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the signal pipeline.
type Metrics struct {
	InboundEvents      *prometheus.CounterVec // labels: event
	InvalidTransitions *prometheus.CounterVec // labels: reason
	SignalsDelivered   *prometheus.CounterVec // labels: direction
	CountdownsSent     prometheus.Counter
	StaleFires         prometheus.Counter
	DataUnavailable    prometheus.Counter
	ComputeFailures    prometheus.Counter
	EmitFailures       prometheus.Counter
	AnalysisDuration   prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_inbound_events_total",
			Help: "Inbound user events by kind.",
		}, []string{"event"}),
		InvalidTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_invalid_transitions_total",
			Help: "Events rejected by the session state machine.",
		}, []string{"reason"}),
		SignalsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signalbot_signals_delivered_total",
			Help: "Signals handed to the transport, by direction.",
		}, []string{"direction"}),
		CountdownsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_countdowns_total",
			Help: "Countdown notices handed to the transport.",
		}),
		StaleFires: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_stale_fires_total",
			Help: "Timer fires dropped because the request was superseded.",
		}),
		DataUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_data_unavailable_total",
			Help: "Analyses that fell back to WAIT because price data was missing.",
		}),
		ComputeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_compute_failures_total",
			Help: "Analyses that failed unexpectedly (non-finite indicators, panics).",
		}),
		EmitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalbot_emit_failures_total",
			Help: "Outbound events the transport failed to deliver.",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signalbot_analysis_seconds",
			Help:    "Time to fetch prices and compute a signal.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.InboundEvents,
			m.InvalidTransitions,
			m.SignalsDelivered,
			m.CountdownsSent,
			m.StaleFires,
			m.DataUnavailable,
			m.ComputeFailures,
			m.EmitFailures,
			m.AnalysisDuration,
		)
	}
	return m
}

// RegisterSessions exposes the live session count as a gauge.
func RegisterSessions(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "signalbot_sessions",
		Help: "Sessions held in memory.",
	}, func() float64 { return float64(count()) }))
}
