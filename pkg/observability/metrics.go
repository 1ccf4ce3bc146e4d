package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/tendril/pkg/domain"
)

// Metrics holds the Prometheus collectors updated by pass lifecycle events.
type Metrics struct {
	Passes            *prometheus.CounterVec
	PassDuration      prometheus.Histogram
	NodeUpdates       *prometheus.CounterVec
	Invocations       *prometheus.CounterVec
	CallbackFailures  *prometheus.CounterVec
	Entries           *prometheus.GaugeVec
	ArtifactConflicts prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg. A nil reg skips registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tendril_passes_total",
				Help: "Total number of passes by outcome",
			},
			[]string{"outcome"},
		),
		PassDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tendril_pass_duration_seconds",
				Help:    "Duration of passes",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		NodeUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tendril_node_updates_total",
				Help: "Total number of node table updates",
			},
			[]string{"node", "kind"},
		),
		Invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tendril_callback_invocations_total",
				Help: "Total number of user callback invocations",
			},
			[]string{"node"},
		),
		CallbackFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tendril_callback_failures_total",
				Help: "Total number of failed user callbacks",
			},
			[]string{"node"},
		),
		Entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tendril_entries",
				Help: "Entries produced by a node in the last pass, by state",
			},
			[]string{"node", "state"},
		),
		ArtifactConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tendril_artifact_conflicts_total",
				Help: "Total number of generated texts dropped because their hint name was taken",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Passes, m.PassDuration, m.NodeUpdates, m.Invocations,
			m.CallbackFailures, m.Entries, m.ArtifactConflicts)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPassEnd: func(_ context.Context, e *domain.PassEvent) {
			outcome := "ok"
			switch {
			case e.Canceled:
				outcome = "canceled"
			case e.Err != nil:
				outcome = "error"
			}
			m.Passes.WithLabelValues(outcome).Inc()
			m.PassDuration.Observe(e.Duration.Seconds())
		},
		OnNodeUpdate: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeUpdates.WithLabelValues(e.NodeName, string(e.Kind)).Inc()
			if e.Invocations > 0 {
				m.Invocations.WithLabelValues(e.NodeName).Add(float64(e.Invocations))
			}
			for _, s := range domain.AllStates {
				m.Entries.WithLabelValues(e.NodeName, s.String()).Set(float64(e.Counts[s]))
			}
		},
		OnCallbackFailed: func(_ context.Context, e *domain.CallbackEvent) {
			m.CallbackFailures.WithLabelValues(e.NodeName).Inc()
		},
		OnArtifactClash: func(context.Context, *domain.Diagnostic) {
			m.ArtifactConflicts.Inc()
		},
	}
}
