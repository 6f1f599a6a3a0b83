// Package metrics holds the Prometheus collectors of the assessment service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mockdrive",
		Name:      "active_sessions",
		Help:      "Sessions with a running event loop",
	})

	StateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mockdrive",
		Name:      "state_transitions_total",
		Help:      "Round state machine transitions",
	}, []string{"from", "to"})

	ViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mockdrive",
		Name:      "violations_total",
		Help:      "Integrity violations accepted after debouncing",
	}, []string{"type"})

	TerminationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mockdrive",
		Name:      "terminations_total",
		Help:      "Sessions terminated after reaching the warning limit",
	})

	TimerExpiriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mockdrive",
		Name:      "timer_expiries_total",
		Help:      "Rounds closed by their countdown reaching zero",
	})

	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mockdrive",
		Name:      "submissions_total",
		Help:      "Round submissions by kind and outcome",
	}, []string{"kind", "outcome"})

	ScoringDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mockdrive",
		Name:      "scoring_duration_seconds",
		Help:      "Time spent scoring a round, including judge and evaluator calls",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind"})

	OutboxPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mockdrive",
		Name:      "outbox_published_total",
		Help:      "Outbox events relayed to the bus",
	}, []string{"event_type", "outcome"})

	GatewayConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mockdrive",
		Name:      "gateway_connections",
		Help:      "Open candidate websocket connections",
	})

	NoticesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mockdrive",
		Name:      "notices_dropped_total",
		Help:      "Notices dropped because a connection or the broadcast queue was full",
	})

	OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mockdrive",
		Name:      "outbox_pending_events",
		Help:      "Outbox rows not yet relayed, as of the last health check",
	})

	OutboxHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mockdrive",
		Name:      "outbox_healthy",
		Help:      "1 when the last outbox health check passed",
	})
)
