package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livequiz"

var (
	// SessionTransitions counts controller actions by outcome (changed, noop, rejected, failed).
	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Session controller actions by action and outcome.",
	}, []string{"action", "outcome"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Live sessions held in the registry.",
	})

	AnswersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_submitted_total",
		Help:      "Accepted answer submissions by correctness.",
	}, []string{"correct"})

	ResultsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "results_created_total",
		Help:      "Session results written for participants finishing a quiz.",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Open websocket connections.",
	})

	WSMessagesThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_messages_throttled_total",
		Help:      "Inbound websocket messages rejected by the rate limiter.",
	})

	LeaderboardPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leaderboard_publish_failures_total",
		Help:      "Leaderboard updates that could not be published.",
	})
)

// Outcome labels.
const (
	OutcomeChanged  = "changed"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)
