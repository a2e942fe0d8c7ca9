// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoanRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_loan_requests_total",
			Help: "Total number of loan requests by admission outcome",
		},
		[]string{"outcome"},
	)

	SubscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_subscriptions_total",
			Help: "Total number of subscription attempts by outcome",
		},
		[]string{"outcome"},
	)

	ScoringAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_scoring_poll_attempts_total",
			Help: "Total number of score poll attempts by result",
		},
		[]string{"result"},
	)

	ScoringOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_scoring_outcomes_total",
			Help: "Total number of finished scoring rounds by final status",
		},
		[]string{"status"},
	)

	ScoringRoundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lms_scoring_round_duration_seconds",
			Help:    "Duration of a scoring round from initiation to decision",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"status"},
	)

	ScoringRoundsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lms_scoring_rounds_active",
			Help: "Number of scoring rounds currently running",
		},
	)

	DecisionNotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_decision_notifications_total",
			Help: "Total number of decision notifications by result",
		},
		[]string{"result"},
	)
)
