package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StatusTransitions counts applied membership transitions by name and outcome (applied|skipped|error).
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubhouse_status_transitions_total",
			Help: "Total number of membership status transitions evaluated",
		},
		[]string{"transition", "result"},
	)

	// NotificationsSent counts outgoing e-mails by template and result (sent|failed).
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubhouse_notifications_total",
			Help: "Total number of notification e-mails attempted",
		},
		[]string{"template", "result"},
	)

	// AutomationRuns counts trigger executions by outcome (completed|failed|skipped).
	AutomationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubhouse_automation_runs_total",
			Help: "Total number of scheduled automation trigger runs",
		},
		[]string{"trigger", "result"},
	)

	// AutomationDuration measures trigger run time.
	AutomationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clubhouse_automation_duration_seconds",
			Help:    "Scheduled automation trigger duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	// RSVPSubmissions counts attendance submissions by result (created|updated|rejected).
	RSVPSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubhouse_rsvp_submissions_total",
			Help: "Total number of RSVP submissions",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clubhouse_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
