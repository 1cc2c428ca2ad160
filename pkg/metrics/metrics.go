package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "doctrack"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of admitted requests by scope and limiter backend."},
		[]string{"scope", "backend"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by scope and limiter backend."},
		[]string{"scope", "backend"},
	)
	RemindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "reminders_sent_total", Help: "Number of reminder messages handed to a sink by mode."},
		[]string{"mode"},
	)
	ReminderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "reminder_dispatch_failures_total", Help: "Number of reminder batches aborted by a sink failure, by mode."},
		[]string{"mode"},
	)
	DocumentsRenewed = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "documents_renewed_total", Help: "Number of successful renewals."},
	)
)

// RegisterCollectors registers every doctrack collector on reg.
func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(RemindersSent)
	reg.MustRegister(ReminderFailures)
	reg.MustRegister(DocumentsRenewed)
}

// ObserveRateLimit counts one admission decision.
func ObserveRateLimit(scope, backend string, allowed bool) {
	if allowed {
		RateLimitAllowed.WithLabelValues(scope, backend).Inc()
		return
	}
	RateLimitRejected.WithLabelValues(scope, backend).Inc()
}
