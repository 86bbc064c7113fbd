package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clubledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubledger_reconciliations_total",
			Help: "Total number of student balance reconciliations",
		},
		[]string{"trigger", "outcome"},
	)

	ReconciliationConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clubledger_reconciliation_conflicts_total",
			Help: "Total number of reconciliation lock conflicts",
		},
	)

	PaymentsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubledger_payments_recorded_total",
			Help: "Total number of payments recorded",
		},
		[]string{"method", "status"},
	)

	ObligationsGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clubledger_obligations_generated_total",
			Help: "Total number of fee obligations generated from assignments",
		},
	)

	ObligationsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clubledger_obligations_by_status",
			Help: "Number of obligations per payment status",
		},
		[]string{"status"},
	)

	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubledger_notifications_sent_total",
			Help: "Total number of billing notifications sent",
		},
		[]string{"type", "status"},
	)

	NotificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clubledger_notification_queue_length",
			Help: "Current length of the billing notification queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordReconciliation(trigger, outcome string) {
	ReconciliationsTotal.WithLabelValues(trigger, outcome).Inc()
}

func RecordReconciliationConflict() {
	ReconciliationConflictsTotal.Inc()
}

func RecordPayment(method, status string) {
	PaymentsRecordedTotal.WithLabelValues(method, status).Inc()
}

func RecordObligationGenerated() {
	ObligationsGeneratedTotal.Inc()
}

func RecordNotification(notifType, status string) {
	NotificationsSentTotal.WithLabelValues(notifType, status).Inc()
}
