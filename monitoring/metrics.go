package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsInitialized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketpay_payments_initialized_total",
			Help: "Total payment transactions initialized with the gateway",
		},
	)

	reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketpay_reconciliations_total",
			Help: "Total reconcile calls by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	inventoryRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketpay_inventory_rejections_total",
			Help: "Confirmed charges failed because the tier sold out; each needs a manual refund",
		},
	)

	webhookSignatureFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketpay_webhook_signature_failures_total",
			Help: "Webhook deliveries rejected for a bad signature",
		},
	)

	attendanceActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketpay_attendance_actions_total",
			Help: "Check-in and check-out attempts by action and result",
		},
		[]string{"action", "result"},
	)
)

// TrackPaymentInitialized counts a gateway-accepted initialization.
func TrackPaymentInitialized() {
	paymentsInitialized.Inc()
}

// TrackReconciliation counts one reconcile call. Outcome is the resulting
// payment status, or "duplicate" when the call was a no-op.
func TrackReconciliation(trigger, outcome string) {
	reconciliations.WithLabelValues(trigger, outcome).Inc()
}

// TrackInventoryRejection counts a confirmed charge forced to failed by a
// sold-out tier.
func TrackInventoryRejection() {
	inventoryRejections.Inc()
}

// TrackWebhookSignatureFailure counts a rejected webhook delivery.
func TrackWebhookSignatureFailure() {
	webhookSignatureFailures.Inc()
}

// TrackAttendance counts a check-in/check-out attempt. Result is "ok",
// "duplicate", or "forced".
func TrackAttendance(action, result string) {
	attendanceActions.WithLabelValues(action, result).Inc()
}
