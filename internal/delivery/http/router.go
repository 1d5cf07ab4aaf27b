package http

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"ticketpay/internal/delivery/http/controllers"
	"ticketpay/internal/delivery/http/middleware"
	"ticketpay/internal/domain"
)

// NewRouter initializes the HTTP router with all application routes.
// Payment and attendance endpoints require a bearer token. Two exceptions:
// the webhook authenticates itself by signature over the raw body, and the
// client config endpoint is the unauthenticated bootstrap for checkout SDKs.
func NewRouter(
	paymentController *controllers.PaymentController,
	attendanceController *controllers.AttendanceController,
	verifier domain.TokenVerifier,
	logger *slog.Logger,
) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(verifier, logger)

	// Payments
	mux.HandleFunc("POST /payments/initialize", auth(paymentController.Initialize))
	mux.HandleFunc("POST /payments/verify/{reference}", auth(paymentController.Verify))
	mux.HandleFunc("GET /payments/status/{reference}", auth(paymentController.Status))
	mux.HandleFunc("POST /payments/webhook", paymentController.Webhook)
	mux.HandleFunc("GET /payments/config", paymentController.Config)

	// Attendance
	mux.HandleFunc("POST /events/{eventID}/attendance/scan", auth(attendanceController.Scan))
	mux.HandleFunc("POST /events/{eventID}/attendance/manual", auth(attendanceController.ManualCheckIn))
	mux.HandleFunc("POST /events/{eventID}/attendance/checkout", auth(attendanceController.CheckOut))
	mux.HandleFunc("GET /events/{eventID}/attendance/history", auth(attendanceController.History))

	// Operational
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
