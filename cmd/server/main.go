package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"ticketpay/config"
	_ "ticketpay/docs"
	"ticketpay/internal/adapters/auth"
	"ticketpay/internal/adapters/email"
	"ticketpay/internal/adapters/paystack"
	delivery "ticketpay/internal/delivery/http"
	"ticketpay/internal/delivery/http/controllers"
	"ticketpay/internal/delivery/http/middleware"
	"ticketpay/internal/repository/postgres"
	"ticketpay/internal/services"
)

// @title TicketPay API
// @version 1.0
// @description Payment reconciliation and ticket inventory engine for event registration.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := config.NewLogger()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("ping database", "err", err)
		os.Exit(1)
	}

	// Repositories
	paymentRepo := postgres.NewPaymentRepository(db)
	ticketRepo := postgres.NewTicketTypeRepository(db)
	registrationRepo := postgres.NewRegistrationRepository(db)
	attendanceLogRepo := postgres.NewAttendanceLogRepository(db)
	reconciliationStore := postgres.NewReconciliationStore(db)

	// Adapters
	gateway := paystack.NewClient(paystack.Config{
		SecretKey: cfg.PaystackSecretKey,
		BaseURL:   cfg.PaystackBaseURL,
	}, nil)
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:          cfg.Email.SESRegion,
			AccessKeyID:     cfg.Email.SESAccessKeyID,
			SecretAccessKey: cfg.Email.SESSecretAccessKey,
		},
	}, logger)
	if err != nil {
		logger.Error("create mailer", "err", err)
		os.Exit(1)
	}

	// Services
	emailService := services.NewEmailService(email.NewTemplateRenderer(), mailer, logger)
	paymentService := services.NewPaymentService(
		gateway, paymentRepo, ticketRepo, registrationRepo, reconciliationStore,
		emailService, logger,
		cfg.PaystackPublicKey, cfg.Currency, cfg.CallbackURL,
	)
	attendanceService := services.NewAttendanceService(registrationRepo, attendanceLogRepo, logger)

	// HTTP
	paymentController := controllers.NewPaymentController(logger, paymentService)
	attendanceController := controllers.NewAttendanceController(logger, attendanceService)
	mux := delivery.NewRouter(paymentController, attendanceController, verifier, logger)

	handler := middleware.LoggingMiddleware(logger, mux)
	handler = middleware.CORS(cfg.CORSAllowedOrigins, handler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
