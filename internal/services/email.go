package services

import (
	"context"
	"fmt"
	"log/slog"

	"ticketpay/internal/domain"
)

type emailService struct {
	renderer domain.EmailTemplateRenderer
	mailer   domain.Mailer
	logger   *slog.Logger
}

// NewEmailService creates the domain email service.
func NewEmailService(renderer domain.EmailTemplateRenderer, mailer domain.Mailer, logger *slog.Logger) domain.EmailService {
	return &emailService{
		renderer: renderer,
		mailer:   mailer,
		logger:   logger,
	}
}

func (s *emailService) SendTicketConfirmation(ctx context.Context, data *domain.TicketConfirmationEmailData) error {
	subject, html, text, err := s.renderer.Render("ticket_confirmation", data)
	if err != nil {
		return fmt.Errorf("render ticket confirmation: %w", err)
	}
	if err := s.mailer.Send(data.Email, subject, html, text); err != nil {
		return fmt.Errorf("send ticket confirmation: %w", err)
	}
	s.logger.InfoContext(ctx, "ticket confirmation sent", "to", data.Email, "reference", data.PaymentReference)
	return nil
}
