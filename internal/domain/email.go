package domain

import "context"

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// TicketConfirmationEmailData holds data for the ticket confirmation email
// sent after a registration is materialized.
type TicketConfirmationEmailData struct {
	Email            string
	EventID          string
	TicketQuantity   int
	TotalAmount      string
	Currency         string
	PaymentReference string
	Credential       string
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendTicketConfirmation(ctx context.Context, data *TicketConfirmationEmailData) error
}
