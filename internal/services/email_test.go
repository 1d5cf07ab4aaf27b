package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketpay/internal/domain"
)

type fakeRenderer struct {
	err      error
	lastName string
	lastData any
}

func (f *fakeRenderer) Render(templateName string, data any) (string, string, string, error) {
	f.lastName = templateName
	f.lastData = data
	if f.err != nil {
		return "", "", "", f.err
	}
	return "Your tickets", "<p>tickets</p>", "tickets", nil
}

type fakeMailer struct {
	err         error
	lastTo      string
	lastSubject string
	lastHTML    string
	lastText    string
}

func (f *fakeMailer) Send(to, subject, html, text string) error {
	f.lastTo = to
	f.lastSubject = subject
	f.lastHTML = html
	f.lastText = text
	return f.err
}

func TestEmailService_SendTicketConfirmation(t *testing.T) {
	data := &domain.TicketConfirmationEmailData{
		Email:            "buyer@example.com",
		EventID:          "ev-1",
		TicketQuantity:   2,
		TotalAmount:      "10000.00",
		Currency:         "NGN",
		PaymentReference: "ref-1",
		Credential:       "EVT-abc",
	}

	t.Run("renders the ticket template and sends", func(t *testing.T) {
		renderer := &fakeRenderer{}
		mailer := &fakeMailer{}
		svc := NewEmailService(renderer, mailer, testLogger())

		require.NoError(t, svc.SendTicketConfirmation(context.Background(), data))
		assert.Equal(t, "ticket_confirmation", renderer.lastName)
		assert.Equal(t, "buyer@example.com", mailer.lastTo)
		assert.Equal(t, "Your tickets", mailer.lastSubject)
		assert.NotEmpty(t, mailer.lastHTML)
	})

	t.Run("render failure does not reach the mailer", func(t *testing.T) {
		renderer := &fakeRenderer{err: errors.New("template missing")}
		mailer := &fakeMailer{}
		svc := NewEmailService(renderer, mailer, testLogger())

		require.Error(t, svc.SendTicketConfirmation(context.Background(), data))
		assert.Empty(t, mailer.lastTo)
	})

	t.Run("mailer failure surfaces", func(t *testing.T) {
		renderer := &fakeRenderer{}
		mailer := &fakeMailer{err: errors.New("ses throttled")}
		svc := NewEmailService(renderer, mailer, testLogger())

		require.Error(t, svc.SendTicketConfirmation(context.Background(), data))
	})
}
