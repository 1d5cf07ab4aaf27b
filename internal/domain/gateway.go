package domain

import (
	"context"
	"time"
)

// TransactionRequest is the input for initializing a hosted-payment
// transaction with the gateway. AmountMinor is the integer minor-unit
// amount produced by ToMinorUnits.
type TransactionRequest struct {
	Email       string
	AmountMinor int64
	Reference   string
	Currency    string
	CallbackURL string
	Metadata    PaymentMetadata
}

// TransactionAuthorization is the gateway's answer to a successful
// initialization: where to send the payer and the access code for inline
// checkout SDKs.
type TransactionAuthorization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// ChargeData is the gateway's view of a charge, as returned by
// verification or carried in a webhook payload.
type ChargeData struct {
	Status        string
	Reference     string
	AmountMinor   int64
	Currency      string
	PaidAt        *time.Time
	Channel       string
	TransactionID string
}

// Success reports whether the gateway considers the charge settled.
func (c *ChargeData) Success() bool {
	return c != nil && c.Status == "success"
}

// WebhookEvent is a parsed gateway push notification. Charge is set for
// charge-related events; the payload is self-sufficient and reconciliation
// must not need a second gateway round trip.
type WebhookEvent struct {
	Type   string
	Charge *ChargeData
}

// PaymentGateway wraps the external payment processor. Implementations are
// pure request/response and hold no local state.
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req *TransactionRequest) (*TransactionAuthorization, error)
	// VerifyTransaction fetches the current charge state by reference. It is
	// idempotent and side-effect-free against the gateway.
	VerifyTransaction(ctx context.Context, reference string) (*ChargeData, error)
	// VerifyWebhookSignature checks the keyed hash of the exact raw request
	// bytes against the signature header. Must run before the body is
	// parsed; parsing can alter the byte-for-byte representation.
	VerifyWebhookSignature(body []byte, signature string) bool
	// ParseWebhookEvent decodes a signature-verified webhook body.
	ParseWebhookEvent(body []byte) (*WebhookEvent, error)
}
