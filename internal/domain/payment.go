package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the closed set of payment lifecycle states.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// Terminal reports whether the status is final. A terminal payment is
// immutable except for informational fields.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

// PaymentMetadata carries organizer/customer fields attached at
// initialization. It is serialized to the metadata column exactly once at
// the repository boundary and travels with the gateway transaction.
type PaymentMetadata struct {
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
}

// Payment is a single purchase attempt against a ticket tier, keyed by a
// globally unique reference generated at initialization.
// swagger:model Payment
type Payment struct {
	ID                   string          `json:"id"`
	Reference            string          `json:"reference"`
	EventID              string          `json:"event_id"`
	TicketTypeID         string          `json:"ticket_type_id"`
	Quantity             int             `json:"quantity"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	BuyerEmail           string          `json:"buyer_email"`
	Status               PaymentStatus   `json:"status"`
	GatewayTransactionID string          `json:"gateway_transaction_id,omitempty"`
	Channel              string          `json:"channel,omitempty"`
	Metadata             PaymentMetadata `json:"metadata"`
	RegistrationID       *string         `json:"registration_id,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	VerifiedAt           *time.Time      `json:"verified_at,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
}

// NewPayment returns a pending Payment for the given tier purchase.
// ID is set by the repository on create.
func NewPayment(reference, eventID, ticketTypeID string, quantity int, amount decimal.Decimal, currency, buyerEmail string, metadata PaymentMetadata, createdAt time.Time) *Payment {
	return &Payment{
		Reference:    reference,
		EventID:      eventID,
		TicketTypeID: ticketTypeID,
		Quantity:     quantity,
		Amount:       amount,
		Currency:     currency,
		BuyerEmail:   buyerEmail,
		Status:       PaymentPending,
		Metadata:     metadata,
		CreatedAt:    createdAt,
	}
}

// PaymentRepository defines storage operations for payments. Terminal rows
// are never mutated through this interface; all state transitions go
// through the ReconciliationStore.
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByReference(ctx context.Context, reference string) (*Payment, error)
}

// ReconcileOutcome is the result of applying a reported gateway outcome to
// a payment. Both reconciliation triggers (client verify and webhook)
// receive the same outcome shape, so the loser of the race can answer with
// the winner's terminal state.
type ReconcileOutcome struct {
	Payment      *Payment
	Registration *EventRegistration

	// Duplicate is true when the payment was already terminal and this call
	// performed no side effects.
	Duplicate bool

	// InventoryShortage is true when a confirmed charge could not be
	// fulfilled because the tier sold out after initialization. The payment
	// is failed and requires a manual refund.
	InventoryShortage bool
}

// ReconciliationStore applies a terminal transition as one atomic unit of
// work: the pending->terminal claim, the inventory reserve, and the
// registration insert either all commit or all roll back. The claim is a
// conditional update on status='pending'; zero affected rows means another
// trigger already reconciled the payment and the existing terminal state is
// returned with Duplicate set.
type ReconciliationStore interface {
	Apply(ctx context.Context, reference string, target PaymentStatus, charge *ChargeData) (*ReconcileOutcome, error)
}

// PaymentInitialization is returned to the client after the gateway accepts
// a transaction initialization.
// swagger:model PaymentInitialization
type PaymentInitialization struct {
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url"`
	AccessCode       string          `json:"access_code"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
}

// InitializePaymentRequest is the service-level input for starting a
// purchase.
type InitializePaymentRequest struct {
	EventID        string
	TicketTypeID   string
	TicketQuantity int
	CustomerEmail  string
	CustomerName   string
	CustomerPhone  string
}

// PaymentSnapshot is a read-only view of a payment plus its linked
// registration, if any.
// swagger:model PaymentSnapshot
type PaymentSnapshot struct {
	Payment      *Payment           `json:"payment"`
	Registration *EventRegistration `json:"registration,omitempty"`
}

// WebhookResult reports what a verified webhook delivery did. Ignored is
// true for event types the engine does not act on; the transport still
// acknowledges them with 200 so the gateway stops retrying.
type WebhookResult struct {
	Event   string
	Ignored bool
	Outcome *ReconcileOutcome
}

// GatewayClientConfig is the public client-SDK configuration.
// swagger:model GatewayClientConfig
type GatewayClientConfig struct {
	PublicKey string `json:"public_key"`
	Currency  string `json:"currency"`
}

/// PaymentService drives the payment lifecycle: initialization, the two
// reconciliation triggers, and read-only status.
type PaymentService interface {
	Initialize(ctx context.Context, req *InitializePaymentRequest) (*PaymentInitialization, error)
	// Verify is the client-initiated reconciliation trigger. It queries the
	// gateway by reference and applies the reported outcome. Safe to call
	// any number of times.
	Verify(ctx context.Context, reference string) (*ReconcileOutcome, error)
	// HandleWebhook is the gateway-initiated trigger. The signature is
	// checked against the raw body bytes before any parsing; deliveries are
	// at-least-once and duplicates reconcile to a no-op.
	HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error)
	Status(ctx context.Context, reference string) (*PaymentSnapshot, error)
	ClientConfig() *GatewayClientConfig
}
