package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TicketType is a finite-inventory ticket tier for an event.
// Invariant: 0 <= quantity_sold <= quantity_available, enforced by the
// ledger's conditional updates and backed by a schema CHECK constraint.
// swagger:model TicketType
type TicketType struct {
	ID                string          `json:"id"`
	EventID           string          `json:"event_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Currency          string          `json:"currency"`
	QuantityAvailable int             `json:"quantity_available"`
	QuantitySold      int             `json:"quantity_sold"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Remaining returns the units still purchasable. Advisory only: the
// authoritative check is the ledger's conditional reserve.
func (t *TicketType) Remaining() int {
	return t.QuantityAvailable - t.QuantitySold
}

// TicketTypeRepository is the ticket inventory ledger. Reserve and Release
// are the only writers of quantity_sold; both are single conditional
// updates so concurrent callers can never both succeed past the available
// count.
type TicketTypeRepository interface {
	GetByID(ctx context.Context, id string) (*TicketType, error)
	// Reserve increments quantity_sold by quantity only if the result stays
	// within quantity_available. Returns ErrInsufficientInventory when the
	// tier cannot cover the request.
	Reserve(ctx context.Context, ticketTypeID string, quantity int) error
	// Release is the compensating decrement for a reservation whose
	// downstream steps failed irrecoverably.
	Release(ctx context.Context, ticketTypeID string, quantity int) error
}
