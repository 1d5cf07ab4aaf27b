package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ticketpay/internal/domain"
)

type paymentRepository struct {
	DB *sql.DB
}

// NewPaymentRepository returns the payment record store keyed by reference.
func NewPaymentRepository(db *sql.DB) domain.PaymentRepository {
	return &paymentRepository{
		DB: db,
	}
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	query := `
		INSERT INTO payments (reference, event_id, ticket_type_id, quantity, amount, currency, buyer_email, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		p.Reference, p.EventID, p.TicketTypeID, p.Quantity, p.Amount, p.Currency, p.BuyerEmail, p.Status, metadata, p.CreatedAt).
		Scan(&p.ID)
}

func (r *paymentRepository) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	query := `
		SELECT id, reference, event_id, ticket_type_id, quantity, amount, currency, buyer_email, status,
		       gateway_transaction_id, channel, metadata, registration_id, created_at, verified_at, paid_at
		FROM payments
		WHERE reference = $1
	`
	return scanPayment(r.DB.QueryRowContext(ctx, query, reference))
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	p := &domain.Payment{}
	var (
		gatewayTxID    sql.NullString
		channel        sql.NullString
		metadata       []byte
		registrationID sql.NullString
		verifiedAt     sql.NullTime
		paidAt         sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Reference, &p.EventID, &p.TicketTypeID, &p.Quantity, &p.Amount, &p.Currency,
		&p.BuyerEmail, &p.Status, &gatewayTxID, &channel, &metadata, &registrationID, &p.CreatedAt, &verifiedAt, &paidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	p.GatewayTransactionID = gatewayTxID.String
	p.Channel = channel.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if registrationID.Valid {
		p.RegistrationID = &registrationID.String
	}
	if verifiedAt.Valid {
		p.VerifiedAt = &verifiedAt.Time
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	return p, nil
}
