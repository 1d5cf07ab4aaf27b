package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ticketpay/internal/domain"
)

type reconciliationStore struct {
	DB *sql.DB
}

// NewReconciliationStore returns the atomic unit of work behind
// reconcile: the pending->terminal claim, the inventory reserve, and the
// registration insert run in one transaction. Rolling back the transaction
// is what releases a reservation on a partial failure, so inventory can
// never be consumed without a success payment and a registration to show
// for it.
func NewReconciliationStore(db *sql.DB) domain.ReconciliationStore {
	return &reconciliationStore{
		DB: db,
	}
}

func (s *reconciliationStore) Apply(ctx context.Context, reference string, target domain.PaymentStatus, charge *domain.ChargeData) (*domain.ReconcileOutcome, error) {
	if !target.Terminal() {
		return nil, fmt.Errorf("%w: target status %q is not terminal", domain.ErrInvalidInput, target)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reconcile tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	claimed, err := claimPending(ctx, tx, reference, target, charge, now)
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		// Zero rows: the payment is unknown or another trigger already moved
		// it to a terminal state. Nothing was written; report the committed
		// state so the losing trigger answers with the winner's outcome.
		_ = tx.Rollback()
		return s.committedOutcome(ctx, reference)
	}

	if target == domain.PaymentFailed {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit reconcile tx: %w", err)
		}
		return &domain.ReconcileOutcome{Payment: claimed}, nil
	}

	reserved, err := reserveInTx(ctx, tx, claimed.TicketTypeID, claimed.Quantity)
	if err != nil {
		return nil, err
	}
	if !reserved {
		// The gateway confirmed the charge but the tier sold out between
		// initialization and payment completion. The payment must never be
		// marked successful when it cannot be fulfilled: downgrade the claim
		// to failed in the same transaction and surface the anomaly for a
		// manual refund.
		if _, err := tx.ExecContext(ctx, `UPDATE payments SET status = $2 WHERE id = $1`, claimed.ID, domain.PaymentFailed); err != nil {
			return nil, fmt.Errorf("downgrade payment to failed: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit reconcile tx: %w", err)
		}
		claimed.Status = domain.PaymentFailed
		return &domain.ReconcileOutcome{Payment: claimed, InventoryShortage: true}, nil
	}

	reg, err := materializeRegistration(ctx, tx, claimed, now)
	if err != nil {
		// Rollback releases the reservation and leaves the payment pending
		// so a later trigger can retry.
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE payments SET registration_id = $2 WHERE id = $1`, claimed.ID, reg.ID); err != nil {
		return nil, fmt.Errorf("link registration to payment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reconcile tx: %w", err)
	}
	claimed.RegistrationID = &reg.ID
	return &domain.ReconcileOutcome{Payment: claimed, Registration: reg}, nil
}

// claimPending is the terminal-state guard: a conditional update that only
// matches while the payment is still pending. Exactly one concurrent caller
// can win it; everyone else sees zero rows and nil is returned.
func claimPending(ctx context.Context, tx *sql.Tx, reference string, target domain.PaymentStatus, charge *domain.ChargeData, now time.Time) (*domain.Payment, error) {
	var (
		gatewayTxID sql.NullString
		channel     sql.NullString
		paidAt      sql.NullTime
	)
	if charge != nil {
		if charge.TransactionID != "" {
			gatewayTxID = sql.NullString{String: charge.TransactionID, Valid: true}
		}
		if charge.Channel != "" {
			channel = sql.NullString{String: charge.Channel, Valid: true}
		}
		if charge.PaidAt != nil {
			paidAt = sql.NullTime{Time: *charge.PaidAt, Valid: true}
		}
	}

	query := `
		UPDATE payments
		SET status = $2, gateway_transaction_id = $3, channel = $4, paid_at = $5, verified_at = $6
		WHERE reference = $1 AND status = $7
		RETURNING id, reference, event_id, ticket_type_id, quantity, amount, currency, buyer_email, metadata, created_at
	`
	p := &domain.Payment{}
	var metadata []byte
	err := tx.QueryRowContext(ctx, query, reference, target, gatewayTxID, channel, paidAt, now, domain.PaymentPending).
		Scan(&p.ID, &p.Reference, &p.EventID, &p.TicketTypeID, &p.Quantity, &p.Amount, &p.Currency, &p.BuyerEmail, &metadata, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim pending payment: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	p.Status = target
	p.GatewayTransactionID = gatewayTxID.String
	p.Channel = channel.String
	p.VerifiedAt = &now
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	return p, nil
}

func reserveInTx(ctx context.Context, tx *sql.Tx, ticketTypeID string, quantity int) (bool, error) {
	query := `
		UPDATE ticket_types
		SET quantity_sold = quantity_sold + $2, updated_at = now()
		WHERE id = $1 AND quantity_sold + $2 <= quantity_available
	`
	res, err := tx.ExecContext(ctx, query, ticketTypeID, quantity)
	if err != nil {
		return false, fmt.Errorf("reserve inventory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// materializeRegistration is the registration factory: it mints the
// check-in credential and creates the attendee-facing record. Single-caller
// invariant: only the success path invokes it, after winning the pending
// claim. It is not idempotent on its own and must not be called from
// anywhere else.
func materializeRegistration(ctx context.Context, tx *sql.Tx, p *domain.Payment, now time.Time) (*domain.EventRegistration, error) {
	reg := &domain.EventRegistration{
		EventID:           p.EventID,
		AttendeeEmail:     p.BuyerEmail,
		TicketQuantity:    p.Quantity,
		TotalAmount:       p.Amount,
		PaymentReference:  p.Reference,
		CheckInCredential: domain.NewCheckInCredential(),
		AttendanceStatus:  domain.AttendanceRegistered,
		CreatedAt:         now,
	}
	query := `
		INSERT INTO event_registrations (event_id, attendee_email, ticket_quantity, total_amount, payment_reference, check_in_credential, attendance_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := tx.QueryRowContext(ctx, query,
		reg.EventID, reg.AttendeeEmail, reg.TicketQuantity, reg.TotalAmount, reg.PaymentReference,
		reg.CheckInCredential, reg.AttendanceStatus, reg.CreatedAt).
		Scan(&reg.ID)
	if err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}
	return reg, nil
}

// committedOutcome re-reads the payment after a lost claim and returns the
// terminal state the winner committed, flagged as a duplicate.
func (s *reconciliationStore) committedOutcome(ctx context.Context, reference string) (*domain.ReconcileOutcome, error) {
	query := `
		SELECT id, reference, event_id, ticket_type_id, quantity, amount, currency, buyer_email, status,
		       gateway_transaction_id, channel, metadata, registration_id, created_at, verified_at, paid_at
		FROM payments
		WHERE reference = $1
	`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, reference))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load reconciled payment: %w", err)
	}

	outcome := &domain.ReconcileOutcome{Payment: p, Duplicate: true}
	if p.RegistrationID != nil {
		regQuery := `SELECT ` + registrationColumns + ` FROM event_registrations WHERE id = $1`
		reg, err := scanRegistration(s.DB.QueryRowContext(ctx, regQuery, *p.RegistrationID))
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("load linked registration: %w", err)
		}
		outcome.Registration = reg
	}
	return outcome, nil
}
