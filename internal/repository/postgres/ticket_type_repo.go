package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ticketpay/internal/domain"
)

type ticketTypeRepository struct {
	DB *sql.DB
}

// NewTicketTypeRepository returns the ticket inventory ledger backed by the
// ticket_types table.
func NewTicketTypeRepository(db *sql.DB) domain.TicketTypeRepository {
	return &ticketTypeRepository{
		DB: db,
	}
}

func (r *ticketTypeRepository) GetByID(ctx context.Context, id string) (*domain.TicketType, error) {
	query := `
		SELECT id, event_id, name, price, currency, quantity_available, quantity_sold, created_at, updated_at
		FROM ticket_types
		WHERE id = $1
	`
	tt := &domain.TicketType{}
	err := r.DB.QueryRowContext(ctx, query, id).
		Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.Price, &tt.Currency, &tt.QuantityAvailable, &tt.QuantitySold, &tt.CreatedAt, &tt.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return tt, nil
}

// Reserve is the check-and-increment in a single statement: concurrent
// callers contend on the row lock and the loser re-evaluates the predicate,
// so two purchases can never both succeed past the available count.
func (r *ticketTypeRepository) Reserve(ctx context.Context, ticketTypeID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
	}
	query := `
		UPDATE ticket_types
		SET quantity_sold = quantity_sold + $2, updated_at = now()
		WHERE id = $1 AND quantity_sold + $2 <= quantity_available
	`
	res, err := r.DB.ExecContext(ctx, query, ticketTypeID, quantity)
	if err != nil {
		return fmt.Errorf("reserve inventory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM ticket_types WHERE id = $1)`, ticketTypeID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrInsufficientInventory
	}
	return nil
}

// Release compensates a reservation whose downstream steps failed. The
// floor guard keeps quantity_sold from going negative.
func (r *ticketTypeRepository) Release(ctx context.Context, ticketTypeID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
	}
	query := `
		UPDATE ticket_types
		SET quantity_sold = quantity_sold - $2, updated_at = now()
		WHERE id = $1 AND quantity_sold >= $2
	`
	res, err := r.DB.ExecContext(ctx, query, ticketTypeID, quantity)
	if err != nil {
		return fmt.Errorf("release inventory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: cannot release %d units from ticket type %s", domain.ErrInvalidInput, quantity, ticketTypeID)
	}
	return nil
}
