package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ticketpay/internal/domain"
)

type registrationRepository struct {
	DB *sql.DB
}

// NewRegistrationRepository returns storage for event registrations.
func NewRegistrationRepository(db *sql.DB) domain.EventRegistrationRepository {
	return &registrationRepository{
		DB: db,
	}
}

const registrationColumns = `id, event_id, attendee_email, ticket_quantity, total_amount, payment_reference,
	check_in_credential, attendance_status, check_in_time, check_out_time, created_at`

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.EventRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM event_registrations WHERE id = $1`
	return scanRegistration(r.DB.QueryRowContext(ctx, query, id))
}

// GetByCredential resolves a scanned QR payload. Scoped to the event so a
// credential from one event cannot check in at another.
func (r *registrationRepository) GetByCredential(ctx context.Context, eventID, credential string) (*domain.EventRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM event_registrations WHERE event_id = $1 AND check_in_credential = $2`
	return scanRegistration(r.DB.QueryRowContext(ctx, query, eventID, credential))
}

// MarkCheckedIn performs the transition as a single conditional update.
// Zero affected rows means the registration was already checked_in; the
// caller treats that as a duplicate scan, not an error.
func (r *registrationRepository) MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE event_registrations
		SET attendance_status = $2, check_in_time = $3
		WHERE id = $1 AND attendance_status <> $2
	`
	res, err := r.DB.ExecContext(ctx, query, id, domain.AttendanceCheckedIn, at)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkCheckedOut accepts the direct registered -> checked_out path; zero
// returned rows means a duplicate checkout. The self-join reads the
// pre-update row, so the returned status is the one this transition actually
// replaced even when a check-in lands between the caller's read and the
// update.
func (r *registrationRepository) MarkCheckedOut(ctx context.Context, id string, at time.Time) (domain.AttendanceStatus, bool, error) {
	query := `
		UPDATE event_registrations AS reg
		SET attendance_status = $2, check_out_time = $3
		FROM event_registrations AS prev
		WHERE reg.id = prev.id AND reg.id = $1 AND reg.attendance_status <> $2
		RETURNING prev.attendance_status
	`
	var prior domain.AttendanceStatus
	err := r.DB.QueryRowContext(ctx, query, id, domain.AttendanceCheckedOut, at).Scan(&prior)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return prior, true, nil
}

func scanRegistration(row rowScanner) (*domain.EventRegistration, error) {
	reg := &domain.EventRegistration{}
	var (
		checkInTime  sql.NullTime
		checkOutTime sql.NullTime
	)
	err := row.Scan(&reg.ID, &reg.EventID, &reg.AttendeeEmail, &reg.TicketQuantity, &reg.TotalAmount,
		&reg.PaymentReference, &reg.CheckInCredential, &reg.AttendanceStatus, &checkInTime, &checkOutTime, &reg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if checkInTime.Valid {
		reg.CheckInTime = &checkInTime.Time
	}
	if checkOutTime.Valid {
		reg.CheckOutTime = &checkOutTime.Time
	}
	return reg, nil
}
