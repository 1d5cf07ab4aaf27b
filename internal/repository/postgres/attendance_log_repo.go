package postgres

import (
	"context"
	"database/sql"

	"ticketpay/internal/domain"
)

type attendanceLogRepository struct {
	DB *sql.DB
}

// NewAttendanceLogRepository returns the append-only attendance audit trail.
func NewAttendanceLogRepository(db *sql.DB) domain.AttendanceLogRepository {
	return &attendanceLogRepository{
		DB: db,
	}
}

func (r *attendanceLogRepository) Append(ctx context.Context, entry *domain.AttendanceLog) error {
	query := `
		INSERT INTO attendance_logs (registration_id, action, method, actor, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		entry.RegistrationID, entry.Action, entry.Method, entry.Actor, entry.Note, entry.CreatedAt).
		Scan(&entry.ID)
}

func (r *attendanceLogRepository) ListByEventID(ctx context.Context, eventID string) ([]*domain.AttendanceLog, error) {
	query := `
		SELECT l.id, l.registration_id, l.action, l.method, l.actor, l.note, l.created_at
		FROM attendance_logs l
		JOIN event_registrations reg ON reg.id = l.registration_id
		WHERE reg.event_id = $1
		ORDER BY l.created_at DESC
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.AttendanceLog
	for rows.Next() {
		entry := &domain.AttendanceLog{}
		if err := rows.Scan(&entry.ID, &entry.RegistrationID, &entry.Action, &entry.Method, &entry.Actor, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.AttendanceLog{}
	}
	return entries, nil
}
