package domain

import (
	"context"
	"time"
)

// AttendanceAction is the kind of attendance transition being logged.
type AttendanceAction string

const (
	ActionCheckIn  AttendanceAction = "check_in"
	ActionCheckOut AttendanceAction = "check_out"
)

// CheckInMethod records how a check-in was performed.
type CheckInMethod string

const (
	MethodQRScan CheckInMethod = "qr_scan"
	MethodManual CheckInMethod = "manual"
)

// AttendanceLog is one append-only audit entry. The log is the source of
// truth for "was this credential already used" and can be replayed to
// reconstruct a registration's status.
// swagger:model AttendanceLog
type AttendanceLog struct {
	ID             string           `json:"id"`
	RegistrationID string           `json:"registration_id"`
	Action         AttendanceAction `json:"action"`
	Method         CheckInMethod    `json:"method"`
	Actor          string           `json:"actor"`
	// Note distinguishes operator-facing variants: forced checkout of a
	// never-checked-in attendee, duplicate checkout attempts.
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AttendanceLogRepository defines storage for the append-only audit trail.
type AttendanceLogRepository interface {
	Append(ctx context.Context, entry *AttendanceLog) error
	ListByEventID(ctx context.Context, eventID string) ([]*AttendanceLog, error)
}

// CheckInResult reports a check-in attempt. Duplicate is true for a repeat
// scan of an already-checked-in registration; the existing check-in time is
// returned unchanged so door scans are harmless to repeat.
type CheckInResult struct {
	Registration *EventRegistration `json:"registration"`
	Duplicate    bool               `json:"duplicate"`
}

// CheckOutResult reports a check-out attempt. Forced marks a checkout of a
// registration that was never checked in; Duplicate marks a repeat
// checkout. Both succeed.
type CheckOutResult struct {
	Registration *EventRegistration `json:"registration"`
	Duplicate    bool               `json:"duplicate"`
	Forced       bool               `json:"forced"`
}

// AttendanceService is the door-side state machine over registrations:
// registered -> checked_in -> checked_out, with a tolerated direct
// registered -> checked_out path. Duplicate scans and checkouts are
// idempotent no-ops flagged in the result, never errors.
type AttendanceService interface {
	CheckInByCredential(ctx context.Context, eventID, credential string, actor string) (*CheckInResult, error)
	CheckInManual(ctx context.Context, eventID, registrationID string, actor string) (*CheckInResult, error)
	CheckOut(ctx context.Context, eventID, registrationID string, actor string) (*CheckOutResult, error)
	History(ctx context.Context, eventID string) ([]*AttendanceLog, error)
}
