package domain

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"
)

// AttendanceStatus is the closed set of attendance states.
type AttendanceStatus string

const (
	AttendanceRegistered AttendanceStatus = "registered"
	AttendanceCheckedIn  AttendanceStatus = "checked_in"
	AttendanceCheckedOut AttendanceStatus = "checked_out"
)

// EventRegistration is a confirmed ticket purchase. Created only as a side
// effect of a payment's pending->success transition; one registration maps
// to exactly one payment.
// swagger:model EventRegistration
type EventRegistration struct {
	ID               string           `json:"id"`
	EventID          string           `json:"event_id"`
	AttendeeEmail    string           `json:"attendee_email"`
	TicketQuantity   int              `json:"ticket_quantity"`
	TotalAmount      decimal.Decimal  `json:"total_amount"`
	PaymentReference string           `json:"payment_reference"`
	// CheckInCredential is the opaque QR payload consumed at the door. It
	// encodes no mutable state; status is always looked up by credential.
	CheckInCredential string           `json:"check_in_credential"`
	AttendanceStatus  AttendanceStatus `json:"attendance_status"`
	CheckInTime       *time.Time       `json:"check_in_time,omitempty"`
	CheckOutTime      *time.Time       `json:"check_out_time,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// NewCheckInCredential mints a unique, non-guessable scan credential.
// Random rather than derived from the registration ID so credentials cannot
// be enumerated from sequential identifiers.
func NewCheckInCredential() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return "EVT-" + hex.EncodeToString(buf)
}

// EventRegistrationRepository defines storage operations for registrations.
// Registration creation lives in the ReconciliationStore so it commits
// atomically with the payment transition.
type EventRegistrationRepository interface {
	GetByID(ctx context.Context, id string) (*EventRegistration, error)
	GetByCredential(ctx context.Context, eventID, credential string) (*EventRegistration, error)
	// MarkCheckedIn transitions the registration to checked_in unless it is
	// already checked in. Returns false when the row was already checked_in
	// (a duplicate scan); check_in_time is not advanced in that case.
	MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error)
	// MarkCheckedOut transitions the registration to checked_out unless it
	// already is. On a transition it returns the status the update replaced,
	// observed atomically with the update, and true; false marks a duplicate
	// checkout. Callers must derive "was this a forced checkout" from the
	// returned status, never from an earlier read.
	MarkCheckedOut(ctx context.Context, id string, at time.Time) (AttendanceStatus, bool, error)
}
