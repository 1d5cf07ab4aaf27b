package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"ticketpay/internal/domain"
)

func claimRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "reference", "event_id", "ticket_type_id", "quantity", "amount", "currency", "buyer_email", "metadata", "created_at",
	})
}

func successCharge() *domain.ChargeData {
	paidAt := time.Date(2026, 3, 1, 12, 4, 0, 0, time.UTC)
	return &domain.ChargeData{
		Status:        "success",
		Reference:     "ref-1",
		AmountMinor:   1_000_000,
		Currency:      "NGN",
		PaidAt:        &paidAt,
		Channel:       "card",
		TransactionID: "812345",
	}
}

func TestReconciliationStore_Apply_Success(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE payments`).
		WithArgs("ref-1", string(domain.PaymentSuccess), "812345", "card", sqlmock.AnyArg(), sqlmock.AnyArg(), string(domain.PaymentPending)).
		WillReturnRows(claimRows().AddRow(
			"pay-1", "ref-1", "ev-1", "tt-1", 2, "10000.00", "NGN", "buyer@example.com",
			[]byte(`{"customer_name":"Ada"}`), createdAt))
	mock.ExpectExec(`UPDATE ticket_types`).
		WithArgs("tt-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO event_registrations`).
		WithArgs("ev-1", "buyer@example.com", 2, sqlmock.AnyArg(), "ref-1",
			sqlmock.AnyArg(), string(domain.AttendanceRegistered), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("reg-1"))
	mock.ExpectExec(`UPDATE payments SET registration_id`).
		WithArgs("pay-1", "reg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewReconciliationStore(db)
	outcome, err := store.Apply(ctx, "ref-1", domain.PaymentSuccess, successCharge())
	require.NoError(t, err)
	require.False(t, outcome.Duplicate)
	require.False(t, outcome.InventoryShortage)
	require.Equal(t, domain.PaymentSuccess, outcome.Payment.Status)
	require.Equal(t, "812345", outcome.Payment.GatewayTransactionID)
	require.NotNil(t, outcome.Payment.RegistrationID)

	require.NotNil(t, outcome.Registration)
	require.Equal(t, "reg-1", outcome.Registration.ID)
	require.Equal(t, "buyer@example.com", outcome.Registration.AttendeeEmail)
	require.Contains(t, outcome.Registration.CheckInCredential, "EVT-")
	require.Equal(t, domain.AttendanceRegistered, outcome.Registration.AttendanceStatus)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciliationStore_Apply_Failed(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// A failed target claims the payment and commits without touching
	// inventory or registrations.
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE payments`).
		WithArgs("ref-1", string(domain.PaymentFailed), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), string(domain.PaymentPending)).
		WillReturnRows(claimRows().AddRow(
			"pay-1", "ref-1", "ev-1", "tt-1", 2, "10000.00", "NGN", "buyer@example.com",
			[]byte(`{}`), createdAt))
	mock.ExpectCommit()

	store := NewReconciliationStore(db)
	outcome, err := store.Apply(ctx, "ref-1", domain.PaymentFailed, &domain.ChargeData{Status: "failed", Reference: "ref-1"})
	require.NoError(t, err)
	require.Equal(t, domain.PaymentFailed, outcome.Payment.Status)
	require.Nil(t, outcome.Registration)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciliationStore_Apply_DuplicateReturnsCommittedState(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verifiedAt := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The claim misses: another trigger already reconciled. The store rolls
	// back and re-reads the committed terminal state plus its registration.
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE payments`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()
	mock.ExpectQuery(`SELECT id, reference, event_id, ticket_type_id`).
		WithArgs("ref-1").
		WillReturnRows(paymentRows().AddRow(
			"pay-1", "ref-1", "ev-1", "tt-1", 2, "10000.00", "NGN", "buyer@example.com",
			"success", "812345", "card", []byte(`{}`), "reg-1", createdAt, verifiedAt, verifiedAt))
	mock.ExpectQuery(`SELECT id, event_id, attendee_email`).
		WithArgs("reg-1").
		WillReturnRows(registrationRows().AddRow(
			"reg-1", "ev-1", "buyer@example.com", 2, "10000.00", "ref-1",
			"EVT-abc", "registered", nil, nil, createdAt))

	store := NewReconciliationStore(db)
	outcome, err := store.Apply(ctx, "ref-1", domain.PaymentSuccess, successCharge())
	require.NoError(t, err)
	require.True(t, outcome.Duplicate)
	require.Equal(t, domain.PaymentSuccess, outcome.Payment.Status)
	require.NotNil(t, outcome.Registration)
	require.Equal(t, "EVT-abc", outcome.Registration.CheckInCredential)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciliationStore_Apply_InventoryShortage(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The charge is confirmed but the tier sold out: the claim is downgraded
	// to failed in the same transaction and the shortage flagged.
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE payments`).
		WillReturnRows(claimRows().AddRow(
			"pay-1", "ref-1", "ev-1", "tt-1", 2, "10000.00", "NGN", "buyer@example.com",
			[]byte(`{}`), createdAt))
	mock.ExpectExec(`UPDATE ticket_types`).
		WithArgs("tt-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE payments SET status`).
		WithArgs("pay-1", string(domain.PaymentFailed)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewReconciliationStore(db)
	outcome, err := store.Apply(ctx, "ref-1", domain.PaymentSuccess, successCharge())
	require.NoError(t, err)
	require.True(t, outcome.InventoryShortage)
	require.Equal(t, domain.PaymentFailed, outcome.Payment.Status)
	require.Nil(t, outcome.Registration)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconciliationStore_Apply_UnknownReference(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE payments`).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()
	mock.ExpectQuery(`SELECT id, reference, event_id, ticket_type_id`).
		WithArgs("ref-unknown").
		WillReturnError(sql.ErrNoRows)

	store := NewReconciliationStore(db)
	_, err = store.Apply(ctx, "ref-unknown", domain.PaymentSuccess, successCharge())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReconciliationStore_Apply_RejectsNonTerminalTarget(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewReconciliationStore(db)
	_, err = store.Apply(context.Background(), "ref-1", domain.PaymentPending, nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReconciliationStore_Apply_RegistrationInsertFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// A failure after the reserve rolls the whole transaction back, which
	// releases the reservation and leaves the payment pending for a retry.
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE payments`).
		WillReturnRows(claimRows().AddRow(
			"pay-1", "ref-1", "ev-1", "tt-1", 2, "10000.00", "NGN", "buyer@example.com",
			[]byte(`{}`), createdAt))
	mock.ExpectExec(`UPDATE ticket_types`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO event_registrations`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	store := NewReconciliationStore(db)
	_, err = store.Apply(ctx, "ref-1", domain.PaymentSuccess, successCharge())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
