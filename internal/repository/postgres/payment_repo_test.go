package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ticketpay/internal/domain"
)

func TestPaymentRepository_Create(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payment *domain.Payment
		mock    func(mock sqlmock.Sqlmock)
		wantID  string
		wantErr bool
	}{
		{
			name: "success",
			payment: domain.NewPayment("ref-1", "ev-1", "tt-1", 2,
				decimal.RequireFromString("10000.00"), "NGN", "buyer@example.com",
				domain.PaymentMetadata{CustomerName: "Ada"}, createdAt),
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO payments`).
					WithArgs("ref-1", "ev-1", "tt-1", 2, sqlmock.AnyArg(), "NGN", "buyer@example.com",
						domain.PaymentPending, []byte(`{"customer_name":"Ada"}`), createdAt).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("pay-uuid-1"))
			},
			wantID: "pay-uuid-1",
		},
		{
			name: "db error",
			payment: domain.NewPayment("ref-2", "ev-1", "tt-1", 1,
				decimal.RequireFromString("5000.00"), "NGN", "buyer@example.com",
				domain.PaymentMetadata{}, createdAt),
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO payments`).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.mock(mock)
			repo := NewPaymentRepository(db)
			err = repo.Create(ctx, tt.payment)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantID, tt.payment.ID)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func paymentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "reference", "event_id", "ticket_type_id", "quantity", "amount", "currency", "buyer_email",
		"status", "gateway_transaction_id", "channel", "metadata", "registration_id", "created_at", "verified_at", "paid_at",
	})
}

func TestPaymentRepository_GetByReference(t *testing.T) {
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verifiedAt := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)

	t.Run("terminal payment with registration", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, reference, event_id, ticket_type_id`).
			WithArgs("ref-1").
			WillReturnRows(paymentRows().AddRow(
				"pay-1", "ref-1", "ev-1", "tt-1", 2, "10000.00", "NGN", "buyer@example.com",
				"success", "812345", "card", []byte(`{"customer_name":"Ada"}`), "reg-1",
				createdAt, verifiedAt, verifiedAt))

		repo := NewPaymentRepository(db)
		p, err := repo.GetByReference(ctx, "ref-1")
		require.NoError(t, err)
		require.Equal(t, domain.PaymentSuccess, p.Status)
		require.Equal(t, "812345", p.GatewayTransactionID)
		require.Equal(t, "Ada", p.Metadata.CustomerName)
		require.NotNil(t, p.RegistrationID)
		require.Equal(t, "reg-1", *p.RegistrationID)
		require.NotNil(t, p.VerifiedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pending payment has empty nullables", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, reference, event_id, ticket_type_id`).
			WithArgs("ref-2").
			WillReturnRows(paymentRows().AddRow(
				"pay-2", "ref-2", "ev-1", "tt-1", 1, "5000.00", "NGN", "buyer@example.com",
				"pending", nil, nil, []byte(`{}`), nil, createdAt, nil, nil))

		repo := NewPaymentRepository(db)
		p, err := repo.GetByReference(ctx, "ref-2")
		require.NoError(t, err)
		require.Equal(t, domain.PaymentPending, p.Status)
		require.Empty(t, p.GatewayTransactionID)
		require.Nil(t, p.RegistrationID)
		require.Nil(t, p.PaidAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`SELECT id, reference, event_id, ticket_type_id`).
			WithArgs("ref-missing").
			WillReturnError(sql.ErrNoRows)

		repo := NewPaymentRepository(db)
		_, err = repo.GetByReference(ctx, "ref-missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}
