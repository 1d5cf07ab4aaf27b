package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ticketpay/internal/domain"
	"ticketpay/monitoring"
)

// Webhook event types the engine acts on. Everything else is acknowledged
// and ignored so future gateway event types never cause retry storms.
const (
	webhookChargeSuccess = "charge.success"
	webhookChargeFailed  = "charge.failed"
)

type paymentService struct {
	gateway       domain.PaymentGateway
	payments      domain.PaymentRepository
	tickets       domain.TicketTypeRepository
	registrations domain.EventRegistrationRepository
	store         domain.ReconciliationStore
	email         domain.EmailService
	logger        *slog.Logger

	publicKey   string
	currency    string
	callbackURL string
}

// NewPaymentService creates the payment lifecycle service. email may be nil
// when confirmation mail is disabled.
func NewPaymentService(
	gateway domain.PaymentGateway,
	payments domain.PaymentRepository,
	tickets domain.TicketTypeRepository,
	registrations domain.EventRegistrationRepository,
	store domain.ReconciliationStore,
	email domain.EmailService,
	logger *slog.Logger,
	publicKey, currency, callbackURL string,
) domain.PaymentService {
	return &paymentService{
		gateway:       gateway,
		payments:      payments,
		tickets:       tickets,
		registrations: registrations,
		store:         store,
		email:         email,
		logger:        logger,
		publicKey:     publicKey,
		currency:      currency,
		callbackURL:   callbackURL,
	}
}

func (s *paymentService) Initialize(ctx context.Context, req *domain.InitializePaymentRequest) (*domain.PaymentInitialization, error) {
	if req.TicketQuantity <= 0 {
		return nil, fmt.Errorf("%w: ticket_quantity must be positive", domain.ErrInvalidInput)
	}
	if req.CustomerEmail == "" {
		return nil, fmt.Errorf("%w: customer_email is required", domain.ErrInvalidInput)
	}

	tier, err := s.tickets.GetByID(ctx, req.TicketTypeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get ticket type: %w", err)
	}
	if req.EventID != "" && tier.EventID != req.EventID {
		return nil, fmt.Errorf("%w: ticket type does not belong to event", domain.ErrInvalidInput)
	}
	// Advisory availability check. The authoritative check is the ledger's
	// conditional reserve at reconciliation time; this only spares the buyer
	// a hosted-payment round trip for a tier that is already sold out.
	if tier.Remaining() < req.TicketQuantity {
		return nil, domain.ErrInsufficientInventory
	}

	amount := tier.Price.Mul(decimal.NewFromInt(int64(req.TicketQuantity)))
	minor, err := domain.ToMinorUnits(amount)
	if err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}

	reference := uuid.NewString()
	metadata := domain.PaymentMetadata{
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	}

	// The gateway call comes first: if it fails, no payment row exists, so
	// there is never a partial record for an initialization the gateway
	// never accepted.
	auth, err := s.gateway.InitializeTransaction(ctx, &domain.TransactionRequest{
		Email:       req.CustomerEmail,
		AmountMinor: minor,
		Reference:   reference,
		Currency:    tier.Currency,
		CallbackURL: s.callbackURL,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize transaction: %w", err)
	}

	payment := domain.NewPayment(reference, tier.EventID, tier.ID, req.TicketQuantity, amount, tier.Currency, req.CustomerEmail, metadata, nowUTC())
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	monitoring.TrackPaymentInitialized()

	return &domain.PaymentInitialization{
		Reference:        reference,
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
		Amount:           amount,
		Currency:         tier.Currency,
	}, nil
}

func (s *paymentService) Verify(ctx context.Context, reference string) (*domain.ReconcileOutcome, error) {
	charge, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("verify transaction: %w", err)
	}

	var target domain.PaymentStatus
	switch {
	case charge.Success():
		target = domain.PaymentSuccess
	case charge.Status == "failed":
		target = domain.PaymentFailed
	default:
		// Still pending or abandoned at the gateway: no transition. The
		// payment stays reconcilable by a later webhook or re-verification.
		payment, err := s.payments.GetByReference(ctx, reference)
		if err != nil {
			return nil, err
		}
		return &domain.ReconcileOutcome{Payment: payment}, nil
	}

	return s.reconcile(ctx, "verify", reference, target, charge)
}

func (s *paymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*domain.WebhookResult, error) {
	// Signature first, on the raw bytes, before any parsing touches the
	// payload.
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		monitoring.TrackWebhookSignatureFailure()
		return nil, domain.ErrInvalidSignature
	}

	event, err := s.gateway.ParseWebhookEvent(body)
	if err != nil {
		return nil, fmt.Errorf("parse webhook: %w", err)
	}

	var target domain.PaymentStatus
	switch event.Type {
	case webhookChargeSuccess:
		target = domain.PaymentSuccess
	case webhookChargeFailed:
		target = domain.PaymentFailed
	default:
		return &domain.WebhookResult{Event: event.Type, Ignored: true}, nil
	}

	if event.Charge == nil || event.Charge.Reference == "" {
		return nil, fmt.Errorf("%w: webhook charge event has no reference", domain.ErrInvalidInput)
	}

	// The webhook payload is self-sufficient; no second gateway round trip.
	outcome, err := s.reconcile(ctx, "webhook", event.Charge.Reference, target, event.Charge)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Stale or foreign reference. Logged, acknowledged, not retried.
			s.logger.WarnContext(ctx, "webhook for unknown payment reference",
				"event", event.Type, "reference", event.Charge.Reference)
			return &domain.WebhookResult{Event: event.Type, Ignored: true}, nil
		}
		return nil, err
	}
	return &domain.WebhookResult{Event: event.Type, Outcome: outcome}, nil
}

// reconcile applies a reported terminal outcome through the atomic store
// and handles the side channels: metrics, anomaly logging, confirmation
// email for a newly materialized registration.
func (s *paymentService) reconcile(ctx context.Context, trigger, reference string, target domain.PaymentStatus, charge *domain.ChargeData) (*domain.ReconcileOutcome, error) {
	outcome, err := s.store.Apply(ctx, reference, target, charge)
	if err != nil {
		return nil, fmt.Errorf("apply reconciliation: %w", err)
	}

	switch {
	case outcome.Duplicate:
		monitoring.TrackReconciliation(trigger, "duplicate")
	default:
		monitoring.TrackReconciliation(trigger, string(outcome.Payment.Status))
	}

	if outcome.InventoryShortage {
		monitoring.TrackInventoryRejection()
		s.logger.ErrorContext(ctx, "reconciliation anomaly: charge confirmed but inventory sold out, manual refund required",
			"reference", reference,
			"ticket_type_id", outcome.Payment.TicketTypeID,
			"quantity", outcome.Payment.Quantity,
			"gateway_transaction_id", outcome.Payment.GatewayTransactionID,
		)
	}

	if outcome.Registration != nil && !outcome.Duplicate && s.email != nil {
		// Fire and forget: mail failure must not fail the reconciliation.
		reg := outcome.Registration
		payment := outcome.Payment
		go func() {
			data := &domain.TicketConfirmationEmailData{
				Email:            reg.AttendeeEmail,
				EventID:          reg.EventID,
				TicketQuantity:   reg.TicketQuantity,
				TotalAmount:      reg.TotalAmount.StringFixed(2),
				Currency:         payment.Currency,
				PaymentReference: reg.PaymentReference,
				Credential:       reg.CheckInCredential,
			}
			if err := s.email.SendTicketConfirmation(context.Background(), data); err != nil {
				s.logger.Error("send ticket confirmation", "reference", reg.PaymentReference, "err", err)
			}
		}()
	}

	return outcome, nil
}

func (s *paymentService) Status(ctx context.Context, reference string) (*domain.PaymentSnapshot, error) {
	payment, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}

	snapshot := &domain.PaymentSnapshot{Payment: payment}
	if payment.RegistrationID != nil {
		reg, err := s.registrations.GetByID(ctx, *payment.RegistrationID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get registration: %w", err)
		}
		snapshot.Registration = reg
	}
	return snapshot, nil
}

func (s *paymentService) ClientConfig() *domain.GatewayClientConfig {
	return &domain.GatewayClientConfig{
		PublicKey: s.publicKey,
		Currency:  s.currency,
	}
}
