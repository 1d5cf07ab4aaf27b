package controllers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"ticketpay/internal/delivery/http/helpers"
	"ticketpay/internal/domain"
)

// emailRegex matches a simple email format (local@domain with at least one dot in domain).
var emailRegex = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

// maxWebhookBody caps the webhook request body. Gateway payloads are a few
// kilobytes; anything near the cap is not a legitimate delivery.
const maxWebhookBody = 1 << 20

// signatureHeader carries the gateway's keyed hash of the raw request body.
const signatureHeader = "x-paystack-signature"

// timeFormat is the wire format for timestamps in response DTOs.
const timeFormat = time.RFC3339

// InitializePaymentRequest is the request body for POST /payments/initialize.
type InitializePaymentRequest struct {
	EventID        string `json:"event_id"`
	TicketTypeID   string `json:"ticket_type_id"`
	TicketQuantity int    `json:"ticket_quantity"`
	CustomerEmail  string `json:"customer_email"`
	CustomerName   string `json:"customer_name"`
	CustomerPhone  string `json:"customer_phone"`
}

// Validate implements Validator. Returns error messages for required and format rules.
func (r InitializePaymentRequest) Validate() []string {
	var errs []string
	if r.TicketTypeID == "" {
		errs = append(errs, "ticket_type_id is required")
	}
	if r.TicketQuantity <= 0 {
		errs = append(errs, "ticket_quantity must be a positive integer")
	}
	if r.CustomerEmail == "" {
		errs = append(errs, "customer_email is required")
	} else if !emailRegex.MatchString(r.CustomerEmail) {
		errs = append(errs, "customer_email is not a valid email address")
	}
	return errs
}

// RegistrationResponse is the attendee-facing view of a registration. The
// qr_code field carries the check-in credential consumed at the door.
type RegistrationResponse struct {
	ID               string  `json:"id"`
	EventID          string  `json:"event_id"`
	AttendeeEmail    string  `json:"attendee_email"`
	TicketQuantity   int     `json:"ticket_quantity"`
	TotalAmount      string  `json:"total_amount"`
	PaymentReference string  `json:"payment_reference"`
	QRCode           string  `json:"qr_code"`
	AttendanceStatus string  `json:"attendance_status"`
	CheckInTime      *string `json:"check_in_time,omitempty"`
	CheckOutTime     *string `json:"check_out_time,omitempty"`
}

func newRegistrationResponse(reg *domain.EventRegistration) *RegistrationResponse {
	if reg == nil {
		return nil
	}
	resp := &RegistrationResponse{
		ID:               reg.ID,
		EventID:          reg.EventID,
		AttendeeEmail:    reg.AttendeeEmail,
		TicketQuantity:   reg.TicketQuantity,
		TotalAmount:      reg.TotalAmount.StringFixed(2),
		PaymentReference: reg.PaymentReference,
		QRCode:           reg.CheckInCredential,
		AttendanceStatus: string(reg.AttendanceStatus),
	}
	if reg.CheckInTime != nil {
		s := reg.CheckInTime.Format(timeFormat)
		resp.CheckInTime = &s
	}
	if reg.CheckOutTime != nil {
		s := reg.CheckOutTime.Format(timeFormat)
		resp.CheckOutTime = &s
	}
	return resp
}

// VerifyPaymentResponse is the response body for POST /payments/verify/{reference}.
type VerifyPaymentResponse struct {
	Reference     string                `json:"reference"`
	PaymentStatus string                `json:"payment_status"`
	Amount        string                `json:"amount"`
	Currency      string                `json:"currency"`
	PaidAt        *string               `json:"paid_at,omitempty"`
	Duplicate     bool                  `json:"duplicate"`
	Registration  *RegistrationResponse `json:"registration,omitempty"`
}

// PaymentStatusResponse is the response body for GET /payments/status/{reference}.
type PaymentStatusResponse struct {
	Payment      *domain.Payment       `json:"payment"`
	Registration *RegistrationResponse `json:"registration,omitempty"`
}

type PaymentController struct {
	Logger  *slog.Logger
	Service domain.PaymentService
}

func NewPaymentController(logger *slog.Logger, svc domain.PaymentService) *PaymentController {
	return &PaymentController{
		Logger:  logger,
		Service: svc,
	}
}

// Initialize godoc
// @Summary Initialize a ticket purchase
// @Description Creates a pending payment and a hosted-checkout transaction with the gateway. Returns the authorization URL to redirect the buyer to.
// @Tags payments
// @Accept json
// @Produce json
// @Param payment body InitializePaymentRequest true "Purchase details"
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data contains the payment initialization"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: sold_out"
// @Failure 502 {object} helpers.APIResponse "error.code: gateway_error"
// @Router /payments/initialize [post]
func (c *PaymentController) Initialize(w http.ResponseWriter, r *http.Request) {
	var req InitializePaymentRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	init, err := c.Service.Initialize(r.Context(), &domain.InitializePaymentRequest{
		EventID:        req.EventID,
		TicketTypeID:   req.TicketTypeID,
		TicketQuantity: req.TicketQuantity,
		CustomerEmail:  req.CustomerEmail,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
	})
	if err != nil {
		c.writePaymentError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, init)
}

// Verify godoc
// @Summary Verify a payment by reference
// @Description Client-initiated reconciliation: queries the gateway for the charge state and applies it. Safe to call repeatedly; a repeat call returns the committed outcome.
// @Tags payments
// @Produce json
// @Param reference path string true "Payment reference"
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data contains the verification outcome"
// @Failure 400 {object} helpers.APIResponse "error.code: payment_failed or payment_pending"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 502 {object} helpers.APIResponse "error.code: gateway_error"
// @Router /payments/verify/{reference} [post]
func (c *PaymentController) Verify(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")
	if reference == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "reference is required")
		return
	}
	outcome, err := c.Service.Verify(r.Context(), reference)
	if err != nil {
		c.writePaymentError(w, r, err)
		return
	}

	resp := VerifyPaymentResponse{
		Reference:     outcome.Payment.Reference,
		PaymentStatus: string(outcome.Payment.Status),
		Amount:        outcome.Payment.Amount.StringFixed(2),
		Currency:      outcome.Payment.Currency,
		Duplicate:     outcome.Duplicate,
		Registration:  newRegistrationResponse(outcome.Registration),
	}
	if outcome.Payment.PaidAt != nil {
		s := outcome.Payment.PaidAt.Format(timeFormat)
		resp.PaidAt = &s
	}
	// Only a successful charge answers 200; anything else is a 400 so the
	// client does not mistake a pending or failed charge for a ticket.
	if outcome.Payment.Status != domain.PaymentSuccess {
		code := helpers.ErrCodePaymentFailed
		message := "payment was not successful"
		switch {
		case outcome.InventoryShortage:
			message = "payment received but tickets sold out; a refund will be issued"
		case outcome.Payment.Status == domain.PaymentPending:
			code = helpers.ErrCodePaymentPending
			message = "payment has not completed at the gateway"
		}
		helpers.WriteJSONErrorWithData(w, http.StatusBadRequest, code, message, resp)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, resp)
}

// Status godoc
// @Summary Get payment status by reference
// @Description Read-only view of a payment and its linked registration, if one exists. Performs no reconciliation.
// @Tags payments
// @Produce json
// @Param reference path string true "Payment reference"
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data contains the payment snapshot"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /payments/status/{reference} [get]
func (c *PaymentController) Status(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")
	snap, err := c.Service.Status(r.Context(), reference)
	if err != nil {
		c.writePaymentError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, PaymentStatusResponse{
		Payment:      snap.Payment,
		Registration: newRegistrationResponse(snap.Registration),
	})
}

// Config godoc
// @Summary Get client payment configuration
// @Description Returns the gateway public key and currency for client-side checkout SDKs. Never exposes the secret key.
// @Tags payments
// @Produce json
// @Success 200 {object} helpers.APIResponse "data contains public_key and currency"
// @Router /payments/config [get]
func (c *PaymentController) Config(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONSuccess(w, http.StatusOK, c.Service.ClientConfig())
}

// Webhook godoc
// @Summary Gateway webhook receiver
// @Description Authenticates deliveries by HMAC signature over the raw body. Once the signature and payload are valid the endpoint always answers 200, including for duplicate and unknown-event deliveries, so the gateway stops retrying.
// @Tags payments
// @Accept json
// @Produce json
// @Success 200 {object} helpers.APIResponse "delivery acknowledged"
// @Failure 400 {object} helpers.APIResponse "error.code: invalid_signature or bad_request"
// @Router /payments/webhook [post]
func (c *PaymentController) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "cannot read request body")
		return
	}

	result, err := c.Service.HandleWebhook(r.Context(), body, r.Header.Get(signatureHeader))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			c.Logger.WarnContext(r.Context(), "webhook signature rejected", "remote", r.RemoteAddr)
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeInvalidSignature, "invalid signature")
			return
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
			return
		}
		// Transient processing failure: non-2xx so the gateway redelivers.
		c.Logger.ErrorContext(r.Context(), "webhook processing failed", "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "webhook processing failed")
		return
	}

	helpers.WriteJSONSuccess(w, http.StatusOK, map[string]any{
		"event":   result.Event,
		"ignored": result.Ignored,
	})
}

// writePaymentError maps domain errors to API status codes.
func (c *PaymentController) writePaymentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "payment or ticket type not found")
	case errors.Is(err, domain.ErrInvalidInput):
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientInventory):
		helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeSoldOut, "not enough tickets available")
	case errors.Is(err, domain.ErrGatewayRejected):
		helpers.WriteJSONError(w, http.StatusBadGateway, helpers.ErrCodeGatewayError, err.Error())
	case errors.Is(err, domain.ErrGatewayUnavailable):
		helpers.WriteJSONError(w, http.StatusBadGateway, helpers.ErrCodeGatewayError, "payment gateway unavailable")
	default:
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, "internal error")
	}
}
