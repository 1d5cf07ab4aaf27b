package domain

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when the request is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientInventory is returned by the ticket ledger when a
	// reservation would push quantity_sold past quantity_available. It is a
	// business outcome, not a bug: a charge confirmed by the gateway after
	// the tier sold out is forced to failed and flagged for manual refund.
	ErrInsufficientInventory = errors.New("insufficient ticket inventory")

	// ErrGatewayUnavailable is returned on network failures or 5xx responses
	// from the payment gateway. Retryable.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrGatewayRejected is returned when the gateway answers with a
	// structured non-success response. Not retryable.
	ErrGatewayRejected = errors.New("payment gateway rejected the request")

	// ErrInvalidSignature is returned when a webhook body does not match its
	// signature header. The delivery must be rejected with no state change.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
