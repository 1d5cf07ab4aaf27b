package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ticketpay/internal/domain"
)

// Config holds Paystack API credentials. BaseURL is overridable for tests.
type Config struct {
	SecretKey string
	BaseURL   string
}

type client struct {
	secretKey []byte
	baseURL   string
	hc        *http.Client
}

// NewClient returns a PaymentGateway backed by the Paystack REST API.
func NewClient(cfg Config, hc *http.Client) domain.PaymentGateway {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	return &client{
		secretKey: []byte(cfg.SecretKey),
		baseURL:   baseURL,
		hc:        hc,
	}
}

// envelope is Paystack's standard response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// chargePayload is the charge object shape shared by the verify response
// and webhook event data.
type chargePayload struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Channel   string `json:"channel"`
	PaidAt    string `json:"paid_at"`
}

func (p *chargePayload) toChargeData() *domain.ChargeData {
	charge := &domain.ChargeData{
		Status:        p.Status,
		Reference:     p.Reference,
		AmountMinor:   p.Amount,
		Currency:      p.Currency,
		Channel:       p.Channel,
		TransactionID: fmt.Sprintf("%d", p.ID),
	}
	if p.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, p.PaidAt); err == nil {
			charge.PaidAt = &t
		}
	}
	return charge
}

func (c *client) InitializeTransaction(ctx context.Context, req *domain.TransactionRequest) (*domain.TransactionAuthorization, error) {
	payload := map[string]any{
		"email":     req.Email,
		"amount":    req.AmountMinor,
		"reference": req.Reference,
		"currency":  req.Currency,
		"metadata":  req.Metadata,
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}

	var data initializeData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload, &data); err != nil {
		return nil, err
	}
	return &domain.TransactionAuthorization{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (c *client) VerifyTransaction(ctx context.Context, reference string) (*domain.ChargeData, error) {
	var data chargePayload
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		return nil, err
	}
	return data.toChargeData(), nil
}

// VerifyWebhookSignature computes HMAC-SHA512 over the exact raw body bytes
// with the secret key and compares the hex digest against the
// x-paystack-signature header value in constant time.
func (c *client) VerifyWebhookSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, c.secretKey)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *client) ParseWebhookEvent(body []byte) (*domain.WebhookEvent, error) {
	var raw struct {
		Event string        `json:"event"`
		Data  chargePayload `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}
	if raw.Event == "" {
		return nil, fmt.Errorf("%w: webhook payload has no event type", domain.ErrInvalidInput)
	}
	event := &domain.WebhookEvent{Type: raw.Event}
	if raw.Data.Reference != "" {
		event.Charge = raw.Data.toChargeData()
	}
	return event, nil
}

// do executes one API call and decodes the data object. Network failures
// and 5xx responses map to ErrGatewayUnavailable; structured rejections map
// to ErrGatewayRejected with the gateway's message.
func (c *client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+string(c.secretKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: gateway returned status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: undecodable gateway response: %v", domain.ErrGatewayUnavailable, err)
	}
	if !env.Status || resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s", domain.ErrGatewayRejected, env.Message)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode gateway data: %w", err)
		}
	}
	return nil
}
