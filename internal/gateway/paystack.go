package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"stocksave/internal/metrics"

	"time"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrChargeNotFound     = errors.New("charge not found on gateway")
)

const (
	ChargeSuccess = "success"
	ChargeFailed  = "failed"

	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
)

type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
}

type ChargeInit struct {
	Reference   string
	RedirectURL string
}

type ChargeStatus struct {
	Reference   string
	Status      string
	AmountMinor int64
}

type TransferInit struct {
	TransferCode string
	Status       string
}

type WebhookEvent struct {
	Event       string
	Reference   string
	AmountMinor int64
}

// Client is the contract the ledger needs from the external payment gateway.
// All responses are treated as untrusted input and re-validated against the
// transaction table before any balance mutation.
type Client interface {
	InitializeCharge(ctx context.Context, email string, amountMinor int64, callbackURL, reference string) (*ChargeInit, error)
	VerifyCharge(ctx context.Context, reference string) (*ChargeStatus, error)
	CreateTransferRecipient(ctx context.Context, details BankDetails) (string, error)
	InitiateTransfer(ctx context.Context, recipientCode string, amountMinor int64, reference string) (*TransferInit, error)
}

type PaystackClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewPaystackClient(baseURL, secretKey string, timeout time.Duration) *PaystackClient {
	return &PaystackClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *PaystackClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrChargeNotFound
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: gateway returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var envelope paystackEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: bad response body", ErrGatewayUnavailable)
	}
	if !envelope.Status {
		return fmt.Errorf("%w: %s", ErrGatewayUnavailable, envelope.Message)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: bad response data", ErrGatewayUnavailable)
		}
	}
	return nil
}

func (p *PaystackClient) InitializeCharge(ctx context.Context, email string, amountMinor int64, callbackURL, reference string) (*ChargeInit, error) {
	payload := map[string]interface{}{
		"email":        email,
		"amount":       amountMinor,
		"callback_url": callbackURL,
		"reference":    reference,
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	}
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", payload, &data); err != nil {
		metrics.RecordGatewayRequest("initialize_charge", "error")
		return nil, err
	}

	metrics.RecordGatewayRequest("initialize_charge", "ok")
	return &ChargeInit{Reference: reference, RedirectURL: data.AuthorizationURL}, nil
}

func (p *PaystackClient) VerifyCharge(ctx context.Context, reference string) (*ChargeStatus, error) {
	var data struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
	}
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		metrics.RecordGatewayRequest("verify_charge", "error")
		return nil, err
	}

	status := ChargeFailed
	if data.Status == "success" {
		status = ChargeSuccess
	}

	metrics.RecordGatewayRequest("verify_charge", "ok")
	return &ChargeStatus{Reference: data.Reference, Status: status, AmountMinor: data.Amount}, nil
}

func (p *PaystackClient) CreateTransferRecipient(ctx context.Context, details BankDetails) (string, error) {
	payload := map[string]interface{}{
		"type":           "nuban",
		"name":           details.AccountName,
		"account_number": details.AccountNumber,
		"bank_code":      details.BankCode,
		"currency":       "NGN",
	}

	var data struct {
		RecipientCode string `json:"recipient_code"`
	}
	if err := p.do(ctx, http.MethodPost, "/transferrecipient", payload, &data); err != nil {
		metrics.RecordGatewayRequest("create_recipient", "error")
		return "", err
	}

	metrics.RecordGatewayRequest("create_recipient", "ok")
	return data.RecipientCode, nil
}

func (p *PaystackClient) InitiateTransfer(ctx context.Context, recipientCode string, amountMinor int64, reference string) (*TransferInit, error) {
	payload := map[string]interface{}{
		"source":    "balance",
		"amount":    amountMinor,
		"recipient": recipientCode,
		"reference": reference,
		"reason":    "StockSave Withdrawal",
	}

	var data struct {
		TransferCode string `json:"transfer_code"`
		Status       string `json:"status"`
	}
	if err := p.do(ctx, http.MethodPost, "/transfer", payload, &data); err != nil {
		metrics.RecordGatewayRequest("initiate_transfer", "error")
		return nil, err
	}

	metrics.RecordGatewayRequest("initiate_transfer", "ok")
	return &TransferInit{TransferCode: data.TransferCode, Status: data.Status}, nil
}

// VerifyWebhookSignature checks the x-paystack-signature header, an
// HMAC-SHA512 of the raw body keyed with the secret key.
func VerifyWebhookSignature(secretKey string, body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhook decodes a transfer webhook payload into the event the
// ledger reconciles against its own transaction table.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Event == "" || payload.Data.Reference == "" {
		return nil, errors.New("malformed webhook payload")
	}

	return &WebhookEvent{
		Event:       payload.Event,
		Reference:   payload.Data.Reference,
		AmountMinor: payload.Data.Amount,
	}, nil
}
