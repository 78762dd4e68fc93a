package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"storefront-checkout/internal/apperror"
	"storefront-checkout/internal/config"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	checkoutPath = "/api/checkout"
	verifyPath   = "/api/verify-payment"
	apiKeyHeader = "X-Api-Key"

	defaultGatewayTimeout = 15 * time.Second
)

// GatewayClient is the boundary to the hosted payment provider. It never
// touches local state and never retries on its own.
type GatewayClient interface {
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResponse, error)
	// VerifyPayment returns nil, nil when the provider does not know the transaction.
	VerifyPayment(ctx context.Context, transactionID string) (*VerifiedPayment, error)
	GetConfig() GatewayConfig
}

type CreatePaymentRequest struct {
	FullName   string            `json:"fullname"`
	Email      string            `json:"email"`
	Amount     string            `json:"amount"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	WebhookURL string            `json:"webhook_url"`
	Metadata   map[string]string `json:"metadata"`
	Client     string            `json:"client"`
}

type CreatePaymentResponse struct {
	Status     bool   `json:"status"`
	PaymentURL string `json:"payment_url,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

type VerifiedPayment struct {
	Status        string                 `json:"status"`
	FullName      string                 `json:"fullname"`
	Email         string                 `json:"email"`
	Amount        decimal.Decimal        `json:"amount"`
	TransactionID string                 `json:"transaction_id"`
	TrxID         string                 `json:"trx_id"`
	Currency      string                 `json:"currency"`
	PaymentMethod string                 `json:"payment_method"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// MetadataString reads a metadata value as a string, whatever JSON type the
// provider echoed it back as.
func (p *VerifiedPayment) MetadataString(key string) string {
	if p == nil {
		return ""
	}
	return MetadataValue(p.Metadata, key)
}

// MetadataValue reads a provider metadata value as a trimmed string.
func MetadataValue(metadata map[string]interface{}, key string) string {
	switch v := metadata[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

type GatewayConfig struct {
	Configured bool   `json:"configured"`
	MerchantID string `json:"merchantId"`
	IsTest     bool   `json:"isTest"`
	BaseURL    string `json:"baseUrl"`
}

type gatewayClientImpl struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	merchantID string
	sandbox    bool
}

func NewGatewayClient(cfg *config.Gateway) GatewayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}

	return &gatewayClientImpl{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		merchantID: cfg.MerchantID,
		sandbox:    cfg.Sandbox,
	}
}

func (c *gatewayClientImpl) GetConfig() GatewayConfig {
	return GatewayConfig{
		Configured: c.configured(),
		MerchantID: c.merchantID,
		IsTest:     c.sandbox || strings.Contains(strings.ToLower(c.baseURL), "sandbox"),
		BaseURL:    c.baseURL,
	}
}

func (c *gatewayClientImpl) configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

func (c *gatewayClientImpl) CreatePayment(ctx context.Context, payload *CreatePaymentRequest) (*CreatePaymentResponse, error) {
	status, body, err := c.post(ctx, checkoutPath, payload)
	if err != nil {
		return nil, err
	}

	var result CreatePaymentResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if status >= 500 {
			return nil, fmt.Errorf("%w: provider status %d", apperror.ErrProviderUnavailable, status)
		}
		return nil, fmt.Errorf("%w: decode create payment response: %v", apperror.ErrProviderUnavailable, err)
	}

	if status >= 500 {
		return nil, fmt.Errorf("%w: provider status %d: %s", apperror.ErrProviderUnavailable, status, result.reason())
	}
	if status < 200 || status >= 300 || !result.Status || result.PaymentURL == "" {
		return nil, fmt.Errorf("%w: %s", apperror.ErrProviderRejected, result.reason())
	}

	return &result, nil
}

func (r *CreatePaymentResponse) reason() string {
	switch {
	case r.Message != "":
		return r.Message
	case r.Error != "":
		return r.Error
	default:
		return "no payment url returned"
	}
}

func (c *gatewayClientImpl) VerifyPayment(ctx context.Context, transactionID string) (*VerifiedPayment, error) {
	status, body, err := c.post(ctx, verifyPath, map[string]string{
		"transaction_id": transactionID,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusNotFound:
		return nil, nil
	case status >= 500:
		return nil, fmt.Errorf("%w: provider status %d", apperror.ErrProviderUnavailable, status)
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("%w: verify status %d: %s", apperror.ErrProviderRejected, status, truncate(body))
	}

	// failures come back as {"status": false, "message": ...}
	var envelope struct {
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode verify response: %v", apperror.ErrProviderUnavailable, err)
	}
	if len(envelope.Status) == 0 || envelope.Status[0] != '"' {
		return nil, nil
	}

	var result VerifiedPayment
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: decode verify response: %v", apperror.ErrProviderUnavailable, err)
	}
	if result.TransactionID == "" {
		result.TransactionID = transactionID
	}

	return &result, nil
}

func (c *gatewayClientImpl) post(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	if !c.configured() {
		return 0, nil, fmt.Errorf("%w: gateway credentials not configured", apperror.ErrProviderUnavailable)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return 0, nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", apperror.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %v", apperror.ErrProviderUnavailable, err)
	}

	return resp.StatusCode, respBody, nil
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
