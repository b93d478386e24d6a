package clients

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
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	domain "classbook/internal/domain/payments"
)

// GatewayStatus is the provider's view of a transaction, mapped onto the
// payment state machine by the orchestrator.
type GatewayStatus string

const (
	GatewayStatusPending    GatewayStatus = "pending"
	GatewayStatusProcessing GatewayStatus = "processing"
	GatewayStatusSucceeded  GatewayStatus = "succeeded"
	GatewayStatusFailed     GatewayStatus = "failed"
	GatewayStatusCancelled  GatewayStatus = "cancelled"
)

type ChargeRequest struct {
	Reference          string          `json:"reference"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	DestinationAccount string          `json:"destination_account,omitempty"`
	PlatformFee        decimal.Decimal `json:"platform_fee,omitempty"`
}

type ChargeResponse struct {
	ExternalID   string `json:"external_id"`
	ClientHandle string `json:"client_handle"`
}

type GatewayConfig struct {
	BaseURL string
	Secret  string
	Name    string
}

// GatewayClient talks to the payment provider's HTTP API. All calls go
// through a circuit breaker; provider failures come back as
// payments.GatewayError with the provider message preserved.
type GatewayClient struct {
	cfg     GatewayConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewGatewayClient(cfg GatewayConfig) *GatewayClient {
	return &GatewayClient{
		cfg: cfg,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "payment-gateway",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (c *GatewayClient) Name() string {
	return c.cfg.Name
}

// Configured reports whether gateway credentials are present.
func (c *GatewayClient) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.Secret != ""
}

func (c *GatewayClient) Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	var resp ChargeResponse
	if err := c.call(ctx, http.MethodPost, "/v1/charges", req, &resp); err != nil {
		return nil, wrapGatewayErr("charge", err)
	}

	return &resp, nil
}

func (c *GatewayClient) Refund(ctx context.Context, externalID string, amount decimal.Decimal) (string, error) {
	body := struct {
		TransactionID string          `json:"transaction_id"`
		Amount        decimal.Decimal `json:"amount"`
	}{TransactionID: externalID, Amount: amount}

	var resp struct {
		ExternalID string `json:"external_id"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/refunds", body, &resp); err != nil {
		return "", wrapGatewayErr("refund", err)
	}

	return resp.ExternalID, nil
}

func (c *GatewayClient) Transfer(ctx context.Context, amount decimal.Decimal, currency, destinationAccount string) (string, error) {
	body := struct {
		Amount             decimal.Decimal `json:"amount"`
		Currency           string          `json:"currency"`
		DestinationAccount string          `json:"destination_account"`
	}{Amount: amount, Currency: currency, DestinationAccount: destinationAccount}

	var resp struct {
		ExternalID string `json:"external_id"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/transfers", body, &resp); err != nil {
		return "", wrapGatewayErr("transfer", err)
	}

	return resp.ExternalID, nil
}

func (c *GatewayClient) GetStatus(ctx context.Context, externalID string) (GatewayStatus, error) {
	var resp struct {
		Status GatewayStatus `json:"status"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/transactions/"+externalID, nil, &resp); err != nil {
		return "", wrapGatewayErr("get status", err)
	}

	return resp.Status, nil
}

// VerifyWebhookSignature checks the HMAC-SHA512 hex signature the gateway
// attaches to webhook deliveries.
func (c *GatewayClient) VerifyWebhookSignature(payload []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(c.cfg.Secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *GatewayClient) call(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var reqBody bytes.Buffer
		if body != nil {
			if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, &reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.Secret)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			var apiErr struct {
				Message string `json:"message"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&apiErr)
			if apiErr.Message == "" {
				apiErr.Message = resp.Status
			}
			return nil, &providerRejection{
				message: fmt.Sprintf("gateway responded %d: %s", resp.StatusCode, apiErr.Message),
			}
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("failed to decode gateway response: %w", err)
			}
		}

		return nil, nil
	})

	return err
}

// providerRejection marks an error the provider itself reported. Everything
// else (timeouts, open breaker, connection resets) has an unknown outcome
// and must not be treated as a rejection.
type providerRejection struct {
	message string
}

func (e *providerRejection) Error() string {
	return e.message
}

func wrapGatewayErr(operation string, err error) error {
	var rejection *providerRejection
	if errors.As(err, &rejection) {
		return domain.GatewayError{
			Operation: operation,
			Message:   rejection.message,
			Err:       err,
		}
	}

	return fmt.Errorf("gateway %s: %w", operation, err)
}
