package clients_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdomain "classbook/internal/domain/payments"
	"classbook/internal/infrastructure/clients"
)

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := clients.NewGatewayClient(clients.GatewayConfig{
		BaseURL: "http://gateway.local",
		Secret:  "test-secret",
	})

	payload := []byte(`{"external_id":"tx_123","status":"succeeded"}`)

	assert.True(t, client.VerifyWebhookSignature(payload, sign("test-secret", payload)))

	assert.False(t, client.VerifyWebhookSignature(payload, sign("wrong-secret", payload)))
	assert.False(t, client.VerifyWebhookSignature(payload, ""))
	assert.False(t, client.VerifyWebhookSignature(payload, "deadbeef"))

	tampered := []byte(`{"external_id":"tx_999","status":"succeeded"}`)
	assert.False(t, client.VerifyWebhookSignature(tampered, sign("test-secret", payload)))
}

func TestGatewayConfigured(t *testing.T) {
	assert.False(t, clients.NewGatewayClient(clients.GatewayConfig{}).Configured())
	assert.False(t, clients.NewGatewayClient(clients.GatewayConfig{BaseURL: "http://x"}).Configured())
	assert.True(t, clients.NewGatewayClient(clients.GatewayConfig{
		BaseURL: "http://x", Secret: "s",
	}).Configured())
}

func TestGatewayCharge(t *testing.T) {
	var received clients.ChargeRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/charges", r.URL.Path)
		require.Equal(t, "Bearer test-secret", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_ = json.NewEncoder(w).Encode(clients.ChargeResponse{ExternalID: "tx_abc"})
	}))
	defer srv.Close()

	client := clients.NewGatewayClient(clients.GatewayConfig{
		BaseURL: srv.URL,
		Secret:  "test-secret",
		Name:    "stripe",
	})

	resp, err := client.Charge(context.Background(), clients.ChargeRequest{
		Reference: "BK-TESTCODE",
		Amount:    decimal.RequireFromString("49.95"),
		Currency:  "USD",
	})
	require.NoError(t, err)

	assert.Equal(t, "tx_abc", resp.ExternalID)
	assert.Equal(t, "BK-TESTCODE", received.Reference)
	assert.True(t, received.Amount.Equal(decimal.RequireFromString("49.95")))
}

func TestGatewayChargeProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "card declined"})
	}))
	defer srv.Close()

	client := clients.NewGatewayClient(clients.GatewayConfig{BaseURL: srv.URL, Secret: "s"})

	_, err := client.Charge(context.Background(), clients.ChargeRequest{
		Amount:   decimal.NewFromInt(10),
		Currency: "USD",
	})
	require.Error(t, err)

	var gatewayErr pdomain.GatewayError
	require.True(t, errors.As(err, &gatewayErr))
	assert.Equal(t, "charge", gatewayErr.Operation)
	assert.Contains(t, gatewayErr.Message, "card declined")
}

func TestGatewayChargeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // connection refused from here on

	client := clients.NewGatewayClient(clients.GatewayConfig{BaseURL: srv.URL, Secret: "s"})

	_, err := client.Charge(context.Background(), clients.ChargeRequest{
		Amount:   decimal.NewFromInt(10),
		Currency: "USD",
	})
	require.Error(t, err)

	// Only provider-reported rejections are GatewayError; a failed
	// connection has an unknown outcome and must stay distinguishable.
	var gatewayErr pdomain.GatewayError
	assert.False(t, errors.As(err, &gatewayErr))
}

func TestGatewayGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/transactions/tx_abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "succeeded"})
	}))
	defer srv.Close()

	client := clients.NewGatewayClient(clients.GatewayConfig{BaseURL: srv.URL, Secret: "s"})

	status, err := client.GetStatus(context.Background(), "tx_abc")
	require.NoError(t, err)
	assert.Equal(t, clients.GatewayStatusSucceeded, status)
}
