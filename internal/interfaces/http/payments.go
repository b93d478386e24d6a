package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"classbook/internal/entities"
	"classbook/internal/idempotency"
	"classbook/internal/infrastructure/clients"
	"classbook/internal/observability/log"
)

func (s *Server) ChargeHandler(c echo.Context) error {
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	payment, err := s.orchestrator.InitiateCharge(c.Request().Context(), bookingID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusAccepted, payment)
}

type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// RefundHandler queues the refund as a command; the gateway call happens
// asynchronously and the caller polls the booking's payment status.
func (s *Server) RefundHandler(c echo.Context) error {
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	var request RefundRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	err = s.commandBus.Send(c.Request().Context(), entities.RefundBooking{
		Header:    entities.NewEventHeaderWithIdempotencyKey(idempotency.GetKey(c.Request().Context())),
		BookingID: bookingID,
		Amount:    request.Amount,
	})
	if err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusAccepted)
}

// QuoteHandler previews the fee split for an amount without touching the
// ledger, so clients can show the provider's net before anything is charged.
func (s *Server) QuoteHandler(c echo.Context) error {
	amount, err := decimal.NewFromString(c.QueryParam("amount"))
	if err != nil || !amount.IsPositive() {
		return echo.NewHTTPError(http.StatusBadRequest, "amount must be a positive decimal")
	}

	return c.JSON(http.StatusOK, s.orchestrator.Breakdown(amount))
}

type WebhookPayload struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
}

// WebhookHandler receives gateway status callbacks. The raw body is
// verified against the HMAC signature header before anything is parsed out
// of it; unsigned or tampered deliveries are rejected.
func (s *Server) WebhookHandler(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}

	signature := c.Request().Header.Get("X-Signature")
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		log.FromContext(ctx).Warn("Rejected webhook with bad signature")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	}
	if payload.ExternalID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "external_id is required")
	}

	if key := c.Request().Header.Get("Idempotency-Key"); key != "" {
		ctx = idempotency.WithKey(ctx, key)
	}

	err = s.orchestrator.ApplyGatewayStatus(ctx,
		payload.ExternalID, clients.GatewayStatus(payload.Status), payload.Reason)
	if err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusOK)
}
