package payments

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound             = errors.New("payment not found")
	ErrNoPayment            = errors.New("no completed charge exists for this booking")
	ErrNothingDue           = errors.New("booking has nothing left to collect")
	ErrAlreadyPaidOut       = errors.New("a provider transfer already exists for this booking")
	ErrNoPayoutAccount      = errors.New("instructor has no linked payout account")
	ErrGatewayNotConfigured = errors.New("payment gateway is not configured")
)

// ExceedsChargedError reports a refund request larger than the refundable
// balance (completed charges minus prior completed refunds).
type ExceedsChargedError struct {
	BookingId  uuid.UUID
	Requested  decimal.Decimal
	Refundable decimal.Decimal
}

func (e ExceedsChargedError) Error() string {
	return fmt.Sprintf("refund of %s for booking %s exceeds refundable balance %s",
		e.Requested, e.BookingId, e.Refundable)
}

// GatewayError wraps a provider-reported failure; the provider message is
// always preserved.
type GatewayError struct {
	Operation string
	Message   string
	Err       error
}

func (e GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %s", e.Operation, e.Message)
}

func (e GatewayError) Unwrap() error {
	return e.Err
}
