package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindCharge   Kind = "charge"
	KindRefund   Kind = "refund"
	KindTransfer Kind = "transfer"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Payment is one monetary movement tied to a booking. Charges carry a
// positive amount; refunds and provider transfers are negative. Refunds and
// transfers are independent rows, never mutations of the original charge.
type Payment struct {
	Id                    uuid.UUID         `json:"id"`
	BookingId             uuid.UUID         `json:"booking_id"`
	Kind                  Kind              `json:"kind"`
	Amount                decimal.Decimal   `json:"amount"`
	Currency              string            `json:"currency"`
	Gateway               string            `json:"gateway"`
	ExternalTransactionId string            `json:"external_transaction_id"`
	Status                Status            `json:"status"`
	Meta                  map[string]string `json:"meta,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
}

// CanTransition encodes the payment state machine:
// pending -> processing -> completed; pending/processing -> failed;
// pending -> cancelled. Terminal rows never move again.
func (p *Payment) CanTransition(to Status) bool {
	switch to {
	case StatusProcessing:
		return p.Status == StatusPending
	case StatusCompleted:
		return p.Status == StatusPending || p.Status == StatusProcessing
	case StatusFailed:
		return p.Status == StatusPending || p.Status == StatusProcessing
	case StatusCancelled:
		return p.Status == StatusPending
	}
	return false
}
