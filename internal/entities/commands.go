package entities

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundBooking asks the payment orchestrator to refund a booking. A nil
// Amount means the full refundable balance.
type RefundBooking struct {
	Header    EventHeader      `json:"header"`
	BookingID uuid.UUID        `json:"booking_id"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}
