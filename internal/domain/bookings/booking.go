package bookings

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// IsTerminal reports whether no further lifecycle transition is allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentProcessing    PaymentStatus = "processing"
	PaymentCompleted     PaymentStatus = "completed"
	PaymentFailed        PaymentStatus = "failed"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentPartialRefund PaymentStatus = "partial_refund"
)

// Booking is one student's reservation against one schedule. Cancelled
// bookings are kept for audit and refund history.
type Booking struct {
	Id            uuid.UUID         `json:"id"`
	ScheduleId    uuid.UUID         `json:"schedule_id"`
	StudentId     uuid.UUID         `json:"student_id"`
	BookingCode   string            `json:"booking_code"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	Status        Status            `json:"status"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	Notes         string            `json:"notes,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// CanTransition encodes the lifecycle state machine:
// pending -> confirmed -> completed/no_show, with cancellation allowed from
// pending and confirmed.
func (b *Booking) CanTransition(to Status) bool {
	switch to {
	case StatusConfirmed:
		return b.Status == StatusPending
	case StatusCancelled:
		return b.Status == StatusPending || b.Status == StatusConfirmed
	case StatusCompleted, StatusNoShow:
		return b.Status == StatusConfirmed
	}
	return false
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewBookingCode generates a short human-readable reference.
func NewBookingCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()[:8]
	}

	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return "BK-" + string(buf)
}
