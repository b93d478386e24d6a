package entities

import (
	"time"

	"github.com/google/uuid"
)

type Event interface {
	IsInternal() bool
}

type BookingCreated_v1 struct {
	Header     EventHeader `json:"header"`
	BookingID  uuid.UUID   `json:"booking_id"`
	ScheduleID uuid.UUID   `json:"schedule_id"`
	StudentID  uuid.UUID   `json:"student_id"`
	Status     string      `json:"status"`
	Amount     Money       `json:"amount"`
	BookedAt   time.Time   `json:"booked_at"`
}

func (e BookingCreated_v1) IsInternal() bool {
	return false
}

type BookingConfirmed_v1 struct {
	Header     EventHeader `json:"header"`
	BookingID  uuid.UUID   `json:"booking_id"`
	ScheduleID uuid.UUID   `json:"schedule_id"`
	StudentID  uuid.UUID   `json:"student_id"`
}

func (e BookingConfirmed_v1) IsInternal() bool {
	return false
}

type BookingCancelled_v1 struct {
	Header     EventHeader `json:"header"`
	BookingID  uuid.UUID   `json:"booking_id"`
	ScheduleID uuid.UUID   `json:"schedule_id"`
	StudentID  uuid.UUID   `json:"student_id"`
	Reason     string      `json:"reason"`
	// WasPaid reports whether a completed charge existed at cancellation
	// time, which drives the refund side effect.
	WasPaid bool  `json:"was_paid"`
	Amount  Money `json:"amount"`
}

func (e BookingCancelled_v1) IsInternal() bool {
	return false
}

type BookingRescheduled_v1 struct {
	Header        EventHeader `json:"header"`
	BookingID     uuid.UUID   `json:"booking_id"`
	StudentID     uuid.UUID   `json:"student_id"`
	OldScheduleID uuid.UUID   `json:"old_schedule_id"`
	NewScheduleID uuid.UUID   `json:"new_schedule_id"`
	OldAmount     Money       `json:"old_amount"`
	NewAmount     Money       `json:"new_amount"`
}

func (e BookingRescheduled_v1) IsInternal() bool {
	return false
}

type BookingCompleted_v1 struct {
	Header     EventHeader `json:"header"`
	BookingID  uuid.UUID   `json:"booking_id"`
	ScheduleID uuid.UUID   `json:"schedule_id"`
	StudentID  uuid.UUID   `json:"student_id"`
	Amount     Money       `json:"amount"`
}

func (e BookingCompleted_v1) IsInternal() bool {
	return false
}

type BookingNoShow_v1 struct {
	Header     EventHeader `json:"header"`
	BookingID  uuid.UUID   `json:"booking_id"`
	ScheduleID uuid.UUID   `json:"schedule_id"`
	StudentID  uuid.UUID   `json:"student_id"`
}

func (e BookingNoShow_v1) IsInternal() bool {
	return false
}

type PaymentCompleted_v1 struct {
	Header                EventHeader `json:"header"`
	PaymentID             uuid.UUID   `json:"payment_id"`
	BookingID             uuid.UUID   `json:"booking_id"`
	ExternalTransactionID string      `json:"external_transaction_id"`
	Amount                Money       `json:"amount"`
}

func (e PaymentCompleted_v1) IsInternal() bool {
	return false
}

type PaymentFailed_v1 struct {
	Header                EventHeader `json:"header"`
	PaymentID             uuid.UUID   `json:"payment_id"`
	BookingID             uuid.UUID   `json:"booking_id"`
	ExternalTransactionID string      `json:"external_transaction_id"`
	Reason                string      `json:"reason"`
}

func (e PaymentFailed_v1) IsInternal() bool {
	return false
}

type PaymentRefunded_v1 struct {
	Header    EventHeader `json:"header"`
	PaymentID uuid.UUID   `json:"payment_id"`
	BookingID uuid.UUID   `json:"booking_id"`
	Amount    Money       `json:"amount"`
	// Partial is true when the refund covers less than the charged amount.
	Partial bool `json:"partial"`
}

func (e PaymentRefunded_v1) IsInternal() bool {
	return false
}

type ProviderPaidOut_v1 struct {
	Header       EventHeader `json:"header"`
	PaymentID    uuid.UUID   `json:"payment_id"`
	BookingID    uuid.UUID   `json:"booking_id"`
	InstructorID uuid.UUID   `json:"instructor_id"`
	Amount       Money       `json:"amount"`
}

func (e ProviderPaidOut_v1) IsInternal() bool {
	return false
}

type ScheduleCancelled_v1 struct {
	Header     EventHeader `json:"header"`
	ScheduleID uuid.UUID   `json:"schedule_id"`
}

func (e ScheduleCancelled_v1) IsInternal() bool {
	return false
}
