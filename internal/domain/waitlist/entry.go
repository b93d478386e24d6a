package waitlist

import (
	"time"

	"github.com/google/uuid"

	bdomain "classbook/internal/domain/bookings"
)

// Entry is one queued promotion candidate. Promotion order is FIFO by
// EnqueuedAt.
type Entry struct {
	Id         uuid.UUID `json:"id"`
	ScheduleId uuid.UUID `json:"schedule_id"`
	StudentId  uuid.UUID `json:"student_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Promotion reports one successful promotion off the queue.
type Promotion struct {
	Booking   *bdomain.Booking
	StudentID uuid.UUID
}
