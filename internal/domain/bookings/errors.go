package bookings

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("booking not found")
	ErrAlreadyBooked     = errors.New("student already has an active booking for this schedule")
	ErrScheduleFull      = errors.New("schedule has no free seats")
	ErrUnavailable       = errors.New("schedule is not open for booking")
	ErrPrerequisiteUnmet = errors.New("student does not satisfy class prerequisites")
)

type NotCancellableError struct {
	BookingId uuid.UUID
	Status    Status
}

func (e NotCancellableError) Error() string {
	return fmt.Sprintf("booking %s is %s and cannot be cancelled", e.BookingId, e.Status)
}

// PolicyViolationError is returned when a cancellation arrives inside the
// configured cancellation window.
type PolicyViolationError struct {
	BookingId         uuid.UUID
	CancellationHours int
	HoursUntilStart   float64
}

func (e PolicyViolationError) Error() string {
	return fmt.Sprintf("booking %s cannot be cancelled %.1fh before start, policy requires %dh",
		e.BookingId, e.HoursUntilStart, e.CancellationHours)
}

type OutsideBookingWindowError struct {
	ScheduleId uuid.UUID
	Start      time.Time
	// TooLate means the request came closer than the minimum lead time;
	// otherwise the request was further out than the advance limit.
	TooLate bool
}

func (e OutsideBookingWindowError) Error() string {
	if e.TooLate {
		return fmt.Sprintf("schedule %s starts too soon to book (%s)", e.ScheduleId, e.Start.Format(time.RFC3339))
	}
	return fmt.Sprintf("schedule %s is too far in the future to book (%s)", e.ScheduleId, e.Start.Format(time.RFC3339))
}

type InvalidTransitionError struct {
	BookingId uuid.UUID
	From      Status
	To        Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("booking %s cannot transition from %s to %s", e.BookingId, e.From, e.To)
}

type ErrInvalid struct {
	Reason string
}

func (e ErrInvalid) Error() string {
	return "invalid booking request: " + e.Reason
}
