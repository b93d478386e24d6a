package waitlist

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"classbook/internal/application/usecases/booking"
	"classbook/internal/config"
	bdomain "classbook/internal/domain/bookings"
	sdomain "classbook/internal/domain/schedules"
	wdomain "classbook/internal/domain/waitlist"
	"classbook/internal/observability/log"
)

type Queue interface {
	PopNextInLine(ctx context.Context, scheduleID uuid.UUID) (*wdomain.Entry, error)
	Enqueue(ctx context.Context, scheduleID, studentID uuid.UUID) (uuid.UUID, error)
	CountBySchedule(ctx context.Context, scheduleID uuid.UUID) (int64, error)
}

type SchedulesRepo interface {
	GetSchedule(ctx context.Context, id uuid.UUID) (*sdomain.Schedule, error)
}

type BookingsRepo interface {
	CountActiveBySchedule(ctx context.Context, scheduleID uuid.UUID) (int64, error)
}

// Booker is the atomic booking path; promotions go through the same
// capacity-checked transaction as direct bookings.
type Booker interface {
	CreateBooking(ctx context.Context, req booking.CreateBookingReq) (*bdomain.Booking, error)
}

// Coordinator promotes waitlisted students when a seat frees up. It never
// bypasses the booking engine, so a promotion can still lose a race against
// a direct booking; the entry is then put back at its original position.
type Coordinator struct {
	queue         Queue
	schedulesRepo SchedulesRepo
	bookingsRepo  BookingsRepo
	booker        Booker
	policy        config.PolicyConfig
}

func NewCoordinator(
	queue Queue,
	schedulesRepo SchedulesRepo,
	bookingsRepo BookingsRepo,
	booker Booker,
	policy config.PolicyConfig,
) *Coordinator {
	return &Coordinator{
		queue:         queue,
		schedulesRepo: schedulesRepo,
		bookingsRepo:  bookingsRepo,
		booker:        booker,
		policy:        policy,
	}
}

// ProcessNextInLine fills one freed seat from the front of the queue.
// Entries whose student can no longer book (already booked elsewhere on the
// schedule, prerequisites lapsed) are dropped and the next entry is tried,
// bounded by the promotion attempt limit. Returns nil when no promotion
// happened.
func (c *Coordinator) ProcessNextInLine(ctx context.Context, scheduleID uuid.UUID) (*wdomain.Promotion, error) {
	schedule, err := c.schedulesRepo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule.Status != sdomain.StatusScheduled {
		return nil, nil
	}

	active, err := c.bookingsRepo.CountActiveBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if active >= int64(schedule.Capacity) {
		return nil, nil
	}

	attempts := c.policy.WaitlistPromotionAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		entry, err := c.queue.PopNextInLine(ctx, scheduleID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, nil
		}

		booked, err := c.booker.CreateBooking(ctx, booking.CreateBookingReq{
			ScheduleID: scheduleID,
			StudentID:  entry.StudentId,
		})
		if err == nil {
			return &wdomain.Promotion{Booking: booked, StudentID: entry.StudentId}, nil
		}

		if errors.Is(err, bdomain.ErrScheduleFull) {
			// Lost the seat to a direct booking; put the entry back.
			if _, reErr := c.queue.Enqueue(ctx, scheduleID, entry.StudentId); reErr != nil {
				return nil, reErr
			}
			return nil, nil
		}

		if errors.Is(err, bdomain.ErrAlreadyBooked) || errors.Is(err, bdomain.ErrPrerequisiteUnmet) {
			log.FromContext(ctx).
				WithField("schedule_id", scheduleID).
				WithField("student_id", entry.StudentId).
				WithError(err).
				Info("skipping unpromotable waitlist entry")
			continue
		}

		return nil, err
	}

	return nil, nil
}

// QueueLength reports how many students wait on a schedule.
func (c *Coordinator) QueueLength(ctx context.Context, scheduleID uuid.UUID) (int64, error) {
	return c.queue.CountBySchedule(ctx, scheduleID)
}
