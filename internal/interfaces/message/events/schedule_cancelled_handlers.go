package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	bdomain "classbook/internal/domain/bookings"
	"classbook/internal/entities"
	"classbook/internal/observability/log"
)

// CancelBookingsOnScheduleCancelHandler force-cancels every active booking
// when the schedule itself is cancelled. Each cancellation emits its own
// BookingCancelled event, so refunds and notifications ride the normal
// cancellation flow.
func (h *Handler) CancelBookingsOnScheduleCancelHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"cancel_bookings_on_schedule_cancel_handler",
		func(ctx context.Context, payload *entities.ScheduleCancelled_v1) error {
			// Cached copies of the schedule are stale from here on.
			h.scheduleCache.Invalidate(payload.ScheduleID)

			bookings, err := h.bookingReader.ListActiveBySchedule(ctx, payload.ScheduleID)
			if err != nil {
				return fmt.Errorf("failed to list bookings: %w", err)
			}

			for _, b := range bookings {
				err := h.bookings.ForceCancelBooking(ctx, b.Id, "schedule cancelled")

				var notCancellable bdomain.NotCancellableError
				if errors.As(err, &notCancellable) {
					// Completed or no-show bookings stay as they are.
					continue
				}
				if err != nil {
					return fmt.Errorf("failed to cancel booking %s: %w", b.Id, err)
				}

				log.FromContext(ctx).
					WithField("booking_id", b.Id).
					Info("Cancelled booking for cancelled schedule")
			}

			return nil
		},
	)
}
