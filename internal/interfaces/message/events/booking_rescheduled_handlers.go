package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"classbook/internal/entities"
	"classbook/internal/observability/log"
)

// SettleRescheduleDeltaHandler charges or refunds the price difference
// after a booking moved to a differently priced schedule.
func (h *Handler) SettleRescheduleDeltaHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"settle_reschedule_delta_handler",
		func(ctx context.Context, payload *entities.BookingRescheduled_v1) error {
			err := h.payments.HandleRescheduleDelta(ctx,
				payload.BookingID, payload.OldAmount.Amount, payload.NewAmount.Amount)
			if err != nil {
				return fmt.Errorf("failed to settle reschedule delta: %w", err)
			}

			return nil
		},
	)
}

// BackfillFreedSeatHandler offers the seat freed on the old schedule to its
// waitlist.
func (h *Handler) BackfillFreedSeatHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"backfill_freed_seat_handler",
		func(ctx context.Context, payload *entities.BookingRescheduled_v1) error {
			promotion, err := h.promoter.ProcessNextInLine(ctx, payload.OldScheduleID)
			if err != nil {
				return fmt.Errorf("failed to backfill freed seat: %w", err)
			}

			if promotion != nil {
				log.FromContext(ctx).
					WithField("schedule_id", payload.OldScheduleID).
					WithField("student_id", promotion.StudentID).
					Info("Backfilled seat freed by reschedule")
			}

			return nil
		},
	)
}
