package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	pdomain "classbook/internal/domain/payments"
	"classbook/internal/entities"
	"classbook/internal/infrastructure/clients"
	"classbook/internal/observability/log"
)

// RefundOnCancellationHandler refunds the full paid amount when a paid
// booking is cancelled. An unpaid cancellation is a no-op.
func (h *Handler) RefundOnCancellationHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"refund_on_cancellation_handler",
		func(ctx context.Context, payload *entities.BookingCancelled_v1) error {
			if !payload.WasPaid {
				return nil
			}

			log.FromContext(ctx).Info("Refunding cancelled booking: ", payload.BookingID)

			_, err := h.payments.Refund(ctx, payload.BookingID, nil)
			if errors.Is(err, pdomain.ErrNoPayment) || errors.Is(err, pdomain.ErrGatewayNotConfigured) {
				log.FromContext(ctx).
					WithField("booking_id", payload.BookingID).
					WithError(err).
					Warn("Nothing to refund")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to refund booking: %w", err)
			}

			return nil
		},
	)
}

// PromoteFromWaitlistHandler fills the freed seat from the waitlist.
func (h *Handler) PromoteFromWaitlistHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"promote_from_waitlist_handler",
		func(ctx context.Context, payload *entities.BookingCancelled_v1) error {
			promotion, err := h.promoter.ProcessNextInLine(ctx, payload.ScheduleID)
			if err != nil {
				return fmt.Errorf("failed to promote from waitlist: %w", err)
			}
			if promotion == nil {
				return nil
			}

			log.FromContext(ctx).
				WithField("schedule_id", payload.ScheduleID).
				WithField("student_id", promotion.StudentID).
				Info("Promoted student from waitlist")

			return h.notifier.Notify(ctx, clients.NotifyWaitlistPromoted, promotion.Booking.Id, map[string]string{
				"schedule_id": payload.ScheduleID.String(),
			})
		},
	)
}

func (h *Handler) NotifyCancellationHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"notify_cancellation_handler",
		func(ctx context.Context, payload *entities.BookingCancelled_v1) error {
			return h.notifier.Notify(ctx, clients.NotifyBookingCancelled, payload.BookingID, map[string]string{
				"schedule_id": payload.ScheduleID.String(),
				"reason":      payload.Reason,
			})
		},
	)
}
