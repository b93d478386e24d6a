package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	bdomain "classbook/internal/domain/bookings"
	"classbook/internal/entities"
	"classbook/internal/infrastructure/clients"
	"classbook/internal/observability/log"
)

// ConfirmOnPaymentHandler moves a pending booking to confirmed once its
// charge settles. With auto-confirm enabled the booking is already
// confirmed and the transition error is expected.
func (h *Handler) ConfirmOnPaymentHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"confirm_on_payment_handler",
		func(ctx context.Context, payload *entities.PaymentCompleted_v1) error {
			_, err := h.bookings.ConfirmBooking(ctx, payload.BookingID)

			var transitionErr bdomain.InvalidTransitionError
			if errors.As(err, &transitionErr) {
				return nil
			}
			if errors.Is(err, bdomain.ErrNotFound) {
				log.FromContext(ctx).
					WithField("booking_id", payload.BookingID).
					Warn("Payment completed for unknown booking")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to confirm booking: %w", err)
			}

			return nil
		},
	)
}

func (h *Handler) NotifyPaymentFailedHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"notify_payment_failed_handler",
		func(ctx context.Context, payload *entities.PaymentFailed_v1) error {
			return h.notifier.Notify(ctx, clients.NotifyPaymentFailed, payload.BookingID, map[string]string{
				"reason": payload.Reason,
			})
		},
	)
}

func (h *Handler) NotifyRefundHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"notify_refund_handler",
		func(ctx context.Context, payload *entities.PaymentRefunded_v1) error {
			return h.notifier.Notify(ctx, clients.NotifyPaymentRefunded, payload.BookingID, map[string]string{
				"amount":   payload.Amount.Amount.String(),
				"currency": payload.Amount.Currency,
				"partial":  fmt.Sprintf("%t", payload.Partial),
			})
		},
	)
}
