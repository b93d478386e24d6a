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

// ChargeBookingHandler kicks off payment collection for a fresh booking.
// Without a configured gateway the booking simply stays unpaid; operators
// collect out of band.
func (h *Handler) ChargeBookingHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"charge_booking_handler",
		func(ctx context.Context, payload *entities.BookingCreated_v1) error {
			if !payload.Amount.Amount.IsPositive() {
				// Free bookings have nothing to collect.
				return nil
			}

			log.FromContext(ctx).Info("Initiating charge for booking: ", payload.BookingID)

			_, err := h.payments.InitiateCharge(ctx, payload.BookingID)
			if errors.Is(err, pdomain.ErrGatewayNotConfigured) || errors.Is(err, pdomain.ErrNothingDue) {
				log.FromContext(ctx).
					WithField("booking_id", payload.BookingID).
					Warn("Nothing to charge, skipping")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to initiate charge: %w", err)
			}

			return nil
		},
	)
}

func (h *Handler) NotifyBookingReceivedHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"notify_booking_received_handler",
		func(ctx context.Context, payload *entities.BookingCreated_v1) error {
			return h.notifier.Notify(ctx, clients.NotifyBookingReceived, payload.BookingID, map[string]string{
				"schedule_id": payload.ScheduleID.String(),
				"status":      payload.Status,
			})
		},
	)
}

func (h *Handler) NotifyBookingConfirmedHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"notify_booking_confirmed_handler",
		func(ctx context.Context, payload *entities.BookingConfirmed_v1) error {
			return h.notifier.Notify(ctx, clients.NotifyBookingConfirmed, payload.BookingID, map[string]string{
				"schedule_id": payload.ScheduleID.String(),
			})
		},
	)
}
