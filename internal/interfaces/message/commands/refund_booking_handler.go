package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	pdomain "classbook/internal/domain/payments"
	"classbook/internal/entities"
	"classbook/internal/observability/log"
)

func (h *Handler) RefundBookingHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"refund_booking",
		func(ctx context.Context, command *entities.RefundBooking) error {
			log.FromContext(ctx).Info("Refunding booking: ", command.BookingID)

			_, err := h.refunder.Refund(ctx, command.BookingID, command.Amount)
			if errors.Is(err, pdomain.ErrNoPayment) {
				log.FromContext(ctx).
					WithField("booking_id", command.BookingID).
					Warn("Refund requested but no completed charge exists")
				return nil
			}
			if err != nil {
				return fmt.Errorf("refund booking: %w", err)
			}

			return nil
		},
	)
}
