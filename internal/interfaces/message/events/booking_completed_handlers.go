package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	pdomain "classbook/internal/domain/payments"
	"classbook/internal/entities"
	"classbook/internal/observability/log"
)

// PayoutOnCompletionHandler transfers the instructor's net share once the
// session is over. Only active when post-session payouts are enabled;
// split-settled charges already routed the money at charge time.
func (h *Handler) PayoutOnCompletionHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"payout_on_completion_handler",
		func(ctx context.Context, payload *entities.BookingCompleted_v1) error {
			if !h.policy.PostSessionPayouts {
				return nil
			}

			log.FromContext(ctx).Info("Paying out instructor for booking: ", payload.BookingID)

			_, err := h.payments.TransferToProvider(ctx, payload.BookingID)
			switch {
			case errors.Is(err, pdomain.ErrAlreadyPaidOut):
				return nil
			case errors.Is(err, pdomain.ErrNoPayoutAccount),
				errors.Is(err, pdomain.ErrNoPayment),
				errors.Is(err, pdomain.ErrGatewayNotConfigured):
				log.FromContext(ctx).
					WithField("booking_id", payload.BookingID).
					WithError(err).
					Warn("Skipping instructor payout")
				return nil
			case err != nil:
				return fmt.Errorf("failed to pay out instructor: %w", err)
			}

			return nil
		},
	)
}
