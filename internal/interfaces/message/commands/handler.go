package commands

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pdomain "classbook/internal/domain/payments"
)

type Refunder interface {
	Refund(ctx context.Context, bookingID uuid.UUID, amount *decimal.Decimal) (*pdomain.Payment, error)
}

type Handler struct {
	refunder Refunder
}

func NewHandler(refunder Refunder) *Handler {
	return &Handler{refunder: refunder}
}
