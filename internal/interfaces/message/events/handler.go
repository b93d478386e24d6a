package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"classbook/internal/config"
	bdomain "classbook/internal/domain/bookings"
	pdomain "classbook/internal/domain/payments"
	wdomain "classbook/internal/domain/waitlist"
	"classbook/internal/entities"
	"classbook/internal/infrastructure/clients"
)

type PaymentOrchestrator interface {
	InitiateCharge(ctx context.Context, bookingID uuid.UUID) (*pdomain.Payment, error)
	Refund(ctx context.Context, bookingID uuid.UUID, amount *decimal.Decimal) (*pdomain.Payment, error)
	HandleRescheduleDelta(ctx context.Context, bookingID uuid.UUID, oldAmount, newAmount decimal.Decimal) error
	TransferToProvider(ctx context.Context, bookingID uuid.UUID) (*pdomain.Payment, error)
}

type BookingLifecycle interface {
	ConfirmBooking(ctx context.Context, id uuid.UUID) (*bdomain.Booking, error)
	ForceCancelBooking(ctx context.Context, id uuid.UUID, reason string) error
}

type WaitlistCoordinator interface {
	ProcessNextInLine(ctx context.Context, scheduleID uuid.UUID) (*wdomain.Promotion, error)
}

type NotificationService interface {
	Notify(ctx context.Context, kind clients.NotificationKind, bookingID uuid.UUID, extra map[string]string) error
}

type BookingsReader interface {
	ListActiveBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]bdomain.Booking, error)
}

// ScheduleCacheInvalidator drops a cached schedule after a write makes the
// cached copy stale.
type ScheduleCacheInvalidator interface {
	Invalidate(id uuid.UUID)
}

type EventRepository interface {
	SaveEvent(ctx context.Context, event entities.DatalakeEvent) error
}

type Handler struct {
	payments      PaymentOrchestrator
	bookings      BookingLifecycle
	bookingReader BookingsReader
	promoter      WaitlistCoordinator
	notifier      NotificationService
	scheduleCache ScheduleCacheInvalidator
	policy        config.PolicyConfig
}

func NewHandler(
	payments PaymentOrchestrator,
	bookings BookingLifecycle,
	bookingReader BookingsReader,
	promoter WaitlistCoordinator,
	notifier NotificationService,
	scheduleCache ScheduleCacheInvalidator,
	policy config.PolicyConfig,
) *Handler {
	return &Handler{
		payments:      payments,
		bookings:      bookings,
		bookingReader: bookingReader,
		promoter:      promoter,
		notifier:      notifier,
		scheduleCache: scheduleCache,
		policy:        policy,
	}
}
