package events_test

import (
	"classbook/internal/application/usecases/booking"
	"classbook/internal/application/usecases/payments"
	"classbook/internal/application/usecases/waitlist"
	"classbook/internal/interfaces/message/events"
	"classbook/internal/repository"
)

// The handler interfaces must stay narrow views of the concrete usecases.
var (
	_ events.PaymentOrchestrator      = (*payments.Orchestrator)(nil)
	_ events.BookingLifecycle         = (*booking.Engine)(nil)
	_ events.WaitlistCoordinator      = (*waitlist.Coordinator)(nil)
	_ events.BookingsReader           = (*repository.BookingsRepo)(nil)
	_ events.EventRepository          = (*repository.EventsRepository)(nil)
	_ events.ScheduleCacheInvalidator = (*repository.ScheduleCache)(nil)
)
