package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	trmanager "github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/avito-tech/go-transaction-manager/trm/v2/settings"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"classbook/internal/config"
	bdomain "classbook/internal/domain/bookings"
	sdomain "classbook/internal/domain/schedules"
	"classbook/internal/entities"
	"classbook/internal/interfaces/message/events"
	"classbook/internal/interfaces/message/outbox"
	"classbook/internal/observability/log"
)

type BookingsRepo interface {
	CreateBooking(ctx context.Context, booking bdomain.Booking) (uuid.UUID, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*bdomain.Booking, error)
	CountActiveBySchedule(ctx context.Context, scheduleID uuid.UUID) (int64, error)
	ActiveBookingExists(ctx context.Context, scheduleID, studentID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status bdomain.Status) error
	MoveToSchedule(ctx context.Context, id, newScheduleID uuid.UUID, booking bdomain.Booking) error
	CancelExpiredPending(ctx context.Context, before time.Time) ([]bdomain.Booking, error)
}

type SchedulesRepo interface {
	GetSchedule(ctx context.Context, id uuid.UUID) (*sdomain.Schedule, error)
}

type WaitlistRepo interface {
	Enqueue(ctx context.Context, scheduleID, studentID uuid.UUID) (uuid.UUID, error)
}

type ClassCatalog interface {
	DefaultPrice(ctx context.Context, classID uuid.UUID) (decimal.Decimal, string, error)
	CheckPrerequisites(ctx context.Context, classID, studentID uuid.UUID) (bool, error)
}

// Engine owns every booking state transition. The capacity check and the
// booking insert run inside one serializable transaction; under contention
// postgres aborts one of the racers with a serialization failure and the
// loser retries against the updated count.
type Engine struct {
	bookingsRepo    BookingsRepo
	schedulesRepo   SchedulesRepo
	waitlistRepo    WaitlistRepo
	catalog         ClassCatalog
	trManager       *trmanager.Manager
	trGetter        *trmsqlx.CtxGetter
	watermillLogger watermill.LoggerAdapter
	policy          config.PolicyConfig
	now             func() time.Time
}

func NewEngine(
	bookingsRepo BookingsRepo,
	schedulesRepo SchedulesRepo,
	waitlistRepo WaitlistRepo,
	catalog ClassCatalog,
	trManager *trmanager.Manager,
	trGetter *trmsqlx.CtxGetter,
	watermillLogger watermill.LoggerAdapter,
	policy config.PolicyConfig,
	now func() time.Time,
) *Engine {
	if now == nil {
		now = time.Now
	}

	return &Engine{
		bookingsRepo:    bookingsRepo,
		schedulesRepo:   schedulesRepo,
		waitlistRepo:    waitlistRepo,
		catalog:         catalog,
		trManager:       trManager,
		trGetter:        trGetter,
		watermillLogger: watermillLogger,
		policy:          policy,
		now:             now,
	}
}

type CreateBookingReq struct {
	ScheduleID uuid.UUID
	StudentID  uuid.UUID
	Notes      string
}

func (e *Engine) CreateBooking(ctx context.Context, req CreateBookingReq) (*bdomain.Booking, error) {
	// The catalog calls are network reads; they happen before the
	// serializable section so the transaction stays short.
	preview, err := e.schedulesRepo.GetSchedule(ctx, req.ScheduleID)
	if err != nil {
		return nil, err
	}

	ok, err := e.catalog.CheckPrerequisites(ctx, preview.ClassId, req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check prerequisites: %w", err)
	}
	if !ok {
		return nil, bdomain.ErrPrerequisiteUnmet
	}

	amount, err := e.resolveAmount(ctx, preview)
	if err != nil {
		return nil, err
	}

	var booking *bdomain.Booking
	err = WithRetry(3, func(ctx context.Context) error {
		return e.trManager.DoWithSettings(
			ctx,
			trmsql.MustSettings(
				settings.Must(settings.WithCancelable(true)),
				trmsql.WithTxOptions(&sql.TxOptions{Isolation: sql.LevelSerializable}),
			),
			func(ctx context.Context) error {
				schedule, err := e.schedulesRepo.GetSchedule(ctx, req.ScheduleID)
				if err != nil {
					return err
				}

				if err := e.checkBookable(schedule); err != nil {
					return err
				}

				exists, err := e.bookingsRepo.ActiveBookingExists(ctx, schedule.Id, req.StudentID)
				if err != nil {
					return err
				}
				if exists {
					return bdomain.ErrAlreadyBooked
				}

				count, err := e.bookingsRepo.CountActiveBySchedule(ctx, schedule.Id)
				if err != nil {
					return err
				}
				if count >= int64(schedule.Capacity) {
					return bdomain.ErrScheduleFull
				}

				status := bdomain.StatusPending
				if e.policy.AutoConfirm {
					status = bdomain.StatusConfirmed
				}

				candidate := bdomain.Booking{
					ScheduleId:    schedule.Id,
					StudentId:     req.StudentID,
					BookingCode:   bdomain.NewBookingCode(),
					Amount:        amount,
					Currency:      schedule.Currency,
					Status:        status,
					PaymentStatus: bdomain.PaymentPending,
					Notes:         req.Notes,
				}

				id, err := e.bookingsRepo.CreateBooking(ctx, candidate)
				if err != nil {
					return err
				}

				candidate.Id = id
				candidate.CreatedAt = e.now().UTC()
				booking = &candidate

				return e.publish(ctx, entities.BookingCreated_v1{
					Header:     entities.NewEventHeader(),
					BookingID:  id,
					ScheduleID: schedule.Id,
					StudentID:  req.StudentID,
					Status:     string(status),
					Amount:     entities.Money{Amount: amount, Currency: schedule.Currency},
					BookedAt:   candidate.CreatedAt,
				})
			})
	})(ctx)

	if err != nil {
		return nil, err
	}

	log.FromContext(ctx).
		WithField("booking_id", booking.Id).
		WithField("schedule_id", booking.ScheduleId).
		Info("booking created")

	return booking, nil
}

func (e *Engine) GetBooking(ctx context.Context, id uuid.UUID) (*bdomain.Booking, error) {
	return e.bookingsRepo.GetBooking(ctx, id)
}

func (e *Engine) CancelBooking(ctx context.Context, id uuid.UUID, reason string) error {
	return e.cancel(ctx, id, reason, true)
}

// ForceCancelBooking cancels regardless of the cancellation window, used
// when the schedule itself is cancelled and the policy is moot.
func (e *Engine) ForceCancelBooking(ctx context.Context, id uuid.UUID, reason string) error {
	return e.cancel(ctx, id, reason, false)
}

func (e *Engine) cancel(ctx context.Context, id uuid.UUID, reason string, enforcePolicy bool) error {
	return e.trManager.Do(ctx, func(ctx context.Context) error {
		booking, err := e.bookingsRepo.GetBooking(ctx, id)
		if err != nil {
			return err
		}

		if !booking.CanTransition(bdomain.StatusCancelled) {
			return bdomain.NotCancellableError{BookingId: id, Status: booking.Status}
		}

		if enforcePolicy && e.policy.CancellationHours > 0 {
			schedule, err := e.schedulesRepo.GetSchedule(ctx, booking.ScheduleId)
			if err != nil {
				return err
			}

			hoursUntilStart := schedule.StartTime.Sub(e.now()).Hours()
			if hoursUntilStart < float64(e.policy.CancellationHours) {
				return bdomain.PolicyViolationError{
					BookingId:         id,
					CancellationHours: e.policy.CancellationHours,
					HoursUntilStart:   hoursUntilStart,
				}
			}
		}

		if err := e.bookingsRepo.UpdateStatus(ctx, id, bdomain.StatusCancelled); err != nil {
			return err
		}

		return e.publish(ctx, entities.BookingCancelled_v1{
			Header:     entities.NewEventHeader(),
			BookingID:  id,
			ScheduleID: booking.ScheduleId,
			StudentID:  booking.StudentId,
			Reason:     reason,
			WasPaid:    booking.PaymentStatus == bdomain.PaymentCompleted,
			Amount:     entities.Money{Amount: booking.Amount, Currency: booking.Currency},
		})
	})
}

func (e *Engine) ConfirmBooking(ctx context.Context, id uuid.UUID) (*bdomain.Booking, error) {
	var booking *bdomain.Booking

	err := e.trManager.Do(ctx, func(ctx context.Context) error {
		var err error
		booking, err = e.bookingsRepo.GetBooking(ctx, id)
		if err != nil {
			return err
		}

		if !booking.CanTransition(bdomain.StatusConfirmed) {
			return bdomain.InvalidTransitionError{BookingId: id, From: booking.Status, To: bdomain.StatusConfirmed}
		}

		if err := e.bookingsRepo.UpdateStatus(ctx, id, bdomain.StatusConfirmed); err != nil {
			return err
		}
		booking.Status = bdomain.StatusConfirmed

		return e.publish(ctx, entities.BookingConfirmed_v1{
			Header:     entities.NewEventHeader(),
			BookingID:  id,
			ScheduleID: booking.ScheduleId,
			StudentID:  booking.StudentId,
		})
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

// RescheduleBooking re-validates the booking against the new schedule as if
// it were created fresh, then swaps the schedule atomically. Payment delta
// handling rides on the BookingRescheduled event. Cross-currency
// reschedules are rejected outright.
func (e *Engine) RescheduleBooking(ctx context.Context, id, newScheduleID uuid.UUID) (*bdomain.Booking, error) {
	preview, err := e.schedulesRepo.GetSchedule(ctx, newScheduleID)
	if err != nil {
		return nil, err
	}

	newAmount, err := e.resolveAmount(ctx, preview)
	if err != nil {
		return nil, err
	}

	var booking *bdomain.Booking
	err = WithRetry(3, func(ctx context.Context) error {
		return e.trManager.DoWithSettings(
			ctx,
			trmsql.MustSettings(
				settings.Must(settings.WithCancelable(true)),
				trmsql.WithTxOptions(&sql.TxOptions{Isolation: sql.LevelSerializable}),
			),
			func(ctx context.Context) error {
				var err error
				booking, err = e.bookingsRepo.GetBooking(ctx, id)
				if err != nil {
					return err
				}

				if booking.Status.IsTerminal() {
					return bdomain.ErrInvalid{Reason: "booking is in a terminal state"}
				}

				prereqOK, err := e.catalog.CheckPrerequisites(ctx, preview.ClassId, booking.StudentId)
				if err != nil {
					return fmt.Errorf("failed to check prerequisites: %w", err)
				}
				if !prereqOK {
					return bdomain.ErrPrerequisiteUnmet
				}

				newSchedule, err := e.schedulesRepo.GetSchedule(ctx, newScheduleID)
				if err != nil {
					return err
				}

				if newSchedule.Currency != booking.Currency {
					return bdomain.ErrInvalid{Reason: "cross-currency reschedule is not supported"}
				}

				if err := e.checkBookable(newSchedule); err != nil {
					return err
				}

				exists, err := e.bookingsRepo.ActiveBookingExists(ctx, newScheduleID, booking.StudentId)
				if err != nil {
					return err
				}
				if exists {
					return bdomain.ErrAlreadyBooked
				}

				count, err := e.bookingsRepo.CountActiveBySchedule(ctx, newScheduleID)
				if err != nil {
					return err
				}
				if count >= int64(newSchedule.Capacity) {
					return bdomain.ErrScheduleFull
				}

				oldScheduleID := booking.ScheduleId
				oldAmount := booking.Amount

				updated := *booking
				updated.ScheduleId = newScheduleID
				updated.Amount = newAmount

				if err := e.bookingsRepo.MoveToSchedule(ctx, id, newScheduleID, updated); err != nil {
					return err
				}
				booking = &updated

				return e.publish(ctx, entities.BookingRescheduled_v1{
					Header:        entities.NewEventHeader(),
					BookingID:     id,
					StudentID:     booking.StudentId,
					OldScheduleID: oldScheduleID,
					NewScheduleID: newScheduleID,
					OldAmount:     entities.Money{Amount: oldAmount, Currency: booking.Currency},
					NewAmount:     entities.Money{Amount: newAmount, Currency: booking.Currency},
				})
			})
	})(ctx)

	if err != nil {
		return nil, err
	}

	return booking, nil
}

func (e *Engine) MarkAttended(ctx context.Context, id uuid.UUID) error {
	return e.markAttendance(ctx, id, bdomain.StatusCompleted)
}

func (e *Engine) MarkNoShow(ctx context.Context, id uuid.UUID) error {
	return e.markAttendance(ctx, id, bdomain.StatusNoShow)
}

func (e *Engine) markAttendance(ctx context.Context, id uuid.UUID, to bdomain.Status) error {
	return e.trManager.Do(ctx, func(ctx context.Context) error {
		booking, err := e.bookingsRepo.GetBooking(ctx, id)
		if err != nil {
			return err
		}

		if !booking.CanTransition(to) {
			return bdomain.InvalidTransitionError{BookingId: id, From: booking.Status, To: to}
		}

		if err := e.bookingsRepo.UpdateStatus(ctx, id, to); err != nil {
			return err
		}

		if to == bdomain.StatusCompleted {
			return e.publish(ctx, entities.BookingCompleted_v1{
				Header:     entities.NewEventHeader(),
				BookingID:  id,
				ScheduleID: booking.ScheduleId,
				StudentID:  booking.StudentId,
				Amount:     entities.Money{Amount: booking.Amount, Currency: booking.Currency},
			})
		}

		return e.publish(ctx, entities.BookingNoShow_v1{
			Header:     entities.NewEventHeader(),
			BookingID:  id,
			ScheduleID: booking.ScheduleId,
			StudentID:  booking.StudentId,
		})
	})
}

// CleanupExpiredPending cancels pending, unpaid bookings older than the
// expiry. Safe to run repeatedly and concurrently: the underlying update
// only matches rows still pending, so a victim is processed exactly once.
func (e *Engine) CleanupExpiredPending(ctx context.Context, expiry time.Duration) (int, error) {
	if expiry <= 0 {
		expiry = time.Duration(e.policy.PendingExpiryMinutes) * time.Minute
	}

	var victims []bdomain.Booking
	err := e.trManager.Do(ctx, func(ctx context.Context) error {
		var err error
		victims, err = e.bookingsRepo.CancelExpiredPending(ctx, e.now().Add(-expiry))
		if err != nil {
			return err
		}

		for _, b := range victims {
			err = e.publish(ctx, entities.BookingCancelled_v1{
				Header:     entities.NewEventHeader(),
				BookingID:  b.Id,
				ScheduleID: b.ScheduleId,
				StudentID:  b.StudentId,
				Reason:     "pending booking expired",
				WasPaid:    false,
				Amount:     entities.Money{Amount: b.Amount, Currency: b.Currency},
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(victims), nil
}

// JoinWaitlist enqueues a student for promotion once a seat frees up. Only
// full schedules accept waitlist entries; an open schedule should be booked
// directly.
func (e *Engine) JoinWaitlist(ctx context.Context, scheduleID, studentID uuid.UUID) (uuid.UUID, error) {
	var entryID uuid.UUID

	err := e.trManager.Do(ctx, func(ctx context.Context) error {
		schedule, err := e.schedulesRepo.GetSchedule(ctx, scheduleID)
		if err != nil {
			return err
		}
		if err := e.checkBookable(schedule); err != nil {
			return err
		}

		count, err := e.bookingsRepo.CountActiveBySchedule(ctx, scheduleID)
		if err != nil {
			return err
		}
		if count < int64(schedule.Capacity) {
			return bdomain.ErrInvalid{Reason: "schedule still has free seats"}
		}

		entryID, err = e.waitlistRepo.Enqueue(ctx, scheduleID, studentID)
		return err
	})

	return entryID, err
}

func (e *Engine) checkBookable(schedule *sdomain.Schedule) error {
	if schedule.Status != sdomain.StatusScheduled {
		return bdomain.ErrUnavailable
	}

	now := e.now()
	if !schedule.StartTime.After(now) {
		return bdomain.ErrUnavailable
	}

	untilStart := schedule.StartTime.Sub(now)
	if untilStart < time.Duration(e.policy.MinBookingHours)*time.Hour {
		return bdomain.OutsideBookingWindowError{ScheduleId: schedule.Id, Start: schedule.StartTime, TooLate: true}
	}
	if e.policy.AdvanceBookingDays > 0 &&
		untilStart > time.Duration(e.policy.AdvanceBookingDays)*24*time.Hour {
		return bdomain.OutsideBookingWindowError{ScheduleId: schedule.Id, Start: schedule.StartTime}
	}

	return nil
}

func (e *Engine) resolveAmount(ctx context.Context, schedule *sdomain.Schedule) (decimal.Decimal, error) {
	if schedule.PriceOverride != nil {
		return *schedule.PriceOverride, nil
	}

	price, _, err := e.catalog.DefaultPrice(ctx, schedule.ClassId)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to resolve class price: %w", err)
	}

	return price, nil
}

func (e *Engine) publish(ctx context.Context, event entities.Event) error {
	tr := e.trGetter.DefaultTrOrDB(ctx, nil)
	if tr == nil {
		return fmt.Errorf("failed to get transaction from context")
	}

	publisher, err := outbox.NewPublisher(tr, e.watermillLogger)
	if err != nil {
		return fmt.Errorf("failed to create event publisher: %w", err)
	}

	eb, err := events.NewEventBus(publisher, e.watermillLogger)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}

	return eb.Publish(ctx, event)
}
