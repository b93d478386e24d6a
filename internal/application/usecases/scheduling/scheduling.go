package scheduling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	trmanager "github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/avito-tech/go-transaction-manager/trm/v2/settings"
	"github.com/google/uuid"

	domain "classbook/internal/domain/schedules"
	"classbook/internal/entities"
	"classbook/internal/interfaces/message/events"
	"classbook/internal/interfaces/message/outbox"
	"classbook/internal/observability/log"
)

type SchedulesRepo interface {
	CreateSchedule(ctx context.Context, schedule domain.Schedule) (uuid.UUID, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	FindOverlappingByInstructor(ctx context.Context, instructorID uuid.UUID, candidate domain.Schedule) ([]uuid.UUID, error)
	FindOverlappingByResource(ctx context.Context, resourceID uuid.UUID, candidate domain.Schedule) ([]uuid.UUID, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error
}

type AvailabilityRepo interface {
	WindowsForInstructor(ctx context.Context, instructorID uuid.UUID) ([]domain.WeeklyWindow, error)
	BlackoutsForInstructor(ctx context.Context, instructorID uuid.UUID) ([]domain.Blackout, error)
}

// Engine validates and creates schedules. Conflict check and insert run in
// one serializable transaction so two concurrent requests for the same
// instructor slot cannot both land.
type Engine struct {
	schedulesRepo    SchedulesRepo
	availabilityRepo AvailabilityRepo
	trManager        *trmanager.Manager
	trGetter         *trmsqlx.CtxGetter
	watermillLogger  watermill.LoggerAdapter
	now              func() time.Time
}

func NewEngine(
	schedulesRepo SchedulesRepo,
	availabilityRepo AvailabilityRepo,
	trManager *trmanager.Manager,
	trGetter *trmsqlx.CtxGetter,
	watermillLogger watermill.LoggerAdapter,
	now func() time.Time,
) *Engine {
	if now == nil {
		now = time.Now
	}

	return &Engine{
		schedulesRepo:    schedulesRepo,
		availabilityRepo: availabilityRepo,
		trManager:        trManager,
		trGetter:         trGetter,
		watermillLogger:  watermillLogger,
		now:              now,
	}
}

type CreateScheduleRequest struct {
	Schedule      domain.Schedule
	Recurrence    *domain.RecurrenceRule
	RecurrenceEnd *time.Time
}

type SkippedOccurrence struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

// BatchResult reports what a (possibly recurring) creation actually did.
// Skipped occurrences are an explicit part of the result, never silent.
type BatchResult struct {
	CreatedIds []uuid.UUID         `json:"created_ids"`
	Skipped    []SkippedOccurrence `json:"skipped"`
}

// CreateSchedule creates one schedule, or the whole expansion of a
// recurring one. For a single schedule a conflict is an error; within a
// recurring batch a conflicting occurrence is skipped and reported while
// the rest of the batch proceeds.
func (e *Engine) CreateSchedule(ctx context.Context, req CreateScheduleRequest) (*BatchResult, error) {
	if err := req.Schedule.Validate(); err != nil {
		return nil, err
	}

	occurrences := []domain.Occurrence{{Start: req.Schedule.StartTime, End: req.Schedule.EndTime}}
	recurring := req.Recurrence != nil
	if recurring {
		if err := req.Recurrence.Validate(); err != nil {
			return nil, err
		}

		until := req.Schedule.StartTime.AddDate(10, 0, 0)
		if req.RecurrenceEnd != nil {
			until = *req.RecurrenceEnd
		}

		occurrences = domain.Expand(*req.Recurrence, req.Schedule.StartTime, req.Schedule.EndTime, until)
	}

	result := &BatchResult{}
	for _, occ := range occurrences {
		candidate := req.Schedule
		candidate.StartTime = occ.Start
		candidate.EndTime = occ.End

		id, err := e.createOne(ctx, candidate)
		if err != nil {
			var conflictErr domain.ConflictError
			var availabilityErr domain.AvailabilityError
			if recurring && (errors.As(err, &conflictErr) || errors.As(err, &availabilityErr)) {
				result.Skipped = append(result.Skipped, SkippedOccurrence{
					Start:  occ.Start,
					End:    occ.End,
					Reason: err.Error(),
				})
				continue
			}
			return nil, err
		}

		result.CreatedIds = append(result.CreatedIds, id)
	}

	return result, nil
}

func (e *Engine) createOne(ctx context.Context, candidate domain.Schedule) (uuid.UUID, error) {
	var id uuid.UUID

	err := WithSerializableRetry(3, func(ctx context.Context) error {
		return e.trManager.DoWithSettings(
			ctx,
			trmsql.MustSettings(
				settings.Must(settings.WithCancelable(true)),
				trmsql.WithTxOptions(&sql.TxOptions{Isolation: sql.LevelSerializable}),
			),
			func(ctx context.Context) error {
				if err := e.ValidateNewSchedule(ctx, candidate); err != nil {
					return err
				}

				if candidate.InstructorId != nil {
					if err := e.ValidateAvailability(ctx, *candidate.InstructorId, candidate.StartTime); err != nil {
						return err
					}
				}

				var err error
				id, err = e.schedulesRepo.CreateSchedule(ctx, candidate)
				if err != nil {
					return fmt.Errorf("failed to create schedule: %w", err)
				}

				return nil
			})
	})(ctx)

	return id, err
}

// ValidateNewSchedule checks the candidate against existing non-cancelled
// schedules, independently for its instructor and its resource.
func (e *Engine) ValidateNewSchedule(ctx context.Context, candidate domain.Schedule) error {
	if candidate.InstructorId != nil {
		ids, err := e.schedulesRepo.FindOverlappingByInstructor(ctx, *candidate.InstructorId, candidate)
		if err != nil {
			return fmt.Errorf("failed to check instructor conflicts: %w", err)
		}
		if len(ids) > 0 {
			return domain.ConflictError{
				Role:           domain.RoleInstructor,
				SubjectId:      *candidate.InstructorId,
				ConflictingIds: ids,
			}
		}
	}

	if candidate.ResourceId != nil {
		ids, err := e.schedulesRepo.FindOverlappingByResource(ctx, *candidate.ResourceId, candidate)
		if err != nil {
			return fmt.Errorf("failed to check resource conflicts: %w", err)
		}
		if len(ids) > 0 {
			return domain.ConflictError{
				Role:           domain.RoleResource,
				SubjectId:      *candidate.ResourceId,
				ConflictingIds: ids,
			}
		}
	}

	return nil
}

// ValidateAvailability checks the instant against the instructor's weekly
// windows and blackout dates. An instructor with no declared windows is
// treated as always available.
func (e *Engine) ValidateAvailability(ctx context.Context, instructorID uuid.UUID, instant time.Time) error {
	blackouts, err := e.availabilityRepo.BlackoutsForInstructor(ctx, instructorID)
	if err != nil {
		return fmt.Errorf("failed to load blackouts: %w", err)
	}
	for _, b := range blackouts {
		if b.Contains(instant) {
			return domain.AvailabilityError{InstructorId: instructorID, Instant: instant, Blackout: true}
		}
	}

	windows, err := e.availabilityRepo.WindowsForInstructor(ctx, instructorID)
	if err != nil {
		return fmt.Errorf("failed to load availability windows: %w", err)
	}
	if len(windows) == 0 {
		return nil
	}

	for _, w := range windows {
		if w.Contains(instant) {
			return nil
		}
	}

	return domain.AvailabilityError{InstructorId: instructorID, Instant: instant}
}

func (e *Engine) GetSchedule(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	return e.schedulesRepo.GetSchedule(ctx, id)
}

// CancelSchedule soft-cancels; schedules are never deleted once bookings
// exist against them.
func (e *Engine) CancelSchedule(ctx context.Context, id uuid.UUID) error {
	return e.trManager.Do(ctx, func(ctx context.Context) error {
		if err := e.schedulesRepo.UpdateStatus(ctx, id, domain.StatusCancelled); err != nil {
			return err
		}

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

		return eb.Publish(ctx, entities.ScheduleCancelled_v1{
			Header:     entities.NewEventHeader(),
			ScheduleID: id,
		})
	})
}

func (e *Engine) CompleteSchedule(ctx context.Context, id uuid.UUID) error {
	return e.schedulesRepo.UpdateStatus(ctx, id, domain.StatusCompleted)
}

// WithSerializableRetry retries f on postgres serialization failures
// (SQLSTATE 40001), which serializable transactions raise under contention.
func WithSerializableRetry(attempts int, f func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var lastErr error
		for i := 0; i < attempts; i++ {
			err := f(ctx)
			if err == nil {
				return nil
			}

			if isSerializationFailure(err) {
				log.FromContext(ctx).
					WithField("attempt", i+1).
					Warn("serialization failure, retrying")
				lastErr = err
				continue
			}

			return err
		}
		return lastErr
	}
}
