package scheduling_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	watermillSQL "github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classbook/internal/application/usecases/scheduling"
	domain "classbook/internal/domain/schedules"
	"classbook/internal/interfaces/message/outbox"
	"classbook/internal/repository"
)

var db *sqlx.DB
var getDbOnce sync.Once

func getDb(t *testing.T) *sqlx.DB {
	if os.Getenv("POSTGRES_URL") == "" {
		t.Skip("POSTGRES_URL is not set")
	}

	getDbOnce.Do(func() {
		var err error
		db, err = sqlx.Open("postgres", os.Getenv("POSTGRES_URL"))
		if err != nil {
			panic(err)
		}
	})
	return db
}

// fakeAvailability holds declared windows and blackouts in memory.
type fakeAvailability struct {
	windows   map[uuid.UUID][]domain.WeeklyWindow
	blackouts map[uuid.UUID][]domain.Blackout
}

func (a *fakeAvailability) WindowsForInstructor(_ context.Context, id uuid.UUID) ([]domain.WeeklyWindow, error) {
	return a.windows[id], nil
}

func (a *fakeAvailability) BlackoutsForInstructor(_ context.Context, id uuid.UUID) ([]domain.Blackout, error) {
	return a.blackouts[id], nil
}

func setupScheduling(t *testing.T) (*scheduling.Engine, *fakeAvailability, *repository.SchedulesRepo) {
	db := getDb(t)
	require.NoError(t, repository.InitializeDBSchema(db))

	subscriber, err := watermillSQL.NewSubscriber(db, watermillSQL.SubscriberConfig{
		SchemaAdapter:  watermillSQL.DefaultPostgreSQLSchema{},
		OffsetsAdapter: watermillSQL.DefaultPostgreSQLOffsetsAdapter{},
	}, watermill.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, subscriber.SubscribeInitialize(outbox.Topic))

	t.Cleanup(func() {
		_, err := db.Exec(`TRUNCATE TABLE waitlist_entries, payments, bookings, schedules CASCADE`)
		require.NoError(t, err)
	})

	trManager := manager.Must(trmsqlx.NewDefaultFactory(db))
	trGetter := trmsqlx.DefaultCtxGetter

	schedulesRepo := repository.NewSchedulesRepo(db, trGetter)
	availability := &fakeAvailability{
		windows:   map[uuid.UUID][]domain.WeeklyWindow{},
		blackouts: map[uuid.UUID][]domain.Blackout{},
	}

	engine := scheduling.NewEngine(
		schedulesRepo, availability, trManager, trGetter, watermill.NopLogger{}, nil)

	return engine, availability, schedulesRepo
}

func candidate(start time.Time) domain.Schedule {
	return domain.Schedule{
		ClassId:   uuid.New(),
		StartTime: start.UTC(),
		EndTime:   start.Add(time.Hour).UTC(),
		Capacity:  10,
		Currency:  "USD",
	}
}

func TestEngine_CreateSchedule_Integration(t *testing.T) {
	engine, _, _ := setupScheduling(t)
	ctx := context.Background()

	start := time.Now().Add(48 * time.Hour)

	t.Run("creates a single schedule", func(t *testing.T) {
		result, err := engine.CreateSchedule(ctx, scheduling.CreateScheduleRequest{
			Schedule: candidate(start),
		})
		require.NoError(t, err)

		require.Len(t, result.CreatedIds, 1)
		assert.Empty(t, result.Skipped)

		created, err := engine.GetSchedule(ctx, result.CreatedIds[0])
		require.NoError(t, err)
		assert.Equal(t, domain.StatusScheduled, created.Status)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		bad := candidate(start)
		bad.Capacity = 0

		_, err := engine.CreateSchedule(ctx, scheduling.CreateScheduleRequest{Schedule: bad})

		var invalid domain.ErrInvalid
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestEngine_ConflictDetection_Integration(t *testing.T) {
	engine, _, _ := setupScheduling(t)
	ctx := context.Background()

	instructorID := uuid.New()
	resourceID := uuid.New()
	start := time.Now().Add(48 * time.Hour)

	first := candidate(start)
	first.InstructorId = &instructorID
	first.ResourceId = &resourceID

	_, err := engine.CreateSchedule(ctx, scheduling.CreateScheduleRequest{Schedule: first})
	require.NoError(t, err)

	t.Run("instructor double-booking", func(t *testing.T) {
		overlapping := candidate(start.Add(30 * time.Minute))
		overlapping.InstructorId = &instructorID

		_, err := engine.CreateSchedule(ctx, scheduling.CreateScheduleRequest{Schedule: overlapping})

		var conflict domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, domain.RoleInstructor, conflict.Role)
		assert.Equal(t, instructorID, conflict.SubjectId)
		assert.Len(t, conflict.ConflictingIds, 1)
	})

	t.Run("resource double-booking", func(t *testing.T) {
		overlapping := candidate(start.Add(30 * time.Minute))
		overlapping.ResourceId = &resourceID

		_, err := engine.CreateSchedule(ctx, scheduling.CreateScheduleRequest{Schedule: overlapping})

		var conflict domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, domain.RoleResource, conflict.Role)
	})

	t.Run("back-to-back is not a conflict", func(t *testing.T) {
		adjacent := candidate(start.Add(time.Hour))
		adjacent.InstructorId = &instructorID
		adjacent.ResourceId = &resourceID

		result, err := engine.CreateSchedule(ctx, scheduling.CreateScheduleRequest{Schedule: adjacent})
		require.NoError(t, err)
		assert.Len(t, result.CreatedIds, 1)
	})

	t.Run("different instructor and resource", func(t *testing.T) {
		other := candidate(start)
		otherInstructor := uuid.New()
		other.InstructorId = &otherInstructor

		result, err := engine.CreateSchedule(ctx, scheduling.CreateScheduleRequest{Schedule: other})
		require.NoError(t, err)
		assert.Len(t, result.CreatedIds, 1)
	})
}

func TestEngine_RecurringBatch_Integration(t *testing.T) {
	engine, availability, _ := setupScheduling(t)
	ctx := context.Background()

	instructorID := uuid.New()
	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour)

	// Block the second occurrence's date.
	availability.blackouts[instructorID] = []domain.Blackout{
		{InstructorId: instructorID, Date: start.AddDate(0, 0, 7)},
	}

	weekly := candidate(start)
	weekly.InstructorId = &instructorID
	until := start.AddDate(0, 0, 21)

	result, err := engine.CreateSchedule(ctx, scheduling.CreateScheduleRequest{
		Schedule:      weekly,
		Recurrence:    &domain.RecurrenceRule{Freq: domain.FreqWeekly},
		RecurrenceEnd: &until,
	})
	require.NoError(t, err)

	// Three weekly occurrences, the blacked-out one skipped and reported.
	assert.Len(t, result.CreatedIds, 2)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, start.AddDate(0, 0, 7).UTC(), result.Skipped[0].Start.UTC())
	assert.Contains(t, result.Skipped[0].Reason, "blackout")
}

func TestEngine_Availability_Integration(t *testing.T) {
	engine, availability, _ := setupScheduling(t)
	ctx := context.Background()

	instructorID := uuid.New()

	// Next Monday at 12:00 UTC.
	start := time.Now().UTC().AddDate(0, 0, 7)
	for start.Weekday() != time.Monday {
		start = start.AddDate(0, 0, 1)
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 12, 0, 0, 0, time.UTC)

	availability.windows[instructorID] = []domain.WeeklyWindow{
		{InstructorId: instructorID, Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60},
	}

	t.Run("inside the declared window", func(t *testing.T) {
		inside := candidate(start)
		inside.InstructorId = &instructorID

		result, err := engine.CreateSchedule(ctx, scheduling.CreateScheduleRequest{Schedule: inside})
		require.NoError(t, err)
		assert.Len(t, result.CreatedIds, 1)
	})

	t.Run("outside the declared window", func(t *testing.T) {
		evening := candidate(start.Add(8 * time.Hour))
		evening.InstructorId = &instructorID

		_, err := engine.CreateSchedule(ctx, scheduling.CreateScheduleRequest{Schedule: evening})

		var availErr domain.AvailabilityError
		require.ErrorAs(t, err, &availErr)
		assert.False(t, availErr.Blackout)
	})

	t.Run("undeclared instructors are always available", func(t *testing.T) {
		anytime := candidate(start.Add(10 * time.Hour))
		other := uuid.New()
		anytime.InstructorId = &other

		result, err := engine.CreateSchedule(ctx, scheduling.CreateScheduleRequest{Schedule: anytime})
		require.NoError(t, err)
		assert.Len(t, result.CreatedIds, 1)
	})
}

func TestEngine_CancelSchedule_Integration(t *testing.T) {
	engine, _, schedulesRepo := setupScheduling(t)
	ctx := context.Background()

	result, err := engine.CreateSchedule(ctx, scheduling.CreateScheduleRequest{
		Schedule: candidate(time.Now().Add(48 * time.Hour)),
	})
	require.NoError(t, err)
	id := result.CreatedIds[0]

	require.NoError(t, engine.CancelSchedule(ctx, id))

	cancelled, err := schedulesRepo.GetSchedule(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	assert.ErrorIs(t, engine.CancelSchedule(ctx, uuid.New()), domain.ErrNotFound)
}
