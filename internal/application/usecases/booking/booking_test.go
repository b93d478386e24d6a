package booking_test

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
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classbook/internal/application/usecases/booking"
	"classbook/internal/config"
	bdomain "classbook/internal/domain/bookings"
	sdomain "classbook/internal/domain/schedules"
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

// fakeCatalog satisfies prerequisites for every student unless blocked.
type fakeCatalog struct {
	price   decimal.Decimal
	blocked map[uuid.UUID]bool
}

func (c *fakeCatalog) DefaultPrice(context.Context, uuid.UUID) (decimal.Decimal, string, error) {
	return c.price, "USD", nil
}

func (c *fakeCatalog) CheckPrerequisites(_ context.Context, _, studentID uuid.UUID) (bool, error) {
	return !c.blocked[studentID], nil
}

type engineEnv struct {
	engine        *booking.Engine
	schedulesRepo *repository.SchedulesRepo
	bookingsRepo  *repository.BookingsRepo
	catalog       *fakeCatalog
}

func setupEngine(t *testing.T, policy config.PolicyConfig, now func() time.Time) *engineEnv {
	db := getDb(t)
	require.NoError(t, repository.InitializeDBSchema(db))

	// The outbox publisher needs its staging table.
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
	bookingsRepo := repository.NewBookingsRepo(db, trGetter)
	waitlistRepo := repository.NewWaitlistRepo(db, trGetter)
	catalog := &fakeCatalog{price: decimal.RequireFromString("50.00"), blocked: map[uuid.UUID]bool{}}

	engine := booking.NewEngine(
		bookingsRepo, schedulesRepo, waitlistRepo, catalog,
		trManager, trGetter, watermill.NopLogger{}, policy, now)

	return &engineEnv{
		engine:        engine,
		schedulesRepo: schedulesRepo,
		bookingsRepo:  bookingsRepo,
		catalog:       catalog,
	}
}

func testPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		CancellationHours:  24,
		MinBookingHours:    1,
		AdvanceBookingDays: 60,
		AutoConfirm:        true,
	}
}

func (e *engineEnv) createSchedule(t *testing.T, start time.Time, capacity int) uuid.UUID {
	id, err := e.schedulesRepo.CreateSchedule(context.Background(), sdomain.Schedule{
		ClassId:   uuid.New(),
		StartTime: start.UTC(),
		EndTime:   start.Add(time.Hour).UTC(),
		Capacity:  capacity,
		Currency:  "USD",
	})
	require.NoError(t, err)
	return id
}

func TestEngine_CreateBooking_Integration(t *testing.T) {
	env := setupEngine(t, testPolicy(), nil)
	ctx := context.Background()

	scheduleID := env.createSchedule(t, time.Now().Add(48*time.Hour), 2)

	t.Run("books and confirms", func(t *testing.T) {
		created, err := env.engine.CreateBooking(ctx, booking.CreateBookingReq{
			ScheduleID: scheduleID,
			StudentID:  uuid.New(),
		})
		require.NoError(t, err)

		assert.Equal(t, bdomain.StatusConfirmed, created.Status)
		assert.True(t, created.Amount.Equal(decimal.RequireFromString("50.00")))
		assert.NotEmpty(t, created.BookingCode)

		stored, err := env.engine.GetBooking(ctx, created.Id)
		require.NoError(t, err)
		assert.Equal(t, bdomain.StatusConfirmed, stored.Status)
	})

	t.Run("rejects a second active booking", func(t *testing.T) {
		studentID := uuid.New()

		_, err := env.engine.CreateBooking(ctx, booking.CreateBookingReq{
			ScheduleID: scheduleID, StudentID: studentID,
		})
		require.NoError(t, err)

		_, err = env.engine.CreateBooking(ctx, booking.CreateBookingReq{
			ScheduleID: scheduleID, StudentID: studentID,
		})
		assert.ErrorIs(t, err, bdomain.ErrAlreadyBooked)
	})

	t.Run("full schedule", func(t *testing.T) {
		// Capacity 2 is used up by the two previous subtests.
		_, err := env.engine.CreateBooking(ctx, booking.CreateBookingReq{
			ScheduleID: scheduleID, StudentID: uuid.New(),
		})
		assert.ErrorIs(t, err, bdomain.ErrScheduleFull)
	})

	t.Run("prerequisites", func(t *testing.T) {
		open := env.createSchedule(t, time.Now().Add(48*time.Hour), 5)
		blocked := uuid.New()
		env.catalog.blocked[blocked] = true

		_, err := env.engine.CreateBooking(ctx, booking.CreateBookingReq{
			ScheduleID: open, StudentID: blocked,
		})
		assert.ErrorIs(t, err, bdomain.ErrPrerequisiteUnmet)
	})

	t.Run("booking window", func(t *testing.T) {
		tooSoon := env.createSchedule(t, time.Now().Add(30*time.Minute), 5)
		_, err := env.engine.CreateBooking(ctx, booking.CreateBookingReq{
			ScheduleID: tooSoon, StudentID: uuid.New(),
		})

		var windowErr bdomain.OutsideBookingWindowError
		require.ErrorAs(t, err, &windowErr)
		assert.True(t, windowErr.TooLate)

		tooFar := env.createSchedule(t, time.Now().Add(90*24*time.Hour), 5)
		_, err = env.engine.CreateBooking(ctx, booking.CreateBookingReq{
			ScheduleID: tooFar, StudentID: uuid.New(),
		})

		require.ErrorAs(t, err, &windowErr)
		assert.False(t, windowErr.TooLate)
	})
}

func TestEngine_CreateBooking_Concurrent_Integration(t *testing.T) {
	env := setupEngine(t, testPolicy(), nil)
	ctx := context.Background()

	const capacity = 2
	const contenders = 6
	scheduleID := env.createSchedule(t, time.Now().Add(48*time.Hour), capacity)

	var wg sync.WaitGroup
	errCh := make(chan error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := env.engine.CreateBooking(ctx, booking.CreateBookingReq{
				ScheduleID: scheduleID, StudentID: uuid.New(),
			})
			errCh <- err
		}()
	}

	wg.Wait()
	close(errCh)

	successes := 0
	for err := range errCh {
		if err == nil {
			successes++
		}
	}

	count, err := env.bookingsRepo.CountActiveBySchedule(ctx, scheduleID)
	require.NoError(t, err)

	assert.Equal(t, int64(successes), count)
	assert.LessOrEqual(t, count, int64(capacity), "capacity must never be exceeded")
}

func TestEngine_Cancel_Integration(t *testing.T) {
	fixedNow := time.Now()
	env := setupEngine(t, testPolicy(), func() time.Time { return fixedNow })
	ctx := context.Background()

	t.Run("inside the cancellation window", func(t *testing.T) {
		// Starts in 2h, policy requires 24h notice.
		scheduleID := env.createSchedule(t, fixedNow.Add(2*time.Hour), 5)

		created, err := env.engine.CreateBooking(ctx, booking.CreateBookingReq{
			ScheduleID: scheduleID, StudentID: uuid.New(),
		})
		require.NoError(t, err)

		err = env.engine.CancelBooking(ctx, created.Id, "changed my mind")
		var policyErr bdomain.PolicyViolationError
		require.ErrorAs(t, err, &policyErr)
		assert.Equal(t, 24, policyErr.CancellationHours)

		// A forced cancel ignores the window.
		require.NoError(t, env.engine.ForceCancelBooking(ctx, created.Id, "schedule cancelled"))

		cancelled, err := env.engine.GetBooking(ctx, created.Id)
		require.NoError(t, err)
		assert.Equal(t, bdomain.StatusCancelled, cancelled.Status)
	})

	t.Run("outside the window", func(t *testing.T) {
		scheduleID := env.createSchedule(t, fixedNow.Add(72*time.Hour), 5)

		created, err := env.engine.CreateBooking(ctx, booking.CreateBookingReq{
			ScheduleID: scheduleID, StudentID: uuid.New(),
		})
		require.NoError(t, err)

		require.NoError(t, env.engine.CancelBooking(ctx, created.Id, "conflict"))

		err = env.engine.CancelBooking(ctx, created.Id, "again")
		var notCancellable bdomain.NotCancellableError
		assert.ErrorAs(t, err, &notCancellable)
	})
}

func TestEngine_Reschedule_Integration(t *testing.T) {
	env := setupEngine(t, testPolicy(), nil)
	ctx := context.Background()

	scheduleID := env.createSchedule(t, time.Now().Add(48*time.Hour), 5)

	created, err := env.engine.CreateBooking(ctx, booking.CreateBookingReq{
		ScheduleID: scheduleID, StudentID: uuid.New(),
	})
	require.NoError(t, err)

	t.Run("moves and reprices", func(t *testing.T) {
		override := decimal.RequireFromString("75.00")
		target, err := env.schedulesRepo.CreateSchedule(ctx, sdomain.Schedule{
			ClassId:       uuid.New(),
			StartTime:     time.Now().Add(72 * time.Hour).UTC(),
			EndTime:       time.Now().Add(73 * time.Hour).UTC(),
			Capacity:      5,
			PriceOverride: &override,
			Currency:      "USD",
		})
		require.NoError(t, err)

		moved, err := env.engine.RescheduleBooking(ctx, created.Id, target)
		require.NoError(t, err)

		assert.Equal(t, target, moved.ScheduleId)
		assert.True(t, moved.Amount.Equal(override))
	})

	t.Run("cross-currency is rejected", func(t *testing.T) {
		euro, err := env.schedulesRepo.CreateSchedule(ctx, sdomain.Schedule{
			ClassId:   uuid.New(),
			StartTime: time.Now().Add(72 * time.Hour).UTC(),
			EndTime:   time.Now().Add(73 * time.Hour).UTC(),
			Capacity:  5,
			Currency:  "EUR",
		})
		require.NoError(t, err)

		_, err = env.engine.RescheduleBooking(ctx, created.Id, euro)
		var invalid bdomain.ErrInvalid
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestEngine_JoinWaitlist_Integration(t *testing.T) {
	env := setupEngine(t, testPolicy(), nil)
	ctx := context.Background()

	scheduleID := env.createSchedule(t, time.Now().Add(48*time.Hour), 1)

	// An open schedule rejects waitlisting.
	_, err := env.engine.JoinWaitlist(ctx, scheduleID, uuid.New())
	var invalid bdomain.ErrInvalid
	require.ErrorAs(t, err, &invalid)

	_, err = env.engine.CreateBooking(ctx, booking.CreateBookingReq{
		ScheduleID: scheduleID, StudentID: uuid.New(),
	})
	require.NoError(t, err)

	entryID, err := env.engine.JoinWaitlist(ctx, scheduleID, uuid.New())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, entryID)
}

func TestEngine_CleanupExpiredPending_Integration(t *testing.T) {
	policy := testPolicy()
	policy.AutoConfirm = false
	env := setupEngine(t, policy, nil)
	ctx := context.Background()

	scheduleID := env.createSchedule(t, time.Now().Add(48*time.Hour), 5)

	created, err := env.engine.CreateBooking(ctx, booking.CreateBookingReq{
		ScheduleID: scheduleID, StudentID: uuid.New(),
	})
	require.NoError(t, err)
	require.Equal(t, bdomain.StatusPending, created.Status)

	_, err = getDb(t).Exec(
		`UPDATE bookings SET created_at = now() - INTERVAL '1 hour' WHERE id = $1`, created.Id)
	require.NoError(t, err)

	count, err := env.engine.CleanupExpiredPending(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expired, err := env.engine.GetBooking(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, bdomain.StatusCancelled, expired.Status)

	// Nothing left to sweep.
	count, err = env.engine.CleanupExpiredPending(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, count)
}
