package app

import (
	"context"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	watermillMessage "github.com/ThreeDotsLabs/watermill/message"
	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"classbook/internal/application/usecases/booking"
	"classbook/internal/application/usecases/payments"
	"classbook/internal/application/usecases/scheduling"
	"classbook/internal/application/usecases/waitlist"
	"classbook/internal/config"
	"classbook/internal/infrastructure/clients"
	"classbook/internal/infrastructure/event_publisher"
	"classbook/internal/interfaces/http"
	"classbook/internal/interfaces/message"
	"classbook/internal/interfaces/message/commands"
	"classbook/internal/interfaces/message/events"
	"classbook/internal/interfaces/message/outbox"
	"classbook/internal/observability"
	"classbook/internal/repository"
)

type App struct {
	cfg             config.Config
	watermillLogger watermill.LoggerAdapter
	logger          zerolog.Logger

	db            *sqlx.DB
	redisClient   *redis.Client
	router        *watermillMessage.Router
	forwarder     *outbox.Forwarder
	srv           *http.Server
	bookingEngine *booking.Engine
	orchestrator  *payments.Orchestrator
}

func NewApp(cfg config.Config, watermillLogger watermill.LoggerAdapter) (*App, error) {
	db, err := sqlx.Connect("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})

	trManager := manager.Must(trmsqlx.NewDefaultFactory(db))
	trGetter := trmsqlx.DefaultCtxGetter

	schedulesRepo := repository.NewSchedulesRepo(db, trGetter)
	bookingsRepo := repository.NewBookingsRepo(db, trGetter)
	paymentsRepo := repository.NewPaymentsRepo(db, trGetter)
	waitlistRepo := repository.NewWaitlistRepo(db, trGetter)
	availabilityRepo := repository.NewAvailabilityRepo(db, trGetter)
	eventsRepo := repository.NewEventsRepo(db)

	// Non-transactional readers (instructor lookups for payouts) go through
	// the cache; every critical section reads the repo directly.
	scheduleCache := repository.NewScheduleCache(schedulesRepo)

	gatewayClient := clients.NewGatewayClient(clients.GatewayConfig{
		BaseURL: cfg.GatewayURL,
		Secret:  cfg.GatewaySecret,
		Name:    cfg.GatewayName,
	})
	catalogClient := clients.NewCatalogClient(cfg.CatalogURL)
	notificationClient := clients.NewNotificationClient(cfg.NotificationURL)

	schedulingEngine := scheduling.NewEngine(
		schedulesRepo, availabilityRepo, trManager, trGetter, watermillLogger, nil)
	bookingEngine := booking.NewEngine(
		bookingsRepo, schedulesRepo, waitlistRepo, catalogClient,
		trManager, trGetter, watermillLogger, cfg.Policy, nil)
	orchestrator := payments.NewOrchestrator(
		paymentsRepo, bookingsRepo, scheduleCache, gatewayClient, catalogClient,
		trManager, trGetter, watermillLogger, cfg.Policy)
	waitlistCoord := waitlist.NewCoordinator(
		waitlistRepo, schedulesRepo, bookingsRepo, bookingEngine, cfg.Policy)

	redisPublisher, err := outbox.NewRedisPublisher(watermillLogger, redisClient)
	if err != nil {
		return nil, err
	}
	decoratedPublisher := event_publisher.CorrelationPublisherDecorator{Publisher: redisPublisher}

	commandBus, err := commands.NewCommandBus(decoratedPublisher, watermillLogger)
	if err != nil {
		return nil, err
	}

	eventsHandler := events.NewHandler(
		orchestrator, bookingEngine, bookingsRepo, waitlistCoord, notificationClient,
		scheduleCache, cfg.Policy)
	commandsHandler := commands.NewHandler(orchestrator)

	splitterSubscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        redisClient,
		ConsumerGroup: "svc-classbook.events-splitter",
	}, watermillLogger)
	if err != nil {
		return nil, err
	}
	archiveSubscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        redisClient,
		ConsumerGroup: "svc-classbook.events-archive",
	}, watermillLogger)
	if err != nil {
		return nil, err
	}

	router, err := message.NewRouter(
		watermillLogger,
		splitterSubscriber,
		archiveSubscriber,
		decoratedPublisher,
		eventsHandler,
		commandsHandler,
		cqrs.JSONMarshaler{GenerateName: cqrs.StructName},
		events.NewEventProcessorConfig(redisClient, watermillLogger),
		commands.NewCommandProcessorConfig(redisClient, watermillLogger),
		eventsRepo,
	)
	if err != nil {
		return nil, err
	}

	forwarder, err := outbox.NewForwarder(db, redisClient, watermillLogger)
	if err != nil {
		return nil, err
	}

	srv := http.NewServer(
		cfg.HTTPAddr,
		schedulingEngine,
		bookingEngine,
		orchestrator,
		waitlistCoord,
		gatewayClient,
		commandBus,
		router.IsRunning,
	)

	observability.ConfigureTraceProvider()

	return &App{
		cfg:             cfg,
		watermillLogger: watermillLogger,
		logger:          zerolog.New(os.Stdout).With().Timestamp().Logger(),
		db:              db,
		redisClient:     redisClient,
		router:          router,
		forwarder:       forwarder,
		srv:             srv,
		bookingEngine:   bookingEngine,
		orchestrator:    orchestrator,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	if err := repository.InitializeDBSchema(a.db); err != nil {
		return err
	}

	a.forwarder.RunForwarder(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Msg("starting router")

		return a.router.Run(ctx)
	})

	g.Go(func() error {
		<-a.router.Running()
		a.logger.Info().Msg("router is running")

		a.logger.Info().Msg("starting server")
		return a.srv.Start()
	})

	g.Go(func() error {
		return a.runExpirySweeper(ctx)
	})

	g.Go(func() error {
		return a.runReconcileSweeper(ctx)
	})

	g.Go(func() error {
		// Shut down
		<-ctx.Done()

		err := a.srv.Stop(context.Background())
		if err != nil {
			a.logger.Err(err).Msg("error stopping server")
		}

		return err
	})

	return g.Wait()
}

// runExpirySweeper cancels stale pending bookings on a fixed cadence. The
// sweep is idempotent, so overlapping runs across replicas are harmless.
func (a *App) runExpirySweeper(ctx context.Context) error {
	expiry := time.Duration(a.cfg.Policy.PendingExpiryMinutes) * time.Minute
	if expiry <= 0 {
		return nil
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			count, err := a.bookingEngine.CleanupExpiredPending(ctx, expiry)
			if err != nil {
				a.logger.Err(err).Msg("expiry sweep failed")
				continue
			}
			if count > 0 {
				a.logger.Info().Int("cancelled", count).Msg("expired pending bookings")
			}
		}
	}
}

// runReconcileSweeper polls the gateway for payments stuck in flight, the
// backstop for webhook deliveries that never arrived.
func (a *App) runReconcileSweeper(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			count, err := a.orchestrator.ReconcileStale(ctx, 15*time.Minute)
			if err != nil {
				a.logger.Err(err).Msg("reconciliation sweep failed")
				continue
			}
			if count > 0 {
				a.logger.Info().Int("reconciled", count).Msg("reconciled stale payments")
			}
		}
	}
}
