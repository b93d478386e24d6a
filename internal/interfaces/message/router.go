package message

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"

	"classbook/internal/entities"
	"classbook/internal/interfaces/message/commands"
	"classbook/internal/interfaces/message/events"
)

func NewRouter(
	watermillLogger watermill.LoggerAdapter,
	splitterSubscriber message.Subscriber,
	archiveSubscriber message.Subscriber,
	redisPublisher message.Publisher,

	eventHandler *events.Handler,
	commandsHandler *commands.Handler,

	marshaller cqrs.CommandEventMarshaler,
	eventProcessorConfig cqrs.EventProcessorConfig,
	commandProcessorConfig cqrs.CommandProcessorConfig,

	eventsRepo events.EventRepository,
) (*message.Router, error) {

	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, err
	}

	initMiddlewares(watermillLogger, router)

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, eventProcessorConfig)
	if err != nil {
		return nil, err
	}

	err = eventProcessor.AddHandlers(
		// BookingCreated handlers
		eventHandler.ChargeBookingHandler(),
		eventHandler.NotifyBookingReceivedHandler(),

		// BookingConfirmed handlers
		eventHandler.NotifyBookingConfirmedHandler(),

		// BookingCancelled handlers
		eventHandler.RefundOnCancellationHandler(),
		eventHandler.PromoteFromWaitlistHandler(),
		eventHandler.NotifyCancellationHandler(),

		// BookingRescheduled handlers
		eventHandler.SettleRescheduleDeltaHandler(),
		eventHandler.BackfillFreedSeatHandler(),

		// BookingCompleted handlers
		eventHandler.PayoutOnCompletionHandler(),

		// Payment handlers
		eventHandler.ConfirmOnPaymentHandler(),
		eventHandler.NotifyPaymentFailedHandler(),
		eventHandler.NotifyRefundHandler(),

		// ScheduleCancelled handlers
		eventHandler.CancelBookingsOnScheduleCancelHandler(),
	)
	if err != nil {
		return nil, err
	}

	commandsProcessor, err := cqrs.NewCommandProcessorWithConfig(router, commandProcessorConfig)
	if err != nil {
		return nil, err
	}
	err = commandsProcessor.AddHandlers(
		commandsHandler.RefundBookingHandler(),
	)
	if err != nil {
		return nil, err
	}

	router.AddNoPublisherHandler(
		"events_splitter",
		"events",
		splitterSubscriber,
		func(msg *message.Message) error {
			eventName := marshaller.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("cannot get event name from message")
			}

			return redisPublisher.Publish("events."+eventName, msg)
		},
	)

	router.AddNoPublisherHandler(
		"events_saver",
		"events",
		archiveSubscriber,
		func(msg *message.Message) error {
			type Event struct {
				Header entities.EventHeader `json:"header"`
			}

			var event Event
			err := marshaller.Unmarshal(msg, &event)
			if err != nil {
				return err
			}

			eventName := marshaller.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("cannot get event name from message")
			}

			id, err := uuid.Parse(event.Header.Id)
			if err != nil {
				return fmt.Errorf("failed to parse event id: %w", err)
			}

			err = eventsRepo.SaveEvent(
				msg.Context(),
				entities.DatalakeEvent{
					Id:          id,
					PublishedAt: event.Header.PublishedAt,
					EventName:   eventName,
					Payload:     msg.Payload,
				},
			)
			if err != nil {
				return fmt.Errorf("failed to save event %s: %w", eventName, err)
			}

			return err
		},
	)

	return router, nil
}

func initMiddlewares(watermillLogger watermill.LoggerAdapter, router *message.Router) {
	router.AddMiddleware(events.TracingMiddleware)
	router.AddMiddleware(middleware.Recoverer)
	router.AddMiddleware(events.CorrelationIDMiddleware)
	router.AddMiddleware(events.LoggingMiddleware)

	router.AddMiddleware(middleware.Retry{
		MaxRetries:      10,
		InitialInterval: time.Millisecond * 100,
		MaxInterval:     time.Second,
		Multiplier:      2,
		Logger:          watermillLogger,
	}.Middleware)

	// skip marshalling errors before retrying
	router.AddMiddleware(events.SkipMarshallingErrorsMiddleware)
	router.AddMiddleware(events.MetricsMiddleware)
}
