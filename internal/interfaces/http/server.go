package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classbook/internal/application/usecases/booking"
	"classbook/internal/application/usecases/payments"
	"classbook/internal/application/usecases/scheduling"
	"classbook/internal/application/usecases/waitlist"
	"classbook/internal/infrastructure/clients"
	"classbook/internal/observability/log"
)

type Server struct {
	e    *echo.Echo
	addr string

	schedulingEngine *scheduling.Engine
	bookingEngine    *booking.Engine
	orchestrator     *payments.Orchestrator
	waitlistCoord    *waitlist.Coordinator
	gateway          *clients.GatewayClient
	commandBus       *cqrs.CommandBus
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func NewServer(
	addr string,
	schedulingEngine *scheduling.Engine,
	bookingEngine *booking.Engine,
	orchestrator *payments.Orchestrator,
	waitlistCoord *waitlist.Coordinator,
	gateway *clients.GatewayClient,
	commandBus *cqrs.CommandBus,
	routerIsRunning func() bool,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Validator = &requestValidator{validate: validator.New()}

	srv := &Server{
		e:                e,
		addr:             addr,
		schedulingEngine: schedulingEngine,
		bookingEngine:    bookingEngine,
		orchestrator:     orchestrator,
		waitlistCoord:    waitlistCoord,
		gateway:          gateway,
		commandBus:       commandBus,
	}

	e.POST("/schedules", srv.CreateScheduleHandler)
	e.GET("/schedules/:id", srv.GetScheduleHandler)
	e.POST("/schedules/:id/cancel", srv.CancelScheduleHandler)
	e.POST("/schedules/:id/complete", srv.CompleteScheduleHandler)
	e.GET("/schedules/:id/waitlist", srv.WaitlistLengthHandler)

	e.POST("/bookings", srv.CreateBookingHandler)
	e.GET("/bookings/:id", srv.GetBookingHandler)
	e.POST("/bookings/:id/cancel", srv.CancelBookingHandler)
	e.POST("/bookings/:id/confirm", srv.ConfirmBookingHandler)
	e.POST("/bookings/:id/reschedule", srv.RescheduleBookingHandler)
	e.POST("/bookings/:id/attended", srv.AttendedHandler)
	e.POST("/bookings/:id/no-show", srv.NoShowHandler)

	e.POST("/waitlist", srv.JoinWaitlistHandler)

	e.GET("/payments/quote", srv.QuoteHandler)
	e.POST("/payments/:booking_id/charge", srv.ChargeHandler)
	e.POST("/payments/:booking_id/refund", srv.RefundHandler)
	e.POST("/payments/webhook", srv.WebhookHandler)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		if !routerIsRunning() {
			return c.String(http.StatusServiceUnavailable, "router is not running")
		}
		return c.String(http.StatusOK, "ok")
	})

	// logging middleware
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log.FromContext(c.Request().Context()).
				WithField("path", c.Request().URL.Path).
				Info("Handling a request")

			err := next(c)

			if err != nil {
				log.FromContext(c.Request().Context()).
					WithField("error", err).
					Error("Request handling error")
			}

			return err
		}
	})

	return srv
}

func (s *Server) Start() error {
	err := s.e.Start(s.addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
