package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"classbook/internal/application/usecases/booking"
)

type CreateBookingRequest struct {
	ScheduleID uuid.UUID `json:"schedule_id" validate:"required"`
	StudentID  uuid.UUID `json:"student_id" validate:"required"`
	Notes      string    `json:"notes"`
}

func (s *Server) CreateBookingHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var request CreateBookingRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	booked, err := s.bookingEngine.CreateBooking(ctx, booking.CreateBookingReq{
		ScheduleID: request.ScheduleID,
		StudentID:  request.StudentID,
		Notes:      request.Notes,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, booked)
}

func (s *Server) GetBookingHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	found, err := s.bookingEngine.GetBooking(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, found)
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelBookingHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	var request CancelBookingRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	if err := s.bookingEngine.CancelBooking(c.Request().Context(), id, request.Reason); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ConfirmBookingHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	confirmed, err := s.bookingEngine.ConfirmBooking(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, confirmed)
}

type RescheduleBookingRequest struct {
	NewScheduleID uuid.UUID `json:"new_schedule_id" validate:"required"`
}

func (s *Server) RescheduleBookingHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	var request RescheduleBookingRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	moved, err := s.bookingEngine.RescheduleBooking(c.Request().Context(), id, request.NewScheduleID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, moved)
}

func (s *Server) AttendedHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	if err := s.bookingEngine.MarkAttended(c.Request().Context(), id); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) NoShowHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid booking id")
	}

	if err := s.bookingEngine.MarkNoShow(c.Request().Context(), id); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}
