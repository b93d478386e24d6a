package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type JoinWaitlistRequest struct {
	ScheduleID uuid.UUID `json:"schedule_id" validate:"required"`
	StudentID  uuid.UUID `json:"student_id" validate:"required"`
}

type JoinWaitlistResponse struct {
	EntryID uuid.UUID `json:"entry_id"`
}

func (s *Server) JoinWaitlistHandler(c echo.Context) error {
	var request JoinWaitlistRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	entryID, err := s.bookingEngine.JoinWaitlist(c.Request().Context(), request.ScheduleID, request.StudentID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, JoinWaitlistResponse{EntryID: entryID})
}

type WaitlistLengthResponse struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	Length     int64     `json:"length"`
}

func (s *Server) WaitlistLengthHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid schedule id")
	}

	length, err := s.waitlistCoord.QueueLength(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, WaitlistLengthResponse{ScheduleID: id, Length: length})
}
