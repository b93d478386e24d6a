package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"classbook/internal/application/usecases/scheduling"
	domain "classbook/internal/domain/schedules"
)

type RecurrenceRequest struct {
	Frequency string     `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	Interval  int        `json:"interval" validate:"omitempty,min=1"`
	Until     *time.Time `json:"until"`
}

type CreateScheduleRequest struct {
	ClassID       uuid.UUID          `json:"class_id" validate:"required"`
	InstructorID  *uuid.UUID         `json:"instructor_id"`
	ResourceID    *uuid.UUID         `json:"resource_id"`
	LocationID    *uuid.UUID         `json:"location_id"`
	StartTime     time.Time          `json:"start_time" validate:"required"`
	EndTime       time.Time          `json:"end_time" validate:"required"`
	Capacity      int                `json:"capacity" validate:"required,min=1"`
	PriceOverride *decimal.Decimal   `json:"price_override"`
	Currency      string             `json:"currency" validate:"required,len=3"`
	IsPrivate     bool               `json:"is_private"`
	Recurrence    *RecurrenceRequest `json:"recurrence"`
}

func (s *Server) CreateScheduleHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var request CreateScheduleRequest
	if err := c.Bind(&request); err != nil {
		return err
	}
	if err := c.Validate(&request); err != nil {
		return err
	}

	req := scheduling.CreateScheduleRequest{
		Schedule: domain.Schedule{
			ClassId:       request.ClassID,
			InstructorId:  request.InstructorID,
			ResourceId:    request.ResourceID,
			LocationId:    request.LocationID,
			StartTime:     request.StartTime.UTC(),
			EndTime:       request.EndTime.UTC(),
			Capacity:      request.Capacity,
			PriceOverride: request.PriceOverride,
			Currency:      request.Currency,
			IsPrivate:     request.IsPrivate,
		},
	}
	if request.Recurrence != nil {
		req.Recurrence = &domain.RecurrenceRule{
			Freq:     domain.Frequency(request.Recurrence.Frequency),
			Interval: request.Recurrence.Interval,
		}
		req.RecurrenceEnd = request.Recurrence.Until
	}

	result, err := s.schedulingEngine.CreateSchedule(ctx, req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, result)
}

func (s *Server) GetScheduleHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid schedule id")
	}

	schedule, err := s.schedulingEngine.GetSchedule(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, schedule)
}

func (s *Server) CancelScheduleHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid schedule id")
	}

	if err := s.schedulingEngine.CancelSchedule(c.Request().Context(), id); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) CompleteScheduleHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid schedule id")
	}

	if err := s.schedulingEngine.CompleteSchedule(c.Request().Context(), id); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}
