package schedules

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Schedule is one concrete time-boxed session instance bookable by students.
// All instants are UTC.
type Schedule struct {
	Id            uuid.UUID        `json:"id"`
	ClassId       uuid.UUID        `json:"class_id"`
	InstructorId  *uuid.UUID       `json:"instructor_id,omitempty"`
	ResourceId    *uuid.UUID       `json:"resource_id,omitempty"`
	LocationId    *uuid.UUID       `json:"location_id,omitempty"`
	StartTime     time.Time        `json:"start_time"`
	EndTime       time.Time        `json:"end_time"`
	Capacity      int              `json:"capacity"`
	PriceOverride *decimal.Decimal `json:"price_override,omitempty"`
	Currency      string           `json:"currency"`
	Status        Status           `json:"status"`
	IsPrivate     bool             `json:"is_private"`
}

func (s *Schedule) Validate() error {
	if s.ClassId == uuid.Nil {
		return ErrInvalid{Reason: "class id must be set"}
	}
	if !s.StartTime.Before(s.EndTime) {
		return ErrInvalid{Reason: "start time must be before end time"}
	}
	if s.Capacity < 1 {
		return ErrInvalid{Reason: "capacity must be at least 1"}
	}
	if s.Currency == "" {
		return ErrInvalid{Reason: "currency must be set"}
	}

	return nil
}

// Overlaps reports whether two half-open [start, end) intervals intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
