package schedules

import (
	"time"

	"github.com/google/uuid"
)

// WeeklyWindow is one declared availability window of an instructor,
// expressed as minutes since midnight UTC on the given weekday.
type WeeklyWindow struct {
	InstructorId uuid.UUID    `json:"instructor_id"`
	Weekday      time.Weekday `json:"weekday"`
	StartMinute  int          `json:"start_minute"`
	EndMinute    int          `json:"end_minute"`
}

func (w WeeklyWindow) Contains(instant time.Time) bool {
	utc := instant.UTC()
	if utc.Weekday() != w.Weekday {
		return false
	}

	minute := utc.Hour()*60 + utc.Minute()
	return minute >= w.StartMinute && minute < w.EndMinute
}

// Blackout is a whole-day exclusion overriding weekly windows.
type Blackout struct {
	InstructorId uuid.UUID `json:"instructor_id"`
	Date         time.Time `json:"date"`
}

func (b Blackout) Contains(instant time.Time) bool {
	utc := instant.UTC()
	return utc.Year() == b.Date.Year() && utc.YearDay() == b.Date.YearDay()
}
