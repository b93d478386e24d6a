package schedules_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domain "classbook/internal/domain/schedules"
)

func TestWeeklyWindowContains(t *testing.T) {
	// Mondays 09:00-17:00 UTC.
	window := domain.WeeklyWindow{
		Weekday:     time.Monday,
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
	}

	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	assert.True(t, window.Contains(monday.Add(9*time.Hour)), "window start")
	assert.True(t, window.Contains(monday.Add(12*time.Hour)))
	assert.True(t, window.Contains(monday.Add(16*time.Hour+59*time.Minute)))

	assert.False(t, window.Contains(monday.Add(17*time.Hour)), "window end is exclusive")
	assert.False(t, window.Contains(monday.Add(8*time.Hour+59*time.Minute)))
	assert.False(t, window.Contains(monday.AddDate(0, 0, 1).Add(12*time.Hour)), "wrong weekday")

	// A local-time instant is compared in UTC.
	est := time.FixedZone("EST", -5*60*60)
	assert.True(t, window.Contains(time.Date(2026, 3, 2, 7, 0, 0, 0, est)), "12:00 UTC")
}

func TestBlackoutContains(t *testing.T) {
	blackout := domain.Blackout{Date: time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)}

	assert.True(t, blackout.Contains(time.Date(2026, 7, 4, 10, 30, 0, 0, time.UTC)))
	assert.True(t, blackout.Contains(time.Date(2026, 7, 4, 23, 59, 0, 0, time.UTC)))
	assert.False(t, blackout.Contains(time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC)))
	assert.False(t, blackout.Contains(time.Date(2027, 7, 4, 10, 0, 0, 0, time.UTC)), "same day next year")
}
