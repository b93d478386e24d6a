package schedules_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "classbook/internal/domain/schedules"
)

func TestRecurrenceRuleValidate(t *testing.T) {
	assert.NoError(t, domain.RecurrenceRule{Freq: domain.FreqDaily}.Validate())
	assert.NoError(t, domain.RecurrenceRule{Freq: domain.FreqWeekly, Interval: 2}.Validate())
	assert.NoError(t, domain.RecurrenceRule{Freq: domain.FreqMonthly}.Validate())

	assert.Error(t, domain.RecurrenceRule{Freq: "hourly"}.Validate())
	assert.Error(t, domain.RecurrenceRule{Freq: domain.FreqWeekly, Interval: -1}.Validate())
}

func TestExpand(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	t.Run("daily", func(t *testing.T) {
		until := start.AddDate(0, 0, 5)
		occurrences := domain.Expand(domain.RecurrenceRule{Freq: domain.FreqDaily}, start, end, until)

		require.Len(t, occurrences, 5)
		assert.Equal(t, start, occurrences[0].Start)
		assert.Equal(t, end, occurrences[0].End)
		assert.Equal(t, start.AddDate(0, 0, 4), occurrences[4].Start)
	})

	t.Run("weekly keeps the weekday and duration", func(t *testing.T) {
		until := start.AddDate(0, 0, 28)
		occurrences := domain.Expand(domain.RecurrenceRule{Freq: domain.FreqWeekly}, start, end, until)

		require.Len(t, occurrences, 4)
		for _, occ := range occurrences {
			assert.Equal(t, time.Monday, occ.Start.Weekday())
			assert.Equal(t, time.Hour, occ.End.Sub(occ.Start))
		}
	})

	t.Run("biweekly interval", func(t *testing.T) {
		until := start.AddDate(0, 0, 28)
		occurrences := domain.Expand(
			domain.RecurrenceRule{Freq: domain.FreqWeekly, Interval: 2}, start, end, until)

		require.Len(t, occurrences, 2)
		assert.Equal(t, start, occurrences[0].Start)
		assert.Equal(t, start.AddDate(0, 0, 14), occurrences[1].Start)
	})

	t.Run("monthly", func(t *testing.T) {
		until := start.AddDate(0, 3, 0)
		occurrences := domain.Expand(domain.RecurrenceRule{Freq: domain.FreqMonthly}, start, end, until)

		require.Len(t, occurrences, 3)
		assert.Equal(t, start.AddDate(0, 2, 0), occurrences[2].Start)
	})

	t.Run("until bound is exclusive", func(t *testing.T) {
		until := start.AddDate(0, 0, 2)
		occurrences := domain.Expand(domain.RecurrenceRule{Freq: domain.FreqDaily}, start, end, until)

		// The occurrence starting exactly at until is not included.
		require.Len(t, occurrences, 2)
	})

	t.Run("capped at the occurrence limit", func(t *testing.T) {
		until := start.AddDate(10, 0, 0)
		occurrences := domain.Expand(domain.RecurrenceRule{Freq: domain.FreqDaily}, start, end, until)

		assert.Len(t, occurrences, domain.MaxOccurrences)
	})

	t.Run("until before start yields nothing", func(t *testing.T) {
		occurrences := domain.Expand(
			domain.RecurrenceRule{Freq: domain.FreqDaily}, start, end, start.AddDate(0, 0, -1))

		assert.Empty(t, occurrences)
	})
}
