package schedules

import "time"

type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
)

// MaxOccurrences caps recurrence expansion regardless of the until bound.
const MaxOccurrences = 100

// RecurrenceRule is the typed replacement for FREQ=...;INTERVAL=... strings.
// Interval is only meaningful for weekly rules (2 = biweekly); daily and
// monthly rules always step by one period.
type RecurrenceRule struct {
	Freq     Frequency `json:"freq"`
	Interval int       `json:"interval,omitempty"`
}

func (r RecurrenceRule) Validate() error {
	switch r.Freq {
	case FreqDaily, FreqMonthly:
	case FreqWeekly:
		if r.Interval < 0 {
			return ErrInvalid{Reason: "recurrence interval must not be negative"}
		}
	default:
		return ErrInvalid{Reason: "unknown recurrence frequency"}
	}

	return nil
}

type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Expand deterministically materializes a recurrence rule into concrete
// occurrences, starting at [start, end) and stopping at until or after
// MaxOccurrences, whichever comes first. An occurrence is included when it
// starts strictly before until.
func Expand(rule RecurrenceRule, start, end time.Time, until time.Time) []Occurrence {
	duration := end.Sub(start)

	step := func(t time.Time, n int) time.Time {
		switch rule.Freq {
		case FreqDaily:
			return t.AddDate(0, 0, n)
		case FreqWeekly:
			interval := rule.Interval
			if interval < 1 {
				interval = 1
			}
			return t.AddDate(0, 0, 7*interval*n)
		case FreqMonthly:
			return t.AddDate(0, n, 0)
		default:
			return t
		}
	}

	var out []Occurrence
	for i := 0; i < MaxOccurrences; i++ {
		occStart := step(start, i)
		if !occStart.Before(until) {
			break
		}

		out = append(out, Occurrence{
			Start: occStart,
			End:   occStart.Add(duration),
		})
	}

	return out
}
