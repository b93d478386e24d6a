package bookings_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "classbook/internal/domain/bookings"
)

func TestBookingCanTransition(t *testing.T) {
	cases := []struct {
		from    domain.Status
		to      domain.Status
		allowed bool
	}{
		{domain.StatusPending, domain.StatusConfirmed, true},
		{domain.StatusPending, domain.StatusCancelled, true},
		{domain.StatusPending, domain.StatusCompleted, false},
		{domain.StatusPending, domain.StatusNoShow, false},

		{domain.StatusConfirmed, domain.StatusCancelled, true},
		{domain.StatusConfirmed, domain.StatusCompleted, true},
		{domain.StatusConfirmed, domain.StatusNoShow, true},
		{domain.StatusConfirmed, domain.StatusConfirmed, false},

		{domain.StatusCancelled, domain.StatusConfirmed, false},
		{domain.StatusCancelled, domain.StatusCancelled, false},
		{domain.StatusCompleted, domain.StatusCancelled, false},
		{domain.StatusNoShow, domain.StatusConfirmed, false},
	}

	for _, tc := range cases {
		b := domain.Booking{Status: tc.from}
		assert.Equal(t, tc.allowed, b.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, domain.StatusPending.IsTerminal())
	assert.False(t, domain.StatusConfirmed.IsTerminal())
	assert.True(t, domain.StatusCancelled.IsTerminal())
	assert.True(t, domain.StatusCompleted.IsTerminal())
	assert.True(t, domain.StatusNoShow.IsTerminal())
}

func TestNewBookingCode(t *testing.T) {
	seen := map[string]bool{}

	for i := 0; i < 100; i++ {
		code := domain.NewBookingCode()

		require.True(t, strings.HasPrefix(code, "BK-"), "code %q", code)
		require.Len(t, code, 11)

		// The alphabet excludes ambiguous characters.
		for _, c := range code[3:] {
			assert.NotContains(t, "01IO", string(c), "code %q", code)
		}

		assert.False(t, seen[code], "duplicate code %q", code)
		seen[code] = true
	}
}
