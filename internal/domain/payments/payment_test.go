package payments_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domain "classbook/internal/domain/payments"
)

func TestPaymentCanTransition(t *testing.T) {
	cases := []struct {
		from    domain.Status
		to      domain.Status
		allowed bool
	}{
		{domain.StatusPending, domain.StatusProcessing, true},
		{domain.StatusPending, domain.StatusCompleted, true},
		{domain.StatusPending, domain.StatusFailed, true},
		{domain.StatusPending, domain.StatusCancelled, true},

		{domain.StatusProcessing, domain.StatusCompleted, true},
		{domain.StatusProcessing, domain.StatusFailed, true},
		{domain.StatusProcessing, domain.StatusProcessing, false},
		{domain.StatusProcessing, domain.StatusCancelled, false},

		{domain.StatusCompleted, domain.StatusFailed, false},
		{domain.StatusCompleted, domain.StatusProcessing, false},
		{domain.StatusFailed, domain.StatusCompleted, false},
		{domain.StatusCancelled, domain.StatusProcessing, false},
	}

	for _, tc := range cases {
		p := domain.Payment{Status: tc.from}
		assert.Equal(t, tc.allowed, p.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestPaymentStatusIsTerminal(t *testing.T) {
	assert.False(t, domain.StatusPending.IsTerminal())
	assert.False(t, domain.StatusProcessing.IsTerminal())
	assert.True(t, domain.StatusCompleted.IsTerminal())
	assert.True(t, domain.StatusFailed.IsTerminal())
	assert.True(t, domain.StatusCancelled.IsTerminal())
}
