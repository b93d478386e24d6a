package idempotency_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"classbook/internal/idempotency"
)

func TestKeyRoundTrip(t *testing.T) {
	ctx := idempotency.WithKey(context.Background(), "webhook-delivery-42")
	assert.Equal(t, "webhook-delivery-42", idempotency.GetKey(ctx))
}

func TestMissingKeyIsGenerated(t *testing.T) {
	first := idempotency.GetKey(context.Background())
	second := idempotency.GetKey(context.Background())

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second, "each call without a key gets a fresh one")
}
