package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/classbook")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, "stripe", cfg.GatewayName)
		assert.Equal(t, 24, cfg.Policy.CancellationHours)
		assert.True(t, cfg.Policy.AutoConfirm)
		assert.True(t, cfg.Policy.PlatformFeePercent.Equal(decimal.NewFromInt(20)))
		assert.False(t, cfg.Policy.PartialPaymentEnabled)
		assert.False(t, cfg.Policy.PostSessionPayouts)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("CANCELLATION_HOURS", "48")
		t.Setenv("PLATFORM_FEE_PERCENT", "12.5")
		t.Setenv("AUTO_CONFIRM_BOOKINGS", "false")
		t.Setenv("POST_SESSION_PAYOUTS", "true")
		t.Setenv("WAITLIST_PROMOTION_ATTEMPTS", "9")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 48, cfg.Policy.CancellationHours)
		assert.True(t, cfg.Policy.PlatformFeePercent.Equal(decimal.RequireFromString("12.5")))
		assert.False(t, cfg.Policy.AutoConfirm)
		assert.True(t, cfg.Policy.PostSessionPayouts)
		assert.Equal(t, 9, cfg.Policy.WaitlistPromotionAttempts)
	})

	t.Run("malformed numeric", func(t *testing.T) {
		t.Setenv("CANCELLATION_HOURS", "soon")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed decimal", func(t *testing.T) {
		t.Setenv("PLATFORM_FEE_PERCENT", "twenty")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadRequiredEnv(t *testing.T) {
	t.Setenv("POSTGRES_URL", "")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("POSTGRES_URL", "postgres://localhost/classbook")
	t.Setenv("REDIS_ADDR", "")

	_, err = Load()
	assert.Error(t, err)
}
