package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// PolicyConfig carries every booking and payment threshold. It is passed
// explicitly into the engine constructors; nothing reads these from ambient
// state.
type PolicyConfig struct {
	// Booking window and cancellation policy.
	CancellationHours    int
	MinBookingHours      int
	AdvanceBookingDays   int
	PendingExpiryMinutes int
	AutoConfirm          bool

	// Payment policy.
	PlatformFeePercent    decimal.Decimal
	GatewayFeePercent     decimal.Decimal
	GatewayFixedFee       decimal.Decimal
	DepositPercent        decimal.Decimal
	PartialPaymentEnabled bool
	SplitPaymentsEnabled  bool
	// PostSessionPayouts routes the provider's share as a transfer after
	// attendance is marked instead of splitting the original charge.
	PostSessionPayouts bool

	WaitlistPromotionAttempts int
}

func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		CancellationHours:         24,
		MinBookingHours:           1,
		AdvanceBookingDays:        60,
		PendingExpiryMinutes:      30,
		AutoConfirm:               true,
		PlatformFeePercent:        decimal.NewFromInt(20),
		GatewayFeePercent:         decimal.RequireFromString("2.9"),
		GatewayFixedFee:           decimal.RequireFromString("0.30"),
		DepositPercent:            decimal.NewFromInt(50),
		SplitPaymentsEnabled:      true,
		WaitlistPromotionAttempts: 5,
	}
}

type Config struct {
	HTTPAddr    string
	PostgresURL string
	RedisURL    string

	GatewayURL    string
	GatewaySecret string
	GatewayName   string

	CatalogURL      string
	NotificationURL string

	Policy PolicyConfig
}

// Load reads the environment (optionally seeded from a .env file) into an
// explicit Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		PostgresURL:     os.Getenv("POSTGRES_URL"),
		RedisURL:        os.Getenv("REDIS_ADDR"),
		GatewayURL:      os.Getenv("PAYMENT_GATEWAY_URL"),
		GatewaySecret:   os.Getenv("PAYMENT_GATEWAY_SECRET"),
		GatewayName:     getEnv("PAYMENT_GATEWAY_NAME", "stripe"),
		CatalogURL:      os.Getenv("CLASS_CATALOG_URL"),
		NotificationURL: os.Getenv("NOTIFICATION_URL"),
		Policy:          DefaultPolicy(),
	}

	if cfg.PostgresURL == "" {
		return Config{}, fmt.Errorf("POSTGRES_URL is required")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_ADDR is required")
	}

	var err error
	p := &cfg.Policy
	if p.CancellationHours, err = intEnv("CANCELLATION_HOURS", p.CancellationHours); err != nil {
		return Config{}, err
	}
	if p.MinBookingHours, err = intEnv("MIN_BOOKING_HOURS", p.MinBookingHours); err != nil {
		return Config{}, err
	}
	if p.AdvanceBookingDays, err = intEnv("ADVANCE_BOOKING_DAYS", p.AdvanceBookingDays); err != nil {
		return Config{}, err
	}
	if p.PendingExpiryMinutes, err = intEnv("PENDING_EXPIRY_MINUTES", p.PendingExpiryMinutes); err != nil {
		return Config{}, err
	}
	if p.PlatformFeePercent, err = decimalEnv("PLATFORM_FEE_PERCENT", p.PlatformFeePercent); err != nil {
		return Config{}, err
	}
	if p.GatewayFeePercent, err = decimalEnv("GATEWAY_FEE_PERCENT", p.GatewayFeePercent); err != nil {
		return Config{}, err
	}
	if p.GatewayFixedFee, err = decimalEnv("GATEWAY_FIXED_FEE", p.GatewayFixedFee); err != nil {
		return Config{}, err
	}
	if p.DepositPercent, err = decimalEnv("DEPOSIT_PERCENT", p.DepositPercent); err != nil {
		return Config{}, err
	}
	if p.WaitlistPromotionAttempts, err = intEnv("WAITLIST_PROMOTION_ATTEMPTS", p.WaitlistPromotionAttempts); err != nil {
		return Config{}, err
	}
	p.AutoConfirm = boolEnv("AUTO_CONFIRM_BOOKINGS", p.AutoConfirm)
	p.PartialPaymentEnabled = boolEnv("PARTIAL_PAYMENTS_ENABLED", p.PartialPaymentEnabled)
	p.SplitPaymentsEnabled = boolEnv("SPLIT_PAYMENTS_ENABLED", p.SplitPaymentsEnabled)
	p.PostSessionPayouts = boolEnv("POST_SESSION_PAYOUTS", p.PostSessionPayouts)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func decimalEnv(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal: %w", key, err)
	}
	return d, nil
}
