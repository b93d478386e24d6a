package payments

import "github.com/shopspring/decimal"

// PayoutPolicy carries the fee parameters of the payout formula. Percent
// values are whole percents (20 means 20%).
type PayoutPolicy struct {
	PlatformFeePercent decimal.Decimal
	GatewayFeePercent  decimal.Decimal
	GatewayFixedFee    decimal.Decimal
}

type PayoutBreakdown struct {
	PlatformFee decimal.Decimal `json:"platform_fee"`
	ProviderFee decimal.Decimal `json:"provider_fee"`
	NetPayout   decimal.Decimal `json:"net_payout"`
}

var hundred = decimal.NewFromInt(100)

// ComputeProviderPayout splits a charged amount into the platform fee, the
// gateway's processing fee and the provider's net payout. Pure and
// deterministic; all parts are rounded to the 2-decimal minor unit and the
// net payout absorbs the rounding remainder so the three parts always sum
// to the amount exactly.
func ComputeProviderPayout(amount decimal.Decimal, policy PayoutPolicy) PayoutBreakdown {
	platformFee := amount.Mul(policy.PlatformFeePercent).Div(hundred).Round(2)
	providerFee := amount.Mul(policy.GatewayFeePercent).Div(hundred).Add(policy.GatewayFixedFee).Round(2)
	netPayout := amount.Sub(platformFee).Sub(providerFee)

	return PayoutBreakdown{
		PlatformFee: platformFee,
		ProviderFee: providerFee,
		NetPayout:   netPayout,
	}
}
