package tradingrules

import "context"

// Rules is the process-wide trading limit configuration. It is consulted on
// every validation call; providers must not cache beyond the call.
type Rules struct {
	BuyerSafetyFactor  float64 `yaml:"buyer_safety_factor"`
	SellerSafetyFactor float64 `yaml:"seller_safety_factor"`
	EnableBuyerLimits  bool    `yaml:"enable_buyer_limits"`
	EnableSellerLimits bool    `yaml:"enable_seller_limits"`
}

// Defaults returns the rules applied when no configuration exists.
func Defaults() Rules {
	return Rules{
		BuyerSafetyFactor:  1.0,
		SellerSafetyFactor: 1.0,
		EnableBuyerLimits:  true,
		EnableSellerLimits: true,
	}
}

// Normalize clamps safety factors into (0, 1].
func (r Rules) Normalize() Rules {
	if r.BuyerSafetyFactor <= 0 || r.BuyerSafetyFactor > 1 {
		r.BuyerSafetyFactor = 1.0
	}
	if r.SellerSafetyFactor <= 0 || r.SellerSafetyFactor > 1 {
		r.SellerSafetyFactor = 1.0
	}
	return r
}

// Provider supplies current rules.
type Provider interface {
	Rules(ctx context.Context) (Rules, error)
}

// StaticProvider returns fixed rules.
type StaticProvider struct {
	Current Rules
}

// Rules returns the fixed rules.
func (p StaticProvider) Rules(ctx context.Context) (Rules, error) {
	_ = ctx
	return p.Current.Normalize(), nil
}
