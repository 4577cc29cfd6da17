package tradingrules

import (
	"context"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FileProvider loads rules from a yaml file with env fallbacks. The file is
// re-read on every call so operator edits take effect immediately.
type FileProvider struct {
	path string
}

// NewFileProvider constructs a provider. An empty path means env/defaults only.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Rules loads the current rules.
func (p *FileProvider) Rules(ctx context.Context) (Rules, error) {
	_ = ctx
	rules := Defaults()
	rules.BuyerSafetyFactor = getenvFloatDefault("TRADING_BUYER_SAFETY_FACTOR", rules.BuyerSafetyFactor)
	rules.SellerSafetyFactor = getenvFloatDefault("TRADING_SELLER_SAFETY_FACTOR", rules.SellerSafetyFactor)
	rules.EnableBuyerLimits = getenvBoolDefault("TRADING_ENABLE_BUYER_LIMITS", rules.EnableBuyerLimits)
	rules.EnableSellerLimits = getenvBoolDefault("TRADING_ENABLE_SELLER_LIMITS", rules.EnableSellerLimits)

	if p != nil && p.path != "" {
		data, err := os.ReadFile(p.path)
		if err != nil {
			return rules, err
		}
		if err := yaml.Unmarshal(data, &rules); err != nil {
			return rules, err
		}
	}
	return rules.Normalize(), nil
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
