package tradingrules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsWhenNoFile(t *testing.T) {
	provider := NewFileProvider("")
	rules, err := provider.Rules(context.Background())
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if rules.BuyerSafetyFactor != 1.0 || rules.SellerSafetyFactor != 1.0 {
		t.Fatalf("expected unit safety factors, got %+v", rules)
	}
	if !rules.EnableBuyerLimits || !rules.EnableSellerLimits {
		t.Fatalf("expected limits enabled by default, got %+v", rules)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "seller_safety_factor: 0.8\nenable_buyer_limits: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	provider := NewFileProvider(path)
	rules, err := provider.Rules(context.Background())
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if rules.SellerSafetyFactor != 0.8 {
		t.Fatalf("expected seller factor 0.8, got %.2f", rules.SellerSafetyFactor)
	}
	if rules.EnableBuyerLimits {
		t.Fatal("expected buyer limits disabled")
	}
	if !rules.EnableSellerLimits {
		t.Fatal("expected seller limits still enabled")
	}
	if rules.BuyerSafetyFactor != 1.0 {
		t.Fatalf("expected buyer factor default 1.0, got %.2f", rules.BuyerSafetyFactor)
	}
}

func TestFileEditTakesEffectNextCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("seller_safety_factor: 0.9\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	provider := NewFileProvider(path)

	rules, err := provider.Rules(context.Background())
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	if rules.SellerSafetyFactor != 0.9 {
		t.Fatalf("expected 0.9, got %.2f", rules.SellerSafetyFactor)
	}

	if err := os.WriteFile(path, []byte("seller_safety_factor: 0.5\n"), 0o600); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}
	rules, err = provider.Rules(context.Background())
	if err != nil {
		t.Fatalf("rules after edit: %v", err)
	}
	if rules.SellerSafetyFactor != 0.5 {
		t.Fatalf("expected 0.5 after edit, got %.2f", rules.SellerSafetyFactor)
	}
}

func TestNormalizeClampsFactors(t *testing.T) {
	rules := Rules{BuyerSafetyFactor: 1.5, SellerSafetyFactor: -0.2}.Normalize()
	if rules.BuyerSafetyFactor != 1.0 {
		t.Fatalf("expected buyer factor clamped to 1.0, got %.2f", rules.BuyerSafetyFactor)
	}
	if rules.SellerSafetyFactor != 1.0 {
		t.Fatalf("expected seller factor clamped to 1.0, got %.2f", rules.SellerSafetyFactor)
	}
}
