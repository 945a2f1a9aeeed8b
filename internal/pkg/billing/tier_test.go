package billing

import (
	"testing"

	"github.com/spoqen/spoqen/internal/pkg/entitlements"
)

func testTierConfig() *TierConfig {
	return NewTierConfig(
		[]string{"pri_starter_monthly", "pri_starter_annual"},
		[]string{"pri_pro_monthly"},
		[]string{"pri_business_monthly"},
	)
}

func TestClassify(t *testing.T) {
	tiers := testTierConfig()

	strPtr := func(s string) *string { return &s }

	tests := []struct {
		name    string
		priceID *string
		want    entitlements.Tier
	}{
		{name: "nil price id", priceID: nil, want: entitlements.TierFree},
		{name: "empty price id", priceID: strPtr(""), want: entitlements.TierFree},
		{name: "starter monthly", priceID: strPtr("pri_starter_monthly"), want: entitlements.TierStarter},
		{name: "starter annual", priceID: strPtr("pri_starter_annual"), want: entitlements.TierStarter},
		{name: "pro", priceID: strPtr("pri_pro_monthly"), want: entitlements.TierPro},
		{name: "business", priceID: strPtr("pri_business_monthly"), want: entitlements.TierBusiness},
		{name: "unknown falls back to starter", priceID: strPtr("pri_from_newer_catalog"), want: entitlements.TierStarter},
	}

	for _, tt := range tests {
		if got := tiers.Classify(tt.priceID); got != tt.want {
			t.Fatalf("%s: Classify = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestClassifyEmptyConfig(t *testing.T) {
	tiers := NewTierConfig(nil, nil, nil)

	id := "pri_anything"
	if got := tiers.Classify(&id); got != entitlements.TierStarter {
		t.Fatalf("unmapped price id = %q, want starter fallback", got)
	}
	if got := tiers.Classify(nil); got != entitlements.TierFree {
		t.Fatalf("nil price id = %q, want free", got)
	}
}
