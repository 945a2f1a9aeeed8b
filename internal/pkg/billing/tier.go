package billing

import (
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/spoqen/spoqen/internal/pkg/entitlements"
	"github.com/spoqen/spoqen/internal/pkg/env"
)

// TierConfig maps known Paddle price ids onto subscription tiers. It is
// built once at startup and injected; classification is a pure lookup.
type TierConfig struct {
	starter  map[string]struct{}
	pro      map[string]struct{}
	business map[string]struct{}
}

// NewTierConfig builds a classifier from explicit price id lists.
func NewTierConfig(starter, pro, business []string) *TierConfig {
	return &TierConfig{
		starter:  toSet(starter),
		pro:      toSet(pro),
		business: toSet(business),
	}
}

// NewTierConfigFromEnv reads the comma-separated price id lists from the
// environment.
func NewTierConfigFromEnv() *TierConfig {
	return NewTierConfig(
		splitPriceIDs(env.GetEnv("PADDLE_PRICE_IDS_STARTER", "")),
		splitPriceIDs(env.GetEnv("PADDLE_PRICE_IDS_PRO", "")),
		splitPriceIDs(env.GetEnv("PADDLE_PRICE_IDS_BUSINESS", "")),
	)
}

// Classify maps a price id to a tier. A nil price id means free; an
// unrecognized non-empty one defaults to starter so a paying customer is
// never silently under-provisioned while the mapping lists lag behind.
func (c *TierConfig) Classify(priceID *string) entitlements.Tier {
	if priceID == nil || strings.TrimSpace(*priceID) == "" {
		return entitlements.TierFree
	}

	id := strings.ToLower(strings.TrimSpace(*priceID))
	if _, ok := c.starter[id]; ok {
		return entitlements.TierStarter
	}
	if _, ok := c.pro[id]; ok {
		return entitlements.TierPro
	}
	if _, ok := c.business[id]; ok {
		return entitlements.TierBusiness
	}

	log.Warnf("[Billing] Unrecognized price id %s, defaulting to starter", maskID(id))
	return entitlements.TierStarter
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func splitPriceIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
