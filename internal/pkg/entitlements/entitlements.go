package entitlements

import "strings"

type Tier string

const (
	TierFree     Tier = "free"
	TierStarter  Tier = "starter"
	TierPro      Tier = "pro"
	TierBusiness Tier = "business"
)

// Normalize maps arbitrary tier strings onto a known tier, defaulting to free.
func Normalize(tier string) Tier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case string(TierStarter):
		return TierStarter
	case string(TierPro):
		return TierPro
	case string(TierBusiness):
		return TierBusiness
	default:
		return TierFree
	}
}

// Rank orders tiers for comparisons; higher is better.
func Rank(tier Tier) int {
	switch tier {
	case TierBusiness:
		return 3
	case TierPro:
		return 2
	case TierStarter:
		return 1
	default:
		return 0
	}
}

// IsPaid reports whether the tier requires an active paid subscription.
func IsPaid(tier Tier) bool {
	return tier != TierFree
}

// AllowedFeatures returns which receptionist features a plan unlocks.
func AllowedFeatures(tier Tier) (recording, sentiment, sms bool) {
	switch tier {
	case TierBusiness:
		return true, true, true
	case TierPro:
		return true, true, false
	case TierStarter:
		return true, false, false
	default:
		return false, false, false
	}
}

// IncludedMinutes returns the monthly inbound call minutes for a plan.
func IncludedMinutes(tier Tier) int {
	switch tier {
	case TierBusiness:
		return 2000
	case TierPro:
		return 600
	case TierStarter:
		return 150
	default:
		return 0
	}
}
