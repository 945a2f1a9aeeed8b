package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SubscriptionStatusActive         = "active"
	SubscriptionStatusTrialing       = "trialing"
	SubscriptionStatusCanceled       = "canceled"
	SubscriptionStatusPaused         = "paused"
	SubscriptionStatusPastDue        = "past_due"
	SubscriptionStatusPendingWebhook = "pending_webhook"
)

const (
	PendingSubscriptionPrefix = "pending_"
	FreeSubscriptionPrefix    = "free_"
	PaddleSubscriptionPrefix  = "sub_"
)

// Subscription mirrors one Paddle subscription lifecycle for one user. The ID
// is the Paddle subscription id, or a locally generated "pending_<uuid>" /
// "free_<uuid>" placeholder until the real one is known. A row with a NULL
// user_id is an orphan awaiting identity resolution and is never
// authoritative for access control.
type Subscription struct {
	ID                 string     `gorm:"primaryKey;type:varchar(191)" json:"id"`
	UserID             *string    `gorm:"type:char(36);index:idx_subscriptions_user_current,priority:1" json:"user_id,omitempty"`
	Status             string     `gorm:"type:varchar(32);not null;default:'pending_webhook';index" json:"status"`
	TierType           string     `gorm:"type:varchar(32);not null;default:'free';index" json:"tier_type"`
	PriceID            *string    `gorm:"type:varchar(191)" json:"price_id,omitempty"`
	Quantity           int        `gorm:"not null;default:1" json:"quantity"`
	Current            bool       `gorm:"column:is_current;not null;default:false;index:idx_subscriptions_user_current,priority:2" json:"current"`
	PaddleCustomerID   *string    `gorm:"type:varchar(191);index" json:"paddle_customer_id,omitempty"`
	CurrentPeriodStart *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAt           *time.Time `gorm:"type:timestamp;default:null" json:"cancel_at,omitempty"`
	CanceledAt         *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	TrialStart         *time.Time `gorm:"type:timestamp;default:null" json:"trial_start,omitempty"`
	TrialEnd           *time.Time `gorm:"type:timestamp;default:null" json:"trial_end,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsOrphan reports whether the row has not been linked to a user yet.
func (s *Subscription) IsOrphan() bool {
	return s.UserID == nil || strings.TrimSpace(*s.UserID) == ""
}

// IsPendingPlaceholder reports whether the id was generated locally by the
// checkout success-redirect path before the provider's real id was known.
func (s *Subscription) IsPendingPlaceholder() bool {
	return strings.HasPrefix(s.ID, PendingSubscriptionPrefix)
}

// NewPendingSubscriptionID generates a placeholder subscription id used until
// the Paddle webhook delivers the real one.
func NewPendingSubscriptionID() string {
	return fmt.Sprintf("%s%s", PendingSubscriptionPrefix, uuid.NewString())
}

// NewFreeSubscriptionID generates the id for a synthetic free-tier row
// inserted on cancellation so access-control reads never see "no row".
func NewFreeSubscriptionID() string {
	return fmt.Sprintf("%s%s", FreeSubscriptionPrefix, uuid.NewString())
}
