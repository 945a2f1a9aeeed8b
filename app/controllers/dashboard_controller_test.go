package controllers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spoqen/spoqen/app/models"
)

func TestSubscriptionViewFrom(t *testing.T) {
	t.Parallel()

	t.Run("nil row reads as free tier", func(t *testing.T) {
		t.Parallel()
		view := subscriptionViewFrom(nil)
		assert.Empty(t, view.SubscriptionID)
		assert.Equal(t, "free", view.TierType)
		assert.Equal(t, models.SubscriptionStatusActive, view.Status)
		assert.Zero(t, view.IncludedMinutes)
	})

	t.Run("paid row carries plan minutes", func(t *testing.T) {
		t.Parallel()
		start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		view := subscriptionViewFrom(&models.Subscription{
			ID:                 "sub_01hv8x9kq",
			Status:             models.SubscriptionStatusActive,
			TierType:           "pro",
			CurrentPeriodStart: &start,
			CurrentPeriodEnd:   &end,
		})
		assert.Equal(t, "sub_01hv8x9kq", view.SubscriptionID)
		assert.Equal(t, "pro", view.TierType)
		assert.Equal(t, 600, view.IncludedMinutes)
		assert.Equal(t, &end, view.CurrentPeriodEnd)
	})

	t.Run("unknown tier string normalizes to free minutes", func(t *testing.T) {
		t.Parallel()
		view := subscriptionViewFrom(&models.Subscription{
			ID:       "sub_01hv8x9kq",
			Status:   models.SubscriptionStatusActive,
			TierType: "platinum",
		})
		assert.Zero(t, view.IncludedMinutes)
	})
}
