package controllers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spoqen/spoqen/app/models"
)

func TestWebhookDeliveryCompleted(t *testing.T) {
	t.Parallel()

	now := time.Now()

	assert.False(t, webhookDeliveryCompleted(nil), "missing row")
	assert.False(t, webhookDeliveryCompleted(&models.WebhookEvent{}), "recorded but never processed")
	assert.False(t, webhookDeliveryCompleted(&models.WebhookEvent{
		ProcessedAt:     &now,
		ProcessingError: "invalid webhook signature",
	}), "failed processing must not be acknowledged as duplicate")
	assert.True(t, webhookDeliveryCompleted(&models.WebhookEvent{ProcessedAt: &now}), "completed processing")
}
