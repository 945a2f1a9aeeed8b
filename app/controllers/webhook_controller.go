package controllers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spoqen/spoqen/app/models"
	"github.com/spoqen/spoqen/internal/pkg/billing"
	"github.com/spoqen/spoqen/internal/pkg/database"
	"github.com/spoqen/spoqen/internal/pkg/env"
	"github.com/spoqen/spoqen/internal/pkg/mail"
	"github.com/spoqen/spoqen/internal/pkg/provisioning"
)

var (
	provisionTrigger     *provisioning.Trigger
	provisionTriggerOnce sync.Once
)

// getProvisionTrigger returns the shared fire-and-forget provisioning
// trigger. A single instance is kept so in-flight calls can be awaited
// on shutdown.
func getProvisionTrigger() *provisioning.Trigger {
	provisionTriggerOnce.Do(func() {
		provisionTrigger = provisioning.NewTriggerFromEnv()
	})
	return provisionTrigger
}

// WaitForProvisioning blocks until all in-flight provisioning calls finish.
func WaitForProvisioning() {
	if provisionTrigger != nil {
		provisionTrigger.Wait()
	}
}

// webhookDeliveryCompleted reports whether a stored event already ran to
// completion. Rows that were never processed, or whose processing failed,
// are run again on redelivery instead of being acknowledged as duplicates.
func webhookDeliveryCompleted(event *models.WebhookEvent) bool {
	return event != nil && event.ProcessedAt != nil && event.ProcessingError == ""
}

func HandlePaddleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Paddle-Signature"))
	secret := env.GetEnv("PADDLE_WEBHOOK_SECRET", "")

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	event, parseErr := billing.ParseEvent(rawBody)

	signatureValid := billing.VerifyPaddleWebhookSignature(rawBody, signature, secret)
	eventID := ""
	eventType := ""
	if parseErr == nil {
		eventID = event.EventID
		eventType = event.EventType
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.WebhookProviderPaddle,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created && webhookDeliveryCompleted(stored) {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}
	if parseErr != nil {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, parseErr)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	processor := billing.NewProcessor(
		svc,
		billing.NewTierConfigFromEnv(),
		getProvisionTrigger(),
		mail.NewWelcomeNotifier(database.GetDB()),
	)

	handleErr := processor.HandleEvent(ctx, event)
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, handleErr)
	if handleErr != nil {
		var upsertErr *billing.UpsertError
		if errors.As(handleErr, &upsertErr) {
			// Terminal application failure: redelivery would reproduce
			// the same rejection, so acknowledge with the recorded error.
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": false, "error": upsertErr.Code})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
