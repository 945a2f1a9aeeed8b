package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/spoqen/spoqen/app/models"
	"github.com/spoqen/spoqen/app/repository"
	"github.com/spoqen/spoqen/internal/pkg/metrics/usage"
)

type callIngestRequest struct {
	VapiCallID   string `json:"vapi_call_id" validate:"required,max=191"`
	UserID       string `json:"user_id" validate:"required,uuid4"`
	CallerNumber string `json:"caller_number" validate:"required,max=20"`
	StartedAt    string `json:"started_at" validate:"required"`
	DurationSecs int    `json:"duration_secs" validate:"gte=0"`
	Summary      string `json:"summary"`
	Sentiment    string `json:"sentiment" validate:"omitempty,oneof=positive neutral negative"`
	RecordingKey string `json:"recording_key" validate:"omitempty,max=255"`
}

var callIngestValidate = validator.New()

// HandleInternalCallIngest receives completed-call records from the voice
// pipeline. Replayed deliveries for the same provider call id are
// acknowledged without creating a second row.
func HandleInternalCallIngest(c *fiber.Ctx) error {
	var req callIngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	if err := callIngestValidate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	startedAt, err := time.Parse(time.RFC3339, req.StartedAt)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_started_at"})
	}

	repos := repository.GetGlobalRepositories()

	if existing, err := repos.Call.GetByVapiCallID(req.VapiCallID); err == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true, "id": existing.ID})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[Calls] Dedup lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "call_persist_failed"})
	}

	sentiment := req.Sentiment
	if sentiment == "" {
		sentiment = models.CallSentimentNeutral
	}

	call := &models.Call{
		UserID:       req.UserID,
		VapiCallID:   req.VapiCallID,
		CallerNumber: req.CallerNumber,
		StartedAt:    startedAt.UTC(),
		DurationSecs: req.DurationSecs,
		Summary:      strings.TrimSpace(req.Summary),
		Sentiment:    sentiment,
		RecordingKey: req.RecordingKey,
	}
	if err := repos.Call.Create(call); err != nil {
		// The unique index on the provider call id closes the race between
		// the lookup above and this insert.
		if existing, lookupErr := repos.Call.GetByVapiCallID(req.VapiCallID); lookupErr == nil {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true, "id": existing.ID})
		}
		log.Errorf("[Calls] Persisting call failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "call_persist_failed"})
	}

	if err := usage.AddCallMinutes(req.UserID, req.DurationSecs); err != nil {
		log.Warnf("[Calls] Usage counter update failed: %v", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "id": call.ID})
}
