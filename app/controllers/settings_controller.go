package controllers

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/spoqen/spoqen/app/models"
	"github.com/spoqen/spoqen/internal/pkg/database"
	"github.com/spoqen/spoqen/internal/pkg/entitlements"
	"github.com/spoqen/spoqen/internal/pkg/usercontext"
)

var settingsValidate = validator.New()

type agentSettingsUpdate struct {
	Greeting           *string `json:"greeting" validate:"omitempty,max=2000"`
	BusinessHoursJSON  *string `json:"business_hours_json" validate:"omitempty,max=4000"`
	VoiceID            *string `json:"voice_id" validate:"omitempty,max=100"`
	EmailNotifications *bool   `json:"email_notifications"`
	SMSNotifications   *bool   `json:"sms_notifications"`
}

// HandleAgentSettingsGet returns the user's receptionist configuration,
// creating the defaults row on first read.
func HandleAgentSettingsGet(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	settings, err := models.GetOrCreateAgentSettings(database.GetDB(), userCtx.UserID)
	if err != nil {
		log.Errorf("[Settings] Loading agent settings failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "settings_unavailable"})
	}

	return c.JSON(settings)
}

// HandleAgentSettingsPut applies a partial update. Omitted fields keep
// their stored values.
func HandleAgentSettingsPut(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var update agentSettingsUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	if err := settingsValidate.Struct(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}
	if update.BusinessHoursJSON != nil && strings.TrimSpace(*update.BusinessHoursJSON) != "" {
		if !json.Valid([]byte(*update.BusinessHoursJSON)) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_business_hours"})
		}
	}

	db := database.GetDB()
	settings, err := models.GetOrCreateAgentSettings(db, userCtx.UserID)
	if err != nil {
		log.Errorf("[Settings] Loading agent settings failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "settings_unavailable"})
	}

	if update.Greeting != nil {
		settings.Greeting = *update.Greeting
	}
	if update.BusinessHoursJSON != nil {
		settings.BusinessHoursJSON = *update.BusinessHoursJSON
	}
	if update.VoiceID != nil {
		settings.VoiceID = *update.VoiceID
	}
	if update.EmailNotifications != nil {
		settings.EmailNotifications = *update.EmailNotifications
	}
	if update.SMSNotifications != nil {
		_, _, smsAllowed := entitlements.AllowedFeatures(entitlements.Normalize(userCtx.Tier))
		if *update.SMSNotifications && !smsAllowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "sms_requires_upgrade"})
		}
		settings.SMSNotifications = *update.SMSNotifications
	}

	if err := db.Save(settings).Error; err != nil {
		log.Errorf("[Settings] Saving agent settings failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "settings_unavailable"})
	}

	return c.JSON(settings)
}
