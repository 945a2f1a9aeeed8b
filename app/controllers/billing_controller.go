package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/spoqen/spoqen/app/models"
	"github.com/spoqen/spoqen/internal/pkg/billing"
	"github.com/spoqen/spoqen/internal/pkg/database"
	"github.com/spoqen/spoqen/internal/pkg/usercontext"
)

// HandleBillingCancel asks Paddle to cancel the user's current
// subscription. The local row is not touched here; the resulting
// subscription.canceled webhook performs the downgrade.
func HandleBillingCancel(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req struct {
		Immediately bool `json:"immediately"`
	}
	// Empty body means cancel at period end.
	_ = c.BodyParser(&req)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	sub, err := svc.CurrentSubscriptionForUser(ctx, userCtx.UserID)
	if err != nil {
		log.Errorf("[Billing] Subscription lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_unavailable"})
	}
	if sub == nil || !strings.HasPrefix(sub.ID, models.PaddleSubscriptionPrefix) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no_cancellable_subscription"})
	}

	client := billing.NewPaddleClientFromEnv()
	if err := client.CancelSubscription(ctx, sub.ID, req.Immediately); err != nil {
		log.Errorf("[Billing] Paddle cancellation failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "cancellation_failed"})
	}

	return c.JSON(fiber.Map{"ok": true, "status": "cancellation_requested"})
}

// HandleBillingPortal returns a Paddle customer portal URL for invoice and
// payment method management.
func HandleBillingPortal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	sub, err := svc.CurrentSubscriptionForUser(ctx, userCtx.UserID)
	if err != nil {
		log.Errorf("[Billing] Subscription lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_unavailable"})
	}
	if sub == nil || sub.PaddleCustomerID == nil || *sub.PaddleCustomerID == "" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no_billing_account"})
	}

	client := billing.NewPaddleClientFromEnv()
	url, err := client.CreatePortalSession(ctx, *sub.PaddleCustomerID)
	if err != nil {
		log.Errorf("[Billing] Portal session failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "portal_unavailable"})
	}

	return c.JSON(fiber.Map{"url": url})
}
