package controllers

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/sujit-baniya/flash"

	"github.com/spoqen/spoqen/app/models"
	"github.com/spoqen/spoqen/internal/pkg/billing"
	"github.com/spoqen/spoqen/internal/pkg/database"
	"github.com/spoqen/spoqen/internal/pkg/entitlements"
	"github.com/spoqen/spoqen/internal/pkg/env"
	"github.com/spoqen/spoqen/internal/pkg/identity"
)

var transactionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// checkoutBilling is the slice of the billing service the success handler
// needs. Swappable so the handler can be tested without a database.
type checkoutBilling interface {
	SubscriptionExistsForUser(ctx context.Context, userID string) (bool, error)
	UpsertSubscription(ctx context.Context, in billing.SubscriptionUpsert) (billing.UpsertResult, error)
	AnnotateProfileTransaction(ctx context.Context, userID, transactionID string) error
}

var newCheckoutBilling = func() checkoutBilling {
	return billing.NewServiceFromDB(database.GetDB())
}

// sanitizeCheckoutUserID returns the user id query value when it is a
// well-formed UUID, otherwise "".
func sanitizeCheckoutUserID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.String()
}

// sanitizeCheckoutSubscriptionID accepts provider subscription ids and
// locally generated placeholders only.
func sanitizeCheckoutSubscriptionID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, models.PaddleSubscriptionPrefix) && !strings.HasPrefix(raw, models.PendingSubscriptionPrefix) {
		return ""
	}
	if !transactionIDPattern.MatchString(raw) {
		return ""
	}
	return raw
}

func sanitizeCheckoutTransactionID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !transactionIDPattern.MatchString(raw) {
		return ""
	}
	return raw
}

func dashboardRedirectURL(state string) string {
	base := env.GetEnv("DASHBOARD_URL", "/dashboard")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	switch state {
	case "success":
		return base + sep + "payment=success&instant=true"
	default:
		return base + sep + "payment=" + state
	}
}

// HandleCheckoutSuccess is the browser return path after a Paddle checkout.
// The webhook remains the source of truth; this handler only plants an
// optimistic pending row so the dashboard does not flash the free state.
// Every failure path redirects, never errors, because the webhook will
// finish the job regardless.
func HandleCheckoutSuccess(c *fiber.Ctx) error {
	userID := sanitizeCheckoutUserID(c.Query("user_id"))
	subscriptionID := sanitizeCheckoutSubscriptionID(c.Query("subscription_id"))
	transactionID := sanitizeCheckoutTransactionID(c.Query("transaction_id"))

	if userID == "" {
		log.Warn("[Checkout] Success redirect without a valid user_id")
		return flash.WithError(c, fiber.Map{"type": "error", "message": "We could not match your checkout to an account"}).Redirect(dashboardRedirectURL("error"), fiber.StatusSeeOther)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	idClient := identity.NewClientFromEnv()
	if _, err := idClient.GetUser(ctx, userID); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			log.Warnf("[Checkout] Success redirect for unknown user %s", userID)
			return flash.WithError(c, fiber.Map{"type": "error", "message": "We could not match your checkout to an account"}).Redirect(dashboardRedirectURL("error"), fiber.StatusSeeOther)
		}
		log.Errorf("[Checkout] Identity lookup failed: %v", err)
		return c.Redirect(dashboardRedirectURL("processing"), fiber.StatusSeeOther)
	}

	svc := newCheckoutBilling()

	exists, err := svc.SubscriptionExistsForUser(ctx, userID)
	if err != nil {
		log.Errorf("[Checkout] Subscription lookup failed: %v", err)
		return c.Redirect(dashboardRedirectURL("processing"), fiber.StatusSeeOther)
	}
	if exists {
		return c.Redirect(dashboardRedirectURL("processing"), fiber.StatusSeeOther)
	}

	if subscriptionID == "" {
		subscriptionID = models.NewPendingSubscriptionID()
	}

	now := time.Now().UTC()
	periodEnd := now.AddDate(0, 1, 0)
	_, err = svc.UpsertSubscription(ctx, billing.SubscriptionUpsert{
		ID:                 subscriptionID,
		UserID:             &userID,
		Status:             models.SubscriptionStatusPendingWebhook,
		TierType:           entitlements.TierStarter,
		Quantity:           1,
		Current:            true,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &periodEnd,
	})
	if err != nil {
		log.Errorf("[Checkout] Pending subscription upsert failed: %v", err)
		return c.Redirect(dashboardRedirectURL("processing"), fiber.StatusSeeOther)
	}

	if transactionID != "" {
		if err := svc.AnnotateProfileTransaction(ctx, userID, transactionID); err != nil {
			log.Warnf("[Checkout] Could not annotate profile with transaction: %v", err)
		}
	}

	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Payment received, your receptionist is being set up"}).Redirect(dashboardRedirectURL("success"), fiber.StatusSeeOther)
}
