package controllers

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/spoqen/spoqen/app/models"
	"github.com/spoqen/spoqen/app/repository"
	"github.com/spoqen/spoqen/internal/pkg/billing"
	"github.com/spoqen/spoqen/internal/pkg/cache"
	"github.com/spoqen/spoqen/internal/pkg/database"
	"github.com/spoqen/spoqen/internal/pkg/entitlements"
	"github.com/spoqen/spoqen/internal/pkg/metrics/usage"
	"github.com/spoqen/spoqen/internal/pkg/recordings"
	"github.com/spoqen/spoqen/internal/pkg/usercontext"
)

const (
	dashboardCallsDefaultLimit = 20
	subscriptionCacheTTL       = 10 * time.Second
)

var (
	recordingsClient     *recordings.Client
	recordingsClientOnce sync.Once
)

// getRecordingsClient returns the shared presigner, or nil when recording
// playback is disabled or misconfigured.
func getRecordingsClient() *recordings.Client {
	recordingsClientOnce.Do(func() {
		cfg, err := recordings.LoadConfig()
		if err != nil {
			log.Warnf("[Dashboard] Recording playback disabled: %v", err)
			return
		}
		if !cfg.IsEnabled() {
			return
		}
		client, err := recordings.NewClient(cfg)
		if err != nil {
			log.Warnf("[Dashboard] Recording playback disabled: %v", err)
			return
		}
		recordingsClient = client
	})
	return recordingsClient
}

type dashboardCall struct {
	ID           uint      `json:"id"`
	CallerNumber string    `json:"caller_number"`
	StartedAt    time.Time `json:"started_at"`
	DurationSecs int       `json:"duration_secs"`
	Summary      string    `json:"summary,omitempty"`
	Sentiment    string    `json:"sentiment,omitempty"`
	RecordingURL string    `json:"recording_url,omitempty"`
}

// HandleDashboardCalls returns the user's recent calls, newest first, with
// short-lived presigned playback URLs when recordings are enabled.
func HandleDashboardCalls(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(dashboardCallsDefaultLimit)))

	repos := repository.GetGlobalRepositories()
	calls, err := repos.Call.ListByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		log.Errorf("[Dashboard] Listing calls failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "calls_unavailable"})
	}
	total, err := repos.Call.CountByUserID(userCtx.UserID)
	if err != nil {
		log.Errorf("[Dashboard] Counting calls failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "calls_unavailable"})
	}

	presigner := getRecordingsClient()
	recordingAllowed, sentimentAllowed, _ := entitlements.AllowedFeatures(entitlements.Normalize(userCtx.Tier))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := make([]dashboardCall, 0, len(calls))
	for _, call := range calls {
		item := dashboardCall{
			ID:           call.ID,
			CallerNumber: call.CallerNumber,
			StartedAt:    call.StartedAt,
			DurationSecs: call.DurationSecs,
			Summary:      call.Summary,
		}
		if sentimentAllowed {
			item.Sentiment = call.Sentiment
		}
		if recordingAllowed && presigner != nil && call.RecordingKey != "" {
			url, err := presigner.PresignPlaybackURL(ctx, call.RecordingKey)
			if err != nil {
				log.Warnf("[Dashboard] Presigning recording for call %d failed: %v", call.ID, err)
			} else {
				item.RecordingURL = url
			}
		}
		out = append(out, item)
	}

	return c.JSON(fiber.Map{
		"calls":  out,
		"total":  total,
		"offset": offset,
	})
}

type subscriptionView struct {
	SubscriptionID     string     `json:"subscription_id"`
	Status             string     `json:"status"`
	TierType           string     `json:"tier_type"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAt           *time.Time `json:"cancel_at,omitempty"`
	IncludedMinutes    int        `json:"included_minutes"`
	UsedMinutes        int        `json:"used_minutes"`
	PhoneNumber        string     `json:"phone_number,omitempty"`
}

// HandleDashboardSubscription is the poll endpoint the dashboard hits after
// checkout until the webhook lands. Cached briefly so aggressive polling
// does not hammer the database.
func HandleDashboardSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	cacheKey := "dashboard:subscription:" + userCtx.UserID
	if cached, err := cache.Get(cacheKey); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc := billing.NewServiceFromDB(database.GetDB())
	sub, err := svc.CurrentSubscriptionForUser(ctx, userCtx.UserID)
	if err != nil {
		log.Errorf("[Dashboard] Subscription lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_unavailable"})
	}

	view := subscriptionViewFrom(sub)
	if number, err := repository.GetGlobalRepositories().PhoneNumber.GetActiveByUserID(userCtx.UserID); err == nil {
		view.PhoneNumber = number.E164
	}
	if used, err := usage.GetUsedMinutes(userCtx.UserID); err != nil {
		log.Warnf("[Dashboard] Usage counter read failed: %v", err)
	} else {
		view.UsedMinutes = used
	}
	body, err := json.Marshal(view)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_unavailable"})
	}
	if err := cache.Set(cacheKey, string(body), subscriptionCacheTTL); err != nil {
		log.Warnf("[Dashboard] Caching subscription view failed: %v", err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}

// subscriptionViewFrom maps a subscription row to the dashboard payload. A
// missing row is reported as the free tier, not as an error.
func subscriptionViewFrom(sub *models.Subscription) subscriptionView {
	if sub == nil {
		return subscriptionView{
			Status:   models.SubscriptionStatusActive,
			TierType: string(entitlements.TierFree),
		}
	}
	return subscriptionView{
		SubscriptionID:     sub.ID,
		Status:             sub.Status,
		TierType:           sub.TierType,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAt:           sub.CancelAt,
		IncludedMinutes:    entitlements.IncludedMinutes(entitlements.Normalize(sub.TierType)),
	}
}
