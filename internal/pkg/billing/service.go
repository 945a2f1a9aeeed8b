package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/spoqen/spoqen/app/models"
	"github.com/spoqen/spoqen/internal/pkg/entitlements"
)

const (
	profileLinkAttempts  = 3
	profileLinkBaseDelay = 500 * time.Millisecond
)

// Service provides subscription reconciliation: the atomic upsert, user
// resolution, cancellation downgrades and customer identity linking.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// UpsertSubscription writes a subscription record through the single atomic
// write path. A transport/DB error propagates unwrapped (the webhook layer
// answers non-2xx and the provider redelivers); an application-level
// rejection comes back as *UpsertError and must not be retried.
func (s *Service) UpsertSubscription(ctx context.Context, in SubscriptionUpsert) (UpsertResult, error) {
	if err := validateUpsert(&in); err != nil {
		var ue *UpsertError
		errors.As(err, &ue)
		return UpsertResult{Success: false, ErrorCode: ue.Code}, err
	}

	sub := &models.Subscription{
		ID:                 strings.TrimSpace(in.ID),
		UserID:             in.UserID,
		Status:             normalizeStatus(in.Status),
		TierType:           string(in.TierType),
		PriceID:            in.PriceID,
		Quantity:           in.Quantity,
		Current:            in.Current,
		PaddleCustomerID:   in.PaddleCustomerID,
		CurrentPeriodStart: in.CurrentPeriodStart,
		CurrentPeriodEnd:   in.CurrentPeriodEnd,
		CancelAt:           in.CancelAt,
		CanceledAt:         in.CanceledAt,
		TrialStart:         in.TrialStart,
		TrialEnd:           in.TrialEnd,
	}

	setIdentity := in.UserID != nil || in.PaddleCustomerID != nil
	operation, err := s.repo.UpsertSubscription(ctx, sub, setIdentity)
	if err != nil {
		return UpsertResult{}, err
	}

	return UpsertResult{Success: true, Operation: operation}, nil
}

func validateUpsert(in *SubscriptionUpsert) error {
	if strings.TrimSpace(in.ID) == "" {
		return &UpsertError{Code: "missing_subscription_id", Message: "subscription id is required"}
	}
	if strings.TrimSpace(in.Status) == "" {
		return &UpsertError{Code: "missing_status", Message: "subscription status is required"}
	}
	if entitlements.Normalize(string(in.TierType)) != in.TierType {
		return &UpsertError{Code: "invalid_tier", Message: "unknown tier classification"}
	}
	if in.Quantity <= 0 {
		in.Quantity = 1
	}
	return nil
}

// DowngradeToFree handles the cancel-family transitions: the provider row is
// demoted and the user is guaranteed exactly one current free-tier row, so
// access-control reads never confuse "canceled" with "never subscribed".
func (s *Service) DowngradeToFree(ctx context.Context, userID, subscriptionID, status string, canceledAt *time.Time) error {
	existing, err := s.repo.GetSubscription(ctx, subscriptionID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if existing != nil {
		if _, err := s.UpsertSubscription(ctx, SubscriptionUpsert{
			ID:                 existing.ID,
			Status:             status,
			TierType:           entitlements.Normalize(existing.TierType),
			PriceID:            existing.PriceID,
			Quantity:           existing.Quantity,
			Current:            false,
			CurrentPeriodStart: existing.CurrentPeriodStart,
			CurrentPeriodEnd:   existing.CurrentPeriodEnd,
			CanceledAt:         canceledAt,
			TrialStart:         existing.TrialStart,
			TrialEnd:           existing.TrialEnd,
		}); err != nil {
			return err
		}
	}

	return s.ensureCurrentFreeRow(ctx, userID)
}

// ensureCurrentFreeRow promotes an existing free placeholder or inserts a
// synthetic one so exactly one current=true free row exists for the user.
func (s *Service) ensureCurrentFreeRow(ctx context.Context, userID string) error {
	current, err := s.repo.CurrentSubscriptionForUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if current != nil && entitlements.Normalize(current.TierType) == entitlements.TierFree {
		return nil
	}

	placeholders, err := s.repo.FreePlaceholderSubscriptionsForUser(ctx, userID)
	if err != nil {
		return err
	}

	id := models.NewFreeSubscriptionID()
	if len(placeholders) > 0 {
		id = placeholders[0].ID
	}

	_, err = s.UpsertSubscription(ctx, SubscriptionUpsert{
		ID:       id,
		UserID:   &userID,
		Status:   models.SubscriptionStatusActive,
		TierType: entitlements.TierFree,
		Quantity: 1,
		Current:  true,
	})
	return err
}

// LinkCustomer handles customer.created/updated: upsert the customer row,
// backfill paddle_customer_id onto every profile with the customer's email,
// then attach any orphaned subscriptions to the resolved user.
func (s *Service) LinkCustomer(ctx context.Context, data CustomerData) error {
	customerID := strings.TrimSpace(data.ID)
	email := strings.ToLower(strings.TrimSpace(data.Email))
	if customerID == "" {
		return errors.New("customer event payload missing customer id")
	}

	if err := s.repo.UpsertCustomer(ctx, &models.PaddleCustomer{
		ID:    customerID,
		Email: email,
		Name:  strings.TrimSpace(data.Name),
	}); err != nil {
		return err
	}

	if email != "" {
		if err := s.linkProfilesWithRetry(ctx, email, customerID); err != nil {
			return err
		}
	}

	userID, err := s.resolveLinkedUser(ctx, customerID, email)
	if err != nil {
		return err
	}
	if userID == "" {
		log.Infof("[Billing] No profile yet for customer %s, orphans stay pending", maskID(customerID))
		return nil
	}

	return s.attachOrphans(ctx, customerID, userID)
}

// linkProfilesWithRetry retries the profile backfill with bounded
// exponential backoff: at webhook-delivery time the profile row may not have
// been written by the signup flow yet.
func (s *Service) linkProfilesWithRetry(ctx context.Context, email, customerID string) error {
	delay := profileLinkBaseDelay
	for attempt := 1; attempt <= profileLinkAttempts; attempt++ {
		rows, err := s.repo.SetProfilesPaddleCustomerID(ctx, email, customerID)
		if err != nil {
			return err
		}
		if rows > 0 {
			if attempt > 1 {
				log.Infof("[Billing] Linked %d profile(s) to customer %s on attempt %d", rows, maskID(customerID), attempt)
			}
			return nil
		}
		if attempt == profileLinkAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	log.Warnf("[Billing] No profile matched email %s for customer %s after %d attempts", maskID(email), maskID(customerID), profileLinkAttempts)
	return nil
}

func (s *Service) resolveLinkedUser(ctx context.Context, customerID, email string) (string, error) {
	profile, err := s.repo.GetProfileByPaddleCustomerID(ctx, customerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if profile != nil {
		return profile.ID, nil
	}

	if email == "" {
		return "", nil
	}
	profile, err = s.repo.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return profile.ID, nil
}

// attachOrphans gives the newest orphaned subscription to the user and
// cleans up: the user's free placeholder is superseded and stale duplicate
// orphans beyond the most recent are dropped.
func (s *Service) attachOrphans(ctx context.Context, customerID, userID string) error {
	orphans, err := s.repo.OrphanSubscriptionsForCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		return nil
	}

	newest := orphans[0]
	if _, err := s.UpsertSubscription(ctx, SubscriptionUpsert{
		ID:                 newest.ID,
		UserID:             &userID,
		PaddleCustomerID:   &customerID,
		Status:             newest.Status,
		TierType:           entitlements.Normalize(newest.TierType),
		PriceID:            newest.PriceID,
		Quantity:           newest.Quantity,
		Current:            isEntitlingStatus(newest.Status),
		CurrentPeriodStart: newest.CurrentPeriodStart,
		CurrentPeriodEnd:   newest.CurrentPeriodEnd,
		TrialStart:         newest.TrialStart,
		TrialEnd:           newest.TrialEnd,
	}); err != nil {
		return err
	}

	var stale []string
	for _, orphan := range orphans[1:] {
		stale = append(stale, orphan.ID)
	}
	placeholders, err := s.repo.FreePlaceholderSubscriptionsForUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, placeholder := range placeholders {
		stale = append(stale, placeholder.ID)
	}

	if len(stale) > 0 {
		log.Infof("[Billing] Attached subscription %s to user %s, removing %d superseded row(s)", maskID(newest.ID), maskID(userID), len(stale))
	}
	return s.repo.DeleteSubscriptions(ctx, stale)
}

// HasActivePhoneNumber reports whether the user already went through phone
// number provisioning.
func (s *Service) HasActivePhoneNumber(ctx context.Context, userID string) (bool, error) {
	return s.repo.HasActivePhoneNumber(ctx, userID)
}

// CurrentSubscriptionForUser returns the user's current subscription row,
// or nil when the user never subscribed.
func (s *Service) CurrentSubscriptionForUser(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := s.repo.CurrentSubscriptionForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// SubscriptionExistsForUser reports whether any subscription row is owned
// by the user, current or not.
func (s *Service) SubscriptionExistsForUser(ctx context.Context, userID string) (bool, error) {
	return s.repo.SubscriptionExistsForUser(ctx, userID)
}

// SubscriptionExists reports whether a row with this subscription id exists.
func (s *Service) SubscriptionExists(ctx context.Context, subscriptionID string) (bool, error) {
	if _, err := s.repo.GetSubscription(ctx, subscriptionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AnnotateProfileTransaction stores the latest checkout transaction id on
// the user's profile.
func (s *Service) AnnotateProfileTransaction(ctx context.Context, userID, transactionID string) error {
	return s.repo.AnnotateProfileTransaction(ctx, userID, transactionID)
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg)
}
