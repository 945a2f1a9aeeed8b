package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/spoqen/spoqen/app/models"
)

// recentLookupStatuses are the statuses the fallback heuristic considers
// when guessing ownership from a customer's latest subscriptions.
var recentLookupStatuses = []string{
	models.SubscriptionStatusActive,
	models.SubscriptionStatusTrialing,
	models.SubscriptionStatusPendingWebhook,
}

const recentLookupLimit = 10

// ResolveUser maps a provider subscription/customer pair onto an internal
// user id. The cascade exists because webhook delivery and the checkout
// success-redirect race, so subscription ids do not always match between the
// two paths. "Not found" is not an error: the empty string tells the caller
// to store the record as pending.
//
// Steps, each short-circuiting on success:
//  1. subscription row with this id that already has an owner
//  2. profile carrying this paddle_customer_id
//  3. customer row -> email -> profile
//  4. newest recent subscription of this customer with an entitling status
func (s *Service) ResolveUser(ctx context.Context, subscriptionID, customerID string) (string, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	customerID = strings.TrimSpace(customerID)

	if subscriptionID != "" {
		sub, err := s.repo.GetSubscription(ctx, subscriptionID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
		if sub != nil && !sub.IsOrphan() {
			return *sub.UserID, nil
		}
	}

	if customerID == "" {
		return "", nil
	}

	userID, err := s.ResolveUserByCustomer(ctx, customerID)
	if err != nil || userID != "" {
		return userID, err
	}

	// Fallback heuristic: newest entitling subscription for this customer.
	// Known-imprecise under concurrent checkouts for the same customer; kept
	// deliberately loose because the subscription id legitimately differs
	// between the redirect and webhook paths.
	recent, err := s.repo.RecentSubscriptionsForCustomer(ctx, customerID, recentLookupStatuses, recentLookupLimit)
	if err != nil {
		return "", err
	}
	for _, sub := range recent {
		if !sub.IsOrphan() {
			log.Warnf("[Billing] Resolved user %s for subscription %s via recent-subscription heuristic", maskID(*sub.UserID), maskID(subscriptionID))
			return *sub.UserID, nil
		}
	}

	return "", nil
}

// ResolveUserByCustomer resolves ownership from the customer id alone:
// either a profile already carries the id, or the customer's email matches a
// profile.
func (s *Service) ResolveUserByCustomer(ctx context.Context, customerID string) (string, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return "", nil
	}

	profile, err := s.repo.GetProfileByPaddleCustomerID(ctx, customerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if profile != nil {
		return profile.ID, nil
	}

	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	if strings.TrimSpace(customer.Email) == "" {
		return "", nil
	}

	profile, err = s.repo.GetProfileByEmail(ctx, customer.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return profile.ID, nil
}
