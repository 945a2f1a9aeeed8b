package billing

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spoqen/spoqen/app/models"
)

// Repository provides DB operations used by the billing service. All
// subscription mutation goes through UpsertSubscription; there is no
// partial-update path that could race it.
type Repository interface {
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	CurrentSubscriptionForUser(ctx context.Context, userID string) (*models.Subscription, error)
	SubscriptionExistsForUser(ctx context.Context, userID string) (bool, error)
	RecentSubscriptionsForCustomer(ctx context.Context, customerID string, statuses []string, limit int) ([]models.Subscription, error)
	OrphanSubscriptionsForCustomer(ctx context.Context, customerID string) ([]models.Subscription, error)
	FreePlaceholderSubscriptionsForUser(ctx context.Context, userID string) ([]models.Subscription, error)
	DeleteSubscriptions(ctx context.Context, ids []string) error
	UpsertSubscription(ctx context.Context, sub *models.Subscription, setIdentity bool) (string, error)

	GetProfileByID(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetProfileByPaddleCustomerID(ctx context.Context, customerID string) (*models.Profile, error)
	SetProfilesPaddleCustomerID(ctx context.Context, email, customerID string) (int64, error)
	AnnotateProfileTransaction(ctx context.Context, userID, transactionID string) error

	GetCustomer(ctx context.Context, id string) (*models.PaddleCustomer, error)
	UpsertCustomer(ctx context.Context, customer *models.PaddleCustomer) error

	HasActivePhoneNumber(ctx context.Context, userID string) (bool, error)

	CreateWebhookEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CurrentSubscriptionForUser(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_current = ?", userID, true).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SubscriptionExistsForUser(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) RecentSubscriptionsForCustomer(ctx context.Context, customerID string, statuses []string, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 10
	}
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("paddle_customer_id = ? AND status IN ?", customerID, statuses).
		Order("created_at DESC").
		Limit(limit).
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) OrphanSubscriptionsForCustomer(ctx context.Context, customerID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("paddle_customer_id = ? AND user_id IS NULL", customerID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) FreePlaceholderSubscriptionsForUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND tier_type = ? AND id LIKE ?", userID, "free", models.FreeSubscriptionPrefix+"%").
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) DeleteSubscriptions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Subscription{}).Error
}

// subscriptionUpdateColumns is the non-identity update set of the atomic
// upsert. user_id and paddle_customer_id are appended only when the caller
// explicitly provides identity, so a pending row is never disowned by a
// webhook that could not resolve the user.
var subscriptionUpdateColumns = []string{
	"status",
	"tier_type",
	"price_id",
	"quantity",
	"is_current",
	"current_period_start",
	"current_period_end",
	"cancel_at",
	"canceled_at",
	"trial_start",
	"trial_end",
	"updated_at",
}

// UpsertSubscription is the single permitted write path for subscription
// state. The insert-or-update and the demotion of any other current row for
// the same user run in one transaction, so two concurrent writers upserting
// the same user's state never interleave partial writes.
func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.Subscription, setIdentity bool) (string, error) {
	operation := OperationInserted

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			operation = OperationUpdated
		}

		assign := subscriptionUpdateColumns
		if setIdentity {
			assign = append(append([]string{}, assign...), "user_id", "paddle_customer_id")
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(assign),
		}).Create(sub).Error; err != nil {
			return err
		}

		// At most one current row per user: demote every other row the
		// moment this one claims the flag.
		if sub.Current && sub.UserID != nil {
			if err := tx.Model(&models.Subscription{}).
				Where("user_id = ? AND id <> ? AND is_current = ?", *sub.UserID, sub.ID, true).
				Update("is_current", false).Error; err != nil {
				return err
			}
		}

		return tx.Where("id = ?", sub.ID).First(sub).Error
	})

	return operation, err
}

func (r *gormRepository) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *gormRepository) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *gormRepository) GetProfileByPaddleCustomerID(ctx context.Context, customerID string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("paddle_customer_id = ?", customerID).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetProfilesPaddleCustomerID links every profile with the customer's email,
// not just the first: historical rows may share an address.
func (r *gormRepository) SetProfilesPaddleCustomerID(ctx context.Context, email, customerID string) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Update("paddle_customer_id", customerID)
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) AnnotateProfileTransaction(ctx context.Context, userID, transactionID string) error {
	return r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", userID).
		Update("last_transaction_id", transactionID).Error
}

func (r *gormRepository) GetCustomer(ctx context.Context, id string) (*models.PaddleCustomer, error) {
	var customer models.PaddleCustomer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *gormRepository) UpsertCustomer(ctx context.Context, customer *models.PaddleCustomer) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email",
			"name",
			"updated_at",
		}),
	}).Create(customer).Error; err != nil {
		return err
	}

	return r.db.WithContext(ctx).Where("id = ?", customer.ID).First(customer).Error
}

func (r *gormRepository) HasActivePhoneNumber(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PhoneNumber{}).
		Where("user_id = ? AND status = ?", userID, models.PhoneNumberStatusActive).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.WithContext(ctx).Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
