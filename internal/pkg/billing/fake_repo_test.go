package billing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/spoqen/spoqen/app/models"
)

// fakeRepo is an in-memory Repository that mirrors the column semantics of
// the GORM implementation, including the setIdentity update-set filtering and
// the single-current-row demotion.
type fakeRepo struct {
	mu sync.Mutex

	subs        map[string]*models.Subscription
	profiles    map[string]*models.Profile
	customers   map[string]*models.PaddleCustomer
	phoneActive map[string]bool
	events      map[string]*models.WebhookEvent

	nextEventID uint
	seq         int

	upsertErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		subs:        make(map[string]*models.Subscription),
		profiles:    make(map[string]*models.Profile),
		customers:   make(map[string]*models.PaddleCustomer),
		phoneActive: make(map[string]bool),
		events:      make(map[string]*models.WebhookEvent),
	}
}

func (f *fakeRepo) addProfile(p models.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.Email = strings.ToLower(p.Email)
	f.profiles[p.ID] = &p
}

func (f *fakeRepo) subscription(id string) *models.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub, ok := f.subs[id]; ok {
		cp := *sub
		return &cp
	}
	return nil
}

func (f *fakeRepo) subscriptionsForUser(userID string) []models.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.UserID != nil && *sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out
}

func (f *fakeRepo) nextCreatedAt() time.Time {
	f.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.seq) * time.Second)
}

func (f *fakeRepo) GetSubscription(_ context.Context, id string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (f *fakeRepo) CurrentSubscriptionForUser(_ context.Context, userID string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *models.Subscription
	for _, sub := range f.subs {
		if sub.UserID == nil || *sub.UserID != userID || !sub.Current {
			continue
		}
		if newest == nil || sub.CreatedAt.After(newest.CreatedAt) {
			newest = sub
		}
	}
	if newest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *newest
	return &cp, nil
}

func (f *fakeRepo) SubscriptionExistsForUser(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if sub.UserID != nil && *sub.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) RecentSubscriptionsForCustomer(_ context.Context, customerID string, statuses []string, limit int) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	allowed := make(map[string]struct{}, len(statuses))
	for _, s := range statuses {
		allowed[s] = struct{}{}
	}
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.PaddleCustomerID == nil || *sub.PaddleCustomerID != customerID {
			continue
		}
		if _, ok := allowed[sub.Status]; !ok {
			continue
		}
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) OrphanSubscriptionsForCustomer(_ context.Context, customerID string) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.PaddleCustomerID != nil && *sub.PaddleCustomerID == customerID && sub.UserID == nil {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRepo) FreePlaceholderSubscriptionsForUser(_ context.Context, userID string) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.UserID != nil && *sub.UserID == userID &&
			sub.TierType == "free" && strings.HasPrefix(sub.ID, models.FreeSubscriptionPrefix) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteSubscriptions(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.subs, id)
	}
	return nil
}

func (f *fakeRepo) UpsertSubscription(_ context.Context, sub *models.Subscription, setIdentity bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.upsertErr != nil {
		return "", f.upsertErr
	}

	operation := OperationInserted
	if existing, ok := f.subs[sub.ID]; ok {
		operation = OperationUpdated
		updated := *existing
		updated.Status = sub.Status
		updated.TierType = sub.TierType
		updated.PriceID = sub.PriceID
		updated.Quantity = sub.Quantity
		updated.Current = sub.Current
		updated.CurrentPeriodStart = sub.CurrentPeriodStart
		updated.CurrentPeriodEnd = sub.CurrentPeriodEnd
		updated.CancelAt = sub.CancelAt
		updated.CanceledAt = sub.CanceledAt
		updated.TrialStart = sub.TrialStart
		updated.TrialEnd = sub.TrialEnd
		if setIdentity {
			updated.UserID = sub.UserID
			updated.PaddleCustomerID = sub.PaddleCustomerID
		}
		*existing = updated
		*sub = updated
	} else {
		sub.CreatedAt = f.nextCreatedAt()
		cp := *sub
		f.subs[sub.ID] = &cp
	}

	if sub.Current && sub.UserID != nil {
		for id, other := range f.subs {
			if id != sub.ID && other.UserID != nil && *other.UserID == *sub.UserID {
				other.Current = false
			}
		}
	}

	return operation, nil
}

func (f *fakeRepo) GetProfileByID(_ context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *profile
	return &cp, nil
}

func (f *fakeRepo) GetProfileByEmail(_ context.Context, email string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, profile := range f.profiles {
		if profile.Email == email {
			cp := *profile
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetProfileByPaddleCustomerID(_ context.Context, customerID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, profile := range f.profiles {
		if profile.PaddleCustomerID != nil && *profile.PaddleCustomerID == customerID {
			cp := *profile
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SetProfilesPaddleCustomerID(_ context.Context, email, customerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	var rows int64
	for _, profile := range f.profiles {
		if profile.Email == email {
			id := customerID
			profile.PaddleCustomerID = &id
			rows++
		}
	}
	return rows, nil
}

func (f *fakeRepo) AnnotateProfileTransaction(_ context.Context, userID, transactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if profile, ok := f.profiles[userID]; ok {
		id := transactionID
		profile.LastTransactionID = &id
	}
	return nil
}

func (f *fakeRepo) GetCustomer(_ context.Context, id string) (*models.PaddleCustomer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	customer, ok := f.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *customer
	return &cp, nil
}

func (f *fakeRepo) UpsertCustomer(_ context.Context, customer *models.PaddleCustomer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *customer
	f.customers[customer.ID] = &cp
	return nil
}

func (f *fakeRepo) HasActivePhoneNumber(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phoneActive[userID], nil
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(_ context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := f.events[key]; ok {
		cp := *existing
		return false, &cp, nil
	}
	f.nextEventID++
	event.ID = f.nextEventID
	cp := *event
	f.events[key] = &cp
	return true, event, nil
}

func (f *fakeRepo) MarkWebhookProcessed(_ context.Context, id uint, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.events {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}
