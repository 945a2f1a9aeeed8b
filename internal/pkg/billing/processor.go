package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/spoqen/spoqen/app/models"
	"github.com/spoqen/spoqen/internal/pkg/entitlements"
)

// Trigger actions passed to the provisioning function. Only the activation
// transitions provision, never plain updates: that is the first half of the
// double guard against duplicate provisioning under at-least-once delivery.
const (
	TriggerSubscriptionActivated = "subscription_activated"
	TriggerSubscriptionResumed   = "subscription_resumed"
)

// Provisioner starts phone-number provisioning for a newly paid user. The
// call must not block or fail the webhook path; implementations run detached
// and surface their outcome through logs only.
type Provisioner interface {
	Provision(userID string, tier entitlements.Tier, status, triggerAction, subscriptionID string)
}

// Notifier is told when a subscription first becomes paid-active, for
// transactional email. Implementations must be fire-and-forget.
type Notifier interface {
	SubscriptionActivated(userID string, tier entitlements.Tier)
}

// Processor dispatches Paddle webhook events to lifecycle handlers. Every
// handler is idempotent at subscription-id granularity and tolerates
// missing user/customer/profile rows and out-of-order delivery: state is
// re-derived from current row contents, never from handler-invocation order.
type Processor struct {
	svc         *Service
	tiers       *TierConfig
	provisioner Provisioner
	notifier    Notifier
}

// NewProcessor wires the webhook event processor. provisioner and notifier
// may be nil, which disables the respective side effects.
func NewProcessor(svc *Service, tiers *TierConfig, provisioner Provisioner, notifier Notifier) *Processor {
	return &Processor{
		svc:         svc,
		tiers:       tiers,
		provisioner: provisioner,
		notifier:    notifier,
	}
}

// HandleEvent processes one webhook event. A returned error means the HTTP
// layer should answer non-2xx so the provider redelivers.
func (p *Processor) HandleEvent(ctx context.Context, event *Event) error {
	switch event.EventType {
	case EventSubscriptionCreated:
		return p.handleSubscriptionCreated(ctx, event)
	case EventSubscriptionUpdated:
		return p.handleSubscriptionUpdated(ctx, event, false)
	case EventSubscriptionActivated:
		return p.handleSubscriptionUpdated(ctx, event, true)
	case EventSubscriptionCanceled, EventSubscriptionPaused, EventSubscriptionPastDue:
		return p.handleSubscriptionTerminated(ctx, event)
	case EventSubscriptionResumed:
		return p.handleSubscriptionResumed(ctx, event)
	case EventCustomerCreated, EventCustomerUpdated:
		return p.handleCustomerUpserted(ctx, event)
	case EventTransactionCompleted, EventTransactionPaid:
		return p.handleTransaction(ctx, event)
	default:
		// Unknown event types must not block acknowledgement.
		log.Infof("[Billing] Ignoring unhandled webhook event type %s", event.EventType)
		return nil
	}
}

func (p *Processor) handleSubscriptionCreated(ctx context.Context, event *Event) error {
	var data SubscriptionData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to unmarshal subscription data: %w", err)
	}

	userID, err := p.svc.ResolveUser(ctx, data.ID, data.CustomerID)
	if err != nil {
		return err
	}

	upsert := p.upsertFromPayload(&data)
	if userID == "" {
		// No owner yet: store as orphan, keep the customer id so the
		// customer handler can attach it later.
		log.Infof("[Billing] subscription.created for unknown user, storing %s as pending", maskID(data.ID))
	} else {
		upsert.UserID = &userID
		upsert.Current = isEntitlingStatus(data.Status)
	}

	_, err = p.svc.UpsertSubscription(ctx, upsert)
	return err
}

func (p *Processor) handleSubscriptionUpdated(ctx context.Context, event *Event, activated bool) error {
	var data SubscriptionData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to unmarshal subscription data: %w", err)
	}

	userID, err := p.svc.ResolveUser(ctx, data.ID, data.CustomerID)
	if err != nil {
		return err
	}

	upsert := p.upsertFromPayload(&data)
	if userID == "" {
		exists, err := p.svc.SubscriptionExists(ctx, data.ID)
		if err != nil {
			return err
		}
		if !exists {
			// Only subscription.created may insert. An update for a row we
			// never saw would plant an orphan with no customer id, which
			// nothing could ever attach to a user.
			log.Infof("[Billing] %s for unknown subscription %s, nothing to update", event.EventType, maskID(data.ID))
			return nil
		}
		// Non-identity fields only: never disown or re-own a pending row
		// from an update we cannot attribute.
		upsert.PaddleCustomerID = nil
	} else {
		upsert.UserID = &userID
		upsert.Current = isEntitlingStatus(data.Status)
	}

	if _, err := p.svc.UpsertSubscription(ctx, upsert); err != nil {
		return err
	}

	if activated && userID != "" && normalizeStatus(data.Status) == models.SubscriptionStatusActive && entitlements.IsPaid(upsert.TierType) {
		p.maybeProvision(ctx, userID, upsert.TierType, data.Status, TriggerSubscriptionActivated, data.ID)
		if p.notifier != nil {
			p.notifier.SubscriptionActivated(userID, upsert.TierType)
		}
	}

	return nil
}

func (p *Processor) handleSubscriptionTerminated(ctx context.Context, event *Event) error {
	var data SubscriptionData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to unmarshal subscription data: %w", err)
	}

	userID, err := p.svc.ResolveUser(ctx, data.ID, data.CustomerID)
	if err != nil {
		return err
	}
	if userID == "" {
		// The subscription may belong to a customer that was never linked.
		log.Infof("[Billing] %s for unresolved subscription %s, nothing to downgrade", event.EventType, maskID(data.ID))
		return nil
	}

	status := normalizeStatus(data.Status)
	if status == "" || status == models.SubscriptionStatusActive {
		// Some providers leave the payload status untouched on pause/cancel
		// notices; trust the event type over the embedded status.
		status = statusForTerminationEvent(event.EventType)
	}

	return p.svc.DowngradeToFree(ctx, userID, data.ID, status, parseTimestamp(data.CanceledAt))
}

func (p *Processor) handleSubscriptionResumed(ctx context.Context, event *Event) error {
	var data SubscriptionData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to unmarshal subscription data: %w", err)
	}

	userID, err := p.svc.ResolveUser(ctx, data.ID, data.CustomerID)
	if err != nil {
		return err
	}

	upsert := p.upsertFromPayload(&data)
	if userID == "" {
		exists, err := p.svc.SubscriptionExists(ctx, data.ID)
		if err != nil {
			return err
		}
		if !exists {
			log.Infof("[Billing] %s for unknown subscription %s, nothing to update", event.EventType, maskID(data.ID))
			return nil
		}
		upsert.PaddleCustomerID = nil
	} else {
		upsert.UserID = &userID
		upsert.Current = isEntitlingStatus(data.Status)
	}

	if _, err := p.svc.UpsertSubscription(ctx, upsert); err != nil {
		return err
	}

	if userID != "" && normalizeStatus(data.Status) == models.SubscriptionStatusActive && entitlements.IsPaid(upsert.TierType) {
		p.maybeProvision(ctx, userID, upsert.TierType, data.Status, TriggerSubscriptionResumed, data.ID)
	}

	return nil
}

func (p *Processor) handleCustomerUpserted(ctx context.Context, event *Event) error {
	var data CustomerData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to unmarshal customer data: %w", err)
	}
	return p.svc.LinkCustomer(ctx, data)
}

// handleTransaction only does bookkeeping: subscription events own tier
// state, so a transaction tied to a subscription never mutates local rows.
func (p *Processor) handleTransaction(ctx context.Context, event *Event) error {
	var data TransactionData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to unmarshal transaction data: %w", err)
	}

	userID, err := p.svc.ResolveUserByCustomer(ctx, data.CustomerID)
	if err != nil {
		return err
	}

	switch {
	case userID == "":
		log.Infof("[Billing] %s %s for unknown customer %s", event.EventType, maskID(data.ID), maskID(data.CustomerID))
	case data.SubscriptionID != "":
		log.Infof("[Billing] Transaction %s for subscription %s of user %s", maskID(data.ID), maskID(data.SubscriptionID), maskID(userID))
	default:
		log.Infof("[Billing] One-time purchase %s (%s %s) by user %s", maskID(data.ID), data.Details.Totals.GrandTotal, data.Details.Totals.CurrencyCode, maskID(userID))
	}
	return nil
}

// maybeProvision applies the second half of the double guard: a user who
// already holds an active phone number is never provisioned again. The
// provisioning call itself is fire-and-forget; its failure never reaches the
// webhook response.
func (p *Processor) maybeProvision(ctx context.Context, userID string, tier entitlements.Tier, status, triggerAction, subscriptionID string) {
	if p.provisioner == nil {
		return
	}

	hasNumber, err := p.svc.HasActivePhoneNumber(ctx, userID)
	if err != nil {
		log.Errorf("[Billing] Phone number guard check failed for user %s: %v", maskID(userID), err)
		return
	}
	if hasNumber {
		log.Infof("[Billing] User %s already has an active phone number, skipping provisioning", maskID(userID))
		return
	}

	p.provisioner.Provision(userID, tier, normalizeStatus(status), triggerAction, subscriptionID)
}

func (p *Processor) upsertFromPayload(data *SubscriptionData) SubscriptionUpsert {
	priceID := data.FirstPriceID()
	upsert := SubscriptionUpsert{
		ID:                 data.ID,
		Status:             data.Status,
		TierType:           p.tiers.Classify(priceID),
		PriceID:            priceID,
		Quantity:           data.FirstQuantity(),
		CurrentPeriodStart: parseTimestamp(data.CurrentBillingPeriod.StartsAt),
		CurrentPeriodEnd:   parseTimestamp(data.CurrentBillingPeriod.EndsAt),
		CanceledAt:         parseTimestamp(data.CanceledAt),
		TrialStart:         parseTimestamp(data.TrialDates.StartsAt),
		TrialEnd:           parseTimestamp(data.TrialDates.EndsAt),
	}
	if id := data.CustomerID; id != "" {
		upsert.PaddleCustomerID = &id
	}
	return upsert
}

func statusForTerminationEvent(eventType string) string {
	switch eventType {
	case EventSubscriptionPaused:
		return models.SubscriptionStatusPaused
	case EventSubscriptionPastDue:
		return models.SubscriptionStatusPastDue
	default:
		return models.SubscriptionStatusCanceled
	}
}
