package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spoqen/spoqen/internal/pkg/entitlements"
)

// Paddle webhook event types this processor models. Anything else is
// acknowledged and ignored so unknown types never block redelivery.
const (
	EventSubscriptionCreated   = "subscription.created"
	EventSubscriptionUpdated   = "subscription.updated"
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCanceled  = "subscription.canceled"
	EventSubscriptionPaused    = "subscription.paused"
	EventSubscriptionPastDue   = "subscription.past_due"
	EventSubscriptionResumed   = "subscription.resumed"
	EventCustomerCreated       = "customer.created"
	EventCustomerUpdated       = "customer.updated"
	EventTransactionCompleted  = "transaction.completed"
	EventTransactionPaid       = "transaction.paid"
)

// Event is the Paddle webhook envelope.
type Event struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// ParseEvent decodes a raw webhook body into its envelope. The event type
// must be present; the data object is decoded lazily by the handlers.
func ParseEvent(rawBody []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("parse webhook envelope: %w", err)
	}
	if strings.TrimSpace(event.EventType) == "" {
		return nil, fmt.Errorf("webhook envelope missing event_type")
	}
	return &event, nil
}

// SubscriptionItem is one line item on a Paddle subscription.
type SubscriptionItem struct {
	Quantity int `json:"quantity"`
	Price    struct {
		ID string `json:"id"`
	} `json:"price"`
}

// SubscriptionData is the data object of subscription.* events.
type SubscriptionData struct {
	ID                   string             `json:"id"`
	CustomerID           string             `json:"customer_id"`
	Status               string             `json:"status"`
	Items                []SubscriptionItem `json:"items"`
	CurrentBillingPeriod struct {
		StartsAt string `json:"starts_at"`
		EndsAt   string `json:"ends_at"`
	} `json:"current_billing_period"`
	StartedAt  string `json:"started_at"`
	CanceledAt string `json:"canceled_at"`
	PausedAt   string `json:"paused_at"`
	TrialDates struct {
		StartsAt string `json:"starts_at"`
		EndsAt   string `json:"ends_at"`
	} `json:"trial_dates"`
}

// FirstPriceID returns the price id of the first line item, or nil when the
// payload carries no items.
func (d *SubscriptionData) FirstPriceID() *string {
	for _, item := range d.Items {
		if id := strings.TrimSpace(item.Price.ID); id != "" {
			return &id
		}
	}
	return nil
}

// FirstQuantity returns the quantity of the first line item, defaulting to 1.
func (d *SubscriptionData) FirstQuantity() int {
	for _, item := range d.Items {
		if item.Quantity > 0 {
			return item.Quantity
		}
	}
	return 1
}

// CustomerData is the data object of customer.* events.
type CustomerData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TransactionData is the data object of transaction.* events.
type TransactionData struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
	Status         string `json:"status"`
	InvoiceID      string `json:"invoice_id"`
	Details        struct {
		Totals struct {
			GrandTotal   string `json:"grand_total"`
			CurrencyCode string `json:"currency_code"`
		} `json:"totals"`
	} `json:"details"`
}

// SubscriptionUpsert is the fully-formed attribute set passed to the atomic
// upsert. Nil identity fields (UserID, PaddleCustomerID) are deliberately
// omitted from the update set rather than written as NULL, so callers clear
// ownership by omission, never by a separate racing UPDATE.
type SubscriptionUpsert struct {
	ID                 string
	UserID             *string
	PaddleCustomerID   *string
	Status             string
	TierType           entitlements.Tier
	PriceID            *string
	Quantity           int
	Current            bool
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAt           *time.Time
	CanceledAt         *time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
}

const (
	OperationInserted = "inserted"
	OperationUpdated  = "updated"
)

// UpsertResult reports the outcome of the atomic subscription upsert.
type UpsertResult struct {
	Success   bool   `json:"success"`
	Operation string `json:"operation,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// UpsertError is a terminal application-level rejection from the upsert.
// Provider redelivery would reproduce the same rejection, so handlers must
// not treat it as retryable.
type UpsertError struct {
	Code    string
	Message string
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("subscription upsert rejected: %s (%s)", e.Message, e.Code)
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// parseTimestamp parses an RFC3339 provider timestamp, returning nil for
// empty or malformed values.
func parseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	t := ts.UTC()
	return &t
}

// normalizeStatus lowercases provider statuses and folds the provider's
// "cancelled" spelling onto the stored one.
func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "cancelled" {
		return "canceled"
	}
	return s
}

// isEntitlingStatus reports whether a subscription in this status may hold
// the current flag for a user.
func isEntitlingStatus(status string) bool {
	switch normalizeStatus(status) {
	case "active", "trialing", "pending_webhook":
		return true
	default:
		return false
	}
}

// maskID shortens identifiers (user ids, customer ids, emails) for logs.
func maskID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= 8 {
		return id
	}
	return id[:4] + "…" + id[len(id)-4:]
}
