package provisioning

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/spoqen/spoqen/internal/pkg/entitlements"
)

const triggerTimeout = 45 * time.Second

// Trigger dispatches provisioning calls on detached goroutines so the
// webhook response never waits on (or fails because of) the provisioning
// function. Outcomes surface through logs only; a lost provisioning run is
// recovered by the next activation event or a manual retrigger.
type Trigger struct {
	client *Client
	wg     sync.WaitGroup
}

func NewTrigger(client *Client) *Trigger {
	return &Trigger{client: client}
}

func NewTriggerFromEnv() *Trigger {
	return NewTrigger(NewClientFromEnv())
}

// Provision starts a provisioning run in the background.
func (t *Trigger) Provision(userID string, tier entitlements.Tier, status, triggerAction, subscriptionID string) {
	if t.client == nil || !t.client.IsConfigured() {
		log.Infof("[Provisioning] No function URL configured, skipping provisioning for user %s", userID)
		return
	}

	req := Request{
		UserID:             userID,
		TierType:           string(tier),
		SubscriptionStatus: status,
		TriggerAction:      triggerAction,
		SubscriptionID:     subscriptionID,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		// Own timeout, not the webhook request context: the HTTP response
		// has usually been written before this run finishes.
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()

		if err := t.client.Provision(ctx, req); err != nil {
			log.Errorf("[Provisioning] Provisioning for user %s (%s) failed: %v", userID, triggerAction, err)
			return
		}
		log.Infof("[Provisioning] Provisioning started for user %s (tier %s, %s)", userID, tier, triggerAction)
	}()
}

// Wait blocks until all in-flight provisioning runs finished. Used on
// shutdown.
func (t *Trigger) Wait() {
	t.wg.Wait()
}
