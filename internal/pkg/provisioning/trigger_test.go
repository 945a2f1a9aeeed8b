package provisioning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/spoqen/spoqen/internal/pkg/entitlements"
)

func TestClientProvision(t *testing.T) {
	var received Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer provision-token" {
			t.Fatalf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := &Client{
		FunctionURL: server.URL,
		AuthToken:   "provision-token",
		HTTPClient:  server.Client(),
	}

	err := client.Provision(context.Background(), Request{
		UserID:             "5f6e1a9b-0000-4000-8000-000000000001",
		TierType:           "pro",
		SubscriptionStatus: "active",
		TriggerAction:      "subscription_activated",
		SubscriptionID:     "sub_01",
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	if received.UserID != "5f6e1a9b-0000-4000-8000-000000000001" || received.TierType != "pro" {
		t.Fatalf("unexpected payload: %+v", received)
	}
	if received.TriggerAction != "subscription_activated" || received.SubscriptionID != "sub_01" {
		t.Fatalf("unexpected payload: %+v", received)
	}
	if _, err := time.Parse(time.RFC3339, received.Timestamp); err != nil {
		t.Fatalf("timestamp %q not RFC3339: %v", received.Timestamp, err)
	}
}

func TestClientProvision_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no numbers available", http.StatusBadGateway)
	}))
	defer server.Close()

	client := &Client{FunctionURL: server.URL, HTTPClient: server.Client()}
	err := client.Provision(context.Background(), Request{UserID: "user"})
	if err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestClientProvision_Unconfigured(t *testing.T) {
	client := &Client{}
	if client.IsConfigured() {
		t.Fatalf("empty client reported configured")
	}
	if err := client.Provision(context.Background(), Request{UserID: "user"}); err == nil {
		t.Fatalf("expected error without function URL")
	}
}

func TestTriggerProvision_FireAndForget(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	trigger := NewTrigger(&Client{FunctionURL: server.URL, HTTPClient: server.Client()})
	trigger.Provision("5f6e1a9b-0000-4000-8000-000000000001", entitlements.TierPro, "active", "subscription_activated", "sub_01")
	trigger.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("provisioning calls = %d, want 1", calls)
	}
}

func TestTriggerProvision_UnconfiguredIsNoop(t *testing.T) {
	trigger := NewTrigger(&Client{})
	trigger.Provision("user", entitlements.TierStarter, "active", "subscription_activated", "sub_01")
	trigger.Wait()
}
