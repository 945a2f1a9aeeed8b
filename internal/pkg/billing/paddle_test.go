package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestPaddleClient(handler http.HandlerFunc) (*PaddleClient, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := &PaddleClient{
		APIKey:     "pdl_test_key",
		APIBaseURL: server.URL,
		HTTPClient: server.Client(),
	}
	return client, server
}

func TestPaddleClient_GetSubscription(t *testing.T) {
	client, server := newTestPaddleClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/subscriptions/sub_01" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer pdl_test_key" {
			t.Fatalf("authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"sub_01","customer_id":"ctm_01","status":"active","items":[{"quantity":2,"price":{"id":"pri_pro_monthly"}}]}}`))
	})
	defer server.Close()

	sub, err := client.GetSubscription(context.Background(), "sub_01")
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.ID != "sub_01" || sub.Status != "active" {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
	if priceID := sub.FirstPriceID(); priceID == nil || *priceID != "pri_pro_monthly" {
		t.Fatalf("price id = %v", priceID)
	}
	if sub.FirstQuantity() != 2 {
		t.Fatalf("quantity = %d, want 2", sub.FirstQuantity())
	}
}

func TestPaddleClient_CancelSubscription(t *testing.T) {
	client, server := newTestPaddleClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/subscriptions/sub_01/cancel" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["effective_from"] != "next_billing_period" {
			t.Fatalf("effective_from = %q", body["effective_from"])
		}
		_, _ = w.Write([]byte(`{"data":{"id":"sub_01","status":"canceled"}}`))
	})
	defer server.Close()

	if err := client.CancelSubscription(context.Background(), "sub_01", false); err != nil {
		t.Fatalf("cancel: %v", err)
	}
}

func TestPaddleClient_CreatePortalSession(t *testing.T) {
	client, server := newTestPaddleClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers/ctm_01/portal-sessions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"id":"pcps_01","urls":{"general":{"overview":"https://portal.paddle.com/overview"}}}}`))
	})
	defer server.Close()

	url, err := client.CreatePortalSession(context.Background(), "ctm_01")
	if err != nil {
		t.Fatalf("portal session: %v", err)
	}
	if url != "https://portal.paddle.com/overview" {
		t.Fatalf("portal url = %q", url)
	}
}

func TestPaddleClient_APIError(t *testing.T) {
	client, server := newTestPaddleClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"entity_not_found","detail":"subscription does not exist"}}`))
	})
	defer server.Close()

	_, err := client.GetSubscription(context.Background(), "sub_missing")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestPaddleClient_RequiresAPIKey(t *testing.T) {
	client := &PaddleClient{APIBaseURL: "https://api.paddle.com"}
	if _, err := client.GetSubscription(context.Background(), "sub_01"); err == nil {
		t.Fatalf("expected missing api key error")
	}
}
