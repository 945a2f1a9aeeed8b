package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return &Client{
		BaseURL:    server.URL,
		ServiceKey: "service-key",
		HTTPClient: server.Client(),
	}, server
}

func TestGetUser(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/users/5f6e1a9b-0000-4000-8000-000000000001" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer service-key" {
			t.Fatalf("authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"id":"5f6e1a9b-0000-4000-8000-000000000001","email":"agent@broker.com"}`))
	})
	defer server.Close()

	user, err := client.GetUser(context.Background(), "5f6e1a9b-0000-4000-8000-000000000001")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Email != "agent@broker.com" {
		t.Fatalf("email = %q", user.Email)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
	})
	defer server.Close()

	_, err := client.GetUser(context.Background(), "5f6e1a9b-0000-4000-8000-000000000099")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestGetUser_EmptyID(t *testing.T) {
	client := &Client{BaseURL: "https://auth.example.com", ServiceKey: "key"}
	if _, err := client.GetUser(context.Background(), ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestGetUser_ServerError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	defer server.Close()

	_, err := client.GetUser(context.Background(), "some-user")
	if err == nil || errors.Is(err, ErrUserNotFound) {
		t.Fatalf("server error must not map to not-found, got %v", err)
	}
}
