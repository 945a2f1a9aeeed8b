package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spoqen/spoqen/internal/pkg/env"
)

// ErrUserNotFound reports that the auth provider has no account for the id.
var ErrUserNotFound = errors.New("identity: user not found")

// User is the subset of the auth provider's account record the app needs.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Client looks up accounts at the auth provider's admin API. Accounts live
// there; the local profiles table only mirrors what billing needs.
type Client struct {
	BaseURL    string
	ServiceKey string

	HTTPClient *http.Client
}

func NewClientFromEnv() *Client {
	return &Client{
		BaseURL:    strings.TrimRight(env.GetEnv("AUTH_API_BASE_URL", ""), "/"),
		ServiceKey: strings.TrimSpace(env.GetEnv("AUTH_SERVICE_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetUser fetches one account by id. ErrUserNotFound is returned for both
// 404 and a malformed id, so callers treat them uniformly as "no such user".
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	if strings.TrimSpace(c.BaseURL) == "" || strings.TrimSpace(c.ServiceKey) == "" {
		return nil, errors.New("AUTH_API_BASE_URL/AUTH_SERVICE_KEY are not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/admin/users/"+userID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.ServiceKey)
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return nil, ErrUserNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("identity api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode identity response: %w", err)
	}
	if user.ID == "" {
		return nil, ErrUserNotFound
	}

	return &user, nil
}
