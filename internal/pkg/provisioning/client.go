package provisioning

import (
	"bytes"
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

// Request is the payload sent to the external provisioning function, which
// buys the phone number, creates the voice assistant and writes the
// phone_numbers row.
type Request struct {
	UserID             string `json:"user_id"`
	TierType           string `json:"tier_type"`
	SubscriptionStatus string `json:"subscription_status"`
	TriggerAction      string `json:"trigger_action"`
	SubscriptionID     string `json:"subscription_id"`
	Timestamp          string `json:"timestamp"`
}

// Client calls the provisioning function endpoint.
type Client struct {
	FunctionURL string
	AuthToken   string

	HTTPClient *http.Client
}

func NewClientFromEnv() *Client {
	return &Client{
		FunctionURL: strings.TrimSpace(env.GetEnv("PROVISION_FUNCTION_URL", "")),
		AuthToken:   strings.TrimSpace(env.GetEnv("PROVISION_FUNCTION_TOKEN", "")),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured reports whether a function URL is set. Environments without
// one (local dev, tests) simply skip provisioning.
func (c *Client) IsConfigured() bool {
	return strings.TrimSpace(c.FunctionURL) != ""
}

// Provision invokes the provisioning function once. The function itself is
// idempotent per user, so a duplicate call after a lost response is safe.
func (c *Client) Provision(ctx context.Context, req Request) error {
	if !c.IsConfigured() {
		return errors.New("PROVISION_FUNCTION_URL is not configured")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return errors.New("user id is required")
	}
	if req.Timestamp == "" {
		req.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode provisioning request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.FunctionURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.AuthToken)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("provisioning request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provisioning function returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return nil
}
