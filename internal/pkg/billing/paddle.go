package billing

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

const defaultPaddleAPIBaseURL = "https://api.paddle.com"

// PaddleClient talks to the Paddle REST API for the few server-initiated
// operations the app needs (cancel, customer portal, subscription lookup).
// All tier state still flows exclusively through webhooks.
type PaddleClient struct {
	APIKey     string
	APIBaseURL string

	HTTPClient *http.Client
}

type paddleEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"error"`
}

// PaddlePortalSession is the response of a customer portal session creation.
type PaddlePortalSession struct {
	ID   string `json:"id"`
	URLs struct {
		General struct {
			Overview string `json:"overview"`
		} `json:"general"`
	} `json:"urls"`
}

func NewPaddleClientFromEnv() *PaddleClient {
	return &PaddleClient{
		APIKey:     strings.TrimSpace(env.GetEnv("PADDLE_API_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("PADDLE_API_BASE_URL", defaultPaddleAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetSubscription fetches the live subscription state from Paddle.
func (c *PaddleClient) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionData, error) {
	if strings.TrimSpace(subscriptionID) == "" {
		return nil, errors.New("subscription id is required")
	}
	raw, err := c.doRequest(ctx, http.MethodGet, "/subscriptions/"+subscriptionID, nil)
	if err != nil {
		return nil, err
	}
	var data SubscriptionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode subscription response: %w", err)
	}
	return &data, nil
}

// CancelSubscription schedules a cancellation. With immediately=false Paddle
// cancels at the end of the billing period; the resulting state change still
// arrives through the subscription.canceled webhook.
func (c *PaddleClient) CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) error {
	if strings.TrimSpace(subscriptionID) == "" {
		return errors.New("subscription id is required")
	}
	effectiveFrom := "next_billing_period"
	if immediately {
		effectiveFrom = "immediately"
	}
	body := map[string]string{"effective_from": effectiveFrom}
	_, err := c.doRequest(ctx, http.MethodPost, "/subscriptions/"+subscriptionID+"/cancel", body)
	return err
}

// CreatePortalSession creates a customer portal session and returns its
// overview URL for redirecting the browser.
func (c *PaddleClient) CreatePortalSession(ctx context.Context, paddleCustomerID string) (string, error) {
	if strings.TrimSpace(paddleCustomerID) == "" {
		return "", errors.New("paddle customer id is required")
	}
	raw, err := c.doRequest(ctx, http.MethodPost, "/customers/"+paddleCustomerID+"/portal-sessions", struct{}{})
	if err != nil {
		return "", err
	}
	var session PaddlePortalSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return "", fmt.Errorf("failed to decode portal session response: %w", err)
	}
	if session.URLs.General.Overview == "" {
		return "", errors.New("portal session response carried no overview url")
	}
	return session.URLs.General.Overview, nil
}

func (c *PaddleClient) doRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("PADDLE_API_KEY is not configured")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paddle request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read paddle response: %w", err)
	}

	var envelope paddleEnvelope
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode paddle response (status %d): %w", resp.StatusCode, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if envelope.Error != nil {
			return nil, fmt.Errorf("paddle api error %s: %s", envelope.Error.Code, envelope.Error.Detail)
		}
		return nil, fmt.Errorf("paddle api returned status %d", resp.StatusCode)
	}

	return envelope.Data, nil
}
