package instantpay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/billing"
)

// Client is a minimal instant-payment API client, used by the manual-sync path.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates an instant-payment API client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type subscriptionResponse struct {
	ID           string `json:"id"`
	CustomerID   string `json:"customer_id"`
	PlanID       string `json:"plan_id"`
	Status       string `json:"status"`
	CancelAtEnd  bool   `json:"cancel_at_cycle_end"`
	CurrentCycle struct {
		StartAt time.Time `json:"start_at"`
		EndAt   time.Time `json:"end_at"`
	} `json:"current_cycle"`
}

// GetSubscription fetches the provider's current view of a subscription.
func (c *Client) GetSubscription(ctx context.Context, id string) (*billing.SubscriptionSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/subscriptions/%s", c.baseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("instant api request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("instant api get subscription %s: %w", id, domain.ErrProviderUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("instant subscription %s: %w", id, domain.ErrNotFound)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("instant api status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("instant api get subscription %s: unexpected status %d", id, resp.StatusCode)
	}

	var sr subscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode instant subscription %s: %w", id, err)
	}

	return &billing.SubscriptionSnapshot{
		Provider:       ProviderName,
		SubscriptionID: sr.ID,
		CustomerID:     sr.CustomerID,
		PlanID:         sr.PlanID,
		Status:         normalizeStatus(sr.Status),
		PeriodStart:    sr.CurrentCycle.StartAt,
		PeriodEnd:      sr.CurrentCycle.EndAt,
		CancelAtEnd:    sr.CancelAtEnd,
	}, nil
}
