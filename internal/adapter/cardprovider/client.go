package cardprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/billing"
)

// Client is a minimal card-provider API client, used by the manual-sync path.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a card-provider API client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type subscriptionResponse struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	TrialEnd           int64  `json:"trial_end"`
	Plan               struct {
		ID string `json:"id"`
	} `json:"plan"`
}

// GetSubscription fetches the provider's current view of a subscription.
func (c *Client) GetSubscription(ctx context.Context, id string) (*billing.SubscriptionSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/subscriptions/%s", c.baseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("card api request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("card api get subscription %s: %w", id, domain.ErrProviderUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("card subscription %s: %w", id, domain.ErrNotFound)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("card api status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("card api get subscription %s: unexpected status %d", id, resp.StatusCode)
	}

	var sr subscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode card subscription %s: %w", id, err)
	}

	snap := &billing.SubscriptionSnapshot{
		Provider:       ProviderName,
		SubscriptionID: sr.ID,
		CustomerID:     sr.Customer,
		PlanID:         sr.Plan.ID,
		Status:         normalizeStatus(sr.Status),
		PeriodStart:    time.Unix(sr.CurrentPeriodStart, 0).UTC(),
		PeriodEnd:      time.Unix(sr.CurrentPeriodEnd, 0).UTC(),
		CancelAtEnd:    sr.CancelAtPeriodEnd,
	}
	if sr.TrialEnd > 0 {
		t := time.Unix(sr.TrialEnd, 0).UTC()
		snap.TrialEnd = &t
	}
	return snap, nil
}
