package cardprovider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fitcore/billing/internal/domain"
)

func TestGetSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subscriptions/sub_9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "sub_9",
			"customer": "cus_9",
			"status": "unpaid",
			"current_period_start": 1767225600,
			"current_period_end": 1769904000,
			"cancel_at_period_end": true,
			"plan": {"id": "plan-pro"}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test", time.Second)
	snap, err := c.GetSubscription(context.Background(), "sub_9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.SubscriptionID != "sub_9" || snap.CustomerID != "cus_9" {
		t.Fatalf("identifiers wrong: %q / %q", snap.SubscriptionID, snap.CustomerID)
	}
	if snap.Status != "past_due" {
		t.Fatalf("expected provider 'unpaid' mapped to past_due, got %q", snap.Status)
	}
	if !snap.CancelAtEnd || snap.PlanID != "plan-pro" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	want := time.Unix(1767225600, 0).UTC()
	if !snap.PeriodStart.Equal(want) {
		t.Fatalf("expected period start %v, got %v", want, snap.PeriodStart)
	}
}

func TestGetSubscriptionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test", time.Second)
	_, err := c.GetSubscription(context.Background(), "sub_gone")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetSubscriptionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test", time.Second)
	_, err := c.GetSubscription(context.Background(), "sub_9")
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestGetSubscriptionTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, "sk_test", time.Second)
	_, err := c.GetSubscription(context.Background(), "sub_9")
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
