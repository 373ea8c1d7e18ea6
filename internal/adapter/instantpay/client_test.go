package instantpay

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
		if r.URL.Path != "/subscriptions/isub_9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "isub_9",
			"customer_id": "cust_9",
			"plan_id": "plan-basic",
			"status": "paid",
			"cancel_at_cycle_end": false,
			"current_cycle": {
				"start_at": "2026-02-01T00:00:00Z",
				"end_at": "2026-03-01T00:00:00Z"
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ik_test", time.Second)
	snap, err := c.GetSubscription(context.Background(), "isub_9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.SubscriptionID != "isub_9" || snap.CustomerID != "cust_9" {
		t.Fatalf("identifiers wrong: %q / %q", snap.SubscriptionID, snap.CustomerID)
	}
	if snap.Status != "active" {
		t.Fatalf("expected 'paid' mapped to active, got %q", snap.Status)
	}
	if snap.PeriodStart.IsZero() || snap.PeriodEnd.IsZero() {
		t.Fatalf("cycle dates not mapped")
	}
}

func TestGetSubscriptionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ik_test", time.Second)
	_, err := c.GetSubscription(context.Background(), "isub_gone")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetSubscriptionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "ik_test", time.Second)
	_, err := c.GetSubscription(context.Background(), "isub_9")
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
