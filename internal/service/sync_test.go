package service

import (
	"context"
	"testing"
	"time"

	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/billing"
	"github.com/fitcore/billing/internal/domain/subscription"
	"github.com/fitcore/billing/internal/port/provider"
)

func newSyncFixture(f *testFixture, adapter *mockProviderAdapter) *Sync {
	return NewSync(f.store, map[string]provider.Adapter{adapter.name: adapter}, f.reconciler, time.Second)
}

func TestSyncRefreshAppliesProviderState(t *testing.T) {
	f := newFixture()
	_, sub := seedTenant(f)

	adapter := &mockProviderAdapter{
		name: "card",
		snap: &billing.SubscriptionSnapshot{
			Provider:       "card",
			SubscriptionID: "sub_abc",
			CustomerID:     "cus_123",
			PlanID:         "plan-basic",
			Status:         "past_due",
			PeriodStart:    feb1,
			PeriodEnd:      mar1,
		},
	}
	s := newSyncFixture(f, adapter)

	got, err := s.Refresh(context.Background(), sub.TenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != subscription.StatusPastDue {
		t.Fatalf("expected past_due after sync, got %q", got.Status)
	}
	if !got.PeriodStart.Equal(feb1) {
		t.Fatalf("expected period advanced to %v, got %v", feb1, got.PeriodStart)
	}
}

func TestSyncRefreshDetectsCancellation(t *testing.T) {
	f := newFixture()
	_, sub := seedTenant(f)

	adapter := &mockProviderAdapter{
		name: "card",
		snap: &billing.SubscriptionSnapshot{
			Provider:       "card",
			SubscriptionID: "sub_abc",
			CustomerID:     "cus_123",
			Status:         "canceled",
			PeriodStart:    feb1,
			PeriodEnd:      mar1,
		},
	}
	s := newSyncFixture(f, adapter)

	got, err := s.Refresh(context.Background(), sub.TenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != subscription.StatusCanceled {
		t.Fatalf("expected canceled, got %q", got.Status)
	}
}

func TestSyncRefreshSkipsPendingIntent(t *testing.T) {
	f := newFixture()
	_, sub := seedTenant(f)
	sub.ProviderSubID = ""
	sub.Status = subscription.StatusPending

	adapter := &mockProviderAdapter{name: "card", fetchErr: domain.ErrProviderUnavailable}
	s := newSyncFixture(f, adapter)

	got, err := s.Refresh(context.Background(), sub.TenantID)
	if err != nil {
		t.Fatalf("a pending intent must not hit the provider: %v", err)
	}
	if got.Status != subscription.StatusPending {
		t.Fatalf("expected pending unchanged, got %q", got.Status)
	}
}

func TestSyncRefreshPropagatesProviderOutage(t *testing.T) {
	f := newFixture()
	_, sub := seedTenant(f)

	adapter := &mockProviderAdapter{name: "card", fetchErr: domain.ErrProviderUnavailable}
	s := newSyncFixture(f, adapter)

	_, err := s.Refresh(context.Background(), sub.TenantID)
	if err == nil {
		t.Fatalf("expected error on provider outage")
	}
}

func TestSyncRefreshNoSubscription(t *testing.T) {
	f := newFixture()
	s := newSyncFixture(f, &mockProviderAdapter{name: "card"})

	_, err := s.Refresh(context.Background(), "t-missing")
	if err == nil {
		t.Fatalf("expected not found")
	}
}

func TestSyncRepeatedRefreshIsNotDeduplicated(t *testing.T) {
	f := newFixture()
	_, sub := seedTenant(f)

	adapter := &mockProviderAdapter{
		name: "card",
		snap: &billing.SubscriptionSnapshot{
			Provider:       "card",
			SubscriptionID: "sub_abc",
			CustomerID:     "cus_123",
			Status:         "active",
			PeriodStart:    feb1,
			PeriodEnd:      mar1,
		},
	}
	s := newSyncFixture(f, adapter)

	// Two user-requested refreshes must both reach the reconciler even though
	// they carry identical provider state.
	for i := 0; i < 2; i++ {
		if _, err := s.Refresh(context.Background(), sub.TenantID); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if len(f.store.claimed) != 2 {
		t.Fatalf("expected 2 distinct synthetic events, got %d", len(f.store.claimed))
	}
}
