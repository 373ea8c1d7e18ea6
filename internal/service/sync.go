package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/billing"
	"github.com/fitcore/billing/internal/domain/subscription"
	"github.com/fitcore/billing/internal/port/database"
	"github.com/fitcore/billing/internal/port/provider"
)

// Sync implements the manual "refresh subscription" path. It pulls the
// provider's current state and feeds it through the same reconciler the
// webhooks use, so there is exactly one authority for state changes.
type Sync struct {
	store      database.Store
	adapters   map[string]provider.Adapter
	reconciler *Reconciler
	timeout    time.Duration
}

// NewSync creates the manual sync service. adapters is keyed by provider name.
func NewSync(store database.Store, adapters map[string]provider.Adapter, reconciler *Reconciler, timeout time.Duration) *Sync {
	return &Sync{store: store, adapters: adapters, reconciler: reconciler, timeout: timeout}
}

// Refresh reconciles the tenant's subscription against the provider's
// current view and returns the resulting record.
func (s *Sync) Refresh(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	sub, err := s.store.GetCurrentSubscription(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if sub.ProviderSubID == "" {
		// A pending instant-payment intent has no provider subscription to
		// fetch yet; the stored record is as current as it gets.
		slog.Debug("sync skipped, no provider subscription id", "tenant", tenantID)
		return sub, nil
	}

	adapter, ok := s.adapters[string(sub.Provider)]
	if !ok {
		return nil, fmt.Errorf("sync tenant %s: no adapter for provider %q", tenantID, sub.Provider)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snap, err := adapter.FetchCurrentState(fetchCtx, sub.ProviderSubID)
	if err != nil {
		return nil, fmt.Errorf("sync tenant %s: %w", tenantID, err)
	}

	t, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	customerID := t.CardCustomerID
	if sub.Provider == subscription.ProviderInstant {
		customerID = t.InstantCustomerID
	}
	if snap.CustomerID != "" {
		customerID = snap.CustomerID
	}

	// Synthetic events get a fresh id so the dedup ledger never blocks a
	// user-requested refresh.
	ev := &billing.Event{
		Provider:       snap.Provider,
		EventID:        "sync-" + uuid.NewString(),
		Kind:           billing.KindSubscriptionUpdated,
		CustomerID:     customerID,
		SubscriptionID: snap.SubscriptionID,
		PlanID:         snap.PlanID,
		Status:         snap.Status,
		PeriodStart:    snap.PeriodStart,
		PeriodEnd:      snap.PeriodEnd,
		CancelAtEnd:    snap.CancelAtEnd,
		TrialEnd:       snap.TrialEnd,
		OccurredAt:     time.Now().UTC(),
	}

	if err := s.reconciler.Process(ctx, ev); err != nil {
		return nil, fmt.Errorf("sync tenant %s: %w", tenantID, err)
	}

	cur, err := s.store.GetCurrentSubscription(ctx, tenantID)
	if errors.Is(err, domain.ErrNotFound) {
		// The provider reported the subscription canceled; reflect that.
		sub.Status = subscription.StatusCanceled
		return sub, nil
	}
	return cur, err
}
