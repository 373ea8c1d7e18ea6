package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/plan"
	"github.com/fitcore/billing/internal/domain/subscription"
	"github.com/fitcore/billing/internal/domain/tenant"
	"github.com/fitcore/billing/internal/port/cache"
	"github.com/fitcore/billing/internal/port/database"
	"github.com/fitcore/billing/internal/port/plancatalog"
)

// Entitlement is the derived set of feature and limit flags a tenant is
// allowed, computed from plan definition plus subscription status. It holds
// no authoritative data and is always recomputable.
type Entitlement struct {
	TenantID          string          `json:"tenant_id"`
	PlanID            string          `json:"plan_id"`
	PlanName          string          `json:"plan_name"`
	Status            string          `json:"status"`
	Active            bool            `json:"active"`
	Limits            plan.Limits     `json:"limits"`
	Features          map[string]bool `json:"features"`
	CancelAtPeriodEnd bool            `json:"cancel_at_period_end"`
	PeriodEnd         time.Time       `json:"period_end"`
}

// Entitlements serves per-tenant entitlement reads through an invalidate-on-
// write L1 cache. Recomputation on miss is deduplicated with singleflight so
// a cold tenant does not stampede the store.
type Entitlements struct {
	store   database.Store
	catalog plancatalog.Catalog
	cache   cache.Cache
	ttl     time.Duration
	group   singleflight.Group
}

// NewEntitlements creates the entitlement service.
func NewEntitlements(store database.Store, catalog plancatalog.Catalog, c cache.Cache, ttl time.Duration) *Entitlements {
	return &Entitlements{store: store, catalog: catalog, cache: c, ttl: ttl}
}

func entitlementKey(tenantID string) string { return "entitlement:" + tenantID }

// Get returns the tenant's current entitlement, recomputing on cache miss.
func (s *Entitlements) Get(ctx context.Context, tenantID string) (*Entitlement, error) {
	if data, ok, err := s.cache.Get(ctx, entitlementKey(tenantID)); err == nil && ok {
		var ent Entitlement
		if err := json.Unmarshal(data, &ent); err == nil {
			return &ent, nil
		}
	}

	v, err, _ := s.group.Do(tenantID, func() (any, error) {
		return s.recompute(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entitlement), nil
}

// Invalidate drops the tenant's cached entry. Called synchronously after
// every tenant or subscription mutation.
func (s *Entitlements) Invalidate(ctx context.Context, tenantID string) error {
	return s.cache.Delete(ctx, entitlementKey(tenantID))
}

func (s *Entitlements) recompute(ctx context.Context, tenantID string) (*Entitlement, error) {
	t, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("entitlement recompute: %w", err)
	}

	ent := &Entitlement{
		TenantID: t.ID,
		PlanID:   t.PlanID,
	}

	sub, err := s.store.GetCurrentSubscription(ctx, tenantID)
	switch {
	case err == nil:
		ent.PlanID = sub.PlanID
		ent.Status = string(sub.Status)
		ent.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		ent.PeriodEnd = sub.PeriodEnd
		ent.Active = t.Status == tenant.StatusActive &&
			(sub.Status == subscription.StatusActive || sub.Status == subscription.StatusTrialing)
	case errors.Is(err, domain.ErrNotFound):
		ent.Status = string(subscription.StatusCanceled)
	default:
		return nil, fmt.Errorf("entitlement recompute: %w", err)
	}

	if ent.PlanID != "" {
		p, err := s.catalog.GetPlanByID(ctx, ent.PlanID)
		if err == nil {
			ent.PlanName = p.Name
			ent.Limits = p.Limits
			ent.Features = p.Features
		}
	}

	if data, err := json.Marshal(ent); err == nil {
		_ = s.cache.Set(ctx, entitlementKey(tenantID), data, s.ttl)
	}
	return ent, nil
}
