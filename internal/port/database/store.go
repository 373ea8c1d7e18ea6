// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/fitcore/billing/internal/domain/fee"
	"github.com/fitcore/billing/internal/domain/subscription"
	"github.com/fitcore/billing/internal/domain/tenant"
	"github.com/fitcore/billing/internal/domain/user"
)

// Store is the port interface for persistent billing state.
type Store interface {
	// Tenants
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	GetTenantByProviderCustomer(ctx context.Context, provider, customerID string) (*tenant.Tenant, error)
	GetTenantBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error)
	UpdateTenant(ctx context.Context, t *tenant.Tenant) error

	// ProvisionTenant creates the owner user, tenant, and initial subscription
	// in a single transaction. A unique-constraint violation on billing email,
	// subdomain, or provider customer id returns domain.ErrConflict.
	ProvisionTenant(ctx context.Context, req tenant.ProvisionRequest) (*tenant.Tenant, error)

	// Users
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)

	// Subscriptions
	GetCurrentSubscription(ctx context.Context, tenantID string) (*subscription.Subscription, error)
	// CreateSubscription inserts a new subscription and cancels any prior
	// non-canceled subscription for the tenant in the same transaction.
	CreateSubscription(ctx context.Context, req subscription.CreateRequest) (*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error

	// ClaimEvent atomically records (provider, eventID) as processed.
	// It returns false when the event was already claimed.
	ClaimEvent(ctx context.Context, provider, eventID string) (bool, error)
	// ReleaseEvent removes a claim whose event could not be applied, so the
	// provider's redelivery is processed as a first delivery.
	ReleaseEvent(ctx context.Context, provider, eventID string) error

	// Payment fees (append-only)
	RecordPaymentFee(ctx context.Context, rec *fee.Record) error
	FeeSummaryByProvider(ctx context.Context, from, to time.Time) ([]fee.ProviderSummary, error)
	FeeSummaryDaily(ctx context.Context, days int) ([]fee.DailySummary, error)
}
