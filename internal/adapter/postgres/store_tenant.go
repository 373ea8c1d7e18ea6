package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/subscription"
	"github.com/fitcore/billing/internal/domain/tenant"
)

const tenantColumns = `id, name, subdomain, status, plan_id, billing_email,
	COALESCE(card_customer_id, ''), COALESCE(instant_customer_id, ''), created_at, updated_at`

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Subdomain, &t.Status, &t.PlanID, &t.BillingEmail,
		&t.CardCustomerID, &t.InstantCustomerID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get tenant %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return t, nil
}

func (s *Store) GetTenantByProviderCustomer(ctx context.Context, provider, customerID string) (*tenant.Tenant, error) {
	col := "card_customer_id"
	if provider == string(subscription.ProviderInstant) {
		col = "instant_customer_id"
	}
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE `+col+` = $1`, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get tenant by %s customer: %w", provider, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant by %s customer: %w", provider, err)
	}
	return t, nil
}

func (s *Store) GetTenantBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE subdomain = $1`, subdomain))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get tenant by subdomain %s: %w", subdomain, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant by subdomain %s: %w", subdomain, err)
	}
	return t, nil
}

func (s *Store) UpdateTenant(ctx context.Context, t *tenant.Tenant) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants
		 SET name = $2, status = $3, plan_id = $4, billing_email = $5,
		     card_customer_id = NULLIF($6, ''), instant_customer_id = NULLIF($7, ''),
		     updated_at = now()
		 WHERE id = $1`,
		t.ID, t.Name, t.Status, t.PlanID, t.BillingEmail, t.CardCustomerID, t.InstantCustomerID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update tenant %s: %w", t.ID, domain.ErrConflict)
		}
		return fmt.Errorf("update tenant %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update tenant %s: %w", t.ID, domain.ErrNotFound)
	}
	return nil
}

// ProvisionTenant creates the tenant, its owner user, and the initial
// subscription in one transaction. Concurrent provisioning for the same
// customer loses on a unique constraint (billing email, subdomain, or
// provider customer id) and surfaces domain.ErrConflict so the caller can
// adopt the winner's row.
func (s *Store) ProvisionTenant(ctx context.Context, req tenant.ProvisionRequest) (*tenant.Tenant, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("provision tenant: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cardID, instantID := "", ""
	if req.Provider == string(subscription.ProviderInstant) {
		instantID = req.ProviderCustomerID
	} else {
		cardID = req.ProviderCustomerID
	}

	t, err := scanTenant(tx.QueryRow(ctx,
		`INSERT INTO tenants (name, subdomain, plan_id, billing_email, card_customer_id, instant_customer_id)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		 RETURNING `+tenantColumns,
		req.Name, req.Subdomain, req.PlanID, req.BillingEmail, cardID, instantID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("provision tenant: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("provision tenant: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO users (tenant_id, email, name, role, password_hash)
		 VALUES ($1, $2, $3, 'owner', $4)`,
		t.ID, req.BillingEmail, req.OwnerName, req.OwnerPasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("provision owner user: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("provision owner user: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO subscriptions (tenant_id, plan_id, provider, provider_sub_id, status, period_start, period_end)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)`,
		t.ID, req.PlanID, req.Provider, req.ProviderSubID, req.SubscriptionStatus,
		req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("provision subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("provision tenant: commit: %w", err)
	}
	return t, nil
}
