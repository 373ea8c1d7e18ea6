package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/subscription"
)

const subscriptionColumns = `id, tenant_id, plan_id, provider, COALESCE(provider_sub_id, ''),
	status, period_start, period_end, cancel_at_period_end, trial_end, metadata, created_at, updated_at`

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	var metadataJSON []byte
	err := row.Scan(&sub.ID, &sub.TenantID, &sub.PlanID, &sub.Provider, &sub.ProviderSubID,
		&sub.Status, &sub.PeriodStart, &sub.PeriodEnd, &sub.CancelAtPeriodEnd,
		&sub.TrialEnd, &metadataJSON, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if metadataJSON != nil {
		_ = json.Unmarshal(metadataJSON, &sub.Metadata)
	}
	return &sub, nil
}

// GetCurrentSubscription returns the tenant's single non-canceled subscription.
func (s *Store) GetCurrentSubscription(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions WHERE tenant_id = $1 AND status <> 'canceled'`, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("current subscription for tenant %s: %w", tenantID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("current subscription for tenant %s: %w", tenantID, err)
	}
	return sub, nil
}

// CreateSubscription inserts a new subscription, superseding any live prior
// record for the tenant in the same transaction.
func (s *Store) CreateSubscription(ctx context.Context, req subscription.CreateRequest) (*subscription.Subscription, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create subscription: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`UPDATE subscriptions SET status = 'canceled', updated_at = now()
		 WHERE tenant_id = $1 AND status <> 'canceled'`, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("supersede prior subscription: %w", err)
	}

	sub, err := scanSubscription(tx.QueryRow(ctx,
		`INSERT INTO subscriptions (tenant_id, plan_id, provider, provider_sub_id, status, period_start, period_end, trial_end)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
		 RETURNING `+subscriptionColumns,
		req.TenantID, req.PlanID, req.Provider, req.ProviderSubID, req.Status,
		req.PeriodStart, req.PeriodEnd, req.TrialEnd))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create subscription: %w", domain.ErrConflict)
		}
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create subscription: commit: %w", err)
	}
	return sub, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	var metadataJSON []byte
	if sub.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(sub.Metadata)
		if err != nil {
			return fmt.Errorf("marshal subscription metadata: %w", err)
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions
		 SET plan_id = $2, provider_sub_id = NULLIF($3, ''), status = $4,
		     period_start = $5, period_end = $6, cancel_at_period_end = $7,
		     trial_end = $8, metadata = $9, updated_at = now()
		 WHERE id = $1`,
		sub.ID, sub.PlanID, sub.ProviderSubID, sub.Status,
		sub.PeriodStart, sub.PeriodEnd, sub.CancelAtPeriodEnd, sub.TrialEnd, metadataJSON)
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update subscription %s: %w", sub.ID, domain.ErrNotFound)
	}
	return nil
}
