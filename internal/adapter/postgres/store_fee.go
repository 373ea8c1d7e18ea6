package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/fitcore/billing/internal/domain/fee"
)

func (s *Store) RecordPaymentFee(ctx context.Context, rec *fee.Record) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO payment_fees (provider, payment_method, amount_cents, fee_cents, currency, provider_payment_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, recorded_at`,
		rec.Provider, rec.PaymentMethod, rec.AmountCents, rec.FeeCents, rec.Currency, rec.ProviderPaymentID,
	).Scan(&rec.ID, &rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("record payment fee: %w", err)
	}
	return nil
}

func (s *Store) FeeSummaryByProvider(ctx context.Context, from, to time.Time) ([]fee.ProviderSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT provider, COUNT(*), COALESCE(SUM(amount_cents), 0), COALESCE(SUM(fee_cents), 0)
		 FROM payment_fees
		 WHERE recorded_at >= $1 AND recorded_at < $2
		 GROUP BY provider ORDER BY provider`, from, to)
	if err != nil {
		return nil, fmt.Errorf("fee summary by provider: %w", err)
	}
	defer rows.Close()

	var summaries []fee.ProviderSummary
	for rows.Next() {
		var ps fee.ProviderSummary
		if err := rows.Scan(&ps.Provider, &ps.TransactionCount, &ps.AmountCents, &ps.FeeCents); err != nil {
			return nil, fmt.Errorf("scan fee summary: %w", err)
		}
		summaries = append(summaries, ps)
	}
	return summaries, rows.Err()
}

func (s *Store) FeeSummaryDaily(ctx context.Context, days int) ([]fee.DailySummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT to_char(recorded_at::date, 'YYYY-MM-DD'), COUNT(*),
		        COALESCE(SUM(amount_cents), 0), COALESCE(SUM(fee_cents), 0)
		 FROM payment_fees
		 WHERE recorded_at >= now() - make_interval(days => $1)
		 GROUP BY recorded_at::date ORDER BY recorded_at::date DESC`, days)
	if err != nil {
		return nil, fmt.Errorf("fee summary daily: %w", err)
	}
	defer rows.Close()

	var summaries []fee.DailySummary
	for rows.Next() {
		var ds fee.DailySummary
		if err := rows.Scan(&ds.Date, &ds.TransactionCount, &ds.AmountCents, &ds.FeeCents); err != nil {
			return nil, fmt.Errorf("scan daily fee summary: %w", err)
		}
		summaries = append(summaries, ds)
	}
	return summaries, rows.Err()
}
