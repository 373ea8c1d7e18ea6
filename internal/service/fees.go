package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/fitcore/billing/internal/adapter/otel"
	"github.com/fitcore/billing/internal/domain/billing"
	"github.com/fitcore/billing/internal/domain/fee"
	"github.com/fitcore/billing/internal/port/database"
)

// Fees maintains the append-only provider-fee ledger. Entries derive purely
// from confirmed payment events; a failure to record one never fails payment
// processing.
type Fees struct {
	store        database.Store
	cardRate     fee.Rate
	instantRates map[string]fee.Rate
	metrics      *otel.Metrics
}

// NewFees creates the fee ledger service. instantRates maps payment method
// (pix, ticket) to its percentage rate; instant fees have no fixed component.
func NewFees(store database.Store, cardRate fee.Rate, instantRates map[string]fee.Rate, metrics *otel.Metrics) *Fees {
	return &Fees{store: store, cardRate: cardRate, instantRates: instantRates, metrics: metrics}
}

// Record computes and persists the provider fee for a successful payment.
// Best-effort: errors are logged and swallowed.
func (s *Fees) Record(ctx context.Context, ev *billing.Event) {
	if ev.AmountCents <= 0 || ev.PaymentID == "" {
		return
	}

	rate, ok := s.rateFor(ev.Provider, ev.PaymentMethod)
	if !ok {
		slog.Warn("no fee rate configured, recording zero fee",
			"provider", ev.Provider, "method", ev.PaymentMethod)
	}

	rec := &fee.Record{
		Provider:          ev.Provider,
		PaymentMethod:     ev.PaymentMethod,
		AmountCents:       ev.AmountCents,
		FeeCents:          rate.Compute(ev.AmountCents),
		Currency:          ev.Currency,
		ProviderPaymentID: ev.PaymentID,
	}

	if err := s.store.RecordPaymentFee(ctx, rec); err != nil {
		slog.Error("failed to record payment fee",
			"provider", ev.Provider, "payment_id", ev.PaymentID, "error", err)
		return
	}

	if s.metrics != nil {
		s.metrics.FeesRecorded.Add(ctx, 1)
		s.metrics.FeeAmount.Record(ctx, rec.FeeCents)
	}
	slog.Debug("payment fee recorded",
		"provider", ev.Provider, "amount_cents", rec.AmountCents, "fee_cents", rec.FeeCents)
}

// Compute returns the fee in cents for the given provider/method/amount.
func (s *Fees) Compute(provider, method string, amountCents int64) int64 {
	rate, _ := s.rateFor(provider, method)
	return rate.Compute(amountCents)
}

func (s *Fees) rateFor(provider, method string) (fee.Rate, bool) {
	if provider == "instant" {
		r, ok := s.instantRates[method]
		return r, ok
	}
	return s.cardRate, true
}

// SummaryByProvider returns fee totals grouped by provider for a time range.
func (s *Fees) SummaryByProvider(ctx context.Context, from, to time.Time) ([]fee.ProviderSummary, error) {
	return s.store.FeeSummaryByProvider(ctx, from, to)
}

// SummaryDaily returns the daily fee rollup for the trailing window.
func (s *Fees) SummaryDaily(ctx context.Context, days int) ([]fee.DailySummary, error) {
	return s.store.FeeSummaryDaily(ctx, days)
}
