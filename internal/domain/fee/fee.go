// Package fee defines provider-fee accounting types and the fee computation.
package fee

import "time"

// Rate describes how a provider charges for a payment method.
// Fee = amount × Percent/100 + FixedCents, rounded half-up to the cent.
type Rate struct {
	Percent    float64 `yaml:"percent" json:"percent"`
	FixedCents int64   `yaml:"fixed_cents" json:"fixed_cents"`
}

// Compute returns the fee in cents for a transaction amount in cents.
func (r Rate) Compute(amountCents int64) int64 {
	pct := float64(amountCents) * r.Percent / 100
	return int64(pct+0.5) + r.FixedCents
}

// Record is one append-only ledger entry for a confirmed transaction.
type Record struct {
	ID                string    `json:"id"`
	Provider          string    `json:"provider"`
	PaymentMethod     string    `json:"payment_method"`
	AmountCents       int64     `json:"amount_cents"`
	FeeCents          int64     `json:"fee_cents"`
	Currency          string    `json:"currency"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	RecordedAt        time.Time `json:"recorded_at"`
}

// ProviderSummary aggregates fees per provider.
type ProviderSummary struct {
	Provider         string `json:"provider"`
	TransactionCount int    `json:"transaction_count"`
	AmountCents      int64  `json:"amount_cents"`
	FeeCents         int64  `json:"fee_cents"`
}

// DailySummary aggregates fees for a single day.
type DailySummary struct {
	Date             string `json:"date"`
	TransactionCount int    `json:"transaction_count"`
	AmountCents      int64  `json:"amount_cents"`
	FeeCents         int64  `json:"fee_cents"`
}
