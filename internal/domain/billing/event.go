// Package billing defines the normalized billing event model shared by all
// provider adapters. Provider payloads are decoded exactly once at the adapter
// boundary into an Event; everything downstream works on this closed variant.
package billing

import "time"

// Kind is the normalized event type. Provider-specific event names map onto
// this closed set; anything unrecognized becomes KindIgnored.
type Kind string

// Normalized event kinds.
const (
	KindSubscriptionActivated Kind = "subscription.activated"
	KindSubscriptionUpdated   Kind = "subscription.updated"
	KindSubscriptionCanceled  Kind = "subscription.canceled"
	KindPaymentSucceeded      Kind = "payment.succeeded"
	KindPaymentFailed         Kind = "payment.failed"
	KindTrialEnding           Kind = "trial.ending"
	KindChargeRefunded        Kind = "charge.refunded"
	KindDisputeOpened         Kind = "dispute.opened"
	KindDisputeClosed         Kind = "dispute.closed"
	KindCustomerUpdated       Kind = "customer.updated"
	KindIgnored               Kind = "ignored"
)

// Event is a provider notification normalized to provider-neutral fields.
// Not every field is set for every kind; adapters populate what the payload
// carries and leave the rest zero.
type Event struct {
	Provider       string     `json:"provider"`
	EventID        string     `json:"event_id"`
	Kind           Kind       `json:"kind"`
	CustomerID     string     `json:"customer_id"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	CustomerEmail  string     `json:"customer_email,omitempty"`
	CustomerName   string     `json:"customer_name,omitempty"`
	PlanID         string     `json:"plan_id,omitempty"`
	Status         string     `json:"status,omitempty"` // provider-mirrored subscription status
	PeriodStart    time.Time  `json:"period_start,omitempty"`
	PeriodEnd      time.Time  `json:"period_end,omitempty"`
	CancelAtEnd    bool       `json:"cancel_at_period_end,omitempty"`
	TrialEnd       *time.Time `json:"trial_end,omitempty"`
	AmountCents    int64      `json:"amount_cents,omitempty"`
	Currency       string     `json:"currency,omitempty"`
	PaymentID      string     `json:"payment_id,omitempty"`
	PaymentMethod  string     `json:"payment_method,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// ImpliesPayingCustomer reports whether the event alone justifies provisioning
// a tenant for a customer the system has never seen.
func (e *Event) ImpliesPayingCustomer() bool {
	switch e.Kind {
	case KindSubscriptionActivated, KindPaymentSucceeded:
		return true
	case KindSubscriptionUpdated:
		return e.Status == "active" || e.Status == "trialing"
	}
	return false
}

// SubscriptionSnapshot is the provider's current view of a subscription,
// returned by Adapter.FetchCurrentState for the manual-sync path.
type SubscriptionSnapshot struct {
	Provider       string     `json:"provider"`
	SubscriptionID string     `json:"subscription_id"`
	CustomerID     string     `json:"customer_id"`
	PlanID         string     `json:"plan_id"`
	Status         string     `json:"status"`
	PeriodStart    time.Time  `json:"period_start"`
	PeriodEnd      time.Time  `json:"period_end"`
	CancelAtEnd    bool       `json:"cancel_at_period_end"`
	TrialEnd       *time.Time `json:"trial_end,omitempty"`
}
