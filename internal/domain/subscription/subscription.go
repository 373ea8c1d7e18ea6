// Package subscription defines the subscription domain model and status rules.
package subscription

import "time"

// Provider identifies which payment provider owns a subscription.
type Provider string

// Supported providers.
const (
	ProviderCard    Provider = "card"
	ProviderInstant Provider = "instant"
)

// Status is the billing state of a subscription.
type Status string

// Subscription states. Canceled is terminal.
const (
	StatusPending  Status = "pending"
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusTrialing, StatusActive, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether s admits no further non-cancellation transitions.
func (s Status) Terminal() bool { return s == StatusCanceled }

// Subscription is the billing relationship between a tenant and one provider
// for one plan. A tenant has at most one subscription outside the canceled state.
type Subscription struct {
	ID                string            `json:"id"`
	TenantID          string            `json:"tenant_id"`
	PlanID            string            `json:"plan_id"`
	Provider          Provider          `json:"provider"`
	ProviderSubID     string            `json:"provider_subscription_id,omitempty"`
	Status            Status            `json:"status"`
	PeriodStart       time.Time         `json:"current_period_start"`
	PeriodEnd         time.Time         `json:"current_period_end"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	TrialEnd          *time.Time        `json:"trial_end,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// CreateRequest holds the fields required to create a subscription record.
type CreateRequest struct {
	TenantID      string
	PlanID        string
	Provider      Provider
	ProviderSubID string
	Status        Status
	PeriodStart   time.Time
	PeriodEnd     time.Time
	TrialEnd      *time.Time
}
