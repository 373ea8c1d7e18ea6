// Package tenant defines the tenant domain model for multi-tenancy.
package tenant

import "time"

// Status is the lifecycle state of a tenant.
type Status string

// Tenant lifecycle states. Tenants are never deleted, only deactivated.
const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Tenant represents an isolated customer workspace.
type Tenant struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Subdomain         string    `json:"subdomain"`
	Status            Status    `json:"status"`
	PlanID            string    `json:"plan_id"`
	BillingEmail      string    `json:"billing_email"`
	CardCustomerID    string    `json:"card_customer_id,omitempty"`
	InstantCustomerID string    `json:"instant_customer_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProvisionRequest holds everything needed to create a tenant together
// with its owner user and initial subscription in one atomic unit.
type ProvisionRequest struct {
	Name               string
	Subdomain          string
	BillingEmail       string
	Provider           string
	ProviderCustomerID string
	ProviderSubID      string
	PlanID             string
	OwnerName          string
	OwnerPasswordHash  string
	SubscriptionStatus string
	PeriodStart        time.Time
	PeriodEnd          time.Time
}
