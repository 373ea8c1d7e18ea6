// Package plan defines the read-only plan catalog types consumed by the
// billing engine. Plan definitions are owned elsewhere.
package plan

// Limits holds the per-plan resource ceilings.
type Limits struct {
	MaxUsers     int `json:"max_users" yaml:"max_users"`
	MaxLocations int `json:"max_locations" yaml:"max_locations"`
	MaxStorageMB int `json:"max_storage_mb" yaml:"max_storage_mb"`
}

// Plan is a priced offering with feature flags and limits.
type Plan struct {
	ID           string          `json:"id" yaml:"id"`
	Name         string          `json:"name" yaml:"name"`
	PriceCents   int64           `json:"price_cents" yaml:"price_cents"`
	Currency     string          `json:"currency" yaml:"currency"`
	BillingCycle string          `json:"billing_cycle" yaml:"billing_cycle"` // "monthly" or "yearly"
	Limits       Limits          `json:"limits" yaml:"limits"`
	Features     map[string]bool `json:"features" yaml:"features"`
}
