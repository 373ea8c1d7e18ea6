// Package provider defines the payment provider adapter port.
package provider

import (
	"context"

	"github.com/fitcore/billing/internal/domain/billing"
)

// Adapter translates one provider's webhook payloads and API responses into
// the normalized billing model. Implementations verify webhook signatures
// themselves; callers never see raw provider event types.
type Adapter interface {
	// Name returns the provider identifier ("card" or "instant").
	Name() string

	// Normalize verifies the payload signature and maps it to a billing.Event.
	// It returns domain.ErrSignatureInvalid when verification fails and an
	// event of KindIgnored for unrecognized provider event types.
	Normalize(payload []byte, signature string) (*billing.Event, error)

	// FetchCurrentState retrieves the provider's current view of a
	// subscription, used by the manual-sync path. Transport failures are
	// surfaced as domain.ErrProviderUnavailable.
	FetchCurrentState(ctx context.Context, providerSubscriptionID string) (*billing.SubscriptionSnapshot, error)
}
