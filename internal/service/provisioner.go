package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/tenant"
	"github.com/fitcore/billing/internal/port/database"
)

// maxSubdomainAttempts bounds suffix retries on subdomain collision.
const maxSubdomainAttempts = 8

// ProvisionParams describes the paying customer observed for the first time.
type ProvisionParams struct {
	Email              string
	Name               string
	Provider           string
	ProviderCustomerID string
	ProviderSubID      string
	PlanID             string
	SubscriptionStatus string
	PeriodStart        time.Time
	PeriodEnd          time.Time
}

// Provisioner creates tenant + owner user + subscription the first time a
// paying customer is observed. Safe under concurrent invocation for the same
// customer: the database's unique constraints arbitrate, and the loser adopts
// the winner's row instead of erroring.
type Provisioner struct {
	store database.Store
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(store database.Store) *Provisioner {
	return &Provisioner{store: store}
}

// ProvisionIfAbsent returns the tenant for the given provider customer,
// creating it if needed. The second return value reports whether a new
// tenant was created by this call.
func (p *Provisioner) ProvisionIfAbsent(ctx context.Context, params ProvisionParams) (*tenant.Tenant, bool, error) {
	if params.Email == "" {
		return nil, false, fmt.Errorf("provision: customer email missing: %w", domain.ErrValidation)
	}

	// Already provisioned under this provider customer id?
	if t, err := p.store.GetTenantByProviderCustomer(ctx, params.Provider, params.ProviderCustomerID); err == nil {
		return t, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	// An existing user with this billing email means the customer already has
	// a workspace, possibly via the other provider. Attach the customer id.
	if u, err := p.store.GetUserByEmail(ctx, params.Email); err == nil {
		t, err := p.store.GetTenant(ctx, u.TenantID)
		if err != nil {
			return nil, false, err
		}
		if p.attachCustomerID(t, params.Provider, params.ProviderCustomerID) {
			if err := p.store.UpdateTenant(ctx, t); err != nil {
				return nil, false, err
			}
		}
		return t, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("provision: hash owner password: %w", err)
	}

	name := params.Name
	if name == "" {
		name = emailLocalPart(params.Email)
	}
	base := slugify(name)

	for attempt := range maxSubdomainAttempts {
		candidate := base
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", base, attempt+1)
		}

		t, err := p.store.ProvisionTenant(ctx, tenant.ProvisionRequest{
			Name:               name,
			Subdomain:          candidate,
			BillingEmail:       params.Email,
			Provider:           params.Provider,
			ProviderCustomerID: params.ProviderCustomerID,
			ProviderSubID:      params.ProviderSubID,
			PlanID:             params.PlanID,
			OwnerName:          name,
			OwnerPasswordHash:  string(hash),
			SubscriptionStatus: params.SubscriptionStatus,
			PeriodStart:        params.PeriodStart,
			PeriodEnd:          params.PeriodEnd,
		})
		if err == nil {
			slog.Info("tenant provisioned",
				"tenant", t.ID, "subdomain", t.Subdomain, "provider", params.Provider)
			return t, true, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, false, err
		}

		// A concurrent provisioning attempt may have won; adopt its row.
		if t, adoptErr := p.store.GetTenantByProviderCustomer(ctx, params.Provider, params.ProviderCustomerID); adoptErr == nil {
			slog.Info("adopted concurrently provisioned tenant", "tenant", t.ID)
			return t, false, nil
		}
		if u, adoptErr := p.store.GetUserByEmail(ctx, params.Email); adoptErr == nil {
			t, err := p.store.GetTenant(ctx, u.TenantID)
			if err != nil {
				return nil, false, err
			}
			return t, false, nil
		}

		// Otherwise the subdomain collided with an unrelated tenant; retry
		// with the next suffix.
	}

	return nil, false, fmt.Errorf("provision %s: %w", base, domain.ErrSubdomainExhausted)
}

// attachCustomerID sets the provider customer id on t when absent.
// Returns true when the tenant was modified.
func (p *Provisioner) attachCustomerID(t *tenant.Tenant, provider, customerID string) bool {
	switch provider {
	case "instant":
		if t.InstantCustomerID == "" {
			t.InstantCustomerID = customerID
			return true
		}
	default:
		if t.CardCustomerID == "" {
			t.CardCustomerID = customerID
			return true
		}
	}
	return false
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a subdomain candidate from a display name or email local part.
func slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	if len(slug) < 3 {
		slug = "tenant-" + slug
		slug = strings.Trim(slug, "-")
	}
	return slug
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
