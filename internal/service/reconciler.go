package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/fitcore/billing/internal/adapter/otel"
	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/billing"
	"github.com/fitcore/billing/internal/domain/subscription"
	"github.com/fitcore/billing/internal/domain/tenant"
	"github.com/fitcore/billing/internal/port/database"
	"github.com/fitcore/billing/internal/port/plancatalog"
)

// disputeMetadataKey marks a subscription with an open payment dispute.
const disputeMetadataKey = "dispute"

// Reconciler is the sole authority for subscription status transitions. It
// consumes normalized billing events from any provider, applies them at most
// once, and keeps tenant state convergent under duplicate and out-of-order
// delivery.
type Reconciler struct {
	store        database.Store
	provisioner  *Provisioner
	entitlements *Entitlements
	fees         *Fees
	notify       *Notifications
	catalog      plancatalog.Catalog
	metrics      *otel.Metrics
}

// NewReconciler creates the webhook reconciler.
func NewReconciler(
	store database.Store,
	provisioner *Provisioner,
	entitlements *Entitlements,
	fees *Fees,
	notify *Notifications,
	catalog plancatalog.Catalog,
	metrics *otel.Metrics,
) *Reconciler {
	if metrics == nil {
		// Instruments from the global no-op provider; nothing is exported
		// unless telemetry is configured.
		metrics, _ = otel.NewMetrics()
	}
	return &Reconciler{
		store:        store,
		provisioner:  provisioner,
		entitlements: entitlements,
		fees:         fees,
		notify:       notify,
		catalog:      catalog,
		metrics:      metrics,
	}
}

// Process applies one normalized event. Duplicate events return
// ErrDuplicateEvent with no effect; callers acknowledge those. Any other
// error releases the dedup claim first, so the provider's redelivery is
// applied fresh instead of being dropped as a duplicate.
func (r *Reconciler) Process(ctx context.Context, ev *billing.Event) error {
	if ev.Kind == billing.KindIgnored {
		r.count(ctx, r.metrics.EventsIgnored)
		return nil
	}

	// The claim must precede every externally visible effect: a crash after
	// this point drops the event rather than applying it twice.
	claimed, err := r.store.ClaimEvent(ctx, ev.Provider, ev.EventID)
	if err != nil {
		r.count(ctx, r.metrics.EventsFailed)
		return fmt.Errorf("claim event: %w", err)
	}
	if !claimed {
		r.count(ctx, r.metrics.EventsDuplicate)
		return fmt.Errorf("event %s/%s: %w", ev.Provider, ev.EventID, domain.ErrDuplicateEvent)
	}

	if err := r.reconcile(ctx, ev); err != nil {
		r.releaseClaim(ctx, ev)
		return err
	}
	return nil
}

// reconcile routes a freshly claimed event to its application path.
func (r *Reconciler) reconcile(ctx context.Context, ev *billing.Event) error {
	if ev.CustomerID == "" {
		slog.Warn("event without customer id acknowledged",
			"provider", ev.Provider, "event", ev.EventID, "kind", ev.Kind)
		r.count(ctx, r.metrics.EventsIgnored)
		return nil
	}

	t, err := r.store.GetTenantByProviderCustomer(ctx, ev.Provider, ev.CustomerID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if !ev.ImpliesPayingCustomer() {
			slog.Warn("event for unknown customer acknowledged",
				"provider", ev.Provider, "event", ev.EventID, "kind", ev.Kind)
			r.count(ctx, r.metrics.EventsIgnored)
			return nil
		}
		return r.provision(ctx, ev)
	case err != nil:
		r.count(ctx, r.metrics.EventsFailed)
		return err
	}

	return r.apply(ctx, t, ev)
}

// provision handles the first paying event from an unknown customer.
func (r *Reconciler) provision(ctx context.Context, ev *billing.Event) error {
	status := string(subscription.StatusActive)
	if ev.Kind == billing.KindSubscriptionUpdated && ev.Status != "" {
		status = ev.Status
	}

	periodStart := ev.PeriodStart
	if periodStart.IsZero() {
		periodStart = ev.OccurredAt
	}
	if periodStart.IsZero() {
		periodStart = time.Now().UTC()
	}
	periodEnd := ev.PeriodEnd
	if periodEnd.IsZero() {
		periodEnd = periodStart
	}

	t, created, err := r.provisioner.ProvisionIfAbsent(ctx, ProvisionParams{
		Email:              ev.CustomerEmail,
		Name:               ev.CustomerName,
		Provider:           ev.Provider,
		ProviderCustomerID: ev.CustomerID,
		ProviderSubID:      ev.SubscriptionID,
		PlanID:             ev.PlanID,
		SubscriptionStatus: status,
		PeriodStart:        periodStart,
		PeriodEnd:          periodEnd,
	})
	if err != nil {
		r.count(ctx, r.metrics.EventsFailed)
		return fmt.Errorf("provision for event %s/%s: %w", ev.Provider, ev.EventID, err)
	}

	if !created {
		// Raced with a concurrent delivery; the tenant exists now, continue
		// down the normal path.
		return r.apply(ctx, t, ev)
	}

	r.count(ctx, r.metrics.TenantsProvisioned)
	r.invalidate(ctx, t.ID)
	if ev.Kind == billing.KindPaymentSucceeded {
		r.fees.Record(ctx, ev)
	}
	r.notify.Welcome(ctx, t.BillingEmail, t.Name, t.Subdomain)
	r.count(ctx, r.metrics.EventsProcessed)
	return nil
}

// apply reconciles an event against an existing tenant.
func (r *Reconciler) apply(ctx context.Context, t *tenant.Tenant, ev *billing.Event) error {
	if ev.Kind == billing.KindCustomerUpdated {
		return r.applyCustomerUpdate(ctx, t, ev)
	}

	sub, err := r.store.GetCurrentSubscription(ctx, t.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return r.createSubscription(ctx, t, ev)
	}
	if err != nil {
		r.count(ctx, r.metrics.EventsFailed)
		return err
	}

	switch ev.Kind {
	case billing.KindTrialEnding:
		r.notify.TrialEnding(ctx, t.BillingEmail, r.planName(ctx, sub.PlanID), ev.PeriodEnd)
		r.count(ctx, r.metrics.EventsProcessed)
		return nil

	case billing.KindChargeRefunded:
		r.notify.RefundIssued(ctx, t.BillingEmail, ev.AmountCents, ev.Currency)
		r.notify.AdminAlert(ctx, "refund issued",
			fmt.Sprintf("tenant %s: refund of %d %s on payment %s", t.ID, ev.AmountCents, ev.Currency, ev.PaymentID))
		r.count(ctx, r.metrics.EventsProcessed)
		return nil

	case billing.KindDisputeOpened, billing.KindDisputeClosed:
		return r.applyDispute(ctx, t, sub, ev)
	}

	return r.applyTransition(ctx, t, sub, ev)
}

// applyTransition runs the status transition table with the out-of-order
// guard and persists whatever changed.
func (r *Reconciler) applyTransition(ctx context.Context, t *tenant.Tenant, sub *subscription.Subscription, ev *billing.Event) error {
	// An event whose period start is not newer than what we stored is stale:
	// it may be a late redelivery from before the last renewal. Stale events
	// are acknowledged but must not drag status or period fields backwards.
	// Cancellation is exempt: it is terminal and always wins.
	stale := !ev.PeriodStart.IsZero() && !sub.PeriodStart.IsZero() &&
		!ev.PeriodStart.After(sub.PeriodStart)

	mutated := false

	if next, ok := nextStatus(sub.Status, ev, stale); ok && next != sub.Status {
		slog.Info("subscription status transition",
			"tenant", t.ID, "from", sub.Status, "to", next,
			"kind", ev.Kind, "event", ev.EventID)
		sub.Status = next
		mutated = true
	}

	if !stale && ev.Kind != billing.KindSubscriptionCanceled {
		if !ev.PeriodStart.IsZero() && !ev.PeriodStart.Equal(sub.PeriodStart) {
			sub.PeriodStart = ev.PeriodStart
			mutated = true
		}
		if !ev.PeriodEnd.IsZero() && !ev.PeriodEnd.Equal(sub.PeriodEnd) {
			sub.PeriodEnd = ev.PeriodEnd
			mutated = true
		}
	}

	if ev.Kind == billing.KindSubscriptionUpdated && !sub.Status.Terminal() {
		// Flags and identifiers are not ordered by billing period; mirror
		// them even from stale deliveries.
		if ev.CancelAtEnd != sub.CancelAtPeriodEnd {
			sub.CancelAtPeriodEnd = ev.CancelAtEnd
			mutated = true
		}
		if ev.PlanID != "" && ev.PlanID != sub.PlanID {
			sub.PlanID = ev.PlanID
			mutated = true
		}
		if ev.SubscriptionID != "" && sub.ProviderSubID == "" {
			// Instant-payment intents get their subscription id after the
			// first confirmed charge.
			sub.ProviderSubID = ev.SubscriptionID
			mutated = true
		}
	}

	if ev.Kind == billing.KindPaymentSucceeded && sub.TrialEnd != nil {
		sub.TrialEnd = nil
		mutated = true
	}

	if mutated {
		if err := r.store.UpdateSubscription(ctx, sub); err != nil {
			r.count(ctx, r.metrics.EventsFailed)
			return fmt.Errorf("apply %s: %w", ev.Kind, err)
		}
		r.invalidate(ctx, t.ID)
	}

	switch {
	case ev.Kind == billing.KindPaymentSucceeded:
		r.fees.Record(ctx, ev)
	case ev.Kind == billing.KindPaymentFailed && sub.Status == subscription.StatusPastDue:
		r.notify.AdminAlert(ctx, "payment failed",
			fmt.Sprintf("tenant %s is past due (payment %s)", t.ID, ev.PaymentID))
	}

	r.count(ctx, r.metrics.EventsProcessed)
	return nil
}

// createSubscription covers a tenant with no live subscription receiving a
// paying event: a pre-provisioned tenant checking out, or a re-subscribe
// after cancellation.
func (r *Reconciler) createSubscription(ctx context.Context, t *tenant.Tenant, ev *billing.Event) error {
	if !ev.ImpliesPayingCustomer() {
		slog.Debug("event without live subscription acknowledged",
			"tenant", t.ID, "kind", ev.Kind, "event", ev.EventID)
		r.count(ctx, r.metrics.EventsProcessed)
		return nil
	}

	status := subscription.StatusActive
	if ev.Kind == billing.KindSubscriptionUpdated {
		if s := subscription.Status(ev.Status); s.Valid() {
			status = s
		}
	}

	_, err := r.store.CreateSubscription(ctx, subscription.CreateRequest{
		TenantID:      t.ID,
		PlanID:        ev.PlanID,
		Provider:      subscription.Provider(ev.Provider),
		ProviderSubID: ev.SubscriptionID,
		Status:        status,
		PeriodStart:   ev.PeriodStart,
		PeriodEnd:     ev.PeriodEnd,
		TrialEnd:      ev.TrialEnd,
	})
	if err != nil {
		r.count(ctx, r.metrics.EventsFailed)
		return fmt.Errorf("create subscription for tenant %s: %w", t.ID, err)
	}

	r.invalidate(ctx, t.ID)
	if ev.Kind == billing.KindPaymentSucceeded {
		r.fees.Record(ctx, ev)
	}
	r.count(ctx, r.metrics.EventsProcessed)
	return nil
}

// applyCustomerUpdate syncs provider-side customer edits onto the tenant.
func (r *Reconciler) applyCustomerUpdate(ctx context.Context, t *tenant.Tenant, ev *billing.Event) error {
	if ev.CustomerEmail == "" || ev.CustomerEmail == t.BillingEmail {
		r.count(ctx, r.metrics.EventsProcessed)
		return nil
	}
	t.BillingEmail = ev.CustomerEmail
	if err := r.store.UpdateTenant(ctx, t); err != nil {
		r.count(ctx, r.metrics.EventsFailed)
		return fmt.Errorf("sync customer update: %w", err)
	}
	r.invalidate(ctx, t.ID)
	r.count(ctx, r.metrics.EventsProcessed)
	return nil
}

// applyDispute flags or clears an open dispute on the subscription.
func (r *Reconciler) applyDispute(ctx context.Context, t *tenant.Tenant, sub *subscription.Subscription, ev *billing.Event) error {
	if ev.Kind == billing.KindDisputeOpened {
		if sub.Metadata == nil {
			sub.Metadata = map[string]string{}
		}
		sub.Metadata[disputeMetadataKey] = "open"
	} else {
		delete(sub.Metadata, disputeMetadataKey)
	}

	if err := r.store.UpdateSubscription(ctx, sub); err != nil {
		r.count(ctx, r.metrics.EventsFailed)
		return fmt.Errorf("apply %s: %w", ev.Kind, err)
	}
	r.invalidate(ctx, t.ID)

	verb := "opened"
	if ev.Kind == billing.KindDisputeClosed {
		verb = "closed"
	}
	r.notify.AdminAlert(ctx, "dispute "+verb,
		fmt.Sprintf("tenant %s: dispute %s on payment %s (%d %s)", t.ID, verb, ev.PaymentID, ev.AmountCents, ev.Currency))
	r.count(ctx, r.metrics.EventsProcessed)
	return nil
}

// nextStatus is the transition table. The returned bool reports whether the
// event produces a transition at all; stale suppresses provider-status
// mirroring but never cancellation.
func nextStatus(current subscription.Status, ev *billing.Event, stale bool) (subscription.Status, bool) {
	if ev.Kind == billing.KindSubscriptionCanceled {
		return subscription.StatusCanceled, current != subscription.StatusCanceled
	}
	if current.Terminal() {
		return current, false
	}

	switch ev.Kind {
	case billing.KindSubscriptionActivated:
		return subscription.StatusActive, true

	case billing.KindSubscriptionUpdated:
		if stale {
			return current, false
		}
		next := subscription.Status(ev.Status)
		if !next.Valid() {
			return current, false
		}
		return next, true

	case billing.KindPaymentFailed:
		// Only an active subscription is demoted: a pending record failing
		// its first payment simply never activates.
		if current == subscription.StatusActive {
			return subscription.StatusPastDue, true
		}
		return current, false

	case billing.KindPaymentSucceeded:
		if current == subscription.StatusPending || current == subscription.StatusPastDue {
			return subscription.StatusActive, true
		}
		return current, false
	}

	return current, false
}

// releaseClaim frees a claimed event whose application failed, so the
// provider's redelivery gets a fresh attempt. If the release itself fails
// the event is stuck behind the stale claim; log loudly.
func (r *Reconciler) releaseClaim(ctx context.Context, ev *billing.Event) {
	if err := r.store.ReleaseEvent(ctx, ev.Provider, ev.EventID); err != nil {
		slog.Error("event claim release failed, redelivery will be dropped",
			"provider", ev.Provider, "event", ev.EventID, "error", err)
	}
}

// invalidate drops the tenant's entitlement cache entry. Failures are logged:
// the authoritative state is already durable.
func (r *Reconciler) invalidate(ctx context.Context, tenantID string) {
	if err := r.entitlements.Invalidate(ctx, tenantID); err != nil {
		slog.Error("entitlement invalidation failed", "tenant", tenantID, "error", err)
	}
}

func (r *Reconciler) planName(ctx context.Context, planID string) string {
	if p, err := r.catalog.GetPlanByID(ctx, planID); err == nil {
		return p.Name
	}
	return planID
}

func (r *Reconciler) count(ctx context.Context, c metric.Int64Counter) {
	if c != nil {
		c.Add(ctx, 1)
	}
}
