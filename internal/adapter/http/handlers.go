// Package http provides the chi HTTP handlers for the billing engine.
package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fitcore/billing/internal/adapter/cardprovider"
	"github.com/fitcore/billing/internal/adapter/instantpay"
	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/billing"
	"github.com/fitcore/billing/internal/port/database"
	"github.com/fitcore/billing/internal/port/provider"
	"github.com/fitcore/billing/internal/service"
)

// maxWebhookBodySize caps provider webhook payloads (256 KB).
const maxWebhookBodySize = 256 * 1024

// Handlers aggregates the services used by HTTP endpoints.
type Handlers struct {
	Card         provider.Adapter
	Instant      provider.Adapter
	Reconciler   *service.Reconciler
	Sync         *service.Sync
	Entitlements *service.Entitlements
	Fees         *service.Fees
	Store        database.Store
}

// HandleCardWebhook receives card-provider webhook deliveries.
func (h *Handlers) HandleCardWebhook(w http.ResponseWriter, r *http.Request) {
	h.handleWebhook(w, r, h.Card, cardprovider.SignatureHeader)
}

// HandleInstantWebhook receives instant-payment webhook deliveries.
func (h *Handlers) HandleInstantWebhook(w http.ResponseWriter, r *http.Request) {
	h.handleWebhook(w, r, h.Instant, instantpay.SignatureHeader)
}

// handleWebhook is the shared webhook intake: verify + normalize at the
// adapter boundary, then reconcile. Status codes are the contract with the
// provider: 200 acknowledges (including duplicates and ignored kinds), 400
// rejects a bad signature without redelivery, 5xx requests redelivery.
func (h *Handlers) handleWebhook(w http.ResponseWriter, r *http.Request, adapter provider.Adapter, sigHeader string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	ev, err := adapter.Normalize(payload, r.Header.Get(sigHeader))
	if err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			slog.Warn("webhook signature rejected", "provider", adapter.Name())
			writeError(w, http.StatusBadRequest, "invalid signature")
			return
		}
		slog.Warn("webhook payload rejected", "provider", adapter.Name(), "error", err)
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if err := h.Reconciler.Process(r.Context(), ev); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			slog.Debug("duplicate delivery acknowledged",
				"provider", ev.Provider, "event", ev.EventID)
			writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		// The provider retries on 5xx per its own backoff policy.
		slog.Error("webhook processing failed",
			"provider", ev.Provider, "event", ev.EventID, "kind", ev.Kind, "error", err)
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// HandleSyncSubscription triggers a manual provider-state refresh for a tenant.
func (h *Handlers) HandleSyncSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Sync.Refresh(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "subscription not found")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// HandleGetSubscription returns the tenant's current subscription.
func (h *Handlers) HandleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Store.GetCurrentSubscription(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "subscription not found")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// HandleResolveTenant looks a tenant up by subdomain, for app frontends
// resolving the workspace behind a hostname.
func (h *Handlers) HandleResolveTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.Store.GetTenantBySubdomain(r.Context(), urlParam(r, "subdomain"))
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleGetEntitlements returns the tenant's derived entitlement set.
func (h *Handlers) HandleGetEntitlements(w http.ResponseWriter, r *http.Request) {
	ent, err := h.Entitlements.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

// HandleFeeSummary returns fee totals per provider for a time range
// (default: trailing 30 days) plus the daily rollup.
func (h *Handlers) HandleFeeSummary(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 365 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	byProvider, err := h.Fees.SummaryByProvider(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err, "fee summary unavailable")
		return
	}
	daily, err := h.Fees.SummaryDaily(r.Context(), days)
	if err != nil {
		writeDomainError(w, err, "fee summary unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from":        from,
		"to":          to,
		"by_provider": byProvider,
		"daily":       daily,
	})
}

// eventKinds lists the normalized kinds, exposed for API documentation.
var eventKinds = []billing.Kind{
	billing.KindSubscriptionActivated,
	billing.KindSubscriptionUpdated,
	billing.KindSubscriptionCanceled,
	billing.KindPaymentSucceeded,
	billing.KindPaymentFailed,
	billing.KindTrialEnding,
	billing.KindChargeRefunded,
	billing.KindDisputeOpened,
	billing.KindDisputeClosed,
	billing.KindCustomerUpdated,
}

// HandleEventKinds returns the closed set of normalized event kinds.
func (h *Handlers) HandleEventKinds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"kinds": eventKinds})
}
