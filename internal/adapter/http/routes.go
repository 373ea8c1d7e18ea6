package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fitcore/billing/internal/config"
	"github.com/fitcore/billing/internal/middleware"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, server config.Server) {
	// Provider webhooks (outside auth; adapters verify signatures).
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/card", h.HandleCardWebhook)
		r.Post("/instant", h.HandleInstantWebhook)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})
		r.Get("/event-kinds", h.HandleEventKinds)

		// Tenant-scoped reads and manual sync.
		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerToken(server.APIToken))
			r.Get("/tenants/resolve/{subdomain}", h.HandleResolveTenant)
			r.Get("/tenants/{id}/subscription", h.HandleGetSubscription)
			r.Post("/tenants/{id}/subscription/sync", h.HandleSyncSubscription)
			r.Get("/tenants/{id}/entitlements", h.HandleGetEntitlements)
		})

		// Admin reads.
		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerToken(server.AdminToken))
			r.Get("/fees/summary", h.HandleFeeSummary)
		})
	})
}
