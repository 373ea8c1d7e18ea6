// Package service contains the application services of the billing engine.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fitcore/billing/internal/port/notifier"
)

// Notifications dispatches billing notifications to all registered notifiers.
// Delivery is best-effort: failures are logged and never propagated, since by
// the time a notification is sent the state transition is already durable.
type Notifications struct {
	notifiers []notifier.Notifier
	loginURL  string
}

// NewNotifications creates a Notifications service. loginURL is the base URL
// used to build tenant login links in welcome mail.
func NewNotifications(notifiers []notifier.Notifier, loginURL string) *Notifications {
	return &Notifications{notifiers: notifiers, loginURL: loginURL}
}

// Welcome sends the first-login email to a freshly provisioned owner.
func (s *Notifications) Welcome(ctx context.Context, email, name, subdomain string) {
	s.dispatch(ctx, notifier.Notification{
		To:    email,
		Title: "Welcome aboard",
		Message: fmt.Sprintf("Hi %s,<br><br>your workspace is ready. Sign in at %s/%s to get started.",
			name, s.loginURL, subdomain),
		Level:  "info",
		Source: "billing.welcome",
	})
}

// AdminAlert notifies the operations channel about a billing event that needs
// a human look (disputes, provisioning anomalies).
func (s *Notifications) AdminAlert(ctx context.Context, event, details string) {
	s.dispatch(ctx, notifier.Notification{
		Title:   "Billing alert: " + event,
		Message: details,
		Level:   "warning",
		Source:  "billing.alert",
	})
}

// TrialEnding reminds a customer that their trial is about to convert.
func (s *Notifications) TrialEnding(ctx context.Context, email, planName string, endDate time.Time) {
	s.dispatch(ctx, notifier.Notification{
		To:    email,
		Title: "Your trial is ending soon",
		Message: fmt.Sprintf("Your trial of the %s plan ends on %s. Billing starts automatically after that.",
			planName, endDate.Format("January 2, 2006")),
		Level:  "info",
		Source: "billing.trial_ending",
	})
}

// RefundIssued confirms a refund to the customer.
func (s *Notifications) RefundIssued(ctx context.Context, email string, amountCents int64, currency string) {
	s.dispatch(ctx, notifier.Notification{
		To:    email,
		Title: "Refund issued",
		Message: fmt.Sprintf("A refund of %.2f %s has been issued to your original payment method.",
			float64(amountCents)/100, currency),
		Level:  "info",
		Source: "billing.refund",
	})
}

// dispatch sends to all notifiers; errors are logged, never returned.
func (s *Notifications) dispatch(ctx context.Context, n notifier.Notification) {
	for _, provider := range s.notifiers {
		if err := provider.Send(ctx, n); err != nil {
			slog.Warn("notification send failed",
				"provider", provider.Name(),
				"source", n.Source,
				"error", err,
			)
			continue
		}
		slog.Debug("notification sent", "provider", provider.Name(), "source", n.Source)
	}
}
