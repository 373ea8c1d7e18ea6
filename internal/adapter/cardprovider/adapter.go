// Package cardprovider adapts the recurring card-billing provider to the
// normalized billing model. Webhook payloads are verified against the
// configured signing secret and decoded here, once; nothing downstream sees
// provider-native event types.
package cardprovider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/billing"
)

// ProviderName identifies this adapter in events and stored records.
const ProviderName = "card"

// SignatureHeader is the HTTP header carrying the webhook HMAC.
const SignatureHeader = "X-Card-Signature"

// Adapter implements provider.Adapter for the card provider.
type Adapter struct {
	secret string
	client *Client
}

// New creates a card-provider adapter with the given webhook signing secret
// and API client. The client may be nil when only webhook intake is needed.
func New(secret string, client *Client) *Adapter {
	return &Adapter{secret: secret, client: client}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return ProviderName }

// webhookEnvelope is the provider's native webhook shape.
type webhookEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID                 string `json:"id"`
			Customer           string `json:"customer"`
			CustomerEmail      string `json:"customer_email"`
			CustomerName       string `json:"customer_name"`
			Status             string `json:"status"`
			CurrentPeriodStart int64  `json:"current_period_start"`
			CurrentPeriodEnd   int64  `json:"current_period_end"`
			CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
			TrialEnd           int64  `json:"trial_end"`
			Plan               struct {
				ID string `json:"id"`
			} `json:"plan"`
			// Payment / charge fields
			Subscription  string `json:"subscription"`
			AmountPaid    int64  `json:"amount_paid"`
			AmountDue     int64  `json:"amount_due"`
			Amount        int64  `json:"amount"`
			Currency      string `json:"currency"`
			PaymentIntent string `json:"payment_intent"`
			PaymentMethod string `json:"payment_method_type"`
			Email         string `json:"email"`
			Name          string `json:"name"`
		} `json:"object"`
	} `json:"data"`
}

// Normalize verifies the signature and maps the payload to a billing.Event.
func (a *Adapter) Normalize(payload []byte, signature string) (*billing.Event, error) {
	if !a.verifySignature(payload, signature) {
		return nil, domain.ErrSignatureInvalid
	}

	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("parse card webhook: %w", err)
	}

	obj := env.Data.Object
	ev := &billing.Event{
		Provider:       ProviderName,
		EventID:        env.ID,
		Kind:           normalizeKind(env.Type),
		CustomerID:     obj.Customer,
		SubscriptionID: obj.ID,
		CustomerEmail:  obj.CustomerEmail,
		CustomerName:   obj.CustomerName,
		PlanID:         obj.Plan.ID,
		Status:         normalizeStatus(obj.Status),
		CancelAtEnd:    obj.CancelAtPeriodEnd,
		Currency:       obj.Currency,
		OccurredAt:     time.Unix(env.Created, 0).UTC(),
	}

	if obj.CurrentPeriodStart > 0 {
		ev.PeriodStart = time.Unix(obj.CurrentPeriodStart, 0).UTC()
	}
	if obj.CurrentPeriodEnd > 0 {
		ev.PeriodEnd = time.Unix(obj.CurrentPeriodEnd, 0).UTC()
	}
	if obj.TrialEnd > 0 {
		t := time.Unix(obj.TrialEnd, 0).UTC()
		ev.TrialEnd = &t
	}

	switch ev.Kind {
	case billing.KindPaymentSucceeded, billing.KindPaymentFailed:
		// Invoice objects carry the subscription under a separate field.
		ev.SubscriptionID = obj.Subscription
		ev.AmountCents = obj.AmountPaid
		if ev.Kind == billing.KindPaymentFailed {
			ev.AmountCents = obj.AmountDue
		}
		ev.PaymentID = obj.PaymentIntent
		ev.PaymentMethod = obj.PaymentMethod
		if ev.PaymentMethod == "" {
			ev.PaymentMethod = "card"
		}
	case billing.KindChargeRefunded, billing.KindDisputeOpened, billing.KindDisputeClosed:
		ev.SubscriptionID = obj.Subscription
		ev.AmountCents = obj.Amount
		ev.PaymentID = obj.PaymentIntent
	case billing.KindCustomerUpdated:
		// customer.* events put the customer itself in data.object.
		ev.CustomerID = obj.ID
		ev.SubscriptionID = ""
		ev.CustomerEmail = obj.Email
		ev.CustomerName = obj.Name
	}

	return ev, nil
}

// FetchCurrentState retrieves the provider's current subscription view.
func (a *Adapter) FetchCurrentState(ctx context.Context, providerSubscriptionID string) (*billing.SubscriptionSnapshot, error) {
	if a.client == nil {
		return nil, fmt.Errorf("card api client not configured: %w", domain.ErrProviderUnavailable)
	}
	return a.client.GetSubscription(ctx, providerSubscriptionID)
}

// verifySignature checks an HMAC-SHA256 hex signature. A "sha256=" prefix
// is tolerated.
func (a *Adapter) verifySignature(payload []byte, signature string) bool {
	if a.secret == "" || signature == "" {
		return false
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write(payload)
	return hmac.Equal(sig, mac.Sum(nil))
}

// normalizeKind maps provider event types onto the closed kind set.
func normalizeKind(eventType string) billing.Kind {
	switch eventType {
	case "customer.subscription.created", "checkout.session.completed":
		return billing.KindSubscriptionActivated
	case "customer.subscription.updated":
		return billing.KindSubscriptionUpdated
	case "customer.subscription.deleted":
		return billing.KindSubscriptionCanceled
	case "invoice.payment_succeeded":
		return billing.KindPaymentSucceeded
	case "invoice.payment_failed":
		return billing.KindPaymentFailed
	case "customer.subscription.trial_will_end":
		return billing.KindTrialEnding
	case "charge.refunded":
		return billing.KindChargeRefunded
	case "charge.dispute.created":
		return billing.KindDisputeOpened
	case "charge.dispute.closed":
		return billing.KindDisputeClosed
	case "customer.updated":
		return billing.KindCustomerUpdated
	}
	return billing.KindIgnored
}

// normalizeStatus maps provider subscription statuses onto ours.
func normalizeStatus(status string) string {
	switch status {
	case "active":
		return "active"
	case "trialing":
		return "trialing"
	case "past_due", "unpaid":
		return "past_due"
	case "canceled", "incomplete_expired":
		return "canceled"
	case "incomplete":
		return "pending"
	}
	return status
}
