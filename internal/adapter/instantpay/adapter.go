// Package instantpay adapts the regional instant-payment provider (PIX and
// bank-ticket charges) to the normalized billing model. Subscriptions here
// may exist as pending intents before the first charge confirms, so the
// provider subscription id can be absent from early events.
package instantpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fitcore/billing/internal/domain"
	"github.com/fitcore/billing/internal/domain/billing"
)

// ProviderName identifies this adapter in events and stored records.
const ProviderName = "instant"

// SignatureHeader is the HTTP header carrying the webhook HMAC.
const SignatureHeader = "X-Instant-Signature"

// Adapter implements provider.Adapter for the instant-payment provider.
type Adapter struct {
	secret string
	client *Client
}

// New creates an instant-payment adapter.
func New(secret string, client *Client) *Adapter {
	return &Adapter{secret: secret, client: client}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return ProviderName }

// webhookPayload is the provider's native webhook shape.
type webhookPayload struct {
	EventID    string    `json:"event_id"`
	Event      string    `json:"event"`
	OccurredAt time.Time `json:"occurred_at"`
	Customer   struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer"`
	Subscription struct {
		ID           string `json:"id"`
		PlanID       string `json:"plan_id"`
		Status       string `json:"status"`
		CancelAtEnd  bool   `json:"cancel_at_cycle_end"`
		CurrentCycle struct {
			StartAt time.Time `json:"start_at"`
			EndAt   time.Time `json:"end_at"`
		} `json:"current_cycle"`
	} `json:"subscription"`
	Charge struct {
		ID            string `json:"id"`
		Amount        int64  `json:"amount"`
		Currency      string `json:"currency"`
		PaymentMethod string `json:"payment_method"`
	} `json:"charge"`
}

// Normalize verifies the signature and maps the payload to a billing.Event.
func (a *Adapter) Normalize(payload []byte, signature string) (*billing.Event, error) {
	if !a.verifySignature(payload, signature) {
		return nil, domain.ErrSignatureInvalid
	}

	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("parse instant webhook: %w", err)
	}

	ev := &billing.Event{
		Provider:       ProviderName,
		EventID:        p.EventID,
		Kind:           normalizeKind(p.Event),
		CustomerID:     p.Customer.ID,
		SubscriptionID: p.Subscription.ID,
		CustomerEmail:  p.Customer.Email,
		CustomerName:   p.Customer.Name,
		PlanID:         p.Subscription.PlanID,
		Status:         normalizeStatus(p.Subscription.Status),
		PeriodStart:    p.Subscription.CurrentCycle.StartAt,
		PeriodEnd:      p.Subscription.CurrentCycle.EndAt,
		CancelAtEnd:    p.Subscription.CancelAtEnd,
		AmountCents:    p.Charge.Amount,
		Currency:       p.Charge.Currency,
		PaymentID:      p.Charge.ID,
		PaymentMethod:  p.Charge.PaymentMethod,
		OccurredAt:     p.OccurredAt,
	}
	if ev.Currency == "" {
		ev.Currency = "brl"
	}
	return ev, nil
}

// FetchCurrentState retrieves the provider's current subscription view.
func (a *Adapter) FetchCurrentState(ctx context.Context, providerSubscriptionID string) (*billing.SubscriptionSnapshot, error) {
	if a.client == nil {
		return nil, fmt.Errorf("instant api client not configured: %w", domain.ErrProviderUnavailable)
	}
	return a.client.GetSubscription(ctx, providerSubscriptionID)
}

// verifySignature checks a raw lowercase-hex HMAC-SHA256 signature.
func (a *Adapter) verifySignature(payload []byte, signature string) bool {
	if a.secret == "" || signature == "" {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write(payload)
	return hmac.Equal(sig, mac.Sum(nil))
}

func normalizeKind(event string) billing.Kind {
	switch event {
	case "subscription.created":
		return billing.KindSubscriptionActivated
	case "subscription.updated":
		return billing.KindSubscriptionUpdated
	case "subscription.canceled":
		return billing.KindSubscriptionCanceled
	case "charge.paid":
		return billing.KindPaymentSucceeded
	case "charge.payment_failed":
		return billing.KindPaymentFailed
	case "charge.refunded":
		return billing.KindChargeRefunded
	case "chargeback.created":
		return billing.KindDisputeOpened
	case "chargeback.closed":
		return billing.KindDisputeClosed
	case "customer.updated":
		return billing.KindCustomerUpdated
	}
	return billing.KindIgnored
}

func normalizeStatus(status string) string {
	switch status {
	case "active", "paid":
		return "active"
	case "trialing":
		return "trialing"
	case "unpaid", "past_due":
		return "past_due"
	case "canceled":
		return "canceled"
	case "future", "pending":
		return "pending"
	}
	return status
}
