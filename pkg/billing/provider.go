// Package billing defines the payment-provider contract for subscription
// upgrades. Checkout and webhook processing are delegated entirely to the
// provider's hosted surfaces; this package only routes their outcomes into
// the entitlement service.
package billing

import (
	"context"
	"net/http"
)

// CheckoutSession identifies a hosted checkout page created by a provider.
type CheckoutSession struct {
	ID  string
	URL string
}

// Provider is the generic interface a payment backend must implement.
type Provider interface {
	// Name returns the provider name (e.g., "stripe")
	Name() string

	// Checkout creates a hosted checkout session for the tier. The
	// session id is attached as metadata so the webhook can route the
	// outcome back to the right record.
	Checkout(ctx context.Context, sessionID, tier, successURL, cancelURL string) (*CheckoutSession, error)

	// WebhookHandler returns the HTTP handler that processes provider
	// events. Validation, parsing and entitlement updates happen inside.
	WebhookHandler() http.Handler

	// CancelSubscription cancels the provider-side subscription at period
	// end. The entitlement record is updated by the resulting webhook.
	CancelSubscription(ctx context.Context, subscriptionID string) error
}
