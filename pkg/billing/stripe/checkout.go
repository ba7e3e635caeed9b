package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v83"

	"github.com/scriptingcat/scriptingcat/pkg/billing"
)

// Checkout creates a Stripe Checkout Session for the tier. The tier is
// resolved to a Stripe Price ID via the configured PriceMapping, and the
// session id is injected into both the checkout session and the resulting
// subscription so the webhook can route the outcome back.
func (p *Provider) Checkout(ctx context.Context, sessionID, tier, successURL, cancelURL string) (*billing.CheckoutSession, error) {
	priceID := p.priceForTier(tier)
	if priceID == "" {
		return nil, fmt.Errorf("%w: %s", billing.ErrTierNotConfigured, tier)
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(sessionID),
	}

	// The webhook handler depends on this metadata to find the record.
	params.AddMetadata("session_id", sessionID)
	params.SubscriptionData = &stripe.CheckoutSessionCreateSubscriptionDataParams{}
	params.SubscriptionData.AddMetadata("session_id", sessionID)

	session, err := p.stripeClient.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", billing.ErrProviderAPIError, err)
	}

	p.logger.Info().
		Str("session", sessionID).
		Str("tier", tier).
		Str("checkout_session", session.ID).
		Msg("checkout session created")
	return &billing.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}
