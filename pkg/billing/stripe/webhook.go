package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v83"

	"github.com/scriptingcat/scriptingcat/pkg/billing/internal"
)

// handleWebhook processes incoming Stripe webhook events. Signature failures
// are rejected with 400; every verified event is acknowledged with 200 even
// when processing fails, so Stripe does not retry events we cannot act on.
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	setSecurityHeaders(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(p.webhookSecret) == 0 {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	// Read and validate body (with size limit protection)
	body, err := internal.ReadBodyStrict(w, r, 256*1024)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		}
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	event, err := stripe.ConstructEvent(body, sig, string(p.webhookSecret))
	if err != nil {
		p.logger.Warn().Err(err).Str("ip", internal.GetClientIP(r)).Msg("webhook signature verification failed")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if err := p.processWebhookEvent(r.Context(), &event); err != nil {
		p.logger.Error().Err(err).
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Msg("webhook event processing failed")
	}

	_ = internal.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (p *Provider) processWebhookEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return p.handleCheckoutSessionCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		return p.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		return p.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_succeeded":
		return p.handleInvoicePaymentSucceeded(ctx, event)
	case "invoice.payment_failed":
		return p.handleInvoicePaymentFailed(event)
	default:
		// Unknown event type - ignore silently
		return nil
	}
}

// handleCheckoutSessionCompleted upgrades the record as soon as checkout
// finishes, without waiting for the subscription events. The subscription
// metadata is patched with the session id if checkout did not carry it over,
// so later subscription events can still be routed.
func (p *Provider) handleCheckoutSessionCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}

	sessionID := ""
	if session.Metadata != nil {
		sessionID = session.Metadata["session_id"]
	}
	if sessionID == "" && session.ClientReferenceID != "" {
		sessionID = session.ClientReferenceID
	}
	if sessionID == "" {
		return fmt.Errorf("metadata.session_id missing on checkout session %s", session.ID)
	}

	subscriptionID := ""
	if session.Subscription != nil {
		subscriptionID = session.Subscription.ID
	}
	if subscriptionID == "" {
		// Not a subscription checkout - ignore
		return nil
	}

	sub, err := p.stripeClient.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return fmt.Errorf("fetch subscription: %w", err)
	}

	if sub.Metadata == nil || sub.Metadata["session_id"] == "" {
		params := &stripe.SubscriptionUpdateParams{}
		params.AddMetadata("session_id", sessionID)
		sub, err = p.stripeClient.V1Subscriptions.Update(ctx, subscriptionID, params)
		if err != nil {
			return fmt.Errorf("patch subscription metadata: %w", err)
		}
	}

	tier := p.extractTierFromSubscription(sub)
	if tier == p.defaultTier {
		return nil
	}

	if _, err := p.service.Upgrade(ctx, sessionID, tier, p.subscriptionDays, subscriptionID); err != nil {
		return fmt.Errorf("upgrade after checkout: %w", err)
	}
	p.logger.Info().
		Str("session", sessionID).
		Str("tier", tier).
		Str("subscription", subscriptionID).
		Msg("checkout completed")
	return nil
}

// handleSubscriptionChanged processes customer.subscription.created and
// customer.subscription.updated events, mapping the subscription status onto
// the entitlement record.
func (p *Provider) handleSubscriptionChanged(ctx context.Context, event *stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	sessionID, err := p.extractSessionID(ctx, &subscription)
	if err != nil {
		return err
	}

	switch subscription.Status {
	case stripe.SubscriptionStatusActive:
		tier := p.extractTierFromSubscription(&subscription)
		if tier == p.defaultTier {
			return nil
		}
		_, err = p.service.Upgrade(ctx, sessionID, tier, p.subscriptionDays, subscription.ID)
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired,
		stripe.SubscriptionStatusUnpaid:
		_, err = p.service.Downgrade(ctx, sessionID)
	default:
		// past_due, incomplete, paused: keep the tier but mark the record
		// inactive until Stripe resolves the status.
		_, err = p.service.Cancel(ctx, sessionID)
	}
	if err != nil {
		return fmt.Errorf("apply subscription status %s: %w", subscription.Status, err)
	}
	return nil
}

// handleSubscriptionDeleted drops the record back to the default tier.
func (p *Provider) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}

	sessionID, err := p.extractSessionID(ctx, &subscription)
	if err != nil {
		return err
	}

	if _, err := p.service.Downgrade(ctx, sessionID); err != nil {
		return fmt.Errorf("downgrade after deletion: %w", err)
	}
	p.logger.Info().Str("session", sessionID).Msg("subscription deleted")
	return nil
}

// handleInvoicePaymentSucceeded extends the entitlement for another billing
// period on each renewal invoice.
func (p *Provider) handleInvoicePaymentSucceeded(ctx context.Context, event *stripe.Event) error {
	// The v83 Invoice struct does not expose the subscription reference
	// directly; read it from the raw payload, where it arrives either as an
	// expanded object or a bare ID string.
	var rawData map[string]interface{}
	subscriptionID := ""
	if err := json.Unmarshal(event.Data.Raw, &rawData); err == nil {
		switch v := rawData["subscription"].(type) {
		case map[string]interface{}:
			if id, ok := v["id"].(string); ok {
				subscriptionID = id
			}
		case string:
			subscriptionID = v
		}
	}
	if subscriptionID == "" {
		// Not a subscription invoice - ignore
		return nil
	}

	sub, err := p.stripeClient.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return fmt.Errorf("fetch subscription: %w", err)
	}

	sessionID, err := p.extractSessionID(ctx, sub)
	if err != nil {
		return err
	}

	tier := p.extractTierFromSubscription(sub)
	if tier == p.defaultTier {
		return nil
	}

	if _, err := p.service.Upgrade(ctx, sessionID, tier, p.subscriptionDays, subscriptionID); err != nil {
		return fmt.Errorf("extend after renewal: %w", err)
	}
	return nil
}

// handleInvoicePaymentFailed logs the failure without touching the record;
// the subscription stays on its tier until Stripe cancels it.
func (p *Provider) handleInvoicePaymentFailed(event *stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("unmarshal invoice: %w", err)
	}

	p.logger.Warn().
		Str("invoice", invoice.ID).
		Str("customer", customerID(invoice.Customer)).
		Msg("invoice payment failed")
	return nil
}

// extractSessionID reads the session id from subscription metadata, falling
// back to the customer's metadata for subscriptions created outside checkout.
func (p *Provider) extractSessionID(ctx context.Context, sub *stripe.Subscription) (string, error) {
	if sub.Metadata != nil {
		if sessionID, ok := sub.Metadata["session_id"]; ok && sessionID != "" {
			return sessionID, nil
		}
	}

	if sub.Customer != nil {
		cust, err := p.stripeClient.V1Customers.Retrieve(ctx, sub.Customer.ID, nil)
		if err == nil && cust.Metadata != nil {
			if sessionID, ok := cust.Metadata["session_id"]; ok && sessionID != "" {
				return sessionID, nil
			}
		}
	}

	return "", fmt.Errorf("metadata.session_id missing on subscription %s", sub.ID)
}

// extractTierFromSubscription maps the subscription's price items to a tier.
// Inactive subscriptions and unmapped prices resolve to the default tier.
func (p *Provider) extractTierFromSubscription(sub *stripe.Subscription) string {
	if string(sub.Status) != subscriptionStatusActive {
		return p.defaultTier
	}
	if sub.Items == nil {
		return p.defaultTier
	}

	for _, item := range sub.Items.Data {
		if item.Price == nil {
			continue
		}
		if tier := p.mapPriceToTier(item.Price.ID); tier != p.defaultTier {
			return tier
		}
	}
	return p.defaultTier
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
