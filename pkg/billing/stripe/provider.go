// Package stripe implements the billing.Provider interface on Stripe
// Checkout and webhooks. Tier changes always flow through webhook events;
// the checkout call itself never touches entitlement state.
package stripe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v83"

	"github.com/scriptingcat/scriptingcat/pkg/billing"
	"github.com/scriptingcat/scriptingcat/pkg/billing/internal"
	"github.com/scriptingcat/scriptingcat/pkg/entitlement"
)

const (
	providerName             = "stripe"
	defaultHTTPTimeout       = 10 * time.Second
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
	defaultTierName          = "free"
	defaultSubscriptionDays  = 30
	subscriptionStatusActive = "active"
)

// Config extends billing.Config with Stripe-specific options.
type Config struct {
	billing.Config // Base config (Service, PriceMapping, etc.)

	// Stripe-specific
	StripeAPIKey        string
	StripeWebhookSecret string

	// Logger for webhook processing (default: disabled)
	Logger zerolog.Logger
}

// Provider implements the billing.Provider interface for Stripe.
type Provider struct {
	service          *entitlement.Service
	config           Config
	httpClient       *http.Client
	rateLimiter      *internal.RateLimiter
	priceMapping     map[string]string // Price ID -> tier
	tierPrices       map[string]string // tier -> Price ID
	defaultTier      string
	subscriptionDays int
	webhookSecret    []byte
	stripeClient     *stripe.Client
	logger           zerolog.Logger
}

// NewProvider creates a new Stripe billing provider.
func NewProvider(config Config) (*Provider, error) {
	if config.Service == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	apiKey := strings.TrimSpace(config.StripeAPIKey)
	if apiKey == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	// Price IDs are matched case-insensitively.
	priceMapping := make(map[string]string, len(config.PriceMapping))
	tierPrices := make(map[string]string, len(config.PriceMapping))
	for price, tier := range config.PriceMapping {
		priceMapping[strings.ToLower(strings.TrimSpace(price))] = tier
		tierPrices[strings.ToLower(tier)] = strings.TrimSpace(price)
	}

	subscriptionDays := config.SubscriptionDays
	if subscriptionDays <= 0 {
		subscriptionDays = defaultSubscriptionDays
	}

	return &Provider{
		service:          config.Service,
		config:           config,
		httpClient:       httpClient,
		rateLimiter:      internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow),
		priceMapping:     priceMapping,
		tierPrices:       tierPrices,
		defaultTier:      defaultTierName,
		subscriptionDays: subscriptionDays,
		webhookSecret:    []byte(strings.TrimSpace(config.StripeWebhookSecret)),
		stripeClient:     stripe.NewClient(apiKey),
		logger:           config.Logger,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for Stripe webhooks, wrapped with
// per-IP rate limiting.
func (p *Provider) WebhookHandler() http.Handler {
	return p.rateLimiter.Middleware(http.HandlerFunc(p.handleWebhook))
}

// CancelSubscription flags the Stripe subscription to cancel at period end.
// The entitlement record is updated when the resulting
// customer.subscription.updated event arrives.
func (p *Provider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return fmt.Errorf("%w: missing subscription id", billing.ErrProviderAPIError)
	}

	params := &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	if _, err := p.stripeClient.V1Subscriptions.Update(ctx, subscriptionID, params); err != nil {
		return fmt.Errorf("%w: cancel subscription: %v", billing.ErrProviderAPIError, err)
	}
	return nil
}

// mapPriceToTier maps a Stripe Price ID to a tier, falling back to the
// default tier for unknown prices.
func (p *Provider) mapPriceToTier(priceID string) string {
	if priceID == "" {
		return p.defaultTier
	}
	if tier, ok := p.priceMapping[strings.ToLower(strings.TrimSpace(priceID))]; ok {
		return tier
	}
	return p.defaultTier
}

// priceForTier resolves a tier to its configured Stripe Price ID.
func (p *Provider) priceForTier(tier string) string {
	return p.tierPrices[strings.ToLower(strings.TrimSpace(tier))]
}
