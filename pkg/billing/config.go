package billing

import (
	"net/http"

	"github.com/scriptingcat/scriptingcat/pkg/entitlement"
)

// Config defines the standard configuration all providers accept.
type Config struct {
	// Service is the entitlement service updated from webhook events.
	Service *entitlement.Service

	// PriceMapping maps provider price/product IDs to tier IDs.
	// For example: map[string]string{"price_pro_monthly": "pro"}
	PriceMapping map[string]string

	// WebhookSecret verifies incoming webhook requests.
	WebhookSecret string

	// APIKey is used for outbound API calls to the provider.
	APIKey string

	// SubscriptionDays is the entitlement duration granted per paid
	// period (default: 30).
	SubscriptionDays int

	// HTTPClient is an optional HTTP client for API calls.
	// If nil, a default client with 10s timeout is used.
	HTTPClient *http.Client
}
