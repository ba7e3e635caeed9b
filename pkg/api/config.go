package api

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/scriptingcat/scriptingcat/pkg/ai"
	"github.com/scriptingcat/scriptingcat/pkg/billing"
	"github.com/scriptingcat/scriptingcat/pkg/content"
	"github.com/scriptingcat/scriptingcat/pkg/entitlement"
)

// SessionHeader is the default header carrying the anonymous session id.
const SessionHeader = "X-Session-ID"

// Config holds configuration for the API handler.
type Config struct {
	// Service is the entitlement service (required)
	Service *entitlement.Service

	// Resolver extracts transcripts from social media URLs (required)
	Resolver content.Resolver

	// AI analyzes transcripts and generates scripts (required)
	AI ai.Client

	// Billing is the payment provider. If nil, the checkout endpoint
	// responds 503 and no webhook route is mounted.
	Billing billing.Provider

	// GetSessionID extracts the session id from the request
	// (default: FromHeader(SessionHeader))
	GetSessionID func(*http.Request) string

	// CheckoutSuccessURL and CheckoutCancelURL are where Stripe sends the
	// user after checkout.
	CheckoutSuccessURL string
	CheckoutCancelURL  string

	// Logger for request-scoped diagnostics (default: disabled)
	Logger zerolog.Logger
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Service == nil {
		return fmt.Errorf("service is required")
	}
	if c.Resolver == nil {
		return fmt.Errorf("resolver is required")
	}
	if c.AI == nil {
		return fmt.Errorf("ai client is required")
	}
	return nil
}

// NewHandler creates a new API handler with the given configuration.
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.GetSessionID == nil {
		config.GetSessionID = FromHeader(SessionHeader)
	}
	return &Handler{config: config}, nil
}

// Helper functions for common session ID extraction patterns

// FromHeader returns a GetSessionID function that reads a header.
func FromHeader(headerName string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromContext returns a GetSessionID function that reads the request context.
func FromContext(key interface{}) func(*http.Request) string {
	return func(r *http.Request) string {
		if sessionID, ok := r.Context().Value(key).(string); ok {
			return sessionID
		}
		return ""
	}
}
