package stripe

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v83"

	"github.com/scriptingcat/scriptingcat/pkg/billing"
	"github.com/scriptingcat/scriptingcat/pkg/catalog"
	"github.com/scriptingcat/scriptingcat/pkg/entitlement"
	"github.com/scriptingcat/scriptingcat/storage/memory"
)

const (
	testWebhookSecret = "whsec_test_secret"
	testSessionID     = "sess-1"
)

func newTestService(t *testing.T) *entitlement.Service {
	t.Helper()
	evaluator := entitlement.NewEvaluator(catalog.Default(), time.Now)
	service, err := entitlement.NewService(memory.New(), evaluator, entitlement.ServiceConfig{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func newTestProvider(t *testing.T, service *entitlement.Service) *Provider {
	t.Helper()
	provider, err := NewProvider(Config{
		Config: billing.Config{
			Service: service,
			PriceMapping: map[string]string{
				"price_pro":    "pro",
				"price_expert": "expert",
			},
		},
		StripeAPIKey:        "sk_test_key",
		StripeWebhookSecret: testWebhookSecret,
		Logger:              zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return provider
}

// signPayload produces a Stripe-Signature header value for the payload using
// the v1 HMAC-SHA256 scheme.
func signPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d", at.Unix())))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func subscriptionEvent(eventType, subscriptionID, sessionID, status, priceID string) []byte {
	payload := fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": %q,
		"type": %q,
		"created": %d,
		"data": {
			"object": {
				"id": %q,
				"status": %q,
				"metadata": {"session_id": %q},
				"items": {"data": [{"price": {"id": %q}}]}
			}
		}
	}`, stripe.APIVersion, eventType, time.Now().Unix(), subscriptionID, status, sessionID, priceID)
	return []byte(payload)
}

func TestWebhookRejectsNonPOST(t *testing.T) {
	provider := newTestProvider(t, newTestService(t))

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	provider.WebhookHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	provider := newTestProvider(t, newTestService(t))

	body := subscriptionEvent("customer.subscription.updated", "sub_1", testSessionID, "active", "price_pro")
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", signPayload(body, "whsec_wrong_secret", time.Now()))
	rec := httptest.NewRecorder()
	provider.WebhookHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for bad signature", rec.Code)
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	provider := newTestProvider(t, newTestService(t))

	body := subscriptionEvent("customer.subscription.updated", "sub_1", testSessionID, "active", "price_pro")
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	provider.WebhookHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing signature", rec.Code)
	}
}

func TestWebhookAcknowledgesSignedEvent(t *testing.T) {
	service := newTestService(t)
	provider := newTestProvider(t, service)

	body := subscriptionEvent("customer.subscription.updated", "sub_1", testSessionID, "active", "price_pro")
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", signPayload(body, testWebhookSecret, time.Now()))
	rec := httptest.NewRecorder()
	provider.WebhookHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	var ack map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack["received"] {
		t.Errorf("ack = %v, want received=true", ack)
	}

	record, err := service.Check(context.Background(), testSessionID)
	if err != nil {
		t.Fatalf("Check after upgrade: %v", err)
	}
	if record.Tier != "pro" {
		t.Errorf("Tier = %q, want pro after active subscription event", record.Tier)
	}
	if record.SubscriptionID != "sub_1" {
		t.Errorf("SubscriptionID = %q, want sub_1", record.SubscriptionID)
	}
}

func TestWebhookAcknowledgesUnknownEventType(t *testing.T) {
	provider := newTestProvider(t, newTestService(t))

	body := []byte(fmt.Sprintf(`{"id":"evt_2","object":"event","api_version":%q,"type":"charge.refunded","created":%d,"data":{"object":{}}}`,
		stripe.APIVersion, time.Now().Unix()))
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", signPayload(body, testWebhookSecret, time.Now()))
	rec := httptest.NewRecorder()
	provider.WebhookHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for ignored event", rec.Code)
	}
}

func TestWebhookAcknowledgesProcessingFailure(t *testing.T) {
	provider := newTestProvider(t, newTestService(t))

	// Subscription event without a session id cannot be routed; the handler
	// must still acknowledge so Stripe stops retrying.
	body := subscriptionEvent("customer.subscription.updated", "sub_1", "", "active", "price_pro")
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", signPayload(body, testWebhookSecret, time.Now()))
	rec := httptest.NewRecorder()
	provider.WebhookHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even when processing fails", rec.Code)
	}
}

func TestSubscriptionDeletedDowngrades(t *testing.T) {
	service := newTestService(t)
	provider := newTestProvider(t, service)
	ctx := context.Background()

	if _, err := service.Upgrade(ctx, testSessionID, "expert", 30, "sub_9"); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}

	var event stripe.Event
	body := subscriptionEvent("customer.subscription.deleted", "sub_9", testSessionID, "canceled", "price_expert")
	if err := json.Unmarshal(body, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if err := provider.processWebhookEvent(ctx, &event); err != nil {
		t.Fatalf("processWebhookEvent: %v", err)
	}

	record, err := service.Check(ctx, testSessionID)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if record.Tier != "free" {
		t.Errorf("Tier = %q, want free after deletion", record.Tier)
	}
	if record.SubscriptionID != "" {
		t.Errorf("SubscriptionID = %q, want cleared", record.SubscriptionID)
	}
}

func TestSubscriptionPastDueMarksInactive(t *testing.T) {
	service := newTestService(t)
	provider := newTestProvider(t, service)
	ctx := context.Background()

	if _, err := service.Upgrade(ctx, testSessionID, "pro", 30, "sub_1"); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}

	var event stripe.Event
	body := subscriptionEvent("customer.subscription.updated", "sub_1", testSessionID, "past_due", "price_pro")
	if err := json.Unmarshal(body, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if err := provider.processWebhookEvent(ctx, &event); err != nil {
		t.Fatalf("processWebhookEvent: %v", err)
	}

	_, err := service.Check(ctx, testSessionID)
	if err == nil || !errors.Is(err, entitlement.ErrSubscriptionInactive) {
		t.Errorf("Check error = %v, want ErrSubscriptionInactive", err)
	}
}

func TestInvoicePaymentFailedKeepsRecord(t *testing.T) {
	service := newTestService(t)
	provider := newTestProvider(t, service)
	ctx := context.Background()

	if _, err := service.Upgrade(ctx, testSessionID, "pro", 30, "sub_1"); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}

	var event stripe.Event
	body := []byte(fmt.Sprintf(`{
		"id": "evt_3",
		"type": "invoice.payment_failed",
		"created": %d,
		"data": {"object": {"id": "in_1"}}
	}`, time.Now().Unix()))
	if err := json.Unmarshal(body, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if err := provider.processWebhookEvent(ctx, &event); err != nil {
		t.Fatalf("processWebhookEvent: %v", err)
	}

	record, err := service.Check(ctx, testSessionID)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if record.Tier != "pro" {
		t.Errorf("Tier = %q, want pro kept after failed invoice", record.Tier)
	}
}

func TestExtractTierFromSubscription(t *testing.T) {
	provider := newTestProvider(t, newTestService(t))

	tests := []struct {
		name   string
		status stripe.SubscriptionStatus
		price  string
		want   string
	}{
		{"active pro", stripe.SubscriptionStatusActive, "price_pro", "pro"},
		{"active expert", stripe.SubscriptionStatusActive, "price_expert", "expert"},
		{"unmapped price", stripe.SubscriptionStatusActive, "price_unknown", "free"},
		{"inactive", stripe.SubscriptionStatusCanceled, "price_pro", "free"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &stripe.Subscription{
				Status: tt.status,
				Items: &stripe.SubscriptionItemList{
					Data: []*stripe.SubscriptionItem{
						{Price: &stripe.Price{ID: tt.price}},
					},
				},
			}
			if got := provider.extractTierFromSubscription(sub); got != tt.want {
				t.Errorf("extractTierFromSubscription = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckoutRequiresMappedTier(t *testing.T) {
	provider := newTestProvider(t, newTestService(t))

	_, err := provider.Checkout(context.Background(), testSessionID, "platinum",
		"https://example.com/ok", "https://example.com/cancel")
	if !errors.Is(err, billing.ErrTierNotConfigured) {
		t.Errorf("err = %v, want ErrTierNotConfigured", err)
	}
}

func TestNewProviderValidation(t *testing.T) {
	if _, err := NewProvider(Config{StripeAPIKey: "sk_test"}); err == nil {
		t.Error("expected error when service is missing")
	}
	if _, err := NewProvider(Config{Config: billing.Config{Service: newTestService(t)}}); err == nil {
		t.Error("expected error when API key is missing")
	}
}
