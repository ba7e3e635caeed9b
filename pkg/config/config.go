// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backend identifiers.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds the server configuration.
type Config struct {
	Env      string
	Port     int
	LogLevel string

	// Storage backend: memory, redis or postgres
	StorageBackend string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	PostgresDSN    string

	// RapidAPI transcript extraction
	RapidAPIKey string

	// AI provider (OpenAI-compatible chat completions)
	AIBaseURL        string
	AIModel          string
	AIAPIKey         string
	AIRequestTimeout time.Duration

	// Stripe billing. Billing stays disabled when the secret key is empty.
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeProPriceID    string
	StripeExpertPriceID string

	// Checkout redirect targets
	BaseURL            string
	CheckoutSuccessURL string
	CheckoutCancelURL  string
}

// New loads configuration from the environment, reading .env first when
// present.
func New() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageMemory)),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),

		RapidAPIKey: getEnv("RAPIDAPI_KEY", ""),

		AIBaseURL:        getEnv("AI_BASE_URL", "https://api.aimlapi.com/v1"),
		AIModel:          getEnv("AI_MODEL", "gpt-4o-mini"),
		AIAPIKey:         getEnv("AI_API_KEY", ""),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeProPriceID:    getEnv("STRIPE_PRO_PRICE_ID", ""),
		StripeExpertPriceID: getEnv("STRIPE_EXPERT_PRICE_ID", ""),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),
	}

	cfg.CheckoutSuccessURL = getEnv("CHECKOUT_SUCCESS_URL",
		cfg.BaseURL+"/success?session_id={CHECKOUT_SESSION_ID}")
	cfg.CheckoutCancelURL = getEnv("CHECKOUT_CANCEL_URL", cfg.BaseURL+"/pricing")

	switch cfg.StorageBackend {
	case StorageMemory, StorageRedis:
	case StoragePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("POSTGRES_DSN is required when STORAGE_BACKEND is 'postgres'")
		}
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be 'memory', 'redis' or 'postgres', got: %s",
			cfg.StorageBackend)
	}

	if cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("AI_API_KEY is required")
	}

	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	return cfg, nil
}

// PriceMapping builds the Stripe price-to-tier mapping from the configured
// price IDs.
func (c *Config) PriceMapping() map[string]string {
	mapping := make(map[string]string)
	if c.StripeProPriceID != "" {
		mapping[c.StripeProPriceID] = "pro"
	}
	if c.StripeExpertPriceID != "" {
		mapping[c.StripeExpertPriceID] = "expert"
	}
	return mapping
}

// BillingEnabled reports whether Stripe credentials are configured.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
