// Command server runs the content-analysis HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	middleware "github.com/scriptingcat/scriptingcat/middleware/http"
	"github.com/scriptingcat/scriptingcat/pkg/ai/openai"
	"github.com/scriptingcat/scriptingcat/pkg/api"
	"github.com/scriptingcat/scriptingcat/pkg/billing"
	stripebilling "github.com/scriptingcat/scriptingcat/pkg/billing/stripe"
	"github.com/scriptingcat/scriptingcat/pkg/catalog"
	"github.com/scriptingcat/scriptingcat/pkg/config"
	"github.com/scriptingcat/scriptingcat/pkg/content"
	"github.com/scriptingcat/scriptingcat/pkg/entitlement"
	zerologadapter "github.com/scriptingcat/scriptingcat/pkg/entitlement/logger/zerolog"
	prommetrics "github.com/scriptingcat/scriptingcat/pkg/entitlement/metrics/prometheus"
	"github.com/scriptingcat/scriptingcat/storage/memory"
	"github.com/scriptingcat/scriptingcat/storage/postgres"
	"github.com/scriptingcat/scriptingcat/storage/redis"
)

func run() error {
	ctx := context.Background()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)

	storage, cleanup, err := newStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	evaluator := entitlement.NewEvaluator(catalog.Default(), time.Now)
	service, err := entitlement.NewService(storage, evaluator, entitlement.ServiceConfig{
		Logger:  zerologadapter.NewLogger(logger),
		Metrics: prommetrics.NewMetrics(registry, "scriptingcat"),
	})
	if err != nil {
		return fmt.Errorf("entitlement service: %w", err)
	}

	resolver, err := content.NewRapidAPIResolver(content.RapidAPIConfig{
		APIKey: cfg.RapidAPIKey,
	}, logger)
	if err != nil {
		return fmt.Errorf("content resolver: %w", err)
	}

	aiClient, err := openai.New(openai.Config{
		APIKey:         cfg.AIAPIKey,
		BaseURL:        cfg.AIBaseURL,
		Model:          cfg.AIModel,
		RequestTimeout: cfg.AIRequestTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("ai client: %w", err)
	}

	var provider billing.Provider
	if cfg.BillingEnabled() {
		stripeProvider, err := stripebilling.NewProvider(stripebilling.Config{
			Config: billing.Config{
				Service:      service,
				PriceMapping: cfg.PriceMapping(),
			},
			StripeAPIKey:        cfg.StripeSecretKey,
			StripeWebhookSecret: cfg.StripeWebhookSecret,
			Logger:              logger,
		})
		if err != nil {
			return fmt.Errorf("stripe provider: %w", err)
		}
		provider = stripeProvider
		logger.Info().Msg("stripe billing enabled")
	} else {
		logger.Warn().Msg("billing disabled: no STRIPE_SECRET_KEY")
	}

	handler, err := api.NewHandler(api.Config{
		Service:            service,
		Resolver:           resolver,
		AI:                 aiClient,
		Billing:            provider,
		CheckoutSuccessURL: cfg.CheckoutSuccessURL,
		CheckoutCancelURL:  cfg.CheckoutCancelURL,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("api handler: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestLogger(logger))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.Mount("/api", handler.Routes())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("env", cfg.Env).Msg("server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	case <-sigChan:
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info().Msg("graceful shutdown complete")
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// newStorage builds the configured storage backend. The returned cleanup
// closes backend connections.
func newStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (entitlement.Storage, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		store, err := redis.New(client, redis.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("redis storage: %w", err)
		}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis storage")
		return store, func() { _ = client.Close() }, nil

	case config.StoragePostgres:
		store, err := postgres.New(ctx, postgres.Config{ConnectionString: cfg.PostgresDSN})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres storage: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		logger.Info().Msg("using postgres storage")
		return store, store.Close, nil

	default:
		logger.Info().Msg("using in-memory storage")
		return memory.New(), func() {}, nil
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
