package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/ar-collections-go/internal/config"
	"github.com/boddenberg/ar-collections-go/internal/domain"
	"github.com/boddenberg/ar-collections-go/internal/handler"
	"github.com/boddenberg/ar-collections-go/internal/infra/cache"
	"github.com/boddenberg/ar-collections-go/internal/infra/client"
	"github.com/boddenberg/ar-collections-go/internal/infra/observability"
	"github.com/boddenberg/ar-collections-go/internal/infra/resilience"
	"github.com/boddenberg/ar-collections-go/internal/port"
	"github.com/boddenberg/ar-collections-go/internal/prompt"
	"github.com/boddenberg/ar-collections-go/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the collections HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort > 0 {
			cfg.Port = servePort
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override PORT")
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("draft_provider", cfg.DraftProvider),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Float64("draft_rate_limit", cfg.DraftRateLimit),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "ar-collections")
	if err != nil {
		return eris.Wrap(err, "init tracer")
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	var (
		draftCache port.Cache[domain.DraftResponse]
		checks     []handler.HealthCheck
	)
	switch cfg.CacheBackend {
	case config.CacheRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return eris.Wrap(err, "parse REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		redisCache := cache.NewRedis[domain.DraftResponse](rdb, "collections:", cfg.CacheTTL, logger)
		draftCache = redisCache
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: redisCache.Ping})
		logger.Info("using Redis draft cache", zap.String("addr", opts.Addr))
	default:
		memCache := cache.New[domain.DraftResponse](cfg.CacheTTL)
		defer memCache.Close()
		draftCache = memCache
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		RatePerSecond:  cfg.DraftRateLimit,
		RateBurst:      cfg.DraftRateBurst,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	generator := newGenerator(cfg, httpClient, logger)

	// --- Services ---
	renderer, err := prompt.NewRenderer()
	if err != nil {
		return err
	}
	_, credential := cfg.ProviderCredential()

	collectionsSvc := service.NewCollections(metrics, logger)
	draftsSvc := service.NewDrafts(
		generator,
		renderer,
		draftCache,
		resilience.NewBulkhead(resilienceCfg.MaxConcurrency),
		resilience.NewLimiter(resilienceCfg),
		service.DraftsConfig{
			Credential:       credential,
			MaxTokens:        cfg.DraftMaxTokens,
			BatchConcurrency: resilienceCfg.MaxConcurrency,
		},
		metrics,
		logger,
	)

	// --- Router ---
	router := handler.NewRouter(collectionsSvc, draftsSvc, metrics, logger, handler.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Checks:         checks,
	})

	// --- Server ---
	// Draft calls can take up to HTTPTimeout; leave headroom for the response.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return eris.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server forced shutdown")
	}

	logger.Info("server stopped")
	return nil
}

// newGenerator builds the configured provider client, or returns nil when the
// provider's credential is absent so draft routes report a configuration error.
func newGenerator(cfg *config.Config, httpClient *http.Client, logger *zap.Logger) port.TextGenerator {
	key, setting := cfg.ProviderCredential()
	if key == "" {
		logger.Warn("draft generation disabled: credential not set", zap.String("setting", setting))
		return nil
	}

	switch cfg.DraftProvider {
	case config.ProviderAnthropic:
		logger.Info("draft provider: anthropic", zap.String("model", cfg.AnthropicModel))
		return client.NewAnthropicClient(httpClient, cfg.AnthropicBaseURL, key, cfg.AnthropicModel,
			resilience.NewCircuitBreaker("anthropic"))
	default:
		logger.Info("draft provider: openai", zap.String("model", cfg.OpenAIModel))
		return client.NewOpenAIClient(httpClient, cfg.OpenAIBaseURL, key, cfg.OpenAIModel,
			resilience.NewCircuitBreaker("openai"))
	}
}
