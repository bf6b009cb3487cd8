package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/arrangement-plans-go/internal/config"
	"github.com/boddenberg/arrangement-plans-go/internal/domain"
	"github.com/boddenberg/arrangement-plans-go/internal/handler"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/cache"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/memory"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/mongostore"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/observability"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/resilience"
	"github.com/boddenberg/arrangement-plans-go/internal/infra/supabase"
	"github.com/boddenberg/arrangement-plans-go/internal/port"
	"github.com/boddenberg/arrangement-plans-go/internal/service"
)

// backend bundles the stores selected by STORE_BACKEND.
type backend struct {
	plans    port.PlanStore
	settings port.SettingsStore
	checker  port.HealthChecker
	close    func(context.Context) error
}

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("redis_cache", cfg.RedisURL != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_ttl", cfg.JWTTTL),
		zap.Int("api_keys", len(cfg.APIKeyHashes)),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "arrangement-plans", cfg.SamplingRatio)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Stores ---
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	stores, err := openBackend(startCtx, cfg, resilienceCfg, metrics, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	checkers := []port.HealthChecker{stores.checker}

	// --- Cache ---
	var offerCache port.Cache[[]domain.Offer]
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(startCtx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		redisCache := cache.NewRedis[[]domain.Offer](rdb, "arrangement-plans", cfg.CacheTTL, metrics, logger)
		offerCache = redisCache
		checkers = append(checkers, redisCache)
		logger.Info("using redis offer cache")
	} else {
		mem := cache.New[[]domain.Offer](cfg.CacheTTL)
		defer mem.Close()
		offerCache = mem
	}

	// --- Services ---
	offers := service.NewOfferCache(offerCache)
	settingsSvc := service.NewSettingsService(stores.settings, offers, logger)
	svcs := handler.Services{
		Plans:    service.NewPlanService(stores.plans, offers, metrics, logger),
		Settings: settingsSvc,
		Offers:   service.NewOfferService(stores.plans, settingsSvc, offers, metrics, logger),
		Auth:     service.NewAuthService(cfg.JWTSecret, cfg.JWTTTL, cfg.APIKeyHashes, logger),
	}
	if len(cfg.APIKeyHashes) == 0 {
		logger.Warn("no API_KEY_HASHES configured, offer lookups will be rejected")
	}

	// --- Router ---
	router := handler.NewRouter(svcs, handler.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		DevTokens:      cfg.DevTokenIssue,
		Checkers:       checkers,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}
	if err := stores.close(ctx); err != nil {
		logger.Warn("store close failed", zap.Error(err))
	}

	logger.Info("server stopped")
}

func openBackend(ctx context.Context, cfg *config.Config, rcfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) (*backend, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.StoreBackend {
	case config.BackendSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
			return nil, errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required")
		}
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		c := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			rcfg,
			metrics,
			logger,
		)
		return &backend{plans: c, settings: c, checker: c, close: noop}, nil

	case config.BackendMongo:
		s, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, rcfg, metrics, logger)
		if err != nil {
			return nil, err
		}
		return &backend{plans: s, settings: s, checker: s, close: s.Close}, nil

	case config.BackendMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		s := memory.NewStore()
		return &backend{plans: s, settings: s, checker: s, close: noop}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
