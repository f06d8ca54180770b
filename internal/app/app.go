package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-promotions/internal/domain/order"
	"github.com/xenking/kart-promotions/internal/domain/promotion"
	"github.com/xenking/kart-promotions/internal/handler"
	"github.com/xenking/kart-promotions/internal/storage/postgres"
	"github.com/xenking/kart-promotions/internal/storage/redis"
	"github.com/xenking/kart-promotions/pkg/health"
	"github.com/xenking/kart-promotions/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	// Repositories.
	var promotions promotion.Repository = postgres.NewPromotionRepository(pool)
	usages := postgres.NewUsageRepository(pool)
	products := postgres.NewProductRepository(pool)
	users := postgres.NewUserRepository(pool)
	orders := postgres.NewOrderRepository(pool)
	apikeys := postgres.NewAPIKeyRepository(pool)

	// Optional read-through cache for code lookups.
	var invalidator promotion.Invalidator
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, redis.Config{
			URL:      cfg.Redis.URL,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		cache := redis.NewPromotionCache(promotions, rdb, cfg.Redis.TTL)
		promotions, invalidator = cache, cache
		lg.Info("Promotion cache enabled", zap.Duration("ttl", cfg.Redis.TTL))
	}

	// Domain services.
	evaluator := promotion.NewEvaluator(orders, products, users)
	validator := promotion.NewValidator(promotions, usages, evaluator,
		promotion.WithTracerProvider(m.TracerProvider()),
		promotion.WithMeterProvider(m.MeterProvider()),
	)
	recorder := promotion.NewRecorder(promotions, usages)
	admin := promotion.NewAdmin(promotions, invalidator)
	checkout := order.NewService(products, validator, recorder, orders,
		postgres.NewUnitOfWork(pool, cfg.Checkout.MaxRetries))

	// HTTP handlers.
	security := handler.NewSecurityHandler(apikeys, []byte(cfg.APIKeyPepper))
	h := handler.NewHandler(validator, recorder, admin, checkout, security)

	router := chi.NewRouter()
	healthSvc.Mount(router)
	router.Mount("/", h.Routes())

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.KeyByHeader(handler.APIKeyHeader),
			}),
			httpmiddleware.Instrument("promotions-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
