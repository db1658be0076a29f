package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/delifood-checkout/internal/domain/order"
	"github.com/xenking/delifood-checkout/internal/handler"
	"github.com/xenking/delifood-checkout/internal/redisx"
	"github.com/xenking/delifood-checkout/internal/storage/postgres"
	"github.com/xenking/delifood-checkout/pkg/health"
	"github.com/xenking/delifood-checkout/pkg/httpmiddleware"
)

const serviceName = "delifood-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	policy, err := cfg.Policy()
	if err != nil {
		return errors.Wrap(err, "pricing policy")
	}

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
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Redis is optional: without it idempotency relies on the order table
	// and rate limiting is per instance.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redisx.New(ctx, cfg.Redis.Addr)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()
		healthSvc.Add(health.Readiness, "redis", 2*time.Second, health.ErrCheck(rdb.Ping))
	}

	sinks, err := newNotifiers(ctx, cfg.Notify, pool, rdb)
	if err != nil {
		return errors.Wrap(err, "notifiers")
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			lg.Warn("Close notifiers", zap.Error(err))
		}
	}()

	// Stores.
	products := postgres.NewProductStore(pool)
	orders := postgres.NewOrderStore(pool)
	users := postgres.NewUserStore(pool)

	opts := []order.Option{
		order.WithIdentity(users),
		order.WithNotifyTimeout(cfg.Notify.Timeout),
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	}
	if rdb != nil {
		opts = append(opts, order.WithIdempotency(redisx.NewIdempotencyStore(rdb, redisx.TTLIdempotency)))
	}
	orderService := order.NewService(products, orders, sinks.Fanout(), policy, opts...)

	rateLimit := httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	}
	if rdb != nil {
		rateLimit.Limiter = redisx.NewLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window)
	} else {
		sw := httpmiddleware.NewSlidingWindow(cfg.RateLimit.Max, cfg.RateLimit.Window)
		sw.SweepEvery(ctx, cfg.RateLimit.Window)
		rateLimit.Limiter = sw
	}

	router := chi.NewRouter()
	router.Use(
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.HeaderIdempotencyKey, httpmiddleware.HeaderRequestID},
			ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(rateLimit),
		httpmiddleware.Instrument(serviceName, m),
		httpmiddleware.LogRequests(httpmiddleware.ChiRoute),
		httpmiddleware.Labeler(httpmiddleware.ChiRoute),
	)
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	handler.New(orderService, products).Register(router)

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
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

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

	lg.Info("Server listening",
		zap.String("addr", cfg.Addr),
		zap.Bool("redis", rdb != nil),
		zap.Int("notification_sinks", len(sinks.sinks)),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
