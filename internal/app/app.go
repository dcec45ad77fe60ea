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
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/xenking/bytebuy/internal/domain/cart"
	"github.com/xenking/bytebuy/internal/handler"
	"github.com/xenking/bytebuy/internal/payment/stripe"
	"github.com/xenking/bytebuy/internal/storage/mongodb"
	"github.com/xenking/bytebuy/internal/storage/postgres"
	"github.com/xenking/bytebuy/internal/storage/rediscache"
	"github.com/xenking/bytebuy/pkg/health"
	"github.com/xenking/bytebuy/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations: catalog, API keys, orders.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// MongoDB: cart documents.
	mongoDB, err := mongodb.Connect(ctx, cfg.Mongo.URL, cfg.Mongo.Database)
	if err != nil {
		return errors.Wrap(err, "connect mongo")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(disconnectCtx); err != nil {
			lg.Warn("Mongo disconnect failed", zap.Error(err))
		}
	}()

	cartRepo := mongodb.NewCartRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		return errors.Wrap(err, "create cart indexes")
	}

	// Redis is optional: without it carts are read straight from Mongo and
	// rate limits stay per-process.
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddReadinessCheck("mongo", 5*time.Second, func(ctx context.Context) error {
		return mongoDB.Client().Ping(ctx, readpref.Primary())
	})
	if rdb != nil {
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Payment provider.
	payments := stripe.NewClient(stripe.Config{
		SecretKey:  cfg.Stripe.SecretKey,
		BaseURL:    cfg.Stripe.BaseURL,
		Currency:   cfg.Stripe.Currency,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		Timeout:    cfg.Stripe.Timeout,
	},
		stripe.WithTracerProvider(m.TracerProvider()),
		stripe.WithMeterProvider(m.MeterProvider()),
		stripe.WithLogger(lg.Named("stripe")),
	)

	// Cart ledger.
	ledgerOpts := []cart.Option{
		cart.WithOrders(orderRepo),
		cart.WithMeterProvider(m.MeterProvider()),
	}
	if rdb != nil {
		ledgerOpts = append(ledgerOpts, cart.WithCache(rediscache.NewCartCache(rdb, cfg.Redis.TTL)))
	}
	ledger := cart.NewLedger(cartRepo, productRepo, payments, ledgerOpts...)

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		ledger,
		productRepo,
		orderRepo,
	)
	securityHandler := handler.NewSecurityHandler(apikeyRepo, []byte(cfg.APIKeyPepper))

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(router, securityHandler.Middleware)

	var limitStore httpmiddleware.CounterStore
	if rdb != nil && cfg.RateLimit.Shared {
		limitStore = httpmiddleware.NewRedisStore(rdb, "ratelimit:")
	} else {
		mem := httpmiddleware.NewMemoryStore()
		go mem.RunEviction(ctx, cfg.RateLimit.Window)
		limitStore = mem
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Stripe.Timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Store:  limitStore,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("bytebuy-api", m),
			httpmiddleware.LogRequests(),
			httpmiddleware.Labeler(),
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
