package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"marketplace-storefront/internal/backend"
	"marketplace-storefront/internal/cache"
	"marketplace-storefront/internal/config"
	"marketplace-storefront/internal/db"
	"marketplace-storefront/internal/httpserver"
	"marketplace-storefront/internal/metrics"
	"marketplace-storefront/internal/migrate"
	"marketplace-storefront/internal/pricing"
	dispatchrepo "marketplace-storefront/internal/repository/dispatch"
	quoterepo "marketplace-storefront/internal/repository/quote"
	cartsvc "marketplace-storefront/internal/service/cart"
	checkoutsvc "marketplace-storefront/internal/service/checkout"
	dispatchsvc "marketplace-storefront/internal/service/dispatch"
	ordersvc "marketplace-storefront/internal/service/order"
	paymentsvc "marketplace-storefront/internal/service/payment"
	productsvc "marketplace-storefront/internal/service/product"
	sessionsvc "marketplace-storefront/internal/service/session"
	shippingsvc "marketplace-storefront/internal/service/shipping"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, db.Options{DSN: cfg.DBConnString, MaxConns: cfg.DBMaxConns, ApplicationName: "storefront-api"})
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()
	if cfg.MigrateOnStart {
		if err := migrate.Apply(ctx, dbpool); err != nil {
			logger.Fatalf("apply migrations: %v", err)
		}
		logger.Printf("migrations applied")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatalf("connect to redis: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	client, err := backend.New(backend.Config{
		BaseURL:        cfg.BackendURL,
		PublishableKey: cfg.BackendPublishableKey,
		Timeout:        cfg.BackendTimeout,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatalf("init backend client: %v", err)
	}

	store := cache.NewStore(rdb)
	regions := cache.NewRegions(store, client, cfg.RegionCacheTTL, logger)
	sessions := sessionsvc.New(cache.NewSessions(rdb))
	pricer := pricing.New(cfg.DisplayLocale)

	quotes := quoterepo.NewPostgres(dbpool, logger)
	snapshots := dispatchrepo.NewPostgres(dbpool, logger)

	cartService := cartsvc.New(client, regions, sessions, store, pricer, logger)
	productService := productsvc.New(client, regions, pricer)
	checkoutService := checkoutsvc.New(cartService)
	shippingService := shippingsvc.New(client, quotes, cartService, m, logger)
	orderService := ordersvc.New(client, sessions, store, cfg.PlacementRetryAfter, m, logger)
	paymentService := paymentsvc.New(client, orderService, cartService, m, logger)
	tracker := dispatchsvc.NewTracker(client, snapshots, cfg.DispatchPollInterval, m, logger)

	readyChecks := map[string]func(context.Context) error{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Sessions:      sessions,
		Carts:         cartService,
		Products:      productService,
		Checkout:      checkoutService,
		Shipping:      shippingService,
		Payments:      paymentService,
		Orders:        orderService,
		Dispatch:      tracker,
		Metrics:       m,
		Gatherer:      registry,
		ReadyChecks:   readyChecks,
		CORSOrigins:   cfg.CORSOrigins,
		SessionCookie: cfg.SessionCookie,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	// Ends every polling loop, which also closes open timeline streams.
	tracker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
