package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/crumbhaus/bakehouse-backend/api/routes"
	checkoutsvc "github.com/crumbhaus/bakehouse-backend/internal/checkout"
	"github.com/crumbhaus/bakehouse-backend/internal/coupons"
	"github.com/crumbhaus/bakehouse-backend/internal/inventory"
	"github.com/crumbhaus/bakehouse-backend/internal/loyalty"
	"github.com/crumbhaus/bakehouse-backend/internal/notifications"
	"github.com/crumbhaus/bakehouse-backend/internal/orders"
	"github.com/crumbhaus/bakehouse-backend/internal/products"
	"github.com/crumbhaus/bakehouse-backend/internal/rewards"
	"github.com/crumbhaus/bakehouse-backend/internal/users"
	"github.com/crumbhaus/bakehouse-backend/pkg/config"
	"github.com/crumbhaus/bakehouse-backend/pkg/db"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
	"github.com/crumbhaus/bakehouse-backend/pkg/metrics"
	"github.com/crumbhaus/bakehouse-backend/pkg/migrate"
	"github.com/crumbhaus/bakehouse-backend/pkg/payments"
	"github.com/crumbhaus/bakehouse-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	orderMetrics := metrics.NewOrderMetrics(registry)

	gormDB := dbClient.DB()

	gateway, err := payments.NewClient(cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}
	dispatcher := notifications.NewWebhookDispatcher(cfg.Notify, logg)

	userService, err := users.NewService(users.NewRepository(gormDB), redisClient, cfg.JWT, cfg.Password)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	productRepo := products.NewRepository(gormDB)

	inventoryService, err := inventory.NewService(inventory.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	couponService, err := coupons.NewService(coupons.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}

	loyaltyService, err := loyalty.NewService(dbClient, loyalty.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create loyalty service", err)
		os.Exit(1)
	}

	rewardService, err := rewards.NewService(dbClient, rewards.NewRepository(gormDB), loyaltyService, couponService)
	if err != nil {
		logg.Error(context.Background(), "failed to create reward service", err)
		os.Exit(1)
	}

	orderRepo := orders.NewRepository(gormDB)
	orderService, err := orders.NewService(orders.Config{
		Client:     dbClient,
		Repo:       orderRepo,
		Loyalty:    loyaltyService,
		Rewards:    rewardService,
		Inventory:  inventoryService,
		Dispatcher: dispatcher,
		Metrics:    orderMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.Config{
		Client:     dbClient,
		Orders:     orderRepo,
		Products:   productRepo,
		Zones:      checkoutsvc.NewZoneRepository(gormDB),
		Inventory:  inventoryService,
		Coupons:    couponService,
		Rewards:    rewardService,
		Gateway:    gateway,
		Dispatcher: dispatcher,
		Metrics:    orderMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Config{
		Cfg:          cfg,
		Logger:       logg,
		DB:           dbClient,
		Redis:        redisClient,
		Registry:     registry,
		Users:        userService,
		Products:     productRepo,
		Coupons:      couponService,
		Loyalty:      loyaltyService,
		Rewards:      rewardService,
		Orders:       orderService,
		Checkout:     checkoutService,
		Gateway:      gateway,
		OrderMetrics: orderMetrics,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		logg.Info(ctx, "shutting down api server")
		timeout, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(timeout); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
