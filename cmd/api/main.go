package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mvillanueva/gymflow-backend/api/routes"
	"github.com/mvillanueva/gymflow-backend/internal/billing"
	"github.com/mvillanueva/gymflow-backend/internal/gateway"
	"github.com/mvillanueva/gymflow-backend/internal/payments"
	"github.com/mvillanueva/gymflow-backend/internal/subscriptions"
	"github.com/mvillanueva/gymflow-backend/pkg/config"
	"github.com/mvillanueva/gymflow-backend/pkg/db"
	"github.com/mvillanueva/gymflow-backend/pkg/logger"
	"github.com/mvillanueva/gymflow-backend/pkg/metrics"
	pkgrazorpay "github.com/mvillanueva/gymflow-backend/pkg/razorpay"
	"github.com/mvillanueva/gymflow-backend/pkg/redis"
	pkgstripe "github.com/mvillanueva/gymflow-backend/pkg/stripe"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var stripeGateway gateway.StripeClient
	if cfg.Stripe.APIKey != "" {
		stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap stripe", err)
			os.Exit(1)
		}
		stripeGateway = gateway.NewStripeClient(stripeClient)
	}

	var razorpayGateway gateway.RazorpayClient
	if cfg.Razorpay.KeyID != "" {
		razorpayClient, err := pkgrazorpay.NewClient(context.Background(), cfg.Razorpay, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap razorpay", err)
			os.Exit(1)
		}
		razorpayGateway = gateway.NewRazorpayClient(razorpayClient)
	}

	registry := prometheus.NewRegistry()
	reconciliationMetrics := metrics.NewReconciliationMetrics(registry)

	repo := billing.NewRepository(dbClient.DB())
	ledger := payments.NewLedger(repo, logg, reconciliationMetrics)

	guard, err := subscriptions.NewVerifyGuard(redisClient, cfg.Billing.VerifyGuardTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build verify guard", err)
		os.Exit(1)
	}

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:     repo,
		Tx:       dbClient,
		Stripe:   stripeGateway,
		Razorpay: razorpayGateway,
		Ledger:   ledger,
		Guard:    guard,
		Logger:   logg,
		Metrics:  reconciliationMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build subscription service", err)
		os.Exit(1)
	}

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
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, subscriptionService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
