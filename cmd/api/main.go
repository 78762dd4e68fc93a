package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"storefront-checkout/internal/client"
	"storefront-checkout/internal/config"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/repository"
	"storefront-checkout/internal/server"
	"storefront-checkout/internal/service"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:   "storefront-checkout",
		Usage:  "storefront checkout api",
		Before: setup,
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the http api",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the database schema",
				Action: migrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("exit")
	}
}

func setup(c *cli.Context) error {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if err := setupLogger(cfg.Log); err != nil {
		return err
	}

	c.App.Metadata = map[string]interface{}{"config": cfg}
	return nil
}

func setupLogger(cfg config.Log) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log.SetLevel(level)

	if cfg.Format == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	return nil
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

func migrate(c *cli.Context) error {
	cfg := configFrom(c)

	db, err := client.InitDBClient(cfg.Database)
	if err != nil {
		return err
	}
	if err := client.Migrate(db); err != nil {
		return err
	}

	log.WithField("driver", cfg.Database.Driver).Info("schema migrated")
	return nil
}

func serve(c *cli.Context) error {
	cfg := configFrom(c)

	db, err := client.InitDBClient(cfg.Database)
	if err != nil {
		return err
	}
	// sqlite is the local default; keep it usable without a separate migrate step
	if db.Dialector.Name() == "sqlite" {
		if err := client.Migrate(db); err != nil {
			return err
		}
	}

	gatewayClient := client.NewGatewayClient(&cfg.Gateway)
	if !gatewayClient.GetConfig().Configured {
		log.Warn("payment gateway is not configured; checkouts will fail until GATEWAY_* is set")
	}
	calc := pricing.NewCalculator(cfg.Pricing)

	productRepo := repository.NewProductRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	hotDealRepo := repository.NewHotDealRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	couponService := service.NewCouponService(couponRepo, calc)
	orderService := service.NewOrderService(
		db,
		gatewayClient,
		calc,
		couponService,
		productRepo,
		orderRepo,
		webhookEventRepo,
		service.OrderServiceConfig{
			BaseURL:    cfg.BaseURL,
			WebhookKey: cfg.Gateway.WebhookKey,
		},
	)

	srv := server.NewServer(server.Services{
		Order:   orderService,
		Coupon:  couponService,
		Product: service.NewProductService(productRepo),
		HotDeal: service.NewHotDealService(db, hotDealRepo, productRepo),
		Calc:    calc,
	}, cfg.APIToken)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	log.WithFields(log.Fields{
		"addr":        serverAddr,
		"environment": cfg.Environment.Name,
	}).Info("starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-sigChan:
	}
	log.Info("signal received, starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
