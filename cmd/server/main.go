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

	"github.com/ikkim/storefront/config"
	"github.com/ikkim/storefront/internal/app/controller"
	"github.com/ikkim/storefront/internal/app/repository"
	"github.com/ikkim/storefront/internal/catalog"
	"github.com/ikkim/storefront/internal/db"
	apperrors "github.com/ikkim/storefront/internal/errors"
	"github.com/ikkim/storefront/internal/middleware"
	"github.com/ikkim/storefront/internal/payment"
	"github.com/ikkim/storefront/internal/router"
	"github.com/ikkim/storefront/internal/scheduler"
	"github.com/ikkim/storefront/internal/storefront"
	"github.com/ikkim/storefront/internal/tokenstore"
	"github.com/ikkim/storefront/internal/websocket"
	"github.com/ikkim/storefront/pkg/apiclient"
	"github.com/ikkim/storefront/pkg/logger"
	redisClient "github.com/ikkim/storefront/pkg/redis"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logger.Initialize(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Service:     "storefront",
		EnableColor: cfg.Server.Environment == "development",
	})

	logger.Info("Starting storefront gateway", map[string]interface{}{
		"environment":  cfg.Server.Environment,
		"port":         cfg.Server.Port,
		"backend":      cfg.Backend.BaseURL,
		"token_driver": cfg.Token.Driver,
		"payment":      cfg.Payment.Variant,
	})

	variant, err := payment.ParseVariant(cfg.Payment.Variant)
	if err != nil {
		logger.Fatal("Invalid payment gateway variant", err)
	}
	apperrors.SetLoginPath(cfg.Server.LoginPath)

	// Redis is optional: it backs the product cache and the redis token driver
	var cache *redis.Client
	if cfg.Redis.Enabled() {
		if err := redisClient.Init(&cfg.Redis); err != nil {
			logger.Fatal("Failed to initialize Redis", err)
		}
		defer redisClient.Close()
		cache = redisClient.GetClient()
	}

	// The database is only opened for the database token driver
	var credentials *tokenstore.DatabaseStore
	storeOpts := tokenstore.Options{
		Driver:     cfg.Token.Driver,
		DefaultTTL: cfg.Token.DefaultTTL,
		Redis:      cache,
	}
	if cfg.Token.Driver == tokenstore.DriverDatabase {
		if err := db.Initialize(&cfg.Database); err != nil {
			logger.Fatal("Failed to initialize database", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close database connection", err)
			}
		}()
		if err := db.Migrate(); err != nil {
			logger.Fatal("Failed to run migrations", err)
		}
		storeOpts.Repository = repository.NewCredentialRepository(db.GetDB())
	}

	store, err := tokenstore.New(storeOpts)
	if err != nil {
		logger.Fatal("Failed to initialize token store", err)
	}
	if ds, ok := store.(*tokenstore.DatabaseStore); ok {
		credentials = ds
	}

	api, err := apiclient.NewClient(apiclient.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		MaxRetries: cfg.Backend.MaxRetries,
		RetryUnit:  cfg.Backend.RetryUnit,
	})
	if err != nil {
		logger.Fatal("Failed to create backend client", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Live push hub
	hub := websocket.NewHub()
	manager := storefront.NewManager(storefront.Options{
		Backend:   api,
		Store:     store,
		Catalog:   catalog.NewService(api, cache, cfg.Scheduler.CatalogCacheTTL),
		Pusher:    hub,
		Variant:   variant,
		Debounce:  cfg.Search.Debounce,
		LoginPath: cfg.Server.LoginPath,
	})
	hub.OnSearch(func(sessionID, query string) {
		if sess, ok := manager.Lookup(sessionID); ok {
			sess.Search.Submit(query)
		}
	})
	go hub.Run(ctx)

	// Scheduler
	var purger scheduler.CredentialPurger
	if credentials != nil {
		purger = credentials
	}
	jobs := scheduler.NewStorefrontScheduler(scheduler.Config{
		CatalogRefreshSpec: cfg.Scheduler.CatalogRefreshSpec,
		SessionSweepSpec:   cfg.Scheduler.SessionSweepSpec,
		IdleTTL:            cfg.Session.IdleTTL,
	}, manager, manager, purger)
	if err := jobs.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", err)
	}

	// Setup router
	r := router.NewRouter(
		controller.NewAuthController(),
		controller.NewCartController(),
		controller.NewCatalogController(),
		controller.NewOrderController(),
		controller.NewPaymentController(),
		controller.NewRealtimeController(hub, cfg.CORS.AllowedOrigins),
		middleware.NewSessionMiddleware(manager, middleware.SessionOptions{
			CookieName: cfg.Session.CookieName,
			MaxAge:     cfg.Session.CookieMaxAge,
			Secure:     cfg.Session.Secure,
		}),
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}

	jobs.Stop()
	stop()

	logger.Info("Server stopped successfully")
}
