package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/pricewatch/internal/api"
	"github.com/maltedev/pricewatch/internal/browser"
	"github.com/maltedev/pricewatch/internal/config"
	"github.com/maltedev/pricewatch/internal/currency"
	"github.com/maltedev/pricewatch/internal/database"
	"github.com/maltedev/pricewatch/internal/scraper"
	"github.com/maltedev/pricewatch/internal/tracker"
	"github.com/maltedev/pricewatch/internal/variants"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Browser setup
	launcher, err := browser.NewLauncher(&browser.Options{
		Headless:          cfg.Browser.Headless,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		ActionTimeout:     cfg.Browser.ActionTimeout,
		UserAgent:         browser.DefaultUserAgent,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		AcceptLanguage:    cfg.Browser.AcceptLanguage,
		Locale:            cfg.Browser.Locale,
		ProxyServer:       cfg.Browser.ProxyServer,
		BlockedResources:  browser.DefaultOptions().BlockedResources,
	})
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer launcher.Close()

	newSession := func(ctx context.Context) (scraper.Session, error) {
		s, err := launcher.Launch(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	var storefront scraper.Storefront
	if cfg.Scraper.StorefrontEnabled {
		storefront = variants.NewStorefrontClient(cfg.Scraper.StorefrontTimeout, browser.DefaultUserAgent, logger)
	}

	scraperService := scraper.NewService(newSession, storefront, scraper.Options{
		MaxAttempts:        cfg.Scraper.MaxAttempts,
		RetryDelay:         cfg.Scraper.RetryDelay,
		PriceWait:          cfg.Scraper.PriceWait,
		SettleDelay:        cfg.Scraper.SettleDelay,
		VariantClickSettle: cfg.Scraper.VariantClickSettle,
	}, logger)

	converter := currency.NewConverter(currency.Options{
		BaseURL:           cfg.Currency.RatesURL,
		Timeout:           cfg.Currency.Timeout,
		RequestsPerSecond: cfg.Currency.RequestsPerSecond,
		Burst:             cfg.Currency.Burst,
	}, logger)

	// Tracking needs the database; without it the service still scrapes and prices.
	var (
		trackerAPI  api.Tracker
		outboxStats api.OutboxStatsFunc
	)

	db, err := database.New(ctx, database.Config{
		DSN:         cfg.Database.DSN(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnLife: cfg.Database.MaxConnLife,
		MaxConnIdle: cfg.Database.MaxConnIdle,
	})
	if err != nil {
		logger.Warn("database unavailable, price tracking disabled", "error", err)
	} else {
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}

		store := database.NewStore(db)
		store.Outbox().SetStream(cfg.Redis.Stream)

		trackerAPI = tracker.NewService(scraperService, converter, store, tracker.Options{
			Workers:      cfg.Tracker.Workers,
			RateLimitMin: cfg.Tracker.RateLimitMin,
			RateLimitMax: cfg.Tracker.RateLimitMax,
		}, logger)
		outboxStats = store.Outbox().Stats

		if cfg.Redis.RelayEnabled {
			startRelay(ctx, cfg.Redis, store.Outbox(), logger)
		}
	}

	handlers := api.NewHandlers(scraperService, trackerAPI, outboxStats, logger)
	router := api.NewRouter(handlers, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Tracker.RunTimeout,
	})

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout(),
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr, "tracking", trackerAPI != nil)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func startRelay(ctx context.Context, cfg config.RedisConfig, outbox *database.OutboxRepository, logger *slog.Logger) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, outbox relay not started", "error", err)
		redisClient.Close()
		return
	}

	relay := database.NewRelay(outbox, redisClient, logger, database.RelayConfig{
		PollInterval: cfg.RelayEvery,
		BatchSize:    cfg.RelayBatch,
	})
	go func() {
		defer redisClient.Close()
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("relay stopped with error", "error", err)
		}
	}()
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
