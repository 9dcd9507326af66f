package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/maltedev/pricewatch/internal/browser"
	"github.com/maltedev/pricewatch/internal/config"
	"github.com/maltedev/pricewatch/internal/extract"
	"github.com/maltedev/pricewatch/internal/queue"
	"github.com/maltedev/pricewatch/internal/ratelimit"
	"github.com/maltedev/pricewatch/internal/scraper"
	"github.com/maltedev/pricewatch/internal/storage"
	"github.com/maltedev/pricewatch/internal/variants"
)

func main() {
	var (
		urls      = flag.String("urls", "", "Comma-separated list of product URLs to scrape")
		inputFile = flag.String("file", "", "File containing product URLs (one per line)")
		htmlFile  = flag.String("html", "", "Extract from a saved HTML page instead of a live URL")
		watchFile = flag.String("watch", "", "Watch list file; scrape every URL on it and record the results")
		headless  = flag.Bool("headless", true, "Run browser in headless mode")
	)
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	scrapeOpts := scraper.Options{
		MaxAttempts:        cfg.Scraper.MaxAttempts,
		RetryDelay:         cfg.Scraper.RetryDelay,
		PriceWait:          cfg.Scraper.PriceWait,
		SettleDelay:        cfg.Scraper.SettleDelay,
		VariantClickSettle: cfg.Scraper.VariantClickSettle,
	}

	if *htmlFile != "" {
		if err := extractSavedPage(ctx, *htmlFile, scrapeOpts, logger); err != nil {
			logger.Error("failed to extract saved page", "file", *htmlFile, "error", err)
			os.Exit(1)
		}
		return
	}

	var watchList *storage.WatchList
	if *watchFile != "" {
		watchList, err = storage.NewWatchList(*watchFile)
		if err != nil {
			logger.Error("failed to open watch list", "file", *watchFile, "error", err)
			os.Exit(1)
		}
	}

	targets, err := collectURLs(*urls, *inputFile)
	if err != nil {
		logger.Error("failed to load urls", "error", err)
		os.Exit(1)
	}
	if watchList != nil {
		if err := watchList.Add(targets...); err != nil {
			logger.Error("failed to update watch list", "error", err)
			os.Exit(1)
		}
		targets = watchList.URLs()
	}

	taskQueue := queue.NewInMemoryQueue()
	defer taskQueue.Close()

	tasks := make([]*queue.Task, 0, len(targets))
	for i, u := range targets {
		tasks = append(tasks, &queue.Task{
			ID:        fmt.Sprintf("task-%d", i),
			URL:       u,
			CreatedAt: time.Now(),
		})
	}
	if err := queue.PushAll(taskQueue, tasks); err != nil {
		logger.Error("failed to queue tasks", "error", err)
		os.Exit(1)
	}

	if taskQueue.Size() == 0 {
		fmt.Fprintln(os.Stderr, "No tasks to process. Use -urls, -file, -watch or -html.")
		flag.Usage()
		os.Exit(1)
	}

	launcher, err := browser.NewLauncher(&browser.Options{
		Headless:          *headless && cfg.Browser.Headless,
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

	var storefront scraper.Storefront
	if cfg.Scraper.StorefrontEnabled {
		storefront = variants.NewStorefrontClient(cfg.Scraper.StorefrontTimeout, browser.DefaultUserAgent, logger)
	}
	svc := scraper.NewService(func(ctx context.Context) (scraper.Session, error) {
		s, err := launcher.Launch(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}, storefront, scrapeOpts, logger)

	rateLimiter := ratelimit.NewAdaptiveRateLimiter(cfg.Tracker.RateLimitMin, cfg.Tracker.RateLimitMax)
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	logger.Info("starting scraping", "tasks", taskQueue.Size())

	for ctx.Err() == nil {
		task, err := taskQueue.TryPop()
		if err != nil {
			if errors.Is(err, queue.ErrQueueEmpty) || errors.Is(err, queue.ErrQueueClosed) {
				break
			}
			logger.Error("failed to get task from queue", "error", err)
			continue
		}

		if err := rateLimiter.Wait(ctx); err != nil {
			break
		}

		product, scrapeErr := svc.Scrape(ctx, task.URL)
		if scrapeErr != nil {
			rateLimiter.RecordError()
			logger.Error("failed to scrape product", "url", task.URL, "error", scrapeErr)
		} else {
			rateLimiter.RecordSuccess()
			if err := encoder.Encode(product); err != nil {
				logger.Error("failed to output result", "error", err)
			}
		}

		if watchList != nil {
			if err := watchList.RecordResult(task.URL, product, scrapeErr); err != nil {
				logger.Error("failed to record result", "url", task.URL, "error", err)
			}
		}
	}

	if watchList != nil {
		logger.Info("watch list updated", "stats", watchList.Stats())
	}
	logger.Info("scraping completed")
}

func extractSavedPage(ctx context.Context, path string, opts scraper.Options, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := extract.NewHTMLDocumentFromReader(f)
	if err != nil {
		return err
	}

	product := scraper.NewService(nil, nil, opts, logger).ExtractDocument(ctx, doc)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(product)
}

func collectURLs(urls, inputFile string) ([]string, error) {
	var list []string

	for _, u := range strings.Split(urls, ",") {
		if u = strings.TrimSpace(u); u != "" {
			list = append(list, u)
		}
	}

	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				list = append(list, line)
			}
		}
	}

	return list, nil
}
