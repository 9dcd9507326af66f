package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/pricewatch/internal/extract"
	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/parser"
	"github.com/maltedev/pricewatch/internal/variants"
)

type Service struct {
	newSession SessionFactory
	storefront Storefront
	extractor  *extract.Extractor
	variants   *variants.Discoverer
	opts       Options
	logger     *slog.Logger
}

// NewService wires the orchestrator. storefront may be nil to disable the
// storefront JSON fast path.
func NewService(newSession SessionFactory, storefront Storefront, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	extractor := extract.NewExtractor(logger)
	return &Service{
		newSession: newSession,
		storefront: storefront,
		extractor:  extractor,
		variants:   variants.NewDiscoverer(extractor, opts.VariantClickSettle, logger),
		opts:       opts,
		logger:     logger.With("component", "scraper"),
	}
}

// Scrape returns the product found at rawURL. Every error it returns is a
// *models.ScrapeError; panics inside the session are converted as well.
func (s *Service) Scrape(ctx context.Context, rawURL string) (product *models.ScrapedProduct, err error) {
	logger := s.logger.With("url", rawURL)
	current := stateInit
	transition := func(next state) {
		logger.Debug("scrape state", "from", current, "to", next)
		current = next
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("scrape panicked", "state", current, "panic", r)
			product = nil
			err = models.NewScrapeError(models.ErrKindUnexpected, rawURL, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ValidateURL(rawURL); err != nil {
		transition(stateFailed)
		logger.Warn("rejected url", "error", err)
		return nil, models.NewScrapeError(models.ErrKindInvalidURL, rawURL, err)
	}

	if s.storefront != nil && variants.IsStorefrontURL(rawURL) {
		p, err := s.storefront.Fetch(ctx, rawURL)
		if err == nil {
			transition(stateDone)
			logger.Info("scraped via storefront json", "variants", len(p.Variants))
			return p, nil
		}
		logger.Info("storefront json unavailable, rendering page", "error", err)
	}

	session, err := s.newSession(ctx)
	if err != nil {
		transition(stateFailed)
		logger.Error("failed to launch browser", "error", err)
		return nil, models.NewScrapeError(models.ErrKindUnexpected, rawURL, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("failed to close browser session", "error", cerr)
		}
	}()

	transition(stateNavigating)
	if err := s.navigate(ctx, session, rawURL, logger); err != nil {
		transition(stateFailed)
		return nil, models.NewScrapeError(models.ErrKindUnreachable, rawURL, err)
	}
	transition(stateLoaded)

	if err := session.WaitFor(extract.PriceSelectorWait, s.opts.PriceWait); err != nil {
		logger.Debug("no price element yet, settling", "error", err)
		if err := sleep(ctx, s.opts.SettleDelay); err != nil {
			transition(stateFailed)
			return nil, models.NewScrapeError(models.ErrKindUnexpected, rawURL, err)
		}
	}

	transition(stateExtracting)
	product = s.extractProduct(ctx, session.Document(), logger)
	transition(stateDone)

	logger.Info("scrape finished",
		"title", product.Title,
		"has_price", product.HasPrice(),
		"currency", product.Currency,
		"variants", len(product.Variants))
	return product, nil
}

func (s *Service) navigate(ctx context.Context, session Session, rawURL string, logger *slog.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		logger.Info("loading page", "attempt", attempt, "max_attempts", s.opts.MaxAttempts)

		lastErr = session.Navigate(rawURL)
		if lastErr == nil {
			return nil
		}
		logger.Warn("navigation failed", "attempt", attempt, "error", lastErr)

		if attempt == s.opts.MaxAttempts {
			break
		}
		if err := sleep(ctx, s.opts.RetryDelay); err != nil {
			return errors.Join(lastErr, err)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", s.opts.MaxAttempts, lastErr)
}

// ExtractDocument runs the extraction pipeline against an already loaded
// document, e.g. a saved page.
func (s *Service) ExtractDocument(ctx context.Context, doc extract.Document) *models.ScrapedProduct {
	return s.extractProduct(ctx, doc, s.logger)
}

// extractProduct tries structured-data variants, then page-state variants,
// then the single-offer cascade.
func (s *Service) extractProduct(ctx context.Context, doc extract.Document, logger *slog.Logger) *models.ScrapedProduct {
	title, err := doc.Title()
	if err != nil || title == "" {
		if err != nil {
			logger.Debug("failed to read title", "error", err)
		}
		title = models.MsgUnknownProduct
	}

	if vs := s.variants.FromStructuredData(doc, title); len(vs) > 0 {
		return withVariants(title, vs)
	}
	if vs := s.variants.FromPageState(ctx, doc, title); len(vs) > 0 {
		return withVariants(title, vs)
	}

	fields := s.extractor.Extract(doc)
	product := &models.ScrapedProduct{
		Title:        title,
		Price:        fields.Price.Price,
		Currency:     fields.Currency,
		Image:        fields.Image,
		OriginalText: fields.Price.OriginalText,
	}
	if product.Price == nil {
		product.FullPrice = models.MsgOutOfStock
	} else {
		product.FullPrice = parser.FullPrice(*product.Price, product.Currency)
	}
	product.Normalize()
	return product
}

func withVariants(title string, vs []models.ScrapedProduct) *models.ScrapedProduct {
	first := vs[0]
	return &models.ScrapedProduct{
		Title:        title,
		Price:        first.Price,
		Currency:     first.Currency,
		Image:        first.Image,
		FullPrice:    first.FullPrice,
		OriginalText: first.OriginalText,
		Variants:     vs,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
