// Package tracker keeps seller products and their competitors in sync with
// the storefronts they were scraped from and turns competitor price moves
// into recommended prices.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/pricewatch/internal/database"
	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/parser"
	"github.com/maltedev/pricewatch/internal/pricing"
	"github.com/maltedev/pricewatch/internal/ratelimit"
)

const (
	DefaultCurrency       = "USD"
	UnknownCompetitorName = "Unknown Competitor"
)

var (
	ErrNoStrategy       = errors.New("product has no active strategy")
	ErrNoRecommendation = errors.New("no recommendation could be computed")
	ErrInvalidCost      = errors.New("invalid product cost")
)

var outOfStockMarkers = []string{"out of stock", "غير متوفر", "نفدت الكمية"}

type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.ScrapedProduct, error)
}

type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, bool)
}

type Store interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdateProductCost(ctx context.Context, productID uuid.UUID, cost *float64) error
	SetRecommendedPrice(ctx context.Context, productID uuid.UUID, price float64, event *database.OutboxEvent) error
	CreateCompetitor(ctx context.Context, c *models.Competitor) error
	GetCompetitor(ctx context.Context, id uuid.UUID) (*models.Competitor, error)
	ListCompetitors(ctx context.Context, productID uuid.UUID) ([]*models.Competitor, error)
	UpdateCompetitorPrice(ctx context.Context, c *models.Competitor, event *database.OutboxEvent) error
	DeleteCompetitor(ctx context.Context, id uuid.UUID) error
	GetActiveStrategy(ctx context.Context, productID uuid.UUID) (*pricing.StrategyConfig, error)
	ListProducts(ctx context.Context, userID string) ([]*models.Product, error)
	CreateStrategy(ctx context.Context, userID, name string, cfg pricing.StrategyConfig) (uuid.UUID, error)
	LinkStrategy(ctx context.Context, productID, strategyID uuid.UUID) error
}

// Limiter paces scrapes during a tracking run and adapts to failures.
type Limiter interface {
	Wait(ctx context.Context) error
	RecordSuccess()
	RecordError()
}

type Options struct {
	Workers      int
	RateLimitMin time.Duration
	RateLimitMax time.Duration
}

func DefaultOptions() Options {
	return Options{
		Workers:      2,
		RateLimitMin: 2 * time.Second,
		RateLimitMax: 5 * time.Second,
	}
}

type Service struct {
	scraper   Scraper
	converter Converter
	store     Store
	limiter   Limiter
	workers   int
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(scraper Scraper, converter Converter, store Store, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return &Service{
		scraper:   scraper,
		converter: converter,
		store:     store,
		limiter:   ratelimit.NewAdaptiveRateLimiter(opts.RateLimitMin, opts.RateLimitMax),
		workers:   opts.Workers,
		logger:    logger.With("component", "tracker"),
		now:       time.Now,
	}
}

// DetermineStockStatus classifies a scraped availability text.
func DetermineStockStatus(originalText string) models.StockStatus {
	text := strings.ToLower(strings.TrimSpace(originalText))
	if text == "" {
		return models.StockUnknown
	}
	for _, marker := range outOfStockMarkers {
		if strings.Contains(text, marker) {
			return models.StockOutOfStock
		}
	}
	return models.StockInStock
}

// AddProductFromURL scrapes url and stores one product per variant, or one
// product when the page has no variants.
func (s *Service) AddProductFromURL(ctx context.Context, userID, url string) ([]*models.Product, error) {
	scraped, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape product data: %w", err)
	}

	var created []*models.Product
	for _, rec := range scraped.Records() {
		p := &models.Product{
			UserID:      userID,
			URL:         url,
			Name:        rec.Title,
			Price:       rec.PriceValue(),
			Currency:    currencyOrDefault(rec.Currency),
			Image:       rec.Image,
			StockStatus: DetermineStockStatus(rec.OriginalText),
		}
		if err := s.store.CreateProduct(ctx, p); err != nil {
			return created, err
		}
		created = append(created, p)
	}

	s.logger.Info("products added", "url", url, "count", len(created))
	return created, nil
}

// AddCompetitor scrapes url and attaches one competitor per variant to the
// product.
func (s *Service) AddCompetitor(ctx context.Context, productID uuid.UUID, url string) ([]*models.Competitor, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	scraped, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape competitor product data: %w", err)
	}

	now := s.now()
	var created []*models.Competitor
	for _, rec := range scraped.Records() {
		name := rec.Title
		if name == "" {
			name = UnknownCompetitorName
		}
		c := &models.Competitor{
			ProductID:     productID,
			URL:           url,
			Name:          name,
			CurrentPrice:  models.Float(rec.PriceValue()),
			Currency:      currencyOrDefault(rec.Currency),
			Image:         rec.Image,
			StockStatus:   DetermineStockStatus(rec.OriginalText),
			LastCheckedAt: &now,
		}
		if err := s.store.CreateCompetitor(ctx, c); err != nil {
			return created, err
		}
		created = append(created, c)
	}

	s.logger.Info("competitors added", "product_id", productID, "url", url, "count", len(created))
	return created, nil
}

func (s *Service) DeleteCompetitor(ctx context.Context, competitorID uuid.UUID) error {
	return s.store.DeleteCompetitor(ctx, competitorID)
}

func (s *Service) UpdateProductCost(ctx context.Context, productID uuid.UUID, cost *float64) error {
	if cost != nil && *cost < 0 {
		return fmt.Errorf("%w: cost must be >= 0, got %v", ErrInvalidCost, *cost)
	}
	return s.store.UpdateProductCost(ctx, productID, cost)
}

func currencyOrDefault(c string) string {
	if c == "" {
		return DefaultCurrency
	}
	return parser.NormalizeCurrency(c)
}
