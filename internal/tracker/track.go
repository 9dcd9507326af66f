package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maltedev/pricewatch/internal/database"
	"github.com/maltedev/pricewatch/internal/events"
	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/pricing"
	"github.com/maltedev/pricewatch/internal/queue"
)

// TrackResult describes one competitor check. Skipped is set when the page
// yielded no price; the stored competitor is then left untouched.
type TrackResult struct {
	CompetitorID uuid.UUID `json:"competitorId"`
	ProductID    uuid.UUID `json:"productId"`
	Price        *float64  `json:"price,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	PriceChanged bool      `json:"priceChanged"`
	Skipped      bool      `json:"skipped"`
}

// RunSummary aggregates a TrackAll run.
type RunSummary struct {
	Competitors int `json:"competitors"`
	Tracked     int `json:"tracked"`
	Changed     int `json:"changed"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	Repriced    int `json:"repriced"`
}

// TrackCompetitor re-scrapes one competitor, converts its price into the
// owning product's currency and stores it. A price-changed event is written
// with the update when the converted price differs from the stored one.
func (s *Service) TrackCompetitor(ctx context.Context, competitorID uuid.UUID) (*TrackResult, error) {
	competitor, err := s.store.GetCompetitor(ctx, competitorID)
	if err != nil {
		return nil, err
	}
	product, err := s.store.GetProduct(ctx, competitor.ProductID)
	if err != nil {
		return nil, err
	}

	result := &TrackResult{CompetitorID: competitor.ID, ProductID: product.ID}
	logger := s.logger.With("competitor_id", competitor.ID, "url", competitor.URL)

	scraped, err := s.scraper.Scrape(ctx, competitor.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape competitor %s: %w", competitor.ID, err)
	}

	rec := matchRecord(scraped, competitor.Name)
	if !rec.HasPrice() {
		logger.Info("no price found, skipping competitor")
		result.Skipped = true
		return result, nil
	}

	converted, ok := s.converter.Convert(ctx, *rec.Price, rec.Currency, product.Currency)
	if !ok {
		logger.Warn("price stored without conversion", "from", rec.Currency, "to", product.Currency)
	}

	old := competitor.CurrentPrice
	result.PriceChanged = old == nil || *old != converted
	result.Price = models.Float(converted)
	result.Currency = product.Currency

	now := s.now()
	if rec.Title != "" && rec.Title != models.MsgUnknownProduct {
		competitor.Name = rec.Title
	}
	if rec.Image != "" {
		competitor.Image = rec.Image
	}
	competitor.CurrentPrice = result.Price
	competitor.Currency = product.Currency
	competitor.StockStatus = DetermineStockStatus(rec.OriginalText)
	competitor.LastCheckedAt = &now

	var event *database.OutboxEvent
	if result.PriceChanged {
		event, err = events.CompetitorPriceChanged(&events.CompetitorPriceChangedPayload{
			CompetitorID:     competitor.ID.String(),
			ProductID:        product.ID.String(),
			URL:              competitor.URL,
			OldPrice:         old,
			NewPrice:         converted,
			Currency:         product.Currency,
			OriginalPrice:    *rec.Price,
			OriginalCurrency: rec.Currency,
			StockStatus:      string(competitor.StockStatus),
		})
		if err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateCompetitorPrice(ctx, competitor, event); err != nil {
		return nil, err
	}

	logger.Info("competitor tracked", "price", converted, "currency", product.Currency, "changed", result.PriceChanged)
	return result, nil
}

// matchRecord picks the variant whose title equals name, falling back to the
// top-level scrape result.
func matchRecord(p *models.ScrapedProduct, name string) *models.ScrapedProduct {
	for i := range p.Variants {
		if p.Variants[i].Title == name {
			return &p.Variants[i]
		}
	}
	return p
}

// TrackAll checks every competitor through a bounded worker pool throttled by
// the adaptive rate limiter, then re-prices each product that saw a change.
// Individual competitor failures are counted, not returned.
func (s *Service) TrackAll(ctx context.Context) (*RunSummary, error) {
	competitors, err := s.store.ListCompetitors(ctx, uuid.Nil)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{Competitors: len(competitors)}
	if len(competitors) == 0 {
		return summary, nil
	}

	q := queue.NewInMemoryQueue()
	tasks := make([]*queue.Task, 0, len(competitors))
	for _, c := range competitors {
		priority := 0
		if c.LastCheckedAt == nil {
			priority = 1
		}
		tasks = append(tasks, &queue.Task{
			ID:           uuid.NewString(),
			CompetitorID: c.ID.String(),
			ProductID:    c.ProductID.String(),
			URL:          c.URL,
			Priority:     priority,
		})
	}
	if err := queue.PushAll(q, tasks); err != nil {
		return nil, err
	}
	q.Close()

	var mu sync.Mutex
	changed := make(map[uuid.UUID]struct{})

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for {
				task, err := q.Pop(gctx)
				if errors.Is(err, queue.ErrQueueClosed) {
					return nil
				}
				if err != nil {
					return err
				}

				if err := s.limiter.Wait(gctx); err != nil {
					return err
				}

				result, err := s.trackTask(gctx, task)

				mu.Lock()
				switch {
				case err != nil:
					summary.Failed++
				case result.Skipped:
					summary.Skipped++
				default:
					summary.Tracked++
					if result.PriceChanged {
						summary.Changed++
						changed[result.ProductID] = struct{}{}
					}
				}
				mu.Unlock()
			}
		})
	}

	if err := g.Wait(); err != nil {
		return summary, fmt.Errorf("tracking run aborted: %w", err)
	}

	for productID := range changed {
		if _, err := s.ApplyStrategy(ctx, productID); err != nil {
			if errors.Is(err, ErrNoStrategy) || errors.Is(err, ErrNoRecommendation) {
				s.logger.Debug("product not repriced", "product_id", productID, "reason", err)
				continue
			}
			s.logger.Error("failed to apply strategy", "product_id", productID, "error", err)
			continue
		}
		summary.Repriced++
	}

	s.logger.Info("tracking run finished",
		"competitors", summary.Competitors,
		"tracked", summary.Tracked,
		"changed", summary.Changed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"repriced", summary.Repriced)

	return summary, nil
}

func (s *Service) trackTask(ctx context.Context, task *queue.Task) (*TrackResult, error) {
	id, err := uuid.Parse(task.CompetitorID)
	if err != nil {
		return nil, fmt.Errorf("invalid competitor id %q: %w", task.CompetitorID, err)
	}

	result, err := s.TrackCompetitor(ctx, id)
	if err != nil {
		s.limiter.RecordError()
		s.logger.Error("failed to track competitor", "competitor_id", task.CompetitorID, "url", task.URL, "error", err)
		return nil, err
	}

	s.limiter.RecordSuccess()
	return result, nil
}

// ApplyStrategy computes and stores the recommended price of a product from
// its active strategy and the competitors that have a price.
func (s *Service) ApplyStrategy(ctx context.Context, productID uuid.UUID) (*pricing.Result, error) {
	strategy, err := s.store.GetActiveStrategy(ctx, productID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNoStrategy
		}
		return nil, err
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	competitors, err := s.store.ListCompetitors(ctx, productID)
	if err != nil {
		return nil, err
	}

	var priced []pricing.Competitor
	for _, c := range competitors {
		if c.CurrentPrice != nil {
			priced = append(priced, pricing.Competitor{CurrentPrice: c.CurrentPrice})
		}
	}

	result := pricing.CalculateRecommendedPrice(pricing.MainProduct{
		Price:    models.Float(product.Price),
		Currency: product.Currency,
		Cost:     product.Cost,
	}, priced, *strategy)
	if result == nil {
		return nil, ErrNoRecommendation
	}

	event, err := events.RecommendedPriceUpdated(&events.RecommendedPriceUpdatedPayload{
		ProductID:        product.ID.String(),
		RecommendedPrice: result.RecommendedPrice,
		CompetitorPrice:  result.CompetitorPrice,
		Currency:         product.Currency,
		AppliedStrategy:  result.AppliedStrategy,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.SetRecommendedPrice(ctx, productID, result.RecommendedPrice, event); err != nil {
		return nil, err
	}

	s.logger.Info("recommended price updated",
		"product_id", productID,
		"recommended_price", result.RecommendedPrice,
		"strategy", result.AppliedStrategy)

	return result, nil
}
