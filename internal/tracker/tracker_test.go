package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/pricewatch/internal/database"
	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/pricing"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateProduct(ctx context.Context, p *models.Product) error {
	args := m.Called(ctx, p)
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockStore) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockStore) UpdateProductCost(ctx context.Context, productID uuid.UUID, cost *float64) error {
	return m.Called(ctx, productID, cost).Error(0)
}

func (m *MockStore) SetRecommendedPrice(ctx context.Context, productID uuid.UUID, price float64, event *database.OutboxEvent) error {
	return m.Called(ctx, productID, price, event).Error(0)
}

func (m *MockStore) CreateCompetitor(ctx context.Context, c *models.Competitor) error {
	args := m.Called(ctx, c)
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockStore) GetCompetitor(ctx context.Context, id uuid.UUID) (*models.Competitor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Competitor), args.Error(1)
}

func (m *MockStore) ListCompetitors(ctx context.Context, productID uuid.UUID) ([]*models.Competitor, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Competitor), args.Error(1)
}

func (m *MockStore) UpdateCompetitorPrice(ctx context.Context, c *models.Competitor, event *database.OutboxEvent) error {
	return m.Called(ctx, c, event).Error(0)
}

func (m *MockStore) DeleteCompetitor(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) GetActiveStrategy(ctx context.Context, productID uuid.UUID) (*pricing.StrategyConfig, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.StrategyConfig), args.Error(1)
}

func (m *MockStore) ListProducts(ctx context.Context, userID string) ([]*models.Product, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Product), args.Error(1)
}

func (m *MockStore) CreateStrategy(ctx context.Context, userID, name string, cfg pricing.StrategyConfig) (uuid.UUID, error) {
	args := m.Called(ctx, userID, name, cfg)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockStore) LinkStrategy(ctx context.Context, productID, strategyID uuid.UUID) error {
	return m.Called(ctx, productID, strategyID).Error(0)
}

type fakeScraper struct {
	mu      sync.Mutex
	results map[string]*models.ScrapedProduct
	errs    map[string]error
	calls   int
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*models.ScrapedProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if p, ok := f.results[url]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unexpected url %s", url)
}

// rateConverter multiplies by a fixed rate unless the currencies match.
type rateConverter struct {
	rate float64
}

func (c rateConverter) Convert(_ context.Context, amount float64, from, to string) (float64, bool) {
	if from == to || c.rate == 0 {
		return amount, from == to
	}
	return amount * c.rate, true
}

func newTestService(s Scraper, c Converter, store Store) *Service {
	return NewService(s, c, store, Options{Workers: 2}, nil)
}

func TestDetermineStockStatus(t *testing.T) {
	tests := []struct {
		text string
		want models.StockStatus
	}{
		{"", models.StockUnknown},
		{"   ", models.StockUnknown},
		{"In Stock", models.StockInStock},
		{"Out of Stock", models.StockOutOfStock},
		{"Currently OUT OF STOCK online", models.StockOutOfStock},
		{models.MsgOutOfStock, models.StockOutOfStock},
		{"نفدت الكمية", models.StockOutOfStock},
		{"149 SAR", models.StockInStock},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineStockStatus(tt.text))
		})
	}
}

func TestAddProductFromURL_FansOutVariants(t *testing.T) {
	ctx := context.Background()
	url := "https://shop.example/products/shirt"
	scraper := &fakeScraper{results: map[string]*models.ScrapedProduct{
		url: {
			Title:    "Shirt",
			Price:    models.Float(50),
			Currency: "SAR",
			Variants: []models.ScrapedProduct{
				{Title: "Shirt - S", Price: models.Float(50), Currency: "SAR", OriginalText: "In Stock"},
				{Title: "Shirt - M", Price: models.Float(55), Currency: "ر.س", OriginalText: "Out of Stock"},
			},
		},
	}}
	store := new(MockStore)
	store.On("CreateProduct", ctx, mock.Anything).Return(nil).Twice()

	products, err := newTestService(scraper, rateConverter{}, store).AddProductFromURL(ctx, "user-1", url)
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "Shirt - S", products[0].Name)
	assert.Equal(t, 50.0, products[0].Price)
	assert.Equal(t, models.StockInStock, products[0].StockStatus)
	assert.Equal(t, "SAR", products[1].Currency)
	assert.Equal(t, models.StockOutOfStock, products[1].StockStatus)
	assert.Equal(t, "user-1", products[1].UserID)
	assert.Equal(t, url, products[1].URL)
	store.AssertExpectations(t)
}

func TestAddProductFromURL_DefaultsWithoutPrice(t *testing.T) {
	ctx := context.Background()
	url := "https://shop.example/item"
	scraper := &fakeScraper{results: map[string]*models.ScrapedProduct{
		url: {Title: "Lamp", FullPrice: models.MsgOutOfStock, OriginalText: models.MsgOutOfStock},
	}}
	store := new(MockStore)
	store.On("CreateProduct", ctx, mock.Anything).Return(nil).Once()

	products, err := newTestService(scraper, rateConverter{}, store).AddProductFromURL(ctx, "u", url)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 0.0, products[0].Price)
	assert.Equal(t, DefaultCurrency, products[0].Currency)
	assert.Equal(t, models.StockOutOfStock, products[0].StockStatus)
}

func TestAddProductFromURL_ScrapeFailure(t *testing.T) {
	url := "https://down.example/item"
	scrapeErr := models.NewScrapeError(models.ErrKindUnreachable, url, errors.New("timeout"))
	scraper := &fakeScraper{errs: map[string]error{url: scrapeErr}}
	store := new(MockStore)

	_, err := newTestService(scraper, rateConverter{}, store).AddProductFromURL(context.Background(), "u", url)

	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrKindUnreachable, se.Kind)
	store.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
}

func TestAddCompetitor_DefaultsName(t *testing.T) {
	ctx := context.Background()
	productID := uuid.New()
	url := "https://rival.example/item"
	scraper := &fakeScraper{results: map[string]*models.ScrapedProduct{
		url: {Price: models.Float(42)},
	}}
	store := new(MockStore)
	store.On("GetProduct", ctx, productID).Return(&models.Product{ID: productID, Currency: "SAR"}, nil)
	store.On("CreateCompetitor", ctx, mock.Anything).Return(nil).Once()

	competitors, err := newTestService(scraper, rateConverter{}, store).AddCompetitor(ctx, productID, url)
	require.NoError(t, err)
	require.Len(t, competitors, 1)
	assert.Equal(t, UnknownCompetitorName, competitors[0].Name)
	assert.Equal(t, DefaultCurrency, competitors[0].Currency)
	require.NotNil(t, competitors[0].CurrentPrice)
	assert.Equal(t, 42.0, *competitors[0].CurrentPrice)
	assert.Equal(t, productID, competitors[0].ProductID)
}

func TestAddCompetitor_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	productID := uuid.New()
	store := new(MockStore)
	store.On("GetProduct", ctx, productID).Return(nil, database.ErrNotFound)
	scraper := &fakeScraper{}

	_, err := newTestService(scraper, rateConverter{}, store).AddCompetitor(ctx, productID, "https://x.example")
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.Zero(t, scraper.calls)
}

func trackingFixture(oldPrice *float64) (*models.Product, *models.Competitor) {
	product := &models.Product{ID: uuid.New(), Price: 100, Currency: "SAR", Cost: models.Float(60)}
	competitor := &models.Competitor{
		ID:           uuid.New(),
		ProductID:    product.ID,
		URL:          "https://rival.example/item",
		Name:         "Rival",
		CurrentPrice: oldPrice,
		Currency:     "SAR",
	}
	return product, competitor
}

func TestTrackCompetitor_ConvertsAndPublishesOnChange(t *testing.T) {
	ctx := context.Background()
	product, competitor := trackingFixture(models.Float(90))
	scraper := &fakeScraper{results: map[string]*models.ScrapedProduct{
		competitor.URL: {Title: "Rival Widget", Price: models.Float(25), Currency: "USD", OriginalText: "In Stock"},
	}}

	store := new(MockStore)
	store.On("GetCompetitor", ctx, competitor.ID).Return(competitor, nil)
	store.On("GetProduct", ctx, product.ID).Return(product, nil)

	var stored *models.Competitor
	var event *database.OutboxEvent
	store.On("UpdateCompetitorPrice", ctx, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*models.Competitor)
		event = args.Get(2).(*database.OutboxEvent)
	}).Return(nil)

	result, err := newTestService(scraper, rateConverter{rate: 3.75}, store).TrackCompetitor(ctx, competitor.ID)
	require.NoError(t, err)

	assert.True(t, result.PriceChanged)
	assert.False(t, result.Skipped)
	require.NotNil(t, result.Price)
	assert.InDelta(t, 93.75, *result.Price, 1e-9)

	require.NotNil(t, stored)
	assert.Equal(t, "SAR", stored.Currency)
	assert.Equal(t, "Rival Widget", stored.Name)
	assert.Equal(t, models.StockInStock, stored.StockStatus)
	assert.NotNil(t, stored.LastCheckedAt)

	require.NotNil(t, event)
	assert.Equal(t, "COMPETITOR_PRICE_CHANGED", event.EventType)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, 90.0, payload["old_price"])
	assert.Equal(t, "USD", payload["original_currency"])
}

func TestTrackCompetitor_UnchangedPriceWritesNoEvent(t *testing.T) {
	ctx := context.Background()
	product, competitor := trackingFixture(models.Float(95))
	scraper := &fakeScraper{results: map[string]*models.ScrapedProduct{
		competitor.URL: {Title: models.MsgUnknownProduct, Price: models.Float(95), Currency: "SAR"},
	}}

	store := new(MockStore)
	store.On("GetCompetitor", ctx, competitor.ID).Return(competitor, nil)
	store.On("GetProduct", ctx, product.ID).Return(product, nil)
	store.On("UpdateCompetitorPrice", ctx, mock.Anything, (*database.OutboxEvent)(nil)).Return(nil)

	result, err := newTestService(scraper, rateConverter{}, store).TrackCompetitor(ctx, competitor.ID)
	require.NoError(t, err)
	assert.False(t, result.PriceChanged)
	assert.Equal(t, "Rival", competitor.Name)
	store.AssertExpectations(t)
}

func TestTrackCompetitor_SkipsWithoutPrice(t *testing.T) {
	ctx := context.Background()
	product, competitor := trackingFixture(models.Float(95))
	scraper := &fakeScraper{results: map[string]*models.ScrapedProduct{
		competitor.URL: {Title: "Rival", FullPrice: models.MsgOutOfStock},
	}}

	store := new(MockStore)
	store.On("GetCompetitor", ctx, competitor.ID).Return(competitor, nil)
	store.On("GetProduct", ctx, product.ID).Return(product, nil)

	result, err := newTestService(scraper, rateConverter{}, store).TrackCompetitor(ctx, competitor.ID)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	store.AssertNotCalled(t, "UpdateCompetitorPrice", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrackCompetitor_MatchesVariantByName(t *testing.T) {
	ctx := context.Background()
	product, competitor := trackingFixture(nil)
	competitor.Name = "Rival - Large"
	scraper := &fakeScraper{results: map[string]*models.ScrapedProduct{
		competitor.URL: {
			Title: "Rival", Price: models.Float(10), Currency: "SAR",
			Variants: []models.ScrapedProduct{
				{Title: "Rival - Small", Price: models.Float(10), Currency: "SAR"},
				{Title: "Rival - Large", Price: models.Float(14), Currency: "SAR"},
			},
		},
	}}

	store := new(MockStore)
	store.On("GetCompetitor", ctx, competitor.ID).Return(competitor, nil)
	store.On("GetProduct", ctx, product.ID).Return(product, nil)
	store.On("UpdateCompetitorPrice", ctx, mock.Anything, mock.Anything).Return(nil)

	result, err := newTestService(scraper, rateConverter{}, store).TrackCompetitor(ctx, competitor.ID)
	require.NoError(t, err)
	assert.True(t, result.PriceChanged)
	assert.Equal(t, 14.0, *result.Price)
}

func TestApplyStrategy(t *testing.T) {
	ctx := context.Background()
	product := &models.Product{ID: uuid.New(), Price: 100, Currency: "SAR", Cost: models.Float(60)}
	competitors := []*models.Competitor{
		{CurrentPrice: models.Float(100)},
		{CurrentPrice: nil},
		{CurrentPrice: models.Float(120)},
	}
	strategy := &pricing.StrategyConfig{
		StrategyType:    pricing.StrategyLower,
		CompetitorType:  pricing.CompetitorCheapest,
		AdjustmentType:  pricing.AdjustmentFixed,
		AdjustmentValue: 5,
	}

	store := new(MockStore)
	store.On("GetActiveStrategy", ctx, product.ID).Return(strategy, nil)
	store.On("GetProduct", ctx, product.ID).Return(product, nil)
	store.On("ListCompetitors", ctx, product.ID).Return(competitors, nil)
	store.On("SetRecommendedPrice", ctx, product.ID, 95.0, mock.MatchedBy(func(e *database.OutboxEvent) bool {
		return e != nil && e.EventType == "RECOMMENDED_PRICE_UPDATED" && e.AggregateID == product.ID.String()
	})).Return(nil)

	result, err := newTestService(&fakeScraper{}, rateConverter{}, store).ApplyStrategy(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 95.0, result.RecommendedPrice)
	assert.Equal(t, 100.0, result.CompetitorPrice)
	store.AssertExpectations(t)
}

func TestApplyStrategy_NoStrategy(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	store := new(MockStore)
	store.On("GetActiveStrategy", ctx, id).Return(nil, fmt.Errorf("lookup: %w", database.ErrNotFound))

	_, err := newTestService(&fakeScraper{}, rateConverter{}, store).ApplyStrategy(ctx, id)
	assert.ErrorIs(t, err, ErrNoStrategy)
}

func TestApplyStrategy_NoCostMeansNoRecommendation(t *testing.T) {
	ctx := context.Background()
	product := &models.Product{ID: uuid.New(), Price: 100, Currency: "SAR"}
	store := new(MockStore)
	store.On("GetActiveStrategy", ctx, product.ID).Return(&pricing.StrategyConfig{StrategyType: pricing.StrategyMatch}, nil)
	store.On("GetProduct", ctx, product.ID).Return(product, nil)
	store.On("ListCompetitors", ctx, product.ID).Return([]*models.Competitor{{CurrentPrice: models.Float(90)}}, nil)

	_, err := newTestService(&fakeScraper{}, rateConverter{}, store).ApplyStrategy(ctx, product.ID)
	assert.ErrorIs(t, err, ErrNoRecommendation)
	store.AssertNotCalled(t, "SetRecommendedPrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTrackAll(t *testing.T) {
	ctx := context.Background()
	product := &models.Product{ID: uuid.New(), Price: 100, Currency: "SAR", Cost: models.Float(60)}

	changedComp := &models.Competitor{ID: uuid.New(), ProductID: product.ID, URL: "https://a.example/1", Name: "A", CurrentPrice: models.Float(110)}
	sameComp := &models.Competitor{ID: uuid.New(), ProductID: product.ID, URL: "https://b.example/2", Name: "B", CurrentPrice: models.Float(120)}
	failingComp := &models.Competitor{ID: uuid.New(), ProductID: product.ID, URL: "https://c.example/3", Name: "C"}
	skippedComp := &models.Competitor{ID: uuid.New(), ProductID: product.ID, URL: "https://d.example/4", Name: "D"}
	all := []*models.Competitor{changedComp, sameComp, failingComp, skippedComp}

	scraper := &fakeScraper{
		results: map[string]*models.ScrapedProduct{
			changedComp.URL: {Title: "A", Price: models.Float(100), Currency: "SAR"},
			sameComp.URL:    {Title: "B", Price: models.Float(120), Currency: "SAR"},
			skippedComp.URL: {Title: "D"},
		},
		errs: map[string]error{failingComp.URL: errors.New("navigation failed")},
	}

	store := new(MockStore)
	store.On("ListCompetitors", mock.Anything, uuid.Nil).Return(all, nil)
	for _, c := range all {
		store.On("GetCompetitor", mock.Anything, c.ID).Return(c, nil)
	}
	store.On("GetProduct", mock.Anything, product.ID).Return(product, nil)
	store.On("UpdateCompetitorPrice", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("GetActiveStrategy", mock.Anything, product.ID).Return(&pricing.StrategyConfig{
		StrategyType: pricing.StrategyMatch, CompetitorType: pricing.CompetitorCheapest,
	}, nil)
	store.On("ListCompetitors", mock.Anything, product.ID).Return(all, nil)
	store.On("SetRecommendedPrice", mock.Anything, product.ID, 100.0, mock.Anything).Return(nil).Once()

	summary, err := newTestService(scraper, rateConverter{}, store).TrackAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Competitors)
	assert.Equal(t, 2, summary.Tracked)
	assert.Equal(t, 1, summary.Changed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Repriced)
	store.AssertExpectations(t)
}

func TestTrackAll_NoCompetitors(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("ListCompetitors", ctx, uuid.Nil).Return([]*models.Competitor{}, nil)

	summary, err := newTestService(&fakeScraper{}, rateConverter{}, store).TrackAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Competitors)
}

func TestUpdateProductCost_RejectsNegative(t *testing.T) {
	store := new(MockStore)
	err := newTestService(&fakeScraper{}, rateConverter{}, store).UpdateProductCost(context.Background(), uuid.New(), models.Float(-1))
	assert.ErrorIs(t, err, ErrInvalidCost)
	store.AssertNotCalled(t, "UpdateProductCost", mock.Anything, mock.Anything, mock.Anything)
}
