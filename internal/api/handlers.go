package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maltedev/pricewatch/internal/database"
	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/parser"
	"github.com/maltedev/pricewatch/internal/pricing"
	"github.com/maltedev/pricewatch/internal/tracker"
)

type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.ScrapedProduct, error)
}

type Tracker interface {
	AddProductFromURL(ctx context.Context, userID, url string) ([]*models.Product, error)
	AddCompetitor(ctx context.Context, productID uuid.UUID, url string) ([]*models.Competitor, error)
	DeleteCompetitor(ctx context.Context, competitorID uuid.UUID) error
	UpdateProductCost(ctx context.Context, productID uuid.UUID, cost *float64) error
	TrackCompetitor(ctx context.Context, competitorID uuid.UUID) (*tracker.TrackResult, error)
	TrackAll(ctx context.Context) (*tracker.RunSummary, error)
	ApplyStrategy(ctx context.Context, productID uuid.UUID) (*pricing.Result, error)
	ListProducts(ctx context.Context, userID string) ([]*models.Product, error)
	CreateStrategy(ctx context.Context, userID, name string, cfg pricing.StrategyConfig) (uuid.UUID, error)
	AssignStrategy(ctx context.Context, productID, strategyID uuid.UUID) error
}

// OutboxStatsFunc reports relay backlog for the health check.
type OutboxStatsFunc func(ctx context.Context) (database.OutboxStats, error)

type Handlers struct {
	scraper     Scraper
	tracker     Tracker
	outboxStats OutboxStatsFunc
	logger      *slog.Logger
}

// NewHandlers wires the HTTP surface. tracker and outboxStats may be nil when
// the service runs without a database; tracking routes then answer 503.
func NewHandlers(scraper Scraper, tracker Tracker, outboxStats OutboxStatsFunc, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		scraper:     scraper,
		tracker:     tracker,
		outboxStats: outboxStats,
		logger:      logger.With("component", "api"),
	}
}

type ScrapeRequest struct {
	URL string `json:"url"`
}

func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.scraper.Scrape(r.Context(), req.URL)
	if err != nil {
		h.respondScrapeError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

type RecommendRequest struct {
	MainProduct pricing.MainProduct    `json:"mainProduct"`
	Competitors []pricing.Competitor   `json:"competitors"`
	Strategy    pricing.StrategyConfig `json:"strategy"`
}

func (h *Handlers) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.Strategy.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := pricing.CalculateRecommendedPrice(req.MainProduct, req.Competitors, req.Strategy)
	if result == nil {
		h.respondError(w, http.StatusUnprocessableEntity, "no recommendation")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) NormalizeCurrency(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		h.respondError(w, http.StatusBadRequest, "value is required")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"currency": parser.NormalizeCurrency(value),
		"known":    parser.IsKnownCurrency(value),
	})
}

type AddProductRequest struct {
	URL    string `json:"url"`
	UserID string `json:"userId"`
}

func (h *Handlers) AddProduct(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}

	var req AddProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		h.respondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	products, err := h.tracker.AddProductFromURL(r.Context(), req.UserID, req.URL)
	if err != nil {
		h.respondTrackerError(w, "failed to add product", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]any{"success": true, "products": products})
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		h.respondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	products, err := h.tracker.ListProducts(r.Context(), userID)
	if err != nil {
		h.respondTrackerError(w, "failed to list products", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"products": products})
}

type CreateStrategyRequest struct {
	UserID   string                 `json:"userId"`
	Name     string                 `json:"name"`
	Strategy pricing.StrategyConfig `json:"strategy"`
}

func (h *Handlers) CreateStrategy(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}

	var req CreateStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		h.respondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	id, err := h.tracker.CreateStrategy(r.Context(), req.UserID, req.Name, req.Strategy)
	if err != nil {
		h.respondTrackerError(w, "failed to create strategy", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

type AssignStrategyRequest struct {
	StrategyID uuid.UUID `json:"strategyId"`
}

func (h *Handlers) AssignStrategy(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}

	productID, ok := h.pathUUID(w, r, "productID")
	if !ok {
		return
	}

	var req AssignStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StrategyID == uuid.Nil {
		h.respondError(w, http.StatusBadRequest, "strategyId is required")
		return
	}

	if err := h.tracker.AssignStrategy(r.Context(), productID, req.StrategyID); err != nil {
		h.respondTrackerError(w, "failed to assign strategy", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

type UpdateCostRequest struct {
	Cost *float64 `json:"cost"`
}

func (h *Handlers) UpdateCost(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}

	productID, ok := h.pathUUID(w, r, "productID")
	if !ok {
		return
	}

	var req UpdateCostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.tracker.UpdateProductCost(r.Context(), productID, req.Cost); err != nil {
		h.respondTrackerError(w, "failed to update cost", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

type AddCompetitorRequest struct {
	URL string `json:"url"`
}

func (h *Handlers) AddCompetitor(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}

	productID, ok := h.pathUUID(w, r, "productID")
	if !ok {
		return
	}

	var req AddCompetitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	competitors, err := h.tracker.AddCompetitor(r.Context(), productID, req.URL)
	if err != nil {
		h.respondTrackerError(w, "failed to add competitor", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]any{"success": true, "competitors": competitors})
}

func (h *Handlers) ApplyStrategy(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}

	productID, ok := h.pathUUID(w, r, "productID")
	if !ok {
		return
	}

	result, err := h.tracker.ApplyStrategy(r.Context(), productID)
	if err != nil {
		h.respondTrackerError(w, "failed to apply strategy", err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) TrackCompetitor(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}

	competitorID, ok := h.pathUUID(w, r, "competitorID")
	if !ok {
		return
	}

	result, err := h.tracker.TrackCompetitor(r.Context(), competitorID)
	if err != nil {
		h.respondTrackerError(w, "failed to track competitor", err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) DeleteCompetitor(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}

	competitorID, ok := h.pathUUID(w, r, "competitorID")
	if !ok {
		return
	}

	if err := h.tracker.DeleteCompetitor(r.Context(), competitorID); err != nil {
		h.respondTrackerError(w, "failed to delete competitor", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// TrackPrices runs a full tracking pass; it is meant for an external cron.
func (h *Handlers) TrackPrices(w http.ResponseWriter, r *http.Request) {
	if !h.requireTracker(w) {
		return
	}

	summary, err := h.tracker.TrackAll(r.Context())
	if err != nil {
		h.logger.Error("tracking run failed", "error", err)
		h.respondJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "An error occurred.",
		})
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Price tracking completed.",
		"summary": summary,
	})
}

const (
	pendingWarnThreshold    = 1000
	deadLetterFailThreshold = 100
)

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	status := http.StatusOK

	if h.outboxStats != nil {
		stats, err := h.outboxStats(r.Context())
		switch {
		case err != nil:
			h.logger.Error("failed to read outbox stats", "error", err)
			health["status"] = "error"
			health["message"] = "database unavailable"
			status = http.StatusServiceUnavailable
		case stats.DeadLetter > deadLetterFailThreshold:
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		case stats.Pending > pendingWarnThreshold:
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if err == nil {
			health["outbox"] = stats
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) requireTracker(w http.ResponseWriter) bool {
	if h.tracker == nil {
		h.respondError(w, http.StatusServiceUnavailable, "price tracking is not configured")
		return false
	}
	return true
}

func (h *Handlers) pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) respondScrapeError(w http.ResponseWriter, err error) {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		h.respondJSON(w, http.StatusUnprocessableEntity, se)
		return
	}
	h.logger.Error("scrape failed", "error", err)
	h.respondJSON(w, http.StatusUnprocessableEntity,
		models.NewScrapeError(models.ErrKindUnexpected, "", err))
}

func (h *Handlers) respondTrackerError(w http.ResponseWriter, msg string, err error) {
	var se *models.ScrapeError
	switch {
	case errors.As(err, &se):
		h.respondJSON(w, http.StatusUnprocessableEntity, se)
	case errors.Is(err, pricing.ErrInvalidStrategy), errors.Is(err, tracker.ErrInvalidCost):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrNotFound), errors.Is(err, tracker.ErrNoStrategy):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tracker.ErrNoRecommendation):
		h.respondError(w, http.StatusUnprocessableEntity, "no recommendation")
	default:
		h.logger.Error(msg, "error", err)
		h.respondError(w, http.StatusInternalServerError, msg)
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
