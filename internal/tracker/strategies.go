package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/pricing"
)

func (s *Service) ListProducts(ctx context.Context, userID string) ([]*models.Product, error) {
	return s.store.ListProducts(ctx, userID)
}

// CreateStrategy stores a named strategy for userID after validating it.
func (s *Service) CreateStrategy(ctx context.Context, userID, name string, cfg pricing.StrategyConfig) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, fmt.Errorf("%w: name is required", pricing.ErrInvalidStrategy)
	}
	if err := cfg.Validate(); err != nil {
		return uuid.Nil, err
	}

	id, err := s.store.CreateStrategy(ctx, userID, name, cfg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create strategy: %w", err)
	}

	s.logger.Info("strategy created", "strategy_id", id, "name", name, "type", cfg.StrategyType)
	return id, nil
}

// AssignStrategy makes strategyID the active strategy of productID, replacing
// whatever was active before.
func (s *Service) AssignStrategy(ctx context.Context, productID, strategyID uuid.UUID) error {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return err
	}
	if err := s.store.LinkStrategy(ctx, productID, strategyID); err != nil {
		return err
	}

	s.logger.Info("strategy assigned", "product_id", productID, "strategy_id", strategyID)
	return nil
}
