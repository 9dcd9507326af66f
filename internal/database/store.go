package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/pricewatch/internal/models"
	"github.com/maltedev/pricewatch/internal/pricing"
)

// Store persists tracked products, their competitors and pricing strategies.
// Writes that describe a price movement take an outbox event and commit it in
// the same transaction.
type Store struct {
	db     *DB
	outbox *OutboxRepository
}

func NewStore(db *DB) *Store {
	return &Store{db: db, outbox: NewOutboxRepository(db)}
}

func (s *Store) Outbox() *OutboxRepository {
	return s.outbox
}

const productColumns = `id, user_id, url, name, price, currency, cost, image,
	stock_status, recommended_price, created_at, updated_at`

const competitorColumns = `id, product_id, url, name, current_price, currency, image,
	stock_status, last_checked_at, created_at, updated_at`

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO products (id, user_id, url, name, price, currency, cost, image, stock_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.URL, p.Name, p.Price, p.Currency, p.Cost, p.Image, p.StockStatus,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	return nil
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	row := s.db.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, userID string) ([]*models.Product, error) {
	rows, err := s.db.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// SetRecommendedPrice stores the strategy output together with its event.
func (s *Store) SetRecommendedPrice(ctx context.Context, productID uuid.UUID, price float64, event *OutboxEvent) error {
	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE products SET recommended_price = $1, updated_at = now()
			WHERE id = $2`, price, productID)
		if err != nil {
			return fmt.Errorf("failed to update recommended price: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("product %s: %w", productID, ErrNotFound)
		}

		if event != nil {
			return s.outbox.InsertWithTx(ctx, tx, event)
		}
		return nil
	})
}

func (s *Store) CreateCompetitor(ctx context.Context, c *models.Competitor) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO competitors (id, product_id, url, name, current_price, currency, image, stock_status, last_checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		c.ID, c.ProductID, c.URL, c.Name, c.CurrentPrice, c.Currency, c.Image, c.StockStatus, c.LastCheckedAt,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert competitor: %w", err)
	}

	return nil
}

func (s *Store) GetCompetitor(ctx context.Context, id uuid.UUID) (*models.Competitor, error) {
	row := s.db.pool.QueryRow(ctx,
		`SELECT `+competitorColumns+` FROM competitors WHERE id = $1`, id)

	c, err := scanCompetitor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("competitor %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get competitor: %w", err)
	}

	return c, nil
}

// ListCompetitors returns every competitor when productID is uuid.Nil.
func (s *Store) ListCompetitors(ctx context.Context, productID uuid.UUID) ([]*models.Competitor, error) {
	query := `SELECT ` + competitorColumns + ` FROM competitors`
	var args []any
	if productID != uuid.Nil {
		query += ` WHERE product_id = $1`
		args = append(args, productID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	defer rows.Close()

	var competitors []*models.Competitor
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competitor: %w", err)
		}
		competitors = append(competitors, c)
	}

	return competitors, rows.Err()
}

// UpdateCompetitorPrice writes the tracked fields of c and, when non-nil,
// the outbox event in one transaction.
func (s *Store) UpdateCompetitorPrice(ctx context.Context, c *models.Competitor, event *OutboxEvent) error {
	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE competitors
			SET name = $1, current_price = $2, currency = $3, image = $4,
				stock_status = $5, last_checked_at = $6, updated_at = now()
			WHERE id = $7`,
			c.Name, c.CurrentPrice, c.Currency, c.Image, c.StockStatus, c.LastCheckedAt, c.ID)
		if err != nil {
			return fmt.Errorf("failed to update competitor: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("competitor %s: %w", c.ID, ErrNotFound)
		}

		if event != nil {
			return s.outbox.InsertWithTx(ctx, tx, event)
		}
		return nil
	})
}

func (s *Store) CreateStrategy(ctx context.Context, userID, name string, cfg pricing.StrategyConfig) (uuid.UUID, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal strategy: %w", err)
	}

	id := uuid.New()
	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO strategies (id, user_id, name, config) VALUES ($1, $2, $3, $4)`,
		id, userID, name, data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert strategy: %w", err)
	}

	return id, nil
}

// LinkStrategy makes strategyID the only active strategy of productID.
func (s *Store) LinkStrategy(ctx context.Context, productID, strategyID uuid.UUID) error {
	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE product_strategies SET is_active = false WHERE product_id = $1`, productID); err != nil {
			return fmt.Errorf("failed to deactivate strategies: %w", err)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO product_strategies (product_id, strategy_id, is_active)
			VALUES ($1, $2, true)
			ON CONFLICT (product_id, strategy_id) DO UPDATE SET is_active = true`,
			productID, strategyID)
		if err != nil {
			return fmt.Errorf("failed to link strategy: %w", err)
		}
		return nil
	})
}

func (s *Store) GetActiveStrategy(ctx context.Context, productID uuid.UUID) (*pricing.StrategyConfig, error) {
	var data []byte
	err := s.db.pool.QueryRow(ctx, `
		SELECT s.config
		FROM product_strategies ps
		JOIN strategies s ON s.id = ps.strategy_id
		WHERE ps.product_id = $1 AND ps.is_active
		LIMIT 1`, productID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("active strategy for %s: %w", productID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get active strategy: %w", err)
	}

	var cfg pricing.StrategyConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode strategy: %w", err)
	}

	return &cfg, nil
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	p := &models.Product{}
	var stock string
	err := row.Scan(
		&p.ID, &p.UserID, &p.URL, &p.Name, &p.Price, &p.Currency, &p.Cost, &p.Image,
		&stock, &p.RecommendedPrice, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.StockStatus = models.StockStatus(stock)
	return p, nil
}

func scanCompetitor(row pgx.Row) (*models.Competitor, error) {
	c := &models.Competitor{}
	var stock string
	var checked *time.Time
	err := row.Scan(
		&c.ID, &c.ProductID, &c.URL, &c.Name, &c.CurrentPrice, &c.Currency, &c.Image,
		&stock, &checked, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.StockStatus = models.StockStatus(stock)
	c.LastCheckedAt = checked
	return c, nil
}

func (s *Store) UpdateProductCost(ctx context.Context, productID uuid.UUID, cost *float64) error {
	result, err := s.db.pool.Exec(ctx,
		`UPDATE products SET cost = $1, updated_at = now() WHERE id = $2`, cost, productID)
	if err != nil {
		return fmt.Errorf("failed to update product cost: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteCompetitor(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.pool.Exec(ctx, `DELETE FROM competitors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete competitor: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("competitor %s: %w", id, ErrNotFound)
	}
	return nil
}
