package models

import (
	"time"

	"github.com/google/uuid"
)

type StockStatus string

const (
	StockInStock    StockStatus = "IN_STOCK"
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
	StockUnknown    StockStatus = "UNKNOWN"
)

// Product is a seller's own listing whose price the tracker manages.
type Product struct {
	ID               uuid.UUID   `json:"id"`
	UserID           string      `json:"userId"`
	URL              string      `json:"url"`
	Name             string      `json:"name"`
	Price            float64     `json:"price"`
	Currency         string      `json:"currency"`
	Cost             *float64    `json:"cost,omitempty"`
	Image            string      `json:"image,omitempty"`
	StockStatus      StockStatus `json:"stockStatus"`
	RecommendedPrice *float64    `json:"recommendedPrice,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Competitor is a competing listing tracked against a Product. CurrentPrice is
// stored in the owning product's currency.
type Competitor struct {
	ID            uuid.UUID   `json:"id"`
	ProductID     uuid.UUID   `json:"productId"`
	URL           string      `json:"url"`
	Name          string      `json:"name"`
	CurrentPrice  *float64    `json:"currentPrice,omitempty"`
	Currency      string      `json:"currency"`
	Image         string      `json:"image,omitempty"`
	StockStatus   StockStatus `json:"stockStatus"`
	LastCheckedAt *time.Time  `json:"lastCheckedAt,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}
