// Package events defines the price events the tracker emits and turns them
// into outbox rows for the Redis relay.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/pricewatch/internal/database"
)

type EventType string

const (
	EventTypeCompetitorPriceChanged  EventType = "COMPETITOR_PRICE_CHANGED"
	EventTypeRecommendedPriceUpdated EventType = "RECOMMENDED_PRICE_UPDATED"
)

// CompetitorPriceChangedPayload reports a tracked competitor whose price, in
// the owning product's currency, differs from the stored one.
type CompetitorPriceChangedPayload struct {
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	Timestamp        time.Time `json:"timestamp"`
	CompetitorID     string    `json:"competitor_id"`
	ProductID        string    `json:"product_id"`
	URL              string    `json:"url"`
	OldPrice         *float64  `json:"old_price,omitempty"`
	NewPrice         float64   `json:"new_price"`
	Currency         string    `json:"currency"`
	OriginalPrice    float64   `json:"original_price"`
	OriginalCurrency string    `json:"original_currency"`
	StockStatus      string    `json:"stock_status"`
}

type RecommendedPriceUpdatedPayload struct {
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	Timestamp        time.Time `json:"timestamp"`
	ProductID        string    `json:"product_id"`
	RecommendedPrice float64   `json:"recommended_price"`
	CompetitorPrice  float64   `json:"competitor_price"`
	Currency         string    `json:"currency"`
	AppliedStrategy  string    `json:"applied_strategy"`
}

// CompetitorPriceChanged builds the outbox row for p, filling event metadata.
func CompetitorPriceChanged(p *CompetitorPriceChangedPayload) (*database.OutboxEvent, error) {
	stamp(&p.EventID, &p.EventType, &p.Timestamp, EventTypeCompetitorPriceChanged)
	return outboxEvent("competitor", p.CompetitorID, EventTypeCompetitorPriceChanged, p)
}

func RecommendedPriceUpdated(p *RecommendedPriceUpdatedPayload) (*database.OutboxEvent, error) {
	stamp(&p.EventID, &p.EventType, &p.Timestamp, EventTypeRecommendedPriceUpdated)
	return outboxEvent("product", p.ProductID, EventTypeRecommendedPriceUpdated, p)
}

func stamp(id, eventType *string, ts *time.Time, t EventType) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if *eventType == "" {
		*eventType = string(t)
	}
	if ts.IsZero() {
		*ts = time.Now().UTC()
	}
}

func outboxEvent(aggregateType, aggregateID string, t EventType, payload any) (*database.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", t, err)
	}

	return &database.OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     string(t),
		Payload:       data,
		TargetStream:  database.DefaultStream,
	}, nil
}
