package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/pricewatch/internal/database"
	"github.com/maltedev/pricewatch/internal/models"
)

func TestCompetitorPriceChanged(t *testing.T) {
	competitorID := uuid.NewString()
	payload := &CompetitorPriceChangedPayload{
		CompetitorID:     competitorID,
		ProductID:        uuid.NewString(),
		OldPrice:         models.Float(100),
		NewPrice:         95,
		Currency:         "SAR",
		OriginalPrice:    25.33,
		OriginalCurrency: "USD",
		StockStatus:      string(models.StockInStock),
	}

	event, err := CompetitorPriceChanged(payload)
	require.NoError(t, err)

	assert.Equal(t, "competitor", event.AggregateType)
	assert.Equal(t, competitorID, event.AggregateID)
	assert.Equal(t, string(EventTypeCompetitorPriceChanged), event.EventType)
	assert.Equal(t, database.DefaultStream, event.TargetStream)

	_, err = uuid.Parse(payload.EventID)
	assert.NoError(t, err)
	assert.False(t, payload.Timestamp.IsZero())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	assert.Equal(t, "COMPETITOR_PRICE_CHANGED", decoded["event_type"])
	assert.Equal(t, 95.0, decoded["new_price"])
	assert.Equal(t, 100.0, decoded["old_price"])
	assert.Equal(t, "USD", decoded["original_currency"])
}

func TestCompetitorPriceChanged_FirstObservationOmitsOldPrice(t *testing.T) {
	event, err := CompetitorPriceChanged(&CompetitorPriceChangedPayload{CompetitorID: "c", NewPrice: 10})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	_, present := decoded["old_price"]
	assert.False(t, present)
}

func TestRecommendedPriceUpdated_KeepsProvidedMetadata(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := &RecommendedPriceUpdatedPayload{
		EventID:          "fixed-id",
		Timestamp:        ts,
		ProductID:        "p-1",
		RecommendedPrice: 94.99,
		CompetitorPrice:  99.99,
		Currency:         "SAR",
		AppliedStrategy:  "Undercut by SAR 5.00",
	}

	event, err := RecommendedPriceUpdated(payload)
	require.NoError(t, err)

	assert.Equal(t, "product", event.AggregateType)
	assert.Equal(t, "p-1", event.AggregateID)
	assert.Equal(t, "fixed-id", payload.EventID)
	assert.Equal(t, ts, payload.Timestamp)
	assert.Equal(t, string(EventTypeRecommendedPriceUpdated), payload.EventType)
}
