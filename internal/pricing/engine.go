package pricing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/maltedev/pricewatch/internal/parser"
)

// MainProduct is the seller's own product. Price and Cost are nil when unknown.
type MainProduct struct {
	Price    *float64 `json:"price"`
	Currency string   `json:"currency"`
	Cost     *float64 `json:"cost"`
}

// Competitor carries a competitor price already converted to the main
// product's currency.
type Competitor struct {
	CurrentPrice *float64 `json:"currentPrice"`
}

type Result struct {
	RecommendedPrice float64 `json:"recommendedPrice"`
	AppliedStrategy  string  `json:"appliedStrategy"`
	CompetitorPrice  float64 `json:"competitorPrice"`
}

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// CalculateRecommendedPrice returns nil when no recommendation is possible:
// no competitors, unknown price or cost, or no competitor with a usable price.
func CalculateRecommendedPrice(main MainProduct, competitors []Competitor, strategy StrategyConfig) *Result {
	if len(competitors) == 0 || main.Price == nil || main.Cost == nil {
		return nil
	}

	prices := usablePrices(competitors)
	if len(prices) == 0 {
		return nil
	}

	base := basePrice(prices, strategy.CompetitorType)
	adjustment := decimal.NewFromFloat(strategy.AdjustmentValue)

	var recommended decimal.Decimal
	var description string
	switch strategy.StrategyType {
	case StrategyLower:
		if strategy.AdjustmentType == AdjustmentFixed {
			recommended = base.Sub(adjustment)
			description = fmt.Sprintf("Undercut by %s %.2f", main.Currency, strategy.AdjustmentValue)
		} else {
			recommended = base.Mul(one.Sub(adjustment.Div(hundred)))
			description = fmt.Sprintf("Undercut by %s%%", parser.FormatPlain(strategy.AdjustmentValue))
		}
	case StrategyHigher:
		if strategy.AdjustmentType == AdjustmentFixed {
			recommended = base.Add(adjustment)
			description = fmt.Sprintf("Premium by %s %.2f", main.Currency, strategy.AdjustmentValue)
		} else {
			recommended = base.Mul(one.Add(adjustment.Div(hundred)))
			description = fmt.Sprintf("Premium by %s%%", parser.FormatPlain(strategy.AdjustmentValue))
		}
	default:
		recommended = base
		description = "Match competitor price"
	}

	if recommended.IsNegative() {
		recommended = decimal.Zero
	}

	cost := decimal.NewFromFloat(*main.Cost)
	if c := strategy.MinPriceConstraint; c != nil {
		recommended = decimal.Max(recommended, c.bound(cost))
	}
	if c := strategy.MaxPriceConstraint; c != nil {
		recommended = decimal.Min(recommended, c.bound(cost))
	}

	return &Result{
		RecommendedPrice: recommended.Round(2).InexactFloat64(),
		AppliedStrategy:  description,
		CompetitorPrice:  base.InexactFloat64(),
	}
}

func (c *Constraint) bound(cost decimal.Decimal) decimal.Decimal {
	v := decimal.NewFromFloat(c.Value)
	if c.Type == AdjustmentFixed {
		return cost.Add(v)
	}
	return cost.Mul(one.Add(v.Div(hundred)))
}

func usablePrices(competitors []Competitor) []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(competitors))
	for _, c := range competitors {
		if c.CurrentPrice == nil || math.IsNaN(*c.CurrentPrice) || math.IsInf(*c.CurrentPrice, 0) {
			continue
		}
		prices = append(prices, decimal.NewFromFloat(*c.CurrentPrice))
	}
	return prices
}

func basePrice(prices []decimal.Decimal, competitorType CompetitorType) decimal.Decimal {
	switch competitorType {
	case CompetitorCheapest:
		return decimal.Min(prices[0], prices[1:]...)
	case CompetitorMostExpensive:
		return decimal.Max(prices[0], prices[1:]...)
	default:
		return decimal.Sum(prices[0], prices[1:]...).Div(decimal.NewFromInt(int64(len(prices))))
	}
}
