// Package pricing computes a recommended selling price from competitor
// prices and a declarative strategy. It performs no I/O.
package pricing

import (
	"errors"
	"fmt"
)

type StrategyType string

const (
	StrategyLower  StrategyType = "lower"
	StrategyMatch  StrategyType = "match"
	StrategyHigher StrategyType = "higher"
)

type CompetitorType string

const (
	CompetitorCheapest      CompetitorType = "cheapest"
	CompetitorMostExpensive CompetitorType = "most_expensive"
	CompetitorAverage       CompetitorType = "average"
)

type AdjustmentType string

const (
	AdjustmentFixed   AdjustmentType = "fixed"
	AdjustmentPercent AdjustmentType = "percent"
)

// Constraint bounds the recommended price relative to the product cost:
// cost+Value for fixed, cost*(1+Value/100) for percent.
type Constraint struct {
	Type  AdjustmentType `json:"type"`
	Value float64        `json:"value"`
}

type StrategyConfig struct {
	StrategyType       StrategyType   `json:"strategyType"`
	CompetitorType     CompetitorType `json:"competitorType"`
	AdjustmentType     AdjustmentType `json:"adjustmentType"`
	AdjustmentValue    float64        `json:"adjustmentValue"`
	MinPriceConstraint *Constraint    `json:"minPriceConstraint,omitempty"`
	MaxPriceConstraint *Constraint    `json:"maxPriceConstraint,omitempty"`
}

var ErrInvalidStrategy = errors.New("invalid pricing strategy")

// Validate checks enum values and non-negative amounts. An empty competitor
// type is allowed and means average. Inconsistent min/max constraints are
// accepted; max is applied last and wins.
func (c StrategyConfig) Validate() error {
	switch c.StrategyType {
	case StrategyLower, StrategyMatch, StrategyHigher:
	default:
		return fmt.Errorf("%w: unknown strategyType %q", ErrInvalidStrategy, c.StrategyType)
	}
	switch c.CompetitorType {
	case CompetitorCheapest, CompetitorMostExpensive, CompetitorAverage, "":
	default:
		return fmt.Errorf("%w: unknown competitorType %q", ErrInvalidStrategy, c.CompetitorType)
	}
	if c.StrategyType != StrategyMatch {
		if err := validateAdjustment("adjustmentType", c.AdjustmentType); err != nil {
			return err
		}
	}
	if c.AdjustmentValue < 0 {
		return fmt.Errorf("%w: adjustmentValue must be >= 0", ErrInvalidStrategy)
	}
	for name, con := range map[string]*Constraint{"minPriceConstraint": c.MinPriceConstraint, "maxPriceConstraint": c.MaxPriceConstraint} {
		if con == nil {
			continue
		}
		if err := validateAdjustment(name+".type", con.Type); err != nil {
			return err
		}
		if con.Value < 0 {
			return fmt.Errorf("%w: %s.value must be >= 0", ErrInvalidStrategy, name)
		}
	}
	return nil
}

func validateAdjustment(field string, t AdjustmentType) error {
	switch t {
	case AdjustmentFixed, AdjustmentPercent:
		return nil
	}
	return fmt.Errorf("%w: unknown %s %q", ErrInvalidStrategy, field, t)
}
