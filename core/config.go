package core

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// SimulationConfig carries every tunable of a run. All fields have working
// defaults; any subset can be overridden independently. Validation fails fast
// before the first period executes.
type SimulationConfig struct {
	// Horizon is the number of monthly periods. The calling surfaces
	// document 6-60; single-period runs are allowed for optimizer studies.
	Horizon int `json:"n_periods" mapstructure:"n_periods"`

	// DiscountFactor λ weights future period costs in the scalar total.
	DiscountFactor float64 `json:"discount_factor" mapstructure:"discount_factor"`

	// Cost weights. Should sum to approximately 1.
	Alpha float64 `json:"alpha" mapstructure:"alpha"` // transport
	Beta  float64 `json:"beta" mapstructure:"beta"`   // stockout
	Gamma float64 `json:"gamma" mapstructure:"gamma"` // leakage
	Delta float64 `json:"delta" mapstructure:"delta"` // equity

	// Fraud dynamics.
	InspectionEffectiveness float64 `json:"inspection_effectiveness" mapstructure:"inspection_effectiveness"` // η
	FraudShockScale         float64 `json:"fraud_shock_scale" mapstructure:"fraud_shock_scale"`               // ε ~ U(0, scale)

	// Supply and inspection budget.
	SupplyFraction  float64 `json:"supply_fraction" mapstructure:"supply_fraction"`
	InspectionCost  float64 `json:"inspection_cost" mapstructure:"inspection_cost"`
	BudgetPerPeriod float64 `json:"budget_per_period" mapstructure:"budget_per_period"`

	// Cost parameters.
	StockoutPenalty float64 `json:"stockout_penalty" mapstructure:"stockout_penalty"` // currency/kg

	// Governance and allocation limits.
	MinServiceLevel     float64 `json:"min_service_level" mapstructure:"min_service_level"`
	MaxAllocationRatio  float64 `json:"max_allocation_ratio" mapstructure:"max_allocation_ratio"`
	InspectionThreshold float64 `json:"inspection_threshold" mapstructure:"inspection_threshold"`
	CVaRConfidence      float64 `json:"cvar_confidence" mapstructure:"cvar_confidence"`

	// Policy selects the allocation variant.
	Policy Policy `json:"policy" mapstructure:"policy"`

	// Commodity selects which registry volumes seed base demand.
	Commodity Commodity `json:"commodity" mapstructure:"commodity"`

	// StartMonth is the calendar month of period 0 (0 = January).
	StartMonth int `json:"start_month" mapstructure:"start_month"`

	// Seed drives every random stream in the run.
	Seed int64 `json:"seed" mapstructure:"seed"`
}

// DefaultConfig returns the calibrated baseline configuration.
func DefaultConfig() SimulationConfig {
	return SimulationConfig{
		Horizon:                 24,
		DiscountFactor:          0.95,
		Alpha:                   0.25,
		Beta:                    0.35,
		Gamma:                   0.25,
		Delta:                   0.15,
		InspectionEffectiveness: 0.40,
		FraudShockScale:         0.03,
		SupplyFraction:          0.91,
		InspectionCost:          5000,
		BudgetPerPeriod:         50_000_000,
		StockoutPenalty:         50,
		MinServiceLevel:         0.70,
		MaxAllocationRatio:      2.0,
		InspectionThreshold:     0.65,
		CVaRConfidence:          0.95,
		Policy:                  PolicyOptimized,
		Commodity:               CommodityRice,
		StartMonth:              4,
		Seed:                    42,
	}
}

// Validate rejects a configuration before any period executes, naming the
// offending field.
func (c SimulationConfig) Validate() error {
	if c.Horizon < 1 {
		return fmt.Errorf("%w: n_periods must be >= 1, got %d", ErrInvalidConfig, c.Horizon)
	}
	if c.DiscountFactor <= 0 || c.DiscountFactor > 1 {
		return fmt.Errorf("%w: discount_factor must be in (0, 1], got %g", ErrInvalidConfig, c.DiscountFactor)
	}
	for _, w := range []struct {
		name  string
		value float64
	}{
		{"alpha", c.Alpha},
		{"beta", c.Beta},
		{"gamma", c.Gamma},
		{"delta", c.Delta},
	} {
		if w.value < 0 || w.value > 1 {
			return fmt.Errorf("%w: %s must be in [0, 1], got %g", ErrInvalidConfig, w.name, w.value)
		}
	}
	if sum := c.Alpha + c.Beta + c.Gamma + c.Delta; math.Abs(sum-1) > 0.05 {
		return fmt.Errorf("%w: cost weights must sum to ~1, got %g", ErrInvalidConfig, sum)
	}
	if c.InspectionEffectiveness < 0 || c.InspectionEffectiveness > 1 {
		return fmt.Errorf("%w: inspection_effectiveness must be in [0, 1], got %g", ErrInvalidConfig, c.InspectionEffectiveness)
	}
	if c.FraudShockScale < 0 || c.FraudShockScale > 0.20 {
		return fmt.Errorf("%w: fraud_shock_scale must be in [0, 0.20], got %g", ErrInvalidConfig, c.FraudShockScale)
	}
	if c.SupplyFraction <= 0 || c.SupplyFraction > 1 {
		return fmt.Errorf("%w: supply_fraction must be in (0, 1], got %g", ErrInvalidConfig, c.SupplyFraction)
	}
	if c.InspectionCost < 0 {
		return fmt.Errorf("%w: inspection_cost must be >= 0, got %g", ErrInvalidConfig, c.InspectionCost)
	}
	if c.BudgetPerPeriod < 0 {
		return fmt.Errorf("%w: budget_per_period must be >= 0, got %g", ErrInvalidConfig, c.BudgetPerPeriod)
	}
	if c.StockoutPenalty < 0 {
		return fmt.Errorf("%w: stockout_penalty must be >= 0, got %g", ErrInvalidConfig, c.StockoutPenalty)
	}
	if c.MinServiceLevel < 0 || c.MinServiceLevel > 1 {
		return fmt.Errorf("%w: min_service_level must be in [0, 1], got %g", ErrInvalidConfig, c.MinServiceLevel)
	}
	if c.MaxAllocationRatio < 1 {
		return fmt.Errorf("%w: max_allocation_ratio must be >= 1, got %g", ErrInvalidConfig, c.MaxAllocationRatio)
	}
	if c.InspectionThreshold < 0 || c.InspectionThreshold > 1 {
		return fmt.Errorf("%w: inspection_threshold must be in [0, 1], got %g", ErrInvalidConfig, c.InspectionThreshold)
	}
	if c.CVaRConfidence < 0.5 || c.CVaRConfidence >= 1 {
		return fmt.Errorf("%w: cvar_confidence must be in [0.5, 1), got %g", ErrInvalidConfig, c.CVaRConfidence)
	}
	if !c.Policy.Valid() {
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, c.Policy)
	}
	if _, err := ParseCommodity(string(c.Commodity)); err != nil {
		return fmt.Errorf("%w: unknown commodity %q", ErrInvalidConfig, c.Commodity)
	}
	if c.StartMonth < 0 || c.StartMonth > 11 {
		return fmt.Errorf("%w: start_month must be in [0, 11], got %d", ErrInvalidConfig, c.StartMonth)
	}
	return nil
}
