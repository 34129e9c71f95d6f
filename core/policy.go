package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownPolicy   = errors.New("unknown policy")
	ErrBadAllocInput   = errors.New("invalid allocation input")
	ErrVectorLengthMix = errors.New("allocation input vectors differ in length")
)

// Policy selects one of the closed set of allocation variants. Each variant
// is a pure function over the same period-state input; the shared clamp and
// inspection passes apply regardless of variant.
type Policy string

const (
	// PolicyProportional splits supply proportional to forecast demand.
	// Ignores fraud and existing inventory.
	PolicyProportional Policy = "proportional"
	// PolicyOptimized solves a single-period cost-minimizing LP.
	PolicyOptimized Policy = "optimized"
	// PolicyEquityFirst targets a uniform post-allocation service ratio.
	PolicyEquityFirst Policy = "equity_first"
	// PolicyRiskAverse is the LP with variance-inflated stockout weights and
	// a 95th-percentile demand buffer.
	PolicyRiskAverse Policy = "risk_averse"
)

// AllPolicies lists the variants in comparison order.
func AllPolicies() []Policy {
	return []Policy{PolicyProportional, PolicyOptimized, PolicyEquityFirst, PolicyRiskAverse}
}

// Valid reports whether p names a known variant.
func (p Policy) Valid() bool {
	switch p {
	case PolicyProportional, PolicyOptimized, PolicyEquityFirst, PolicyRiskAverse:
		return true
	}
	return false
}

// ParsePolicy normalises a policy name.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
	return p, nil
}

// AllocationInput is one period's read-only state as seen by the optimizer.
// All vectors have length N; the optimizer never mutates them.
type AllocationInput struct {
	Inventory     []float64 // kg on hand per region
	DemandMean    []float64 // forecast mean, kg
	DemandStd     []float64 // forecast std, kg
	FraudProb     []float64 // in [0.01, 0.99]
	TransportCost []float64 // currency/kg
	SupplyTotal   float64   // kg available this period
	Budget        float64   // inspection budget, currency
}

func (in AllocationInput) validate() error {
	n := len(in.Inventory)
	if n == 0 {
		return fmt.Errorf("%w: empty input", ErrBadAllocInput)
	}
	if len(in.DemandMean) != n || len(in.DemandStd) != n ||
		len(in.FraudProb) != n || len(in.TransportCost) != n {
		return fmt.Errorf("%w: n=%d", ErrVectorLengthMix, n)
	}
	if in.SupplyTotal < 0 {
		return fmt.Errorf("%w: negative supply %g", ErrBadAllocInput, in.SupplyTotal)
	}
	if in.Budget < 0 {
		return fmt.Errorf("%w: negative budget %g", ErrBadAllocInput, in.Budget)
	}
	return nil
}

// Degeneracy and recovery flags recorded on the period result so a caller can
// tell a degraded period from a clean one.
const (
	FlagSolverFallback     = "solver_fallback"
	FlagZeroTotalDemand    = "zero_total_demand"
	FlagZeroTotalShortfall = "zero_total_shortfall"
)

// AllocationResult is the optimizer's decision for one period.
type AllocationResult struct {
	Allocation []float64 // kg per region
	Inspect    []bool    // inspection decision per region
	Fallback   bool      // LP failed, proportional used instead
	Flags      []string  // degeneracy / recovery markers
}

// AllocationOptimizer decides per-period allocations and inspections. It is
// stateless across periods; all history enters through the input.
type AllocationOptimizer struct {
	Alpha float64 // transport weight
	Beta  float64 // stockout weight
	Gamma float64 // leakage weight

	StockoutPenalty     float64
	InspectionCost      float64
	MaxRatio            float64
	InspectionThreshold float64
}

// NewAllocationOptimizer builds an optimizer from the run configuration.
func NewAllocationOptimizer(cfg SimulationConfig) *AllocationOptimizer {
	return &AllocationOptimizer{
		Alpha:               cfg.Alpha,
		Beta:                cfg.Beta,
		Gamma:               cfg.Gamma,
		StockoutPenalty:     cfg.StockoutPenalty,
		InspectionCost:      cfg.InspectionCost,
		MaxRatio:            cfg.MaxAllocationRatio,
		InspectionThreshold: cfg.InspectionThreshold,
	}
}

// Allocate produces the allocation vector and inspection decision for one
// period under the given policy. Postconditions hold for every policy:
// allocations are non-negative, total at most SupplyTotal, and each region is
// capped at MaxRatio times its forecast demand.
func (o *AllocationOptimizer) Allocate(in AllocationInput, policy Policy) (AllocationResult, error) {
	if err := in.validate(); err != nil {
		return AllocationResult{}, err
	}

	var (
		x     []float64
		flags []string
		fell  bool
	)
	switch policy {
	case PolicyProportional:
		x, flags = o.proportional(in)
	case PolicyEquityFirst:
		x, flags = o.equityFirst(in)
	case PolicyOptimized:
		lx, err := o.solveLP(in, false)
		if err != nil {
			x, flags = o.proportional(in)
			flags = append(flags, FlagSolverFallback)
			fell = true
		} else {
			x = lx
		}
	case PolicyRiskAverse:
		lx, err := o.solveLP(in, true)
		if err != nil {
			x, flags = o.proportional(in)
			flags = append(flags, FlagSolverFallback)
			fell = true
		} else {
			x = lx
		}
	default:
		return AllocationResult{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}

	o.clampAllocation(x, in.DemandMean, in.SupplyTotal)
	y := o.decideInspections(in.FraudProb, x, in.TransportCost, in.Budget)

	return AllocationResult{Allocation: x, Inspect: y, Fallback: fell, Flags: flags}, nil
}

// proportional allocates supply proportional to forecast demand. Zero total
// demand degrades to an equal split.
func (o *AllocationOptimizer) proportional(in AllocationInput) ([]float64, []string) {
	n := len(in.DemandMean)
	x := make([]float64, n)
	total := 0.0
	for _, d := range in.DemandMean {
		total += d
	}
	if total <= 0 {
		for i := range x {
			x[i] = in.SupplyTotal / float64(n)
		}
		return x, []string{FlagZeroTotalDemand}
	}
	for i, d := range in.DemandMean {
		x[i] = d / total * in.SupplyTotal
	}
	return x, nil
}

// equityFirst targets a uniform service ratio τ = min(1, S/Σ shortfall),
// gives each region max(0, τ·D̂_i − I_i), and splits any leftover equally.
// Ignores fraud entirely.
func (o *AllocationOptimizer) equityFirst(in AllocationInput) ([]float64, []string) {
	n := len(in.DemandMean)
	x := make([]float64, n)

	totalShortfall := 0.0
	for i := range in.DemandMean {
		if s := in.DemandMean[i] - in.Inventory[i]; s > 0 {
			totalShortfall += s
		}
	}
	if totalShortfall <= 0 {
		// Inventory already covers everything; keep stock moving with an
		// equal base allocation.
		for i := range x {
			x[i] = in.SupplyTotal / float64(n)
		}
		return x, []string{FlagZeroTotalShortfall}
	}

	tau := in.SupplyTotal / totalShortfall
	if tau > 1 {
		tau = 1
	}
	used := 0.0
	for i := range x {
		if v := tau*in.DemandMean[i] - in.Inventory[i]; v > 0 {
			x[i] = v
			used += v
		}
	}
	if leftover := in.SupplyTotal - used; leftover > 0 {
		share := leftover / float64(n)
		for i := range x {
			x[i] += share
		}
	}
	return x, nil
}

// clampAllocation applies the shared postcondition pass: per-region
// anti-hoarding cap, non-negativity, and renormalisation to the supply total.
func (o *AllocationOptimizer) clampAllocation(x, demandMean []float64, supplyTotal float64) {
	total := 0.0
	for i := range x {
		capKg := o.MaxRatio * maxf(demandMean[i], 1)
		x[i] = clamp(x[i], 0, capKg)
		total += x[i]
	}
	if total > supplyTotal && total > 0 {
		scale := supplyTotal / total
		for i := range x {
			x[i] *= scale
		}
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
