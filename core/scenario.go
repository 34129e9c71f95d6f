package core

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

var ErrInvalidHorizon = errors.New("invalid horizon")

// Fraud probabilities are clamped to an open-ish interval: a region is never
// certainly clean and never certainly fraudulent.
const (
	fraudFloor = 0.01
	fraudCeil  = 0.99
)

// Monthly seasonal demand multipliers, index 0 = January. Festive months
// (Sankranti, Ugadi, Bonalu, Dussehra, Diwali) run hot; the summer migration
// months run lean.
var seasonalMultiplier = [12]float64{
	1.10, // Jan  Sankranti
	1.02, // Feb
	1.12, // Mar  Ugadi
	0.97, // Apr  migration starts
	0.95, // May  baseline month
	0.94, // Jun
	1.05, // Jul  Bonalu
	1.00, // Aug
	1.03, // Sep
	1.08, // Oct  Dussehra
	1.10, // Nov  Diwali
	1.05, // Dec
}

// Per-period procurement fraction pattern (period 0 = start month). Tighter
// in the inter-season gap, looser after harvest. Scaled by the configured
// supply fraction relative to the 0.91 baseline.
var supplyFractionPattern = [12]float64{
	0.91, 0.88, 0.87, 0.89, 0.91, 0.93,
	0.94, 0.95, 0.93, 0.91, 0.90, 0.91,
}

const baselineSupplyFraction = 0.91

// Scenario holds every randomness-independent input of a run: static region
// data, the demand forecast matrices, and the supply schedule. Immutable once
// generated; demand itself is realized during simulation using the mean/std
// here as distribution parameters.
type Scenario struct {
	Commodity  Commodity `json:"commodity"`
	Horizon    int       `json:"horizon"`
	Seed       int64     `json:"seed"`
	StartMonth int       `json:"start_month"`

	Regions          []Region  `json:"regions"`
	TransportCost    []float64 `json:"transport_cost"`     // [N] currency/kg
	InitialInventory []float64 `json:"initial_inventory"`  // [N] kg
	InitialFraudProb []float64 `json:"initial_fraud_prob"` // [N] in [0.01, 0.99]

	DemandMean     [][]float64 `json:"demand_mean"`     // [T][N] kg
	DemandStd      [][]float64 `json:"demand_std"`      // [T][N] kg
	SupplySchedule []float64   `json:"supply_schedule"` // [T] kg
}

// N returns the number of regions.
func (s *Scenario) N() int { return len(s.Regions) }

// RegionNames returns the region names in registry order.
func (s *Scenario) RegionNames() []string {
	names := make([]string, len(s.Regions))
	for i, r := range s.Regions {
		names[i] = r.Name
	}
	return names
}

// ScenarioGenerator produces a Scenario as a pure function of its parameters:
// identical parameters yield a bit-identical scenario.
type ScenarioGenerator struct {
	Horizon   int
	Seed      int64
	Commodity Commodity

	// StartMonth is the calendar month of period 0 (0 = January). Defaults
	// to 4 (May), the month the registry's distribution actuals come from.
	StartMonth int

	// SupplyFraction scales the procurement pattern; 0.91 reproduces the
	// historical release behaviour.
	SupplyFraction float64

	// DemandCV is the coefficient of variation applied to every demand mean.
	DemandCV float64

	// AnnualGrowth compounds once per 12 periods.
	AnnualGrowth float64

	// Regions defaults to the built-in registry when nil.
	Regions []Region
}

// NewScenarioGenerator returns a generator with the calibrated defaults.
func NewScenarioGenerator(horizon int, seed int64, commodity Commodity) *ScenarioGenerator {
	return &ScenarioGenerator{
		Horizon:        horizon,
		Seed:           seed,
		Commodity:      commodity,
		StartMonth:     4,
		SupplyFraction: baselineSupplyFraction,
		DemandCV:       0.15,
		AnnualGrowth:   1.02,
	}
}

// Generate builds the scenario. The only error conditions are a non-positive
// horizon and an unsupported commodity.
func (g *ScenarioGenerator) Generate() (*Scenario, error) {
	if g.Horizon <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, g.Horizon)
	}
	switch g.Commodity {
	case CommodityRice, CommodityWheat, CommoditySugar:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommodity, g.Commodity)
	}

	regions := g.Regions
	if regions == nil {
		regions = DefaultRegions()
	}
	n, t := len(regions), g.Horizon

	// One seeded stream drives all scenario-level noise; realized demand and
	// fraud shocks use separate per-period streams owned by the engine.
	src := rand.New(rand.NewPCG(uint64(g.Seed), scenarioStream))
	meanNoise := distuv.Normal{Mu: 1.0, Sigma: 0.015, Src: src}
	invNoise := distuv.Uniform{Min: 0.85, Max: 1.15, Src: src}
	supNoise := distuv.Uniform{Min: -0.01, Max: 0.01, Src: src}

	sc := &Scenario{
		Commodity:        g.Commodity,
		Horizon:          t,
		Seed:             g.Seed,
		StartMonth:       g.StartMonth,
		Regions:          regions,
		TransportCost:    make([]float64, n),
		InitialInventory: make([]float64, n),
		InitialFraudProb: make([]float64, n),
		DemandMean:       make([][]float64, t),
		DemandStd:        make([][]float64, t),
		SupplySchedule:   make([]float64, t),
	}
	for p := 0; p < t; p++ {
		sc.DemandMean[p] = make([]float64, n)
		sc.DemandStd[p] = make([]float64, n)
	}

	for i, r := range regions {
		sc.TransportCost[i] = r.TransportCost()
		sc.InitialFraudProb[i] = clamp(r.FraudSeed, fraudFloor, fraudCeil)

		base := r.BaseDemandKg(g.Commodity)
		for p := 0; p < t; p++ {
			month := (g.StartMonth + p) % 12
			growth := pow(g.AnnualGrowth, p/12)
			mu := base * seasonalMultiplier[month] * growth * meanNoise.Rand()
			if mu < 1 {
				mu = 1
			}
			sc.DemandMean[p][i] = mu
			sc.DemandStd[p][i] = mu * g.DemandCV
		}
	}

	// 1.8 months of buffer stock against period-0 demand, with warehouse
	// variation.
	for i := range regions {
		sc.InitialInventory[i] = sc.DemandMean[0][i] * 1.8 * invNoise.Rand()
	}

	scale := g.SupplyFraction / baselineSupplyFraction
	for p := 0; p < t; p++ {
		total := 0.0
		for i := 0; i < n; i++ {
			total += sc.DemandMean[p][i]
		}
		frac := supplyFractionPattern[p%12]*scale + supNoise.Rand()
		frac = clamp(frac, 0.82*scale, 0.97*scale)
		sc.SupplySchedule[p] = total * frac
	}

	return sc, nil
}

const scenarioStream = 0

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pow is an integer-exponent power; cheaper and exact for the small
// exponents the growth factor sees.
func pow(base float64, exp int) float64 {
	out := 1.0
	for ; exp > 0; exp-- {
		out *= base
	}
	return out
}
