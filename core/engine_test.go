package core

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
)

// uniformScenario is a hand-built 3-region scenario with identical forecast
// demand everywhere and supply exactly equal to total demand.
func uniformScenario(horizon int) *Scenario {
	sc := &Scenario{
		Commodity:  CommodityRice,
		Horizon:    horizon,
		Seed:       42,
		StartMonth: 4,
		Regions: []Region{
			{ID: "R01", Name: "Alpha", Beneficiaries: 1000, Shops: 10},
			{ID: "R02", Name: "Beta", Beneficiaries: 1000, Shops: 10},
			{ID: "R03", Name: "Gamma", Beneficiaries: 1000, Shops: 10},
		},
		TransportCost:    []float64{1, 1, 1},
		InitialInventory: []float64{0, 0, 0},
		InitialFraudProb: []float64{0.01, 0.01, 0.01},
		DemandMean:       make([][]float64, horizon),
		DemandStd:        make([][]float64, horizon),
		SupplySchedule:   make([]float64, horizon),
	}
	for p := 0; p < horizon; p++ {
		sc.DemandMean[p] = []float64{100, 100, 100}
		sc.DemandStd[p] = []float64{10, 10, 10}
		sc.SupplySchedule[p] = 300
	}
	return sc
}

func TestRun_UniformDemandProportional(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 6
	cfg.Policy = PolicyProportional
	cfg.FraudShockScale = 0 // keep every region at the fraud floor

	eng, err := NewEngine(uniformScenario(cfg.Horizon), cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.NPeriods != cfg.Horizon {
		t.Fatalf("NPeriods = %d, want %d", res.NPeriods, cfg.Horizon)
	}

	for _, pr := range res.Periods {
		for i, x := range pr.Allocation {
			if math.Abs(x-100) > 1e-9 {
				t.Errorf("period %d allocation[%d] = %v, want 100", pr.Period, i, x)
			}
		}
		if pr.NInspections != 0 {
			t.Errorf("period %d placed %d inspections with all regions at the floor", pr.Period, pr.NInspections)
		}
		for i, p := range pr.FraudProbEnd {
			if math.Abs(p-0.01) > 1e-12 {
				t.Errorf("period %d fraud[%d] = %v, want 0.01 with zero shock scale", pr.Period, i, p)
			}
		}
	}
	// Inventory chains across periods.
	for p := 1; p < len(res.Periods); p++ {
		if !reflect.DeepEqual(res.Periods[p].InventoryStart, res.Periods[p-1].InventoryEnd) {
			t.Fatalf("period %d inventory start does not chain from period %d end", p, p-1)
		}
	}
}

// captureRecorder counts engine metric callbacks.
type captureRecorder struct {
	runs      int
	periods   int
	fallbacks int
	status    string
}

func (r *captureRecorder) RecordRun(_, status string, _ float64)           { r.runs++; r.status = status }
func (r *captureRecorder) ObservePeriod(float64)                           { r.periods++ }
func (r *captureRecorder) IncSolverFallback()                              { r.fallbacks++ }
func (r *captureRecorder) SetRunSummary(string, float64, float64, float64) {}

func TestRun_SolverFailureDegradesPeriodNotRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 2
	cfg.Policy = PolicyOptimized
	cfg.FraudShockScale = 0

	sc := uniformScenario(cfg.Horizon)
	sc.DemandMean[0][0] = math.NaN() // breaks the period-0 LP only

	rec := &captureRecorder{}
	eng, err := NewEngine(sc, cfg, WithMetrics(rec))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run must complete despite a solver failure, got %v", err)
	}

	if !res.Periods[0].SolverFallback {
		t.Error("period 0 not marked as solver fallback")
	}
	found := false
	for _, f := range res.Periods[0].Flags {
		if f == FlagSolverFallback {
			found = true
		}
	}
	if !found {
		t.Errorf("period 0 flags = %v, want %s", res.Periods[0].Flags, FlagSolverFallback)
	}
	if res.Periods[1].SolverFallback {
		t.Error("period 1 marked as fallback despite a solvable LP")
	}
	if rec.fallbacks != 1 {
		t.Errorf("fallback metric incremented %d times, want 1", rec.fallbacks)
	}
	if rec.runs != 1 || rec.status != "ok" {
		t.Errorf("run recorded %d times with status %q, want once with ok", rec.runs, rec.status)
	}
	if rec.periods != cfg.Horizon {
		t.Errorf("period metric observed %d times, want %d", rec.periods, cfg.Horizon)
	}
}

func TestRun_ShockLiftsFloorRegionsIntoInspection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 4
	cfg.Policy = PolicyProportional

	eng, err := NewEngine(uniformScenario(cfg.Horizon), cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Period 0: every region sits at the fraud floor and carries no signal.
	if got := res.Periods[0].NInspections; got != 0 {
		t.Errorf("period 0 placed %d inspections with all regions at the floor", got)
	}
	// Once shocks lift fraud above the floor, the budgeted ROI phase covers
	// every region under the default budget.
	for _, pr := range res.Periods[1:] {
		if pr.NInspections != 3 {
			t.Errorf("period %d placed %d inspections, want 3 once fraud is above the floor",
				pr.Period, pr.NInspections)
		}
	}
}

func TestRun_InvariantsHoldForEveryPolicy(t *testing.T) {
	for _, policy := range AllPolicies() {
		cfg := DefaultConfig()
		cfg.Horizon = 6
		cfg.Seed = 7
		cfg.Policy = policy

		res, err := RunSimulation(context.Background(), cfg)
		if err != nil {
			t.Fatalf("%s: RunSimulation: %v", policy, err)
		}
		o := NewAllocationOptimizer(cfg)
		for _, pr := range res.Periods {
			supplyTol := 1e-9 * maxf(pr.SupplyTotalKg, 1)
			if pr.TotalAllocatedKg > pr.SupplyTotalKg+supplyTol {
				t.Errorf("%s period %d: allocated %v exceeds supply %v",
					policy, pr.Period, pr.TotalAllocatedKg, pr.SupplyTotalKg)
			}
			for i := range pr.Allocation {
				if pr.Allocation[i] < 0 {
					t.Errorf("%s period %d: negative allocation[%d]", policy, pr.Period, i)
				}
				capKg := o.MaxRatio * maxf(pr.DemandMean[i], 1)
				if pr.Allocation[i] > capKg*(1+1e-9) {
					t.Errorf("%s period %d: allocation[%d] = %v exceeds cap %v",
						policy, pr.Period, i, pr.Allocation[i], capKg)
				}
				if pr.InventoryEnd[i] < 0 {
					t.Errorf("%s period %d: negative inventory[%d]", policy, pr.Period, i)
				}
				if p := pr.FraudProbEnd[i]; p < fraudFloor || p > fraudCeil {
					t.Errorf("%s period %d: fraud[%d] = %v outside [%v, %v]",
						policy, pr.Period, i, p, fraudFloor, fraudCeil)
				}
			}
			if pr.CostTotal < 0 {
				t.Errorf("%s period %d: negative total cost %v", policy, pr.Period, pr.CostTotal)
			}
		}
	}
}

func TestRun_DeterministicForFixedSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 4
	cfg.Policy = PolicyOptimized

	first, err := RunSimulation(context.Background(), cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := RunSimulation(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first.Periods, second.Periods) {
		t.Fatal("identical seed and config produced different period records")
	}
	if first.TotalDiscountedCost != second.TotalDiscountedCost {
		t.Fatalf("discounted cost differs: %v vs %v",
			first.TotalDiscountedCost, second.TotalDiscountedCost)
	}
}

func TestRun_RealizedDemandIdenticalAcrossPolicies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 4

	sc, err := scenarioFromConfig(cfg)
	if err != nil {
		t.Fatalf("scenarioFromConfig: %v", err)
	}

	run := func(policy Policy) *SimulationResult {
		runCfg := cfg
		runCfg.Policy = policy
		eng, err := NewEngine(sc, runCfg)
		if err != nil {
			t.Fatalf("%s: NewEngine: %v", policy, err)
		}
		res, err := eng.Run(context.Background())
		if err != nil {
			t.Fatalf("%s: Run: %v", policy, err)
		}
		return res
	}

	prop := run(PolicyProportional)
	equity := run(PolicyEquityFirst)
	for p := range prop.Periods {
		if !reflect.DeepEqual(prop.Periods[p].DemandRealized, equity.Periods[p].DemandRealized) {
			t.Fatalf("period %d: realized demand differs between policies", p)
		}
	}
}

func TestRun_CVaRAtLeastMeanPeriodCost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 12

	res, err := RunSimulation(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RunSimulation: %v", err)
	}
	mean := sum(res.CostSeries) / float64(len(res.CostSeries))
	if res.CVaRCost < mean-1e-9 {
		t.Fatalf("CVaR %v below mean period cost %v", res.CVaRCost, mean)
	}
}

func TestCVaR(t *testing.T) {
	costs := []float64{4, 1, 3, 2, 5, 6, 7, 8, 9, 10}
	if got := cvar(costs, 0.90); got != 10 {
		t.Errorf("cvar(conf=0.90) = %v, want 10", got)
	}
	if got := cvar([]float64{1, 2, 3, 4}, 0.50); got != 3.5 {
		t.Errorf("cvar(conf=0.50) = %v, want 3.5", got)
	}
	if got := cvar([]float64{5}, 0.95); got != 5 {
		t.Errorf("cvar single period = %v, want 5", got)
	}
	if got := cvar(nil, 0.95); got != 0 {
		t.Errorf("cvar empty = %v, want 0", got)
	}
}

func TestRunSimulation_RejectsInvalidConfigBeforeRunning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 0
	if _, err := RunSimulation(context.Background(), cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewEngine_ScenarioMustCoverHorizon(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 12
	if _, err := NewEngine(uniformScenario(6), cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewEngine(nil, cfg); !errors.Is(err, ErrNilScenario) {
		t.Fatalf("expected ErrNilScenario, got %v", err)
	}
}

func TestComparePolicies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 3

	cmp, err := ComparePolicies(context.Background(), cfg)
	if err != nil {
		t.Fatalf("ComparePolicies: %v", err)
	}
	if len(cmp.Results) != len(AllPolicies()) {
		t.Fatalf("got %d policy summaries, want %d", len(cmp.Results), len(AllPolicies()))
	}
	for _, policy := range AllPolicies() {
		s, ok := cmp.Results[policy]
		if !ok {
			t.Fatalf("missing summary for %s", policy)
		}
		if s.Policy != policy {
			t.Errorf("summary under key %s reports policy %s", policy, s.Policy)
		}
		if len(s.CostSeries) != cfg.Horizon {
			t.Errorf("%s: cost series length %d, want %d", policy, len(s.CostSeries), cfg.Horizon)
		}
	}
	if cmp.Horizon != cfg.Horizon || cmp.Seed != cfg.Seed {
		t.Errorf("comparison header %+v does not echo the config", cmp)
	}
}
