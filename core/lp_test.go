package core

import (
	"math"
	"testing"
)

func TestOptimized_SingleRegionFullCoverage(t *testing.T) {
	o := testOptimizer()
	in := AllocationInput{
		Inventory:     []float64{0},
		DemandMean:    []float64{1000},
		DemandStd:     []float64{0},
		FraudProb:     []float64{0},
		TransportCost: []float64{5},
		SupplyTotal:   1000,
		Budget:        0,
	}

	res, err := o.Allocate(in, PolicyOptimized)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if res.Fallback {
		t.Fatal("LP fell back to proportional on a trivially feasible problem")
	}
	if math.Abs(res.Allocation[0]-1000) > 1e-6 {
		t.Fatalf("allocation = %v, want 1000 (allocating is cheaper than stocking out)", res.Allocation[0])
	}
}

func TestOptimized_ObjectiveNotWorseThanProportional(t *testing.T) {
	o := testOptimizer()
	in := AllocationInput{
		Inventory:     []float64{200, 0, 50, 300},
		DemandMean:    []float64{400, 250, 600, 150},
		DemandStd:     []float64{60, 37.5, 90, 22.5},
		FraudProb:     []float64{0.15, 0.6, 0.05, 0.3},
		TransportCost: []float64{0.4, 2.5, 1.1, 3.4},
		SupplyTotal:   800,
		Budget:        0,
	}

	for _, riskAverse := range []bool{false, true} {
		lpX, err := o.solveLP(in, riskAverse)
		if err != nil {
			t.Fatalf("solveLP(riskAverse=%v): %v", riskAverse, err)
		}
		propX, _ := o.proportional(in)
		o.clampAllocation(propX, in.DemandMean, in.SupplyTotal)

		lpObj := o.lpObjective(in, lpX, riskAverse)
		propObj := o.lpObjective(in, propX, riskAverse)
		if lpObj > propObj+1e-6 {
			t.Errorf("riskAverse=%v: LP objective %v worse than proportional %v", riskAverse, lpObj, propObj)
		}
	}
}

// Two regions under scarce supply: region 0 is cheap to reach but leaky,
// region 1 is remote but clean. Normalising transport by the max cost keeps
// both x coefficients under the stockout weight and the supply goes to the
// clean region; normalising by N pushes the remote region's coefficient past
// the stockout weight and the solver abandons it.
func TestLPNormalization_MaxCostNotRegionCount(t *testing.T) {
	o := testOptimizer()
	in := AllocationInput{
		Inventory:     []float64{0, 0},
		DemandMean:    []float64{1000, 1000},
		DemandStd:     []float64{0, 0},
		FraudProb:     []float64{0.9, 0.01},
		TransportCost: []float64{0.5, 3.0},
		SupplyTotal:   1000,
		Budget:        0,
	}

	byMaxCost, err := o.solveLPNormalized(in, maxCost(in.TransportCost), false)
	if err != nil {
		t.Fatalf("solveLPNormalized(maxCost): %v", err)
	}
	byN, err := o.solveLPNormalized(in, float64(len(in.DemandMean)), false)
	if err != nil {
		t.Fatalf("solveLPNormalized(N): %v", err)
	}

	if byMaxCost[1] < 900 {
		t.Errorf("max-cost normalisation: clean region got %v, want ~1000", byMaxCost[1])
	}
	if byN[1] > 100 {
		t.Errorf("N normalisation: clean region got %v, expected it abandoned", byN[1])
	}
	if math.Abs(byMaxCost[0]-byN[0]) < 100 {
		t.Errorf("normalisation choice did not change the allocation: %v vs %v", byMaxCost, byN)
	}
}

func TestAllocate_SolverFailureFallsBackToProportional(t *testing.T) {
	o := testOptimizer()
	// A non-finite demand entry makes the LP unsolvable; the allocation must
	// degrade to proportional and flag the period instead of erroring out.
	in := AllocationInput{
		Inventory:     []float64{0, 0},
		DemandMean:    []float64{math.NaN(), 100},
		DemandStd:     []float64{0, 15},
		FraudProb:     []float64{0.1, 0.1},
		TransportCost: []float64{1, 2},
		SupplyTotal:   200,
		Budget:        0,
	}

	for _, policy := range []Policy{PolicyOptimized, PolicyRiskAverse} {
		res, err := o.Allocate(in, policy)
		if err != nil {
			t.Fatalf("%s: Allocate: %v", policy, err)
		}
		if !res.Fallback {
			t.Errorf("%s: Fallback not set after solver failure", policy)
		}
		if !hasFlag(res.Flags, FlagSolverFallback) {
			t.Errorf("%s: expected %s flag, got %v", policy, FlagSolverFallback, res.Flags)
		}
		if len(res.Allocation) != 2 {
			t.Errorf("%s: fallback allocation has %d entries, want 2", policy, len(res.Allocation))
		}
	}
}

func TestRiskAverse_BuffersAgainstVolatileDemand(t *testing.T) {
	o := testOptimizer()
	// Identical means; region 1 is far more volatile. With ample supply the
	// risk-averse LP covers the inflated target of the volatile region.
	in := AllocationInput{
		Inventory:     []float64{0, 0},
		DemandMean:    []float64{500, 500},
		DemandStd:     []float64{5, 200},
		FraudProb:     []float64{0.05, 0.05},
		TransportCost: []float64{1, 1},
		SupplyTotal:   2000,
		Budget:        0,
	}

	x, err := o.solveLP(in, true)
	if err != nil {
		t.Fatalf("solveLP: %v", err)
	}
	if x[1] <= x[0] {
		t.Errorf("volatile region got %v <= stable region %v", x[1], x[0])
	}
	want := 500 + riskBufferZ*200
	if math.Abs(x[1]-want) > 1e-6 {
		t.Errorf("volatile region allocation = %v, want %v", x[1], want)
	}
}
