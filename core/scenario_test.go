package core

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestGenerate_Deterministic(t *testing.T) {
	a, err := NewScenarioGenerator(12, 42, CommodityRice).Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := NewScenarioGenerator(12, 42, CommodityRice).Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("identical parameters produced different scenarios")
	}
}

func TestGenerate_SeedChangesNoise(t *testing.T) {
	a, _ := NewScenarioGenerator(12, 42, CommodityRice).Generate()
	b, _ := NewScenarioGenerator(12, 43, CommodityRice).Generate()
	if reflect.DeepEqual(a.DemandMean, b.DemandMean) {
		t.Fatal("different seeds produced identical demand matrices")
	}
}

func TestGenerate_Shapes(t *testing.T) {
	const horizon = 18
	sc, err := NewScenarioGenerator(horizon, 7, CommodityRice).Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if sc.N() != 33 {
		t.Fatalf("N = %d, want the 33-district registry", sc.N())
	}
	if len(sc.DemandMean) != horizon || len(sc.DemandStd) != horizon || len(sc.SupplySchedule) != horizon {
		t.Fatalf("matrix horizon mismatch: %d/%d/%d, want %d",
			len(sc.DemandMean), len(sc.DemandStd), len(sc.SupplySchedule), horizon)
	}
	for p := 0; p < horizon; p++ {
		if len(sc.DemandMean[p]) != sc.N() || len(sc.DemandStd[p]) != sc.N() {
			t.Fatalf("period %d row width mismatch", p)
		}
		for i := range sc.DemandMean[p] {
			if sc.DemandMean[p][i] < 1 {
				t.Errorf("period %d region %d demand mean %v below floor", p, i, sc.DemandMean[p][i])
			}
			want := sc.DemandMean[p][i] * 0.15
			if math.Abs(sc.DemandStd[p][i]-want) > 1e-9 {
				t.Errorf("period %d region %d std %v, want CV-scaled %v", p, i, sc.DemandStd[p][i], want)
			}
		}
	}
	for i := range sc.InitialFraudProb {
		if p := sc.InitialFraudProb[i]; p < fraudFloor || p > fraudCeil {
			t.Errorf("initial fraud[%d] = %v outside bounds", i, p)
		}
		if sc.InitialInventory[i] <= 0 {
			t.Errorf("initial inventory[%d] = %v not positive", i, sc.InitialInventory[i])
		}
	}
}

func TestGenerate_SupplyFractionBounds(t *testing.T) {
	sc, err := NewScenarioGenerator(24, 11, CommodityRice).Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for p, supply := range sc.SupplySchedule {
		total := 0.0
		for _, d := range sc.DemandMean[p] {
			total += d
		}
		frac := supply / total
		if frac < 0.82-1e-9 || frac > 0.97+1e-9 {
			t.Errorf("period %d supply fraction %v outside [0.82, 0.97]", p, frac)
		}
	}
}

func TestGenerate_CommoditySelectsVolumes(t *testing.T) {
	rice, _ := NewScenarioGenerator(6, 42, CommodityRice).Generate()
	sugar, err := NewScenarioGenerator(6, 42, CommoditySugar).Generate()
	if err != nil {
		t.Fatalf("Generate(sugar): %v", err)
	}
	riceTotal, sugarTotal := 0.0, 0.0
	for i := range rice.DemandMean[0] {
		riceTotal += rice.DemandMean[0][i]
		sugarTotal += sugar.DemandMean[0][i]
	}
	if sugarTotal >= riceTotal {
		t.Errorf("sugar demand %v not below rice demand %v", sugarTotal, riceTotal)
	}
}

func TestGenerate_InvalidInputs(t *testing.T) {
	if _, err := NewScenarioGenerator(0, 42, CommodityRice).Generate(); !errors.Is(err, ErrInvalidHorizon) {
		t.Fatalf("expected ErrInvalidHorizon, got %v", err)
	}
	if _, err := NewScenarioGenerator(12, 42, Commodity("salt")).Generate(); !errors.Is(err, ErrUnknownCommodity) {
		t.Fatalf("expected ErrUnknownCommodity, got %v", err)
	}
}

func TestGenerate_CustomRegions(t *testing.T) {
	g := NewScenarioGenerator(6, 42, CommodityRice)
	g.Regions = []Region{
		{ID: "X1", Name: "One", DistKm: 50, RiceKg: 100_000, FraudSeed: 0.1},
		{ID: "X2", Name: "Two", DistKm: 150, RiceKg: 200_000, FraudSeed: 0.3},
	}
	sc, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sc.N() != 2 {
		t.Fatalf("N = %d, want 2", sc.N())
	}
	if sc.TransportCost[0] >= sc.TransportCost[1] {
		t.Errorf("transport cost not increasing with distance: %v", sc.TransportCost)
	}
}
