package core

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// z-score of the 95th percentile, used for the risk-averse demand buffer.
const riskBufferZ = 1.645

// solveLP runs the single-period allocation LP:
//
//	min Σ_i (α·c_i/c_max + γ·p_i)·x_i + β_i·s_i
//	s.t. x_i + s_i ≥ max(0, target_i − I_i)   (cover shortfall or pay slack)
//	     Σ x_i ≤ S_t
//	     0 ≤ x_i ≤ maxRatio·max(target_i, 1)
//	     s_i ≥ 0
//
// For the risk-averse variant the shortfall target is the 95th-percentile
// demand D̂_i + 1.645·σ_i and the stockout weight is inflated by the demand
// coefficient of variation, β_i = β·(1 + σ_i/D̂_i).
//
// The transport term is normalised by the maximum regional cost so it stays
// weight-comparable with β. Normalising by N instead makes every stockout
// roughly N times cheaper than hauling a kg anywhere and the solver quietly
// stops allocating; see TestLPNormalization_MaxCostNotRegionCount.
func (o *AllocationOptimizer) solveLP(in AllocationInput, riskAverse bool) ([]float64, error) {
	return o.solveLPNormalized(in, maxCost(in.TransportCost), riskAverse)
}

// solveLPNormalized is solveLP with an explicit transport normalisation
// constant, split out so the normalisation choice is testable.
func (o *AllocationOptimizer) solveLPNormalized(in AllocationInput, costNorm float64, riskAverse bool) ([]float64, error) {
	n := len(in.DemandMean)
	if costNorm <= 0 {
		costNorm = 1
	}

	target := make([]float64, n)
	xCost := make([]float64, n)
	sCost := make([]float64, n)
	capKg := make([]float64, n)
	for i := 0; i < n; i++ {
		target[i] = in.DemandMean[i]
		sCost[i] = o.Beta
		if riskAverse {
			target[i] += riskBufferZ * in.DemandStd[i]
			cv := 0.0
			if in.DemandMean[i] > 0 {
				cv = in.DemandStd[i] / in.DemandMean[i]
			}
			sCost[i] = o.Beta * (1 + cv)
		}
		xCost[i] = o.Alpha*in.TransportCost[i]/costNorm + o.Gamma*in.FraudProb[i]
		capKg[i] = o.MaxRatio * maxf(target[i], 1)
	}

	// Standard form for lp.Simplex: min c·v s.t. A·v = b, v ≥ 0, with
	// v = [x (N), s (N), r (N shortfall surplus), w (supply slack), u (N cap slacks)]:
	//
	//	x_i + s_i − r_i = shortfall_i
	//	Σ x_i + w       = S_t
	//	x_i + u_i       = cap_i
	nVar := 4*n + 1
	nRow := 2*n + 1
	c := make([]float64, nVar)
	copy(c[:n], xCost)
	copy(c[n:2*n], sCost)

	a := mat.NewDense(nRow, nVar, nil)
	b := make([]float64, nRow)
	for i := 0; i < n; i++ {
		shortfall := target[i] - in.Inventory[i]
		if shortfall < 0 {
			shortfall = 0
		}
		a.Set(i, i, 1)
		a.Set(i, n+i, 1)
		a.Set(i, 2*n+i, -1)
		b[i] = shortfall
	}
	for i := 0; i < n; i++ {
		a.Set(n, i, 1)
	}
	a.Set(n, 3*n, 1)
	b[n] = in.SupplyTotal
	for i := 0; i < n; i++ {
		a.Set(n+1+i, i, 1)
		a.Set(n+1+i, 3*n+1+i, 1)
		b[n+1+i] = capKg[i]
	}

	_, opt, err := lp.Simplex(c, a, b, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("allocation LP: %w", err)
	}

	x := make([]float64, n)
	copy(x, opt[:n])
	for i := range x {
		if x[i] < 0 {
			x[i] = 0 // numerical dust from the solver
		}
	}
	return x, nil
}

// lpObjective evaluates an allocation under the LP objective, pricing unmet
// shortfall at the stockout weight. Used to compare policies under identical
// objectives.
func (o *AllocationOptimizer) lpObjective(in AllocationInput, x []float64, riskAverse bool) float64 {
	costNorm := maxCost(in.TransportCost)
	if costNorm <= 0 {
		costNorm = 1
	}
	total := 0.0
	for i := range x {
		target := in.DemandMean[i]
		sWeight := o.Beta
		if riskAverse {
			target += riskBufferZ * in.DemandStd[i]
			cv := 0.0
			if in.DemandMean[i] > 0 {
				cv = in.DemandStd[i] / in.DemandMean[i]
			}
			sWeight = o.Beta * (1 + cv)
		}
		shortfall := target - in.Inventory[i]
		if shortfall < 0 {
			shortfall = 0
		}
		slack := shortfall - x[i]
		if slack < 0 {
			slack = 0
		}
		total += (o.Alpha*in.TransportCost[i]/costNorm+o.Gamma*in.FraudProb[i])*x[i] + sWeight*slack
	}
	return total
}

func maxCost(costs []float64) float64 {
	m := 0.0
	for _, c := range costs {
		if c > m {
			m = c
		}
	}
	return m
}
