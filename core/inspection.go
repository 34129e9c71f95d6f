package core

import "sort"

const roiEpsilon = 1e-9

// decideInspections selects the inspection set for one period in two phases:
//
//  1. Mandatory: every region whose fraud probability exceeds the threshold
//     is inspected regardless of budget.
//  2. Budgeted: remaining regions are ranked by return-on-inspection
//     ROI_i = p_i·x_i / (κ + c_i·x_i + ε) and added greedily while the total
//     inspection spend (mandatory included) stays within budget. Ties keep
//     region index order.
//
// Regions sitting at the fraud floor carry no signal and are never selected
// in phase 2. The decision does not depend on the allocation policy.
func (o *AllocationOptimizer) decideInspections(fraudProb, allocation, transportCost []float64, budget float64) []bool {
	n := len(fraudProb)
	y := make([]bool, n)

	spent := 0.0
	for i, p := range fraudProb {
		if p > o.InspectionThreshold {
			y[i] = true
			spent += o.InspectionCost
		}
	}

	type candidate struct {
		idx int
		roi float64
	}
	cands := make([]candidate, 0, n)
	for i := range fraudProb {
		if y[i] || allocation[i] <= 0 || fraudProb[i] <= fraudFloor {
			continue
		}
		roi := fraudProb[i] * allocation[i] /
			(o.InspectionCost + transportCost[i]*allocation[i] + roiEpsilon)
		if roi > 0 {
			cands = append(cands, candidate{idx: i, roi: roi})
		}
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].roi > cands[b].roi })

	for _, c := range cands {
		if spent+o.InspectionCost > budget {
			break
		}
		y[c.idx] = true
		spent += o.InspectionCost
	}
	return y
}
