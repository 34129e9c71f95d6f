package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/allocation-simulator/internal/logging"
)

var ErrNilScenario = errors.New("nil scenario")

const tracerName = "github.com/signalsfoundry/allocation-simulator/core"

// MetricsRecorder receives engine-level observations. Implemented by the
// observability collector; a nil recorder disables recording.
type MetricsRecorder interface {
	RecordRun(policy, status string, seconds float64)
	ObservePeriod(seconds float64)
	IncSolverFallback()
	SetRunSummary(policy string, discountedCost, cvarCost, serviceLevel float64)
}

// AgentActions is the per-period audit log: counts and aggregates only, for
// display. The optimizer never consumes it.
type AgentActions struct {
	Demand     DemandAgentAction     `json:"demand_agent"`
	Fraud      FraudAgentAction      `json:"fraud_agent"`
	Geo        GeoAgentAction        `json:"geo_agent"`
	Allocation AllocationAgentAction `json:"allocation_agent"`
	Governance GovernanceAgentAction `json:"governance_agent"`
}

type DemandAgentAction struct {
	Action                string  `json:"action"`
	UnderstockRiskRegions int     `json:"regions_with_understock_risk"`
	TotalForecastDemandKg float64 `json:"total_forecast_demand_kg"`
}

type FraudAgentAction struct {
	Action          string  `json:"action"`
	HighRiskRegions int     `json:"high_risk_regions"`
	AvgFraudProb    float64 `json:"avg_fraud_prob"`
}

type GeoAgentAction struct {
	Action        string  `json:"action"`
	AvgCostPerKg  float64 `json:"avg_cost_per_kg"`
	MaxCostRegion string  `json:"max_cost_region"`
}

type AllocationAgentAction struct {
	Action            string  `json:"action"`
	TotalAllocatedKg  float64 `json:"total_allocated_kg"`
	RegionsReceiving  int     `json:"regions_receiving_allocation"`
	InspectionsPlaced int     `json:"n_inspections_recommended"`
	SolverFallback    bool    `json:"solver_fallback"`
}

type GovernanceAgentAction struct {
	Action           string   `json:"action"`
	PolicyViolations []string `json:"policy_violations"`
	SupplyUtilPct    float64  `json:"supply_utilisation_pct"`
}

// PeriodResult is the append-only record of one simulated period.
type PeriodResult struct {
	Period int `json:"period"`

	InventoryStart []float64 `json:"inventory_start"`
	InventoryEnd   []float64 `json:"inventory_end"`
	DemandMean     []float64 `json:"demand_mean"`
	DemandRealized []float64 `json:"demand_realized"`
	FraudProbStart []float64 `json:"fraud_prob_start"`
	FraudProbEnd   []float64 `json:"fraud_prob_end"`
	ServiceRatio   []float64 `json:"service_ratio"`
	Allocation     []float64 `json:"allocation"`
	Inspections    []bool    `json:"inspections"`
	Leakage        []float64 `json:"leakage"`

	CostTransport float64 `json:"cost_transport"`
	CostStockout  float64 `json:"cost_stockout"`
	CostLeakage   float64 `json:"cost_leakage"`
	CostEquity    float64 `json:"cost_equity"`
	CostTotal     float64 `json:"cost_total"`

	NStockouts       int     `json:"n_stockouts"`
	NInspections     int     `json:"n_inspections"`
	TotalDemandKg    float64 `json:"total_demand_kg"`
	TotalAllocatedKg float64 `json:"total_allocated_kg"`
	SupplyTotalKg    float64 `json:"total_supply_kg"`
	SupplyUtilPct    float64 `json:"supply_util_pct"`
	AvgServiceRatio  float64 `json:"avg_service_ratio"`
	AvgFraudProb     float64 `json:"avg_fraud_prob"`

	SolverFallback bool         `json:"solver_fallback"`
	Flags          []string     `json:"flags,omitempty"`
	AgentActions   AgentActions `json:"agent_actions"`
}

// RegionFinalState is the terminal per-region snapshot of a run.
type RegionFinalState struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Shops            int     `json:"shops"`
	Beneficiaries    int     `json:"beneficiaries"`
	FinalInventoryKg float64 `json:"final_inventory_kg"`
	FinalFraudProb   float64 `json:"final_fraud_prob"`
	AvgServiceRatio  float64 `json:"avg_service_ratio"`
	TotalLeakageKg   float64 `json:"total_leakage_kg"`
	InspectedPeriods int     `json:"inspected_periods"`
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	DistKm           float64 `json:"dist_km"`
}

// SimulationResult is the finalized outcome of a full run.
type SimulationResult struct {
	RunID       string           `json:"run_id"`
	Policy      Policy           `json:"policy"`
	Config      SimulationConfig `json:"config"`
	NRegions    int              `json:"n_regions"`
	RegionNames []string         `json:"region_names"`
	NPeriods    int              `json:"n_periods"`
	Periods     []PeriodResult   `json:"periods"`

	TotalDiscountedCost float64 `json:"total_discounted_cost"`
	AvgServiceLevel     float64 `json:"avg_service_level"`
	AvgFraudProb        float64 `json:"avg_fraud_prob"`
	TotalLeakageKg      float64 `json:"total_leakage_kg"`
	TotalStockoutKg     float64 `json:"total_stockout_kg"`
	CVaRCost            float64 `json:"cvar_cost"`
	RuntimeSeconds      float64 `json:"runtime_seconds"`

	CostSeries            []float64 `json:"cost_series"`
	CostTransportSeries   []float64 `json:"cost_transport_series"`
	CostStockoutSeries    []float64 `json:"cost_stockout_series"`
	CostLeakageSeries     []float64 `json:"cost_leakage_series"`
	CostEquitySeries      []float64 `json:"cost_equity_series"`
	ServiceLevelSeries    []float64 `json:"service_level_series"`
	FraudProbSeries       []float64 `json:"fraud_prob_series"`
	InventoryTotalSeries  []float64 `json:"inventory_total_series"`
	AllocationTotalSeries []float64 `json:"allocation_total_series"`

	RegionFinalState []RegionFinalState `json:"region_final_state"`
}

// Engine owns the mutable per-period state (inventory, fraud probability)
// and drives the period loop. The scenario is read-only; the optimizer
// receives copies and returns fresh vectors, so nothing leaks across periods
// except inventory and fraud probability.
type Engine struct {
	cfg       SimulationConfig
	scenario  *Scenario
	optimizer *AllocationOptimizer
	log       logging.Logger
	metrics   MetricsRecorder
}

// EngineOption configures optional engine collaborators.
type EngineOption func(*Engine)

// WithLogger attaches a structured logger. Nil-safe.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine validates the configuration against the scenario and builds an
// engine. The scenario must cover at least cfg.Horizon periods.
func NewEngine(scenario *Scenario, cfg SimulationConfig, opts ...EngineOption) (*Engine, error) {
	if scenario == nil {
		return nil, ErrNilScenario
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scenario.Horizon < cfg.Horizon {
		return nil, fmt.Errorf("%w: scenario covers %d periods, config wants %d",
			ErrInvalidConfig, scenario.Horizon, cfg.Horizon)
	}
	e := &Engine{
		cfg:       cfg,
		scenario:  scenario,
		optimizer: NewAllocationOptimizer(cfg),
		log:       logging.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes the full T-period simulation. The run always completes all
// configured periods: solver failures degrade the affected period to the
// proportional policy and are flagged, never aborted.
func (e *Engine) Run(ctx context.Context) (*SimulationResult, error) {
	start := time.Now()
	cfg := e.cfg
	sc := e.scenario
	n, t := sc.N(), cfg.Horizon

	ctx, span := otel.Tracer(tracerName).Start(ctx, "simulation.run")
	span.SetAttributes(
		attribute.String("policy", string(cfg.Policy)),
		attribute.Int("horizon", t),
		attribute.Int("regions", n),
		attribute.Int64("seed", cfg.Seed),
	)
	defer span.End()

	inventory := cloneVec(sc.InitialInventory)
	fraudProb := cloneVec(sc.InitialFraudProb)

	periods := make([]PeriodResult, 0, t)
	periodCosts := make([]float64, 0, t)

	for p := 0; p < t; p++ {
		periodStart := time.Now()

		in := AllocationInput{
			Inventory:     cloneVec(inventory),
			DemandMean:    cloneVec(sc.DemandMean[p]),
			DemandStd:     cloneVec(sc.DemandStd[p]),
			FraudProb:     cloneVec(fraudProb),
			TransportCost: sc.TransportCost,
			SupplyTotal:   sc.SupplySchedule[p],
			Budget:        cfg.BudgetPerPeriod,
		}
		res, err := e.optimizer.Allocate(in, cfg.Policy)
		if err != nil {
			e.recordRun(string(cfg.Policy), "error", time.Since(start))
			return nil, fmt.Errorf("period %d: %w", p, err)
		}
		if res.Fallback {
			e.log.Warn(ctx, "allocation solver failed, proportional fallback",
				logging.Int("period", p),
				logging.String("policy", string(cfg.Policy)),
			)
			if e.metrics != nil {
				e.metrics.IncSolverFallback()
			}
		}
		x, y := res.Allocation, res.Inspect

		realized := e.realizeDemand(p)
		pr := e.applyPeriod(p, inventory, fraudProb, in, x, y, realized, res)
		periods = append(periods, pr)
		periodCosts = append(periodCosts, pr.CostTotal)

		inventory = pr.InventoryEnd
		fraudProb = pr.FraudProbEnd

		if e.metrics != nil {
			e.metrics.ObservePeriod(time.Since(periodStart).Seconds())
		}
	}

	result := e.summarize(periods, periodCosts)
	result.RuntimeSeconds = time.Since(start).Seconds()

	span.SetAttributes(
		attribute.Float64("total_discounted_cost", result.TotalDiscountedCost),
		attribute.Float64("cvar_cost", result.CVaRCost),
	)
	e.recordRun(string(cfg.Policy), "ok", time.Since(start))
	if e.metrics != nil {
		e.metrics.SetRunSummary(string(cfg.Policy),
			result.TotalDiscountedCost, result.CVaRCost, result.AvgServiceLevel)
	}
	e.log.Info(ctx, "simulation completed",
		logging.String("run_id", result.RunID),
		logging.String("policy", string(cfg.Policy)),
		logging.Int("periods", t),
		logging.Any("cvar_cost", result.CVaRCost),
	)
	return result, nil
}

// realizeDemand draws one lognormal demand per region, parameterized so its
// mean/std match the forecast. Each period uses its own seeded stream so runs
// with identical seeds see identical draws regardless of policy.
func (e *Engine) realizeDemand(period int) []float64 {
	sc := e.scenario
	src := rand.New(rand.NewPCG(uint64(e.cfg.Seed), demandStream(period)))
	out := make([]float64, sc.N())
	for i := range out {
		mean := maxf(sc.DemandMean[period][i], 1)
		std := sc.DemandStd[period][i]
		sigma := math.Sqrt(math.Log(1 + (std/mean)*(std/mean)))
		mu := math.Log(mean) - 0.5*sigma*sigma
		if sigma <= 0 {
			out[i] = math.Exp(mu)
			continue
		}
		out[i] = distuv.LogNormal{Mu: mu, Sigma: sigma, Src: src}.Rand()
	}
	return out
}

// applyPeriod applies the realized randomness and state-update equations and
// assembles the period record. inventory/fraudProb are the pre-period state.
func (e *Engine) applyPeriod(
	period int,
	inventory, fraudProb []float64,
	in AllocationInput,
	x []float64,
	y []bool,
	realized []float64,
	res AllocationResult,
) PeriodResult {
	cfg := e.cfg
	sc := e.scenario
	n := sc.N()

	leakage := make([]float64, n)
	serviceRatio := make([]float64, n)
	newInventory := make([]float64, n)
	newFraud := make([]float64, n)
	stockoutKg := make([]float64, n)

	shockSrc := rand.New(rand.NewPCG(uint64(cfg.Seed), shockStream(cfg.Horizon, period)))
	var shock distuv.Uniform
	if cfg.FraudShockScale > 0 {
		shock = distuv.Uniform{Min: 0, Max: cfg.FraudShockScale, Src: shockSrc}
	}

	costTransport, costLeakage, stockoutTotal := 0.0, 0.0, 0.0
	nStockouts, nInspections := 0, 0

	for i := 0; i < n; i++ {
		leakage[i] = fraudProb[i] * x[i]

		if s := realized[i] - inventory[i] - x[i]; s > 0 {
			stockoutKg[i] = s
			stockoutTotal += s
			nStockouts++
		}

		if d := sc.DemandMean[period][i]; d > 0 {
			serviceRatio[i] = (inventory[i] + x[i]) / d
		} else {
			serviceRatio[i] = 1
		}

		newInventory[i] = maxf(inventory[i]+x[i]-realized[i]-leakage[i], 0)

		eta := 0.0
		if y[i] {
			eta = cfg.InspectionEffectiveness
			nInspections++
		}
		eps := 0.0
		if cfg.FraudShockScale > 0 {
			eps = shock.Rand()
		}
		newFraud[i] = clamp(fraudProb[i]*(1-eta)+eps, fraudFloor, fraudCeil)

		costTransport += sc.TransportCost[i] * x[i]
		costLeakage += leakage[i]
	}

	costStockout := cfg.StockoutPenalty * stockoutTotal
	costEquity := 0.0
	if n > 1 {
		costEquity = stat.PopVariance(serviceRatio, nil) * 1e6
	}
	costTotal := cfg.Alpha*costTransport + cfg.Beta*costStockout +
		cfg.Gamma*costLeakage + cfg.Delta*costEquity

	totalAlloc := sum(x)
	totalDemand := sum(realized)
	supplyTotal := sc.SupplySchedule[period]

	clippedService := make([]float64, n)
	for i, r := range serviceRatio {
		clippedService[i] = clamp(r, 0, 1)
	}

	return PeriodResult{
		Period:           period,
		InventoryStart:   cloneVec(inventory),
		InventoryEnd:     newInventory,
		DemandMean:       cloneVec(sc.DemandMean[period]),
		DemandRealized:   realized,
		FraudProbStart:   cloneVec(fraudProb),
		FraudProbEnd:     newFraud,
		ServiceRatio:     serviceRatio,
		Allocation:       x,
		Inspections:      y,
		Leakage:          leakage,
		CostTransport:    costTransport,
		CostStockout:     costStockout,
		CostLeakage:      costLeakage,
		CostEquity:       costEquity,
		CostTotal:        costTotal,
		NStockouts:       nStockouts,
		NInspections:     nInspections,
		TotalDemandKg:    totalDemand,
		TotalAllocatedKg: totalAlloc,
		SupplyTotalKg:    supplyTotal,
		SupplyUtilPct:    100 * totalAlloc / maxf(supplyTotal, 1),
		AvgServiceRatio:  stat.Mean(clippedService, nil),
		AvgFraudProb:     stat.Mean(fraudProb, nil),
		SolverFallback:   res.Fallback,
		Flags:            res.Flags,
		AgentActions:     e.agentActions(in, x, y, res, serviceRatio),
	}
}

// agentActions assembles the per-period audit aggregates.
func (e *Engine) agentActions(in AllocationInput, x []float64, y []bool, res AllocationResult, serviceRatio []float64) AgentActions {
	cfg := e.cfg
	n := len(x)

	understock, highRisk, receiving, inspections := 0, 0, 0, 0
	maxCostIdx := 0
	for i := 0; i < n; i++ {
		if in.DemandMean[i] > in.Inventory[i]*1.5 {
			understock++
		}
		if in.FraudProb[i] > cfg.InspectionThreshold {
			highRisk++
		}
		if x[i] > 0 {
			receiving++
		}
		if y[i] {
			inspections++
		}
		if in.TransportCost[i] > in.TransportCost[maxCostIdx] {
			maxCostIdx = i
		}
	}

	var violations []string
	underMin := 0
	for _, r := range serviceRatio {
		if r < cfg.MinServiceLevel {
			underMin++
		}
	}
	if underMin > 0 {
		violations = append(violations,
			fmt.Sprintf("%d regions below min service level %.2f", underMin, cfg.MinServiceLevel))
	}
	if res.Fallback {
		violations = append(violations, "allocation degraded to proportional fallback")
	}

	return AgentActions{
		Demand: DemandAgentAction{
			Action:                "forecast_demand",
			UnderstockRiskRegions: understock,
			TotalForecastDemandKg: sum(in.DemandMean),
		},
		Fraud: FraudAgentAction{
			Action:          "estimate_fraud_probability",
			HighRiskRegions: highRisk,
			AvgFraudProb:    stat.Mean(in.FraudProb, nil),
		},
		Geo: GeoAgentAction{
			Action:        "compute_transport_costs",
			AvgCostPerKg:  stat.Mean(in.TransportCost, nil),
			MaxCostRegion: e.scenario.Regions[maxCostIdx].Name,
		},
		Allocation: AllocationAgentAction{
			Action:            "allocate_" + string(cfg.Policy),
			TotalAllocatedKg:  sum(x),
			RegionsReceiving:  receiving,
			InspectionsPlaced: inspections,
			SolverFallback:    res.Fallback,
		},
		Governance: GovernanceAgentAction{
			Action:           "validate_constraints",
			PolicyViolations: violations,
			SupplyUtilPct:    100 * sum(x) / maxf(in.SupplyTotal, 1),
		},
	}
}

// summarize folds the period records into the final result.
func (e *Engine) summarize(periods []PeriodResult, periodCosts []float64) *SimulationResult {
	cfg := e.cfg
	sc := e.scenario
	n := sc.N()
	t := len(periods)

	discounted := 0.0
	for p, c := range periodCosts {
		discounted += math.Pow(cfg.DiscountFactor, float64(p)) * c
	}

	r := &SimulationResult{
		RunID:       uuid.NewString(),
		Policy:      cfg.Policy,
		Config:      cfg,
		NRegions:    n,
		RegionNames: sc.RegionNames(),
		NPeriods:    t,
		Periods:     periods,

		TotalDiscountedCost: discounted,
		CVaRCost:            cvar(periodCosts, cfg.CVaRConfidence),

		CostSeries:            cloneVec(periodCosts),
		CostTransportSeries:   make([]float64, t),
		CostStockoutSeries:    make([]float64, t),
		CostLeakageSeries:     make([]float64, t),
		CostEquitySeries:      make([]float64, t),
		ServiceLevelSeries:    make([]float64, t),
		FraudProbSeries:       make([]float64, t),
		InventoryTotalSeries:  make([]float64, t),
		AllocationTotalSeries: make([]float64, t),
	}

	avgService, avgFraud := 0.0, 0.0
	for p := range periods {
		pr := &periods[p]
		r.CostTransportSeries[p] = pr.CostTransport
		r.CostStockoutSeries[p] = pr.CostStockout
		r.CostLeakageSeries[p] = pr.CostLeakage
		r.CostEquitySeries[p] = pr.CostEquity
		r.ServiceLevelSeries[p] = pr.AvgServiceRatio
		r.FraudProbSeries[p] = pr.AvgFraudProb
		r.InventoryTotalSeries[p] = sum(pr.InventoryEnd)
		r.AllocationTotalSeries[p] = pr.TotalAllocatedKg
		avgService += pr.AvgServiceRatio
		avgFraud += pr.AvgFraudProb
		r.TotalLeakageKg += sum(pr.Leakage)
		for i := range pr.DemandRealized {
			if s := pr.DemandRealized[i] - pr.InventoryStart[i] - pr.Allocation[i]; s > 0 {
				r.TotalStockoutKg += s
			}
		}
	}
	if t > 0 {
		r.AvgServiceLevel = avgService / float64(t)
		r.AvgFraudProb = avgFraud / float64(t)
	}

	r.RegionFinalState = make([]RegionFinalState, n)
	for i, reg := range sc.Regions {
		fs := RegionFinalState{
			ID:            reg.ID,
			Name:          reg.Name,
			Shops:         reg.Shops,
			Beneficiaries: reg.Beneficiaries,
			Lat:           reg.Lat,
			Lon:           reg.Lon,
			DistKm:        reg.DistKm,
		}
		if t > 0 {
			last := &periods[t-1]
			fs.FinalInventoryKg = last.InventoryEnd[i]
			fs.FinalFraudProb = last.FraudProbEnd[i]
			ratioSum := 0.0
			for p := range periods {
				ratioSum += clamp(periods[p].ServiceRatio[i], 0, 1)
				fs.TotalLeakageKg += periods[p].Leakage[i]
				if periods[p].Inspections[i] {
					fs.InspectedPeriods++
				}
			}
			fs.AvgServiceRatio = ratioSum / float64(t)
		}
		r.RegionFinalState[i] = fs
	}
	return r
}

func (e *Engine) recordRun(policy, status string, d time.Duration) {
	if e.metrics != nil {
		e.metrics.RecordRun(policy, status, d.Seconds())
	}
}

// cvar computes the Conditional Value at Risk: the mean of the worst
// (1-confidence) fraction of per-period costs. With a tail window rounding to
// empty, the single worst period is returned.
func cvar(costs []float64, confidence float64) float64 {
	if len(costs) == 0 {
		return 0
	}
	sorted := cloneVec(costs)
	sort.Float64s(sorted)
	idx := int(math.Ceil(confidence * float64(len(sorted))))
	if idx >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return stat.Mean(sorted[idx:], nil)
}

// RunSimulation generates a scenario from the configuration and executes a
// single-policy run.
func RunSimulation(ctx context.Context, cfg SimulationConfig, opts ...EngineOption) (*SimulationResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sc, err := scenarioFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	eng, err := NewEngine(sc, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return eng.Run(ctx)
}

// PolicySummary holds the comparable summary metrics of one policy's run.
type PolicySummary struct {
	Policy              Policy    `json:"policy"`
	TotalDiscountedCost float64   `json:"total_discounted_cost"`
	AvgServiceLevel     float64   `json:"avg_service_level"`
	AvgFraudProb        float64   `json:"avg_fraud_prob"`
	TotalLeakageKg      float64   `json:"total_leakage_kg"`
	TotalStockoutKg     float64   `json:"total_stockout_kg"`
	CVaRCost            float64   `json:"cvar_cost"`
	CostSeries          []float64 `json:"cost_series"`
	ServiceLevelSeries  []float64 `json:"service_level_series"`
	FraudProbSeries     []float64 `json:"fraud_prob_series"`
}

// PolicyComparison is the side-by-side outcome of all four policies run
// against one identical scenario.
type PolicyComparison struct {
	Seed     int64                    `json:"seed"`
	Horizon  int                      `json:"horizon"`
	NRegions int                      `json:"n_regions"`
	Results  map[Policy]PolicySummary `json:"results"`
}

// ComparePolicies runs all four policies against a single generated scenario.
// Each policy run owns its own state and re-seeds the demand and shock
// streams identically, so realized randomness matches across policies and
// only the allocations differ. Runs execute concurrently.
func ComparePolicies(ctx context.Context, cfg SimulationConfig, opts ...EngineOption) (*PolicyComparison, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sc, err := scenarioFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	policies := AllPolicies()
	results := make([]*SimulationResult, len(policies))
	errs := make([]error, len(policies))

	var wg sync.WaitGroup
	for i, policy := range policies {
		wg.Add(1)
		go func(i int, policy Policy) {
			defer wg.Done()
			runCfg := cfg
			runCfg.Policy = policy
			eng, err := NewEngine(sc, runCfg, opts...)
			if err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = eng.Run(ctx)
		}(i, policy)
	}
	wg.Wait()

	cmp := &PolicyComparison{
		Seed:     cfg.Seed,
		Horizon:  cfg.Horizon,
		NRegions: sc.N(),
		Results:  make(map[Policy]PolicySummary, len(policies)),
	}
	for i, policy := range policies {
		if errs[i] != nil {
			return nil, fmt.Errorf("policy %s: %w", policy, errs[i])
		}
		res := results[i]
		cmp.Results[policy] = PolicySummary{
			Policy:              policy,
			TotalDiscountedCost: res.TotalDiscountedCost,
			AvgServiceLevel:     res.AvgServiceLevel,
			AvgFraudProb:        res.AvgFraudProb,
			TotalLeakageKg:      res.TotalLeakageKg,
			TotalStockoutKg:     res.TotalStockoutKg,
			CVaRCost:            res.CVaRCost,
			CostSeries:          res.CostSeries,
			ServiceLevelSeries:  res.ServiceLevelSeries,
			FraudProbSeries:     res.FraudProbSeries,
		}
	}
	return cmp, nil
}

func scenarioFromConfig(cfg SimulationConfig) (*Scenario, error) {
	gen := NewScenarioGenerator(cfg.Horizon, cfg.Seed, cfg.Commodity)
	gen.SupplyFraction = cfg.SupplyFraction
	gen.StartMonth = cfg.StartMonth
	return gen.Generate()
}

// Stream identifiers for the per-period PCG sources. Stream 0 belongs to the
// scenario generator; demand and shock streams are offset so they never
// collide with it or each other.
func demandStream(period int) uint64 { return 1 + uint64(period) }

func shockStream(horizon, period int) uint64 { return 1 + uint64(horizon) + uint64(period) }

func cloneVec(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func sum(v []float64) float64 {
	total := 0.0
	for _, x := range v {
		total += x
	}
	return total
}
