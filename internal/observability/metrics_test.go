package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSimCollectorRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.RecordRun("optimized", "ok", 0.2)
	collector.RecordRun("optimized", "ok", 0.3)
	collector.RecordRun("proportional", "error", 0.1)
	collector.IncSolverFallback()
	collector.ObservePeriod(0.002)

	if got := testutil.ToFloat64(collector.Runs.WithLabelValues("optimized", "ok")); got != 2 {
		t.Fatalf("simulation_runs_total{optimized,ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Runs.WithLabelValues("proportional", "error")); got != 1 {
		t.Fatalf("simulation_runs_total{proportional,error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.SolverFallbacks); got != 1 {
		t.Fatalf("simulation_solver_fallbacks_total = %v, want 1", got)
	}
}

func TestSimCollectorPublishesRunSummary(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}

	collector.SetRunSummary("risk_averse", 1234.5, 99.9, 0.87)

	if got := testutil.ToFloat64(collector.DiscountedCost.WithLabelValues("risk_averse")); got != 1234.5 {
		t.Fatalf("simulation_last_discounted_cost = %v, want 1234.5", got)
	}
	if got := testutil.ToFloat64(collector.CVaRCost.WithLabelValues("risk_averse")); got != 99.9 {
		t.Fatalf("simulation_last_cvar_cost = %v, want 99.9", got)
	}
	if got := testutil.ToFloat64(collector.ServiceLevel.WithLabelValues("risk_averse")); got != 0.87 {
		t.Fatalf("simulation_last_avg_service_level = %v, want 0.87", got)
	}
}

func TestNewSimCollectorReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("first NewSimCollector: %v", err)
	}
	second, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimCollector on same registry: %v", err)
	}

	first.IncSolverFallback()
	second.IncSolverFallback()
	if got := testutil.ToFloat64(second.SolverFallbacks); got != 2 {
		t.Fatalf("reused counter = %v, want 2", got)
	}
}

func TestMetricsHandlerExposesSimulationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	collector.RecordRun("equity_first", "ok", 0.05)
	collector.SetRunSummary("equity_first", 10, 20, 0.9)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"simulation_runs_total",
		"simulation_run_duration_seconds",
		"simulation_last_cvar_cost",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("/metrics output missing %s", metric)
		}
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *SimCollector
	collector.RecordRun("optimized", "ok", 0.1)
	collector.ObservePeriod(0.001)
	collector.IncSolverFallback()
	collector.SetRunSummary("optimized", 1, 2, 3)
}
