package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimCollector bundles Prometheus metrics for the simulation surface and
// satisfies the engine's MetricsRecorder interface.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Runs            *prometheus.CounterVec
	RunDurations    *prometheus.HistogramVec
	PeriodDurations prometheus.Histogram
	SolverFallbacks prometheus.Counter

	DiscountedCost *prometheus.GaugeVec
	CVaRCost       *prometheus.GaugeVec
	ServiceLevel   *prometheus.GaugeVec
}

// NewSimCollector registers simulation Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_runs_total",
		Help: "Total number of simulation runs, labeled by policy and outcome.",
	}, []string{"policy", "status"})
	runs, err := registerCounterVec(reg, runs, "simulation_runs_total")
	if err != nil {
		return nil, err
	}

	runDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simulation_run_duration_seconds",
		Help:    "Wall-clock duration of full simulation runs.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"policy"})
	runDurations, err = registerHistogramVec(reg, runDurations, "simulation_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	periodDurations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "simulation_period_duration_seconds",
		Help:    "Duration of a single simulated period, LP solve included.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
	})
	periodDurations, err = registerHistogram(reg, periodDurations, "simulation_period_duration_seconds")
	if err != nil {
		return nil, err
	}

	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulation_solver_fallbacks_total",
		Help: "Periods where the LP solver failed and the proportional fallback was used.",
	})
	fallbacks, err = registerCounter(reg, fallbacks, "simulation_solver_fallbacks_total")
	if err != nil {
		return nil, err
	}

	discounted, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simulation_last_discounted_cost",
		Help: "Total discounted cost of the most recent run, by policy.",
	}, []string{"policy"}), "simulation_last_discounted_cost")
	if err != nil {
		return nil, err
	}
	cvarCost, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simulation_last_cvar_cost",
		Help: "CVaR cost of the most recent run, by policy.",
	}, []string{"policy"}), "simulation_last_cvar_cost")
	if err != nil {
		return nil, err
	}
	service, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simulation_last_avg_service_level",
		Help: "Average service level of the most recent run, by policy.",
	}, []string{"policy"}), "simulation_last_avg_service_level")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:        gatherer,
		Runs:            runs,
		RunDurations:    runDurations,
		PeriodDurations: periodDurations,
		SolverFallbacks: fallbacks,
		DiscountedCost:  discounted,
		CVaRCost:        cvarCost,
		ServiceLevel:    service,
	}, nil
}

// RecordRun counts a completed run and observes its duration.
func (c *SimCollector) RecordRun(policy, status string, seconds float64) {
	if c == nil {
		return
	}
	if c.Runs != nil {
		c.Runs.WithLabelValues(policy, status).Inc()
	}
	if c.RunDurations != nil {
		c.RunDurations.WithLabelValues(policy).Observe(seconds)
	}
}

// ObservePeriod records the duration of one simulated period.
func (c *SimCollector) ObservePeriod(seconds float64) {
	if c == nil || c.PeriodDurations == nil {
		return
	}
	c.PeriodDurations.Observe(seconds)
}

// IncSolverFallback counts a period degraded to the proportional fallback.
func (c *SimCollector) IncSolverFallback() {
	if c == nil || c.SolverFallbacks == nil {
		return
	}
	c.SolverFallbacks.Inc()
}

// SetRunSummary publishes the headline metrics of the most recent run.
func (c *SimCollector) SetRunSummary(policy string, discountedCost, cvarCost, serviceLevel float64) {
	if c == nil {
		return
	}
	if c.DiscountedCost != nil {
		c.DiscountedCost.WithLabelValues(policy).Set(discountedCost)
	}
	if c.CVaRCost != nil {
		c.CVaRCost.WithLabelValues(policy).Set(cvarCost)
	}
	if c.ServiceLevel != nil {
		c.ServiceLevel.WithLabelValues(policy).Set(serviceLevel)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
