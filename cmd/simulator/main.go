// Command simulator runs the supply-allocation simulation from the terminal:
// a single policy run or a four-policy comparison, emitting the full result
// as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/allocation-simulator/core"
	"github.com/signalsfoundry/allocation-simulator/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml/json/toml) with simulation overrides")
	policyName := flag.String("policy", "", "allocation policy: proportional | optimized | equity_first | risk_averse")
	compare := flag.Bool("compare", false, "run all four policies against one scenario and emit the comparison")
	outPath := flag.String("out", "", "write JSON output to this file instead of stdout")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}
	if *policyName != "" {
		policy, err := core.ParsePolicy(*policyName)
		if err != nil {
			log.Error(ctx, "invalid -policy flag", logging.Err(err))
			os.Exit(1)
		}
		cfg.Policy = policy
	}
	if err := cfg.Validate(); err != nil {
		log.Error(ctx, "invalid configuration", logging.Err(err))
		os.Exit(1)
	}

	var payload any
	if *compare {
		cmp, err := core.ComparePolicies(ctx, cfg, core.WithLogger(log))
		if err != nil {
			log.Error(ctx, "comparison failed", logging.Err(err))
			os.Exit(1)
		}
		payload = cmp
	} else {
		result, err := core.RunSimulation(ctx, cfg, core.WithLogger(log))
		if err != nil {
			log.Error(ctx, "simulation failed", logging.Err(err))
			os.Exit(1)
		}
		log.Info(ctx, "run summary",
			logging.String("policy", string(cfg.Policy)),
			logging.Float("total_discounted_cost", result.TotalDiscountedCost),
			logging.Float("cvar_cost", result.CVaRCost),
			logging.Float("avg_service_level", result.AvgServiceLevel),
		)
		payload = result
	}

	if err := emit(payload, *outPath); err != nil {
		log.Error(ctx, "failed to write output", logging.Err(err))
		os.Exit(1)
	}
}

// loadConfig layers defaults, an optional config file, and SIM_* environment
// variables, in that order of increasing precedence.
func loadConfig(path string) (core.SimulationConfig, error) {
	defaults := core.DefaultConfig()

	v := viper.New()
	v.SetDefault("n_periods", defaults.Horizon)
	v.SetDefault("discount_factor", defaults.DiscountFactor)
	v.SetDefault("alpha", defaults.Alpha)
	v.SetDefault("beta", defaults.Beta)
	v.SetDefault("gamma", defaults.Gamma)
	v.SetDefault("delta", defaults.Delta)
	v.SetDefault("inspection_effectiveness", defaults.InspectionEffectiveness)
	v.SetDefault("fraud_shock_scale", defaults.FraudShockScale)
	v.SetDefault("supply_fraction", defaults.SupplyFraction)
	v.SetDefault("inspection_cost", defaults.InspectionCost)
	v.SetDefault("budget_per_period", defaults.BudgetPerPeriod)
	v.SetDefault("stockout_penalty", defaults.StockoutPenalty)
	v.SetDefault("min_service_level", defaults.MinServiceLevel)
	v.SetDefault("max_allocation_ratio", defaults.MaxAllocationRatio)
	v.SetDefault("inspection_threshold", defaults.InspectionThreshold)
	v.SetDefault("cvar_confidence", defaults.CVaRConfidence)
	v.SetDefault("policy", string(defaults.Policy))
	v.SetDefault("commodity", string(defaults.Commodity))
	v.SetDefault("start_month", defaults.StartMonth)
	v.SetDefault("seed", defaults.Seed)

	v.SetEnvPrefix("SIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return defaults, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg core.SimulationConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return defaults, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func emit(payload any, outPath string) error {
	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
