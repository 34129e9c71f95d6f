// Package api exposes the simulator over a small JSON HTTP surface:
// single-policy runs, four-policy comparison, and the read-only region
// metadata used to pre-populate calling interfaces.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/signalsfoundry/allocation-simulator/core"
	"github.com/signalsfoundry/allocation-simulator/internal/logging"
	"github.com/signalsfoundry/allocation-simulator/internal/observability"
)

// Server routes simulation requests. Construct with NewServer; the zero value
// is not usable.
type Server struct {
	regions   []core.Region
	log       logging.Logger
	collector *observability.SimCollector
	mux       *http.ServeMux
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithRegions replaces the built-in region registry.
func WithRegions(regions []core.Region) Option {
	return func(s *Server) {
		if len(regions) > 0 {
			s.regions = regions
		}
	}
}

// WithCollector attaches the metrics collector, enabling /metrics and
// engine-level recording.
func WithCollector(c *observability.SimCollector) Option {
	return func(s *Server) { s.collector = c }
}

// NewServer builds the HTTP surface.
func NewServer(log logging.Logger, opts ...Option) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{
		regions: core.DefaultRegions(),
		log:     log,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/simulation/district-meta", s.handleDistrictMeta)
	s.mux.HandleFunc("GET /api/v1/simulation/presets", s.handlePresets)
	s.mux.HandleFunc("POST /api/v1/simulation/run", s.handleRun)
	s.mux.HandleFunc("POST /api/v1/simulation/compare", s.handleCompare)
	if s.collector != nil {
		s.mux.Handle("GET /metrics", s.collector.Handler())
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// districtMeta is the pass-through region record: registry data plus the
// derived transport cost, no simulation output.
type districtMeta struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Beneficiaries      int     `json:"beneficiaries"`
	Shops              int     `json:"shops"`
	Lat                float64 `json:"lat"`
	Lon                float64 `json:"lon"`
	DistKm             float64 `json:"dist_km"`
	TransportCostPerKg float64 `json:"transport_cost_per_kg"`
}

func (s *Server) handleDistrictMeta(w http.ResponseWriter, _ *http.Request) {
	out := make([]districtMeta, len(s.regions))
	for i, r := range s.regions {
		out[i] = districtMeta{
			ID:                 r.ID,
			Name:               r.Name,
			Beneficiaries:      r.Beneficiaries,
			Shops:              r.Shops,
			Lat:                r.Lat,
			Lon:                r.Lon,
			DistKm:             r.DistKm,
			TransportCostPerKg: r.TransportCost(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"n_districts": len(out),
		"districts":   out,
	})
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	base := core.DefaultConfig()

	tight := base
	tight.SupplyFraction = 0.80

	highFraud := base
	highFraud.FraudShockScale = 0.08
	highFraud.InspectionThreshold = 0.50

	riskAverse := base
	riskAverse.Policy = core.PolicyRiskAverse

	writeJSON(w, http.StatusOK, map[string]core.SimulationConfig{
		"baseline":     base,
		"tight_supply": tight,
		"high_fraud":   highFraud,
		"risk_averse":  riskAverse,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.decodeConfig(w, r)
	if !ok {
		return
	}
	result, err := core.RunSimulation(r.Context(), cfg,
		core.WithLogger(s.log), core.WithMetrics(s.collector))
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.decodeConfig(w, r)
	if !ok {
		return
	}
	cmp, err := core.ComparePolicies(r.Context(), cfg,
		core.WithLogger(s.log), core.WithMetrics(s.collector))
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// decodeConfig reads a request body as overrides on top of the default
// configuration, so callers can set any subset of fields independently.
func (s *Server) decodeConfig(w http.ResponseWriter, r *http.Request) (core.SimulationConfig, bool) {
	cfg := core.DefaultConfig()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return cfg, false
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return cfg, false
	}
	return cfg, true
}

func (s *Server) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, core.ErrInvalidConfig) ||
		errors.Is(err, core.ErrInvalidHorizon) ||
		errors.Is(err, core.ErrUnknownCommodity) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Error(r.Context(), "simulation failed", logging.Err(err))
	writeError(w, http.StatusInternalServerError, "simulation failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
