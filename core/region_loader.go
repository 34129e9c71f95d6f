package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	ErrRegionBadInput = errors.New("invalid region")
	ErrRegionExists   = errors.New("region already exists")
)

// internal JSON shape – kept unexported so we're free to evolve it.
type regionJSON struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Beneficiaries int      `json:"beneficiaries"`
	Shops         int      `json:"shops"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	DistKm        *float64 `json:"dist_km"` // optional; derived from depot coords when absent
	RiceKg        float64  `json:"rice_kg"`
	WheatKg       float64  `json:"wheat_kg"`
	SugarKg       float64  `json:"sugar_kg"`
	FraudSeed     float64  `json:"fraud_seed"`
}

type regionFileJSON struct {
	DepotLat float64      `json:"depot_lat"`
	DepotLon float64      `json:"depot_lon"`
	Regions  []regionJSON `json:"regions"`
}

// LoadRegions reads a custom region registry from JSON. Missing depot
// distances are derived from the depot coordinates via haversine. It fails on
// structural problems (decode errors, empty IDs, duplicates) and leaves range
// checks on the generated scenario to the simulation config validation.
func LoadRegions(r io.Reader) ([]Region, error) {
	var payload regionFileJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadRegions: decode failed: %w", err)
	}
	if len(payload.Regions) == 0 {
		return nil, fmt.Errorf("LoadRegions: %w: no regions in file", ErrRegionBadInput)
	}

	seen := make(map[string]struct{}, len(payload.Regions))
	out := make([]Region, 0, len(payload.Regions))
	for _, rj := range payload.Regions {
		if rj.ID == "" || rj.Name == "" {
			return nil, fmt.Errorf("LoadRegions: %w: empty id or name", ErrRegionBadInput)
		}
		if _, dup := seen[rj.ID]; dup {
			return nil, fmt.Errorf("LoadRegions: %w: %q", ErrRegionExists, rj.ID)
		}
		seen[rj.ID] = struct{}{}

		dist := 0.0
		if rj.DistKm != nil {
			dist = *rj.DistKm
		} else {
			dist = Haversine(payload.DepotLat, payload.DepotLon, rj.Lat, rj.Lon)
		}
		if dist < 0 {
			return nil, fmt.Errorf("LoadRegions: %w: %q has negative distance", ErrRegionBadInput, rj.ID)
		}

		out = append(out, Region{
			ID:            rj.ID,
			Name:          rj.Name,
			Beneficiaries: rj.Beneficiaries,
			Shops:         rj.Shops,
			Lat:           rj.Lat,
			Lon:           rj.Lon,
			DistKm:        dist,
			RiceKg:        rj.RiceKg,
			WheatKg:       rj.WheatKg,
			SugarKg:       rj.SugarKg,
			FraudSeed:     rj.FraudSeed,
		})
	}
	return out, nil
}
