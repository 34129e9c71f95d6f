package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrUnknownCommodity = errors.New("unknown commodity")
)

// Commodity identifies the rationed good being allocated. Base demand per
// region comes from the registry's monthly distribution figures for that
// commodity; regions with no recorded volume fall back to rice.
type Commodity string

const (
	CommodityRice  Commodity = "rice"
	CommodityWheat Commodity = "wheat"
	CommoditySugar Commodity = "sugar"
)

// ParseCommodity normalises a commodity name, defaulting to rice when empty.
func ParseCommodity(s string) (Commodity, error) {
	switch Commodity(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return CommodityRice, nil
	case CommodityRice:
		return CommodityRice, nil
	case CommodityWheat:
		return CommodityWheat, nil
	case CommoditySugar:
		return CommoditySugar, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommodity, s)
	}
}

// Region is one administrative unit receiving allocations each period.
// Immutable for the life of a run; geographic attributes are used only to
// derive the per-kg transport cost.
type Region struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Beneficiaries int     `json:"beneficiaries"`
	Shops         int     `json:"shops"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	DistKm        float64 `json:"dist_km"`
	RiceKg        float64 `json:"rice_kg"`
	WheatKg       float64 `json:"wheat_kg"`
	SugarKg       float64 `json:"sugar_kg"`
	FraudSeed     float64 `json:"fraud_seed"`
}

// Transport cost model: linear in road distance from the central depot.
// Calibrated so the depot district pays 0.40/kg and the farthest district
// (273 km) pays about 3.40/kg.
const (
	transportBaseCost  = 0.40  // currency per kg at distance zero
	transportCostPerKm = 0.011 // currency per kg per km

	// Late-collection buffer: some beneficiaries collect in the following
	// month, so forecast demand runs above recorded distribution.
	lateCollectionUplift = 1.10
)

// TransportCost returns the per-kg transport cost for the region.
func (r Region) TransportCost() float64 {
	return transportBaseCost + transportCostPerKm*r.DistKm
}

// BaseDemandKg returns the region's base monthly demand for the commodity,
// including the late-collection uplift. Regions with no recorded volume for
// the commodity fall back to their rice figure.
func (r Region) BaseDemandKg(c Commodity) float64 {
	var base float64
	switch c {
	case CommodityWheat:
		base = r.WheatKg
	case CommoditySugar:
		base = r.SugarKg
	default:
		base = r.RiceKg
	}
	if base <= 0 {
		base = r.RiceKg
	}
	return base * lateCollectionUplift
}

// Haversine returns the great-circle distance in km between two lat/lon
// points. Used when loading custom region sets that carry coordinates but no
// precomputed depot distance.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// DefaultRegions returns the built-in 33-district registry. Figures are
// anchored to the June 2025 beneficiary/shop rolls and May 2025 distribution
// actuals; fraud seeds are calibrated from historical inspection findings.
// Callers receive a fresh copy and may mutate it freely.
func DefaultRegions() []Region {
	out := make([]Region, len(defaultRegions))
	copy(out, defaultRegions)
	return out
}

var defaultRegions = []Region{
	{ID: "D01", Name: "Adilabad", Beneficiaries: 192757, Shops: 356, Lat: 19.664, Lon: 78.532, DistKm: 283, RiceKg: 3887966, WheatKg: 0, SugarKg: 185, FraudSeed: 0.22},
	{ID: "D02", Name: "Bhadrdri Kothagudem", Beneficiaries: 297189, Shops: 443, Lat: 17.549, Lon: 80.616, DistKm: 224, RiceKg: 4803811, WheatKg: 0, SugarKg: 5596, FraudSeed: 0.20},
	{ID: "D03", Name: "Hanumakonda", Beneficiaries: 231516, Shops: 414, Lat: 17.977, Lon: 79.598, DistKm: 145, RiceKg: 3993309, WheatKg: 0, SugarKg: 216, FraudSeed: 0.12},
	{ID: "D04", Name: "Hyderabad", Beneficiaries: 647282, Shops: 700, Lat: 17.385, Lon: 78.487, DistKm: 0, RiceKg: 14443412, WheatKg: 2245346, SugarKg: 22422, FraudSeed: 0.07},
	{ID: "D05", Name: "Jagityal", Beneficiaries: 318732, Shops: 592, Lat: 18.793, Lon: 78.741, DistKm: 179, RiceKg: 5519789, WheatKg: 0, SugarKg: 22, FraudSeed: 0.15},
	{ID: "D06", Name: "Janagaon", Beneficiaries: 163283, Shops: 335, Lat: 17.727, Lon: 79.152, DistKm: 114, RiceKg: 2601429, WheatKg: 0, SugarKg: 2246, FraudSeed: 0.10},
	{ID: "D07", Name: "Jayashankar Bhupalpalli", Beneficiaries: 125589, Shops: 277, Lat: 18.432, Lon: 80.006, DistKm: 198, RiceKg: 2060033, WheatKg: 0, SugarKg: 0, FraudSeed: 0.18},
	{ID: "D08", Name: "Jogulamba Gadwal", Beneficiaries: 164357, Shops: 335, Lat: 16.226, Lon: 77.799, DistKm: 182, RiceKg: 3266397, WheatKg: 6456, SugarKg: 2024, FraudSeed: 0.17},
	{ID: "D09", Name: "Kamareddy", Beneficiaries: 256732, Shops: 592, Lat: 18.322, Lon: 78.336, DistKm: 131, RiceKg: 5188866, WheatKg: 0, SugarKg: 2438, FraudSeed: 0.12},
	{ID: "D10", Name: "Karimnagar", Beneficiaries: 290402, Shops: 566, Lat: 18.438, Lon: 79.132, DistKm: 162, RiceKg: 5326297, WheatKg: 0, SugarKg: 1, FraudSeed: 0.16},
	{ID: "D11", Name: "Khammam", Beneficiaries: 415905, Shops: 748, Lat: 17.247, Lon: 80.150, DistKm: 195, RiceKg: 6752910, WheatKg: 0, SugarKg: 9476, FraudSeed: 0.14},
	{ID: "D12", Name: "Kumarambheem Asifabad", Beneficiaries: 141904, Shops: 314, Lat: 19.364, Lon: 79.286, DistKm: 273, RiceKg: 2804329, WheatKg: 0, SugarKg: 0, FraudSeed: 0.25},
	{ID: "D13", Name: "Mahabubabad", Beneficiaries: 243204, Shops: 558, Lat: 17.601, Lon: 80.002, DistKm: 168, RiceKg: 3663948, WheatKg: 0, SugarKg: 900, FraudSeed: 0.13},
	{ID: "D14", Name: "Mahbubnagar", Beneficiaries: 245463, Shops: 506, Lat: 16.733, Lon: 77.983, DistKm: 110, RiceKg: 4242163, WheatKg: 3852, SugarKg: 7, FraudSeed: 0.19},
	{ID: "D15", Name: "Manchiryala", Beneficiaries: 223844, Shops: 423, Lat: 18.873, Lon: 79.439, DistKm: 202, RiceKg: 3862099, WheatKg: 0, SugarKg: 199, FraudSeed: 0.15},
	{ID: "D16", Name: "Medak", Beneficiaries: 216716, Shops: 520, Lat: 18.045, Lon: 78.262, DistKm: 90, RiceKg: 3881136, WheatKg: 0, SugarKg: 0, FraudSeed: 0.11},
	{ID: "D17", Name: "Medchal", Beneficiaries: 537810, Shops: 618, Lat: 17.618, Lon: 78.562, DistKm: 29, RiceKg: 12310868, WheatKg: 839556, SugarKg: 7941, FraudSeed: 0.08},
	{ID: "D18", Name: "Mulugu", Beneficiaries: 94628, Shops: 222, Lat: 18.196, Lon: 80.100, DistKm: 207, RiceKg: 1535514, WheatKg: 0, SugarKg: 0, FraudSeed: 0.21},
	{ID: "D19", Name: "Nagarkarnool", Beneficiaries: 243722, Shops: 552, Lat: 16.477, Lon: 78.322, DistKm: 126, RiceKg: 4015431, WheatKg: 0, SugarKg: 433, FraudSeed: 0.16},
	{ID: "D20", Name: "Nalgonda", Beneficiaries: 484210, Shops: 997, Lat: 17.047, Lon: 79.267, DistKm: 93, RiceKg: 7666553, WheatKg: 0, SugarKg: 6380, FraudSeed: 0.13},
	{ID: "D21", Name: "Narayanpet", Beneficiaries: 145684, Shops: 301, Lat: 16.745, Lon: 77.491, DistKm: 163, RiceKg: 2768061, WheatKg: 0, SugarKg: 682, FraudSeed: 0.15},
	{ID: "D22", Name: "Nirmal", Beneficiaries: 219972, Shops: 412, Lat: 19.096, Lon: 78.338, DistKm: 225, RiceKg: 4002726, WheatKg: 0, SugarKg: 0, FraudSeed: 0.17},
	{ID: "D23", Name: "Nizamabad", Beneficiaries: 403510, Shops: 759, Lat: 18.672, Lon: 78.094, DistKm: 163, RiceKg: 7815400, WheatKg: 0, SugarKg: 0, FraudSeed: 0.14},
	{ID: "D24", Name: "Peddapalli", Beneficiaries: 223553, Shops: 410, Lat: 18.618, Lon: 79.376, DistKm: 184, RiceKg: 3704959, WheatKg: 0, SugarKg: 1, FraudSeed: 0.13},
	{ID: "D25", Name: "Rajanna Siricilla", Beneficiaries: 177851, Shops: 345, Lat: 18.386, Lon: 78.837, DistKm: 155, RiceKg: 3032772, WheatKg: 0, SugarKg: 6138, FraudSeed: 0.13},
	{ID: "D26", Name: "Ranga Reddy", Beneficiaries: 572792, Shops: 936, Lat: 17.246, Lon: 78.372, DistKm: 18, RiceKg: 12953556, WheatKg: 467188, SugarKg: 5404, FraudSeed: 0.09},
	{ID: "D27", Name: "Sangareddy", Beneficiaries: 381017, Shops: 845, Lat: 17.619, Lon: 78.089, DistKm: 55, RiceKg: 7841638, WheatKg: 0, SugarKg: 0, FraudSeed: 0.10},
	{ID: "D28", Name: "Siddipet", Beneficiaries: 298985, Shops: 686, Lat: 18.103, Lon: 78.847, DistKm: 110, RiceKg: 5505663, WheatKg: 7598, SugarKg: 2461, FraudSeed: 0.10},
	{ID: "D29", Name: "Suryapet", Beneficiaries: 326057, Shops: 735, Lat: 17.141, Lon: 79.623, DistKm: 130, RiceKg: 5153375, WheatKg: 0, SugarKg: 1296, FraudSeed: 0.12},
	{ID: "D30", Name: "Vikarabad", Beneficiaries: 251097, Shops: 588, Lat: 17.338, Lon: 77.908, DistKm: 73, RiceKg: 4870765, WheatKg: 0, SugarKg: 0, FraudSeed: 0.10},
	{ID: "D31", Name: "Wanaparthy", Beneficiaries: 161316, Shops: 325, Lat: 16.367, Lon: 78.065, DistKm: 142, RiceKg: 2608385, WheatKg: 0, SugarKg: 10, FraudSeed: 0.15},
	{ID: "D32", Name: "Warangal", Beneficiaries: 267141, Shops: 509, Lat: 17.977, Lon: 79.598, DistKm: 145, RiceKg: 4329349, WheatKg: 0, SugarKg: 0, FraudSeed: 0.11},
	{ID: "D33", Name: "Yadadri Bhuvanagiri", Beneficiaries: 218963, Shops: 515, Lat: 17.509, Lon: 78.882, DistKm: 56, RiceKg: 3807576, WheatKg: 0, SugarKg: 1, FraudSeed: 0.09},
}
