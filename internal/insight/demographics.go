package insight

import (
	"context"
	"fmt"

	"github.com/cairnlabs/storelens/internal/census"
	"github.com/cairnlabs/storelens/internal/warehouse"
)

// DefaultRadiusMiles is the trade-area radius when the caller gives none.
const DefaultRadiusMiles = 3.0

// DemographicsFilter parameterizes the demographics comparison.
type DemographicsFilter struct {
	StoreID     string
	RadiusMiles float64
}

// DemographicRow is one ACS variable, local value beside the state value.
// Nil values are suppressed or unavailable in the source data.
type DemographicRow struct {
	Code       string   `json:"code"`
	Label      string   `json:"label"`
	LocalValue *float64 `json:"local_value"`
	StateValue *float64 `json:"state_value"`
}

// DemographicsKPIs are derived headline figures for the local geography.
type DemographicsKPIs struct {
	Population      *float64 `json:"population"`
	MedianIncome    *float64 `json:"median_income"`
	CollegePercent  *float64 `json:"college_percent"`
	PovertyPercent  *float64 `json:"poverty_percent"`
	MedianHomeValue *float64 `json:"median_home_value"`
}

// DemographicsResult is the pipeline output.
type DemographicsResult struct {
	Store     warehouse.Store  `json:"store"`
	Geography census.Geography `json:"geography"`
	Rows      []DemographicRow `json:"rows"`
	KPIs      DemographicsKPIs `json:"kpis"`
}

// Demographics resolves a store's trade area to a census geography and
// fetches the ACS variable set for it and for the containing state, so the
// caller can present the neighborhood against its state baseline.
func Demographics(ctx context.Context, w *warehouse.Warehouse, client census.Client, f DemographicsFilter) (*DemographicsResult, error) {
	radius := f.RadiusMiles
	if radius <= 0 {
		radius = DefaultRadiusMiles
	}

	store, err := w.StoreByID(ctx, f.StoreID)
	if err != nil {
		return nil, fmt.Errorf("store lookup failed: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("unknown store %q", f.StoreID)
	}

	geo, err := client.ResolveGeography(ctx, store.Latitude, store.Longitude, radius)
	if err != nil {
		return nil, err
	}

	local, err := client.FetchVariables(ctx, *geo, census.VariableOrder)
	if err != nil {
		return nil, err
	}
	state, err := client.FetchVariables(ctx, census.StateOf(*geo), census.VariableOrder)
	if err != nil {
		return nil, err
	}

	result := &DemographicsResult{Store: *store, Geography: *geo}
	for _, code := range census.VariableOrder {
		result.Rows = append(result.Rows, DemographicRow{
			Code:       code,
			Label:      census.Variables[code],
			LocalValue: local[code],
			StateValue: state[code],
		})
	}

	result.KPIs = DemographicsKPIs{
		Population:      local["B01001_001E"],
		MedianIncome:    local["B19013_001E"],
		MedianHomeValue: local["B25077_001E"],
		CollegePercent:  collegePercent(local),
		PovertyPercent:  percentOf(local["B17001_002E"], local["B01001_001E"]),
	}
	return result, nil
}

// collegePercent is bachelor's-and-above holders as a share of population.
func collegePercent(values map[string]*float64) *float64 {
	var sum float64
	var any bool
	for _, code := range []string{"B15003_022E", "B15003_023E", "B15003_024E", "B15003_025E"} {
		if v := values[code]; v != nil {
			sum += *v
			any = true
		}
	}
	if !any {
		return nil
	}
	return percentOf(&sum, values["B01001_001E"])
}

func percentOf(part, whole *float64) *float64 {
	if part == nil || whole == nil || *whole == 0 {
		return nil
	}
	pct := *part / *whole * 100
	return &pct
}
