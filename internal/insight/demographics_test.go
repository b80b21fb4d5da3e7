package insight

import (
	"context"
	"testing"

	"github.com/cairnlabs/storelens/internal/census"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCensus satisfies census.Client without a network.
type fakeCensus struct {
	geo     *census.Geography
	geoErr  error
	local   map[string]*float64
	state   map[string]*float64
	varsErr error
}

func (f *fakeCensus) ResolveGeography(_ context.Context, _, _, _ float64) (*census.Geography, error) {
	return f.geo, f.geoErr
}

func (f *fakeCensus) FetchVariables(_ context.Context, geo census.Geography, _ []string) (map[string]*float64, error) {
	if f.varsErr != nil {
		return nil, f.varsErr
	}
	if geo.Level == census.LevelState {
		return f.state, nil
	}
	return f.local, nil
}

func fv(v float64) *float64 { return &v }

func basicFake() *fakeCensus {
	return &fakeCensus{
		geo: &census.Geography{Level: census.LevelZCTA, ZCTA: "83442", StateFIPS: "16", Name: "ZCTA 83442"},
		local: map[string]*float64{
			"B01001_001E": fv(5000),
			"B19013_001E": fv(52000),
			"B25077_001E": fv(210000),
			"B15003_022E": fv(400),
			"B15003_023E": fv(150),
			"B15003_024E": fv(30),
			"B15003_025E": fv(20),
			"B17001_002E": fv(600),
		},
		state: map[string]*float64{
			"B01001_001E": fv(1939033),
			"B19013_001E": fv(63377),
		},
	}
}

func TestDemographics(t *testing.T) {
	w := openBasic(t)
	client := basicFake()

	result, err := Demographics(context.Background(), w, client, DemographicsFilter{
		StoreID: "101", RadiusMiles: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, "Rigby Quickstop", result.Store.Name)
	assert.Equal(t, census.LevelZCTA, result.Geography.Level)
	require.Len(t, result.Rows, len(census.VariableOrder))

	// Local and state values sit side by side in a fixed order.
	assert.Equal(t, "B01001_001E", result.Rows[0].Code)
	assert.Equal(t, "Total Population", result.Rows[0].Label)
	require.NotNil(t, result.Rows[0].LocalValue)
	assert.Equal(t, 5000.0, *result.Rows[0].LocalValue)
	require.NotNil(t, result.Rows[0].StateValue)
	assert.Equal(t, 1939033.0, *result.Rows[0].StateValue)

	require.NotNil(t, result.KPIs.Population)
	require.NotNil(t, result.KPIs.CollegePercent)
	assert.InDelta(t, 12.0, *result.KPIs.CollegePercent, 1e-9, "600 of 5000 hold degrees")
	require.NotNil(t, result.KPIs.PovertyPercent)
	assert.InDelta(t, 12.0, *result.KPIs.PovertyPercent, 1e-9)
}

func TestDemographics_SuppressedValuesStayNil(t *testing.T) {
	w := openBasic(t)
	client := basicFake()
	client.local["B01001_001E"] = nil

	result, err := Demographics(context.Background(), w, client, DemographicsFilter{StoreID: "101"})
	require.NoError(t, err)

	assert.Nil(t, result.KPIs.Population)
	assert.Nil(t, result.KPIs.PovertyPercent, "no denominator, no percentage")
	assert.Nil(t, result.KPIs.CollegePercent)
}

func TestDemographics_UnknownStore(t *testing.T) {
	w := openBasic(t)

	_, err := Demographics(context.Background(), w, basicFake(), DemographicsFilter{StoreID: "999"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "999")
}

func TestDemographics_GeoResolutionErrorSurfaces(t *testing.T) {
	w := openBasic(t)
	client := &fakeCensus{geoErr: &census.GeoResolutionError{
		Latitude: 43.672, Longitude: -111.915, RadiusMiles: 2, Reason: "nothing intersects",
	}}

	_, err := Demographics(context.Background(), w, client, DemographicsFilter{StoreID: "101"})
	var geoErr *census.GeoResolutionError
	require.ErrorAs(t, err, &geoErr)
}

func TestDemographics_MissingAPIKey(t *testing.T) {
	w := openBasic(t)
	client := basicFake()
	client.varsErr = census.ErrNoAPIKey

	_, err := Demographics(context.Background(), w, client, DemographicsFilter{StoreID: "101"})
	require.ErrorIs(t, err, census.ErrNoAPIKey)
}
