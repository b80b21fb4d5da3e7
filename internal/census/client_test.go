package census

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const geocoderBody = `{
	"result": {
		"geographies": {
			"Counties": [
				{"GEOID": "16065", "STATE": "16", "COUNTY": "065", "NAME": "Madison County"}
			],
			"2020 Census ZIP Code Tabulation Areas": [
				{"GEOID": "83440", "ZCTA5": "83440"}
			]
		}
	}
}`

func TestResolveGeography_SmallRadiusUsesZCTA(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "-111.7897", r.URL.Query().Get("x"))
		assert.Equal(t, "43.8231", r.URL.Query().Get("y"))
		_, _ = w.Write([]byte(geocoderBody))
	}))
	defer srv.Close()

	c := New("", WithGeocoderURL(srv.URL))
	geo, err := c.ResolveGeography(context.Background(), 43.8231, -111.7897, 2)
	require.NoError(t, err)

	assert.Equal(t, LevelZCTA, geo.Level)
	assert.Equal(t, "83440", geo.ZCTA)
	assert.Equal(t, "16", geo.StateFIPS)
}

func TestResolveGeography_LargeRadiusUsesCounty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(geocoderBody))
	}))
	defer srv.Close()

	c := New("", WithGeocoderURL(srv.URL))
	geo, err := c.ResolveGeography(context.Background(), 43.8231, -111.7897, 25)
	require.NoError(t, err)

	assert.Equal(t, LevelCounty, geo.Level)
	assert.Equal(t, "065", geo.CountyFIPS)
	assert.Equal(t, "Madison County", geo.Name)
}

func TestResolveGeography_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": {"geographies": {}}}`))
	}))
	defer srv.Close()

	c := New("", WithGeocoderURL(srv.URL))
	_, err := c.ResolveGeography(context.Background(), 0, 0, 2)

	var geoErr *GeoResolutionError
	require.ErrorAs(t, err, &geoErr)
	assert.Contains(t, geoErr.Error(), "no census geography")
}

func TestFetchVariables(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "zip code tabulation area:83440", r.URL.Query().Get("for"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`[
			["NAME", "B01001_001E", "B19013_001E", "B25077_001E", "zip code tabulation area"],
			["ZCTA5 83440", "5432", "-666666666", "-", "83440"]
		]`))
	}))
	defer srv.Close()

	c := New("test-key", WithBaseURL(srv.URL))
	geo := Geography{Level: LevelZCTA, ZCTA: "83440", StateFIPS: "16"}

	values, err := c.FetchVariables(context.Background(), geo,
		[]string{"B01001_001E", "B19013_001E", "B25077_001E"})
	require.NoError(t, err)

	require.NotNil(t, values["B01001_001E"])
	assert.Equal(t, 5432.0, *values["B01001_001E"])
	assert.Nil(t, values["B19013_001E"], "ACS sentinel maps to nil")
	assert.Nil(t, values["B25077_001E"], "dash maps to nil")
}

func TestFetchVariables_StateGeography(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "state:16", r.URL.Query().Get("for"))
		_, _ = w.Write([]byte(`[
			["NAME", "B01001_001E", "state"],
			["Idaho", "1939033", "16"]
		]`))
	}))
	defer srv.Close()

	c := New("test-key", WithBaseURL(srv.URL))
	values, err := c.FetchVariables(context.Background(),
		StateOf(Geography{Level: LevelZCTA, StateFIPS: "16"}), []string{"B01001_001E"})
	require.NoError(t, err)
	require.NotNil(t, values["B01001_001E"])
	assert.Equal(t, 1939033.0, *values["B01001_001E"])
}

func TestFetchVariables_NoAPIKey(t *testing.T) {
	c := New("")
	_, err := c.FetchVariables(context.Background(),
		Geography{Level: LevelState, StateFIPS: "16"}, []string{"B01001_001E"})
	require.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[["NAME", "B01001_001E", "state"], ["Idaho", "10", "16"]]`))
	}))
	defer srv.Close()

	c := New("test-key", WithBaseURL(srv.URL))
	values, err := c.FetchVariables(context.Background(),
		Geography{Level: LevelState, StateFIPS: "16"}, []string{"B01001_001E"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.NotNil(t, values["B01001_001E"])
}

func TestGet_ExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New("test-key", WithBaseURL(srv.URL))
	_, err := c.FetchVariables(context.Background(),
		Geography{Level: LevelState, StateFIPS: "16"}, []string{"B01001_001E"})

	var svcErr *ExternalServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, 3, svcErr.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_ClientErrorFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New("test-key", WithBaseURL(srv.URL))
	_, err := c.FetchVariables(context.Background(),
		Geography{Level: LevelState, StateFIPS: "16"}, []string{"B01001_001E"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestParseACSValue(t *testing.T) {
	s := func(v string) *string { return &v }

	assert.Nil(t, parseACSValue(nil))
	assert.Nil(t, parseACSValue(s("")))
	assert.Nil(t, parseACSValue(s("-")))
	assert.Nil(t, parseACSValue(s("null")))
	assert.Nil(t, parseACSValue(s("-666666666")))
	assert.Nil(t, parseACSValue(s("-999999999")))

	v := parseACSValue(s("42.5"))
	require.NotNil(t, v)
	assert.Equal(t, 42.5, *v)
}
