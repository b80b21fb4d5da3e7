// Package census is a client for the US Census Bureau's ACS 5-year data API
// and its coordinate geocoder. It resolves a store location to a census
// geography and fetches demographic variables for it, with bounded retries
// around every network call.
package census

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultBaseURL     = "https://api.census.gov/data/2022/acs/acs5"
	defaultGeocoderURL = "https://geocoding.geo.census.gov/geocoder/geographies/coordinates"

	requestTimeout = 10 * time.Second
	maxRetries     = 2 // three attempts total
	backoffBase    = 500 * time.Millisecond

	// countyRadiusMiles is the cutoff between neighborhood-scale and
	// regional-scale questions: at or below it the store's ZCTA answers
	// best, above it the containing county does.
	countyRadiusMiles = 5.0
)

// Level is the granularity of a resolved geography.
type Level string

const (
	LevelZCTA   Level = "zcta"
	LevelCounty Level = "county"
	LevelState  Level = "state"
)

// Geography identifies one census area that variables can be fetched for.
type Geography struct {
	Level      Level  `json:"level"`
	Name       string `json:"name"`
	StateFIPS  string `json:"state_fips"`
	CountyFIPS string `json:"county_fips,omitempty"`
	ZCTA       string `json:"zcta,omitempty"`
}

// StateOf returns the state-level geography containing geo, used as the
// comparison baseline.
func StateOf(geo Geography) Geography {
	return Geography{Level: LevelState, StateFIPS: geo.StateFIPS, Name: "State"}
}

// Client is the surface the demographics pipeline needs. *HTTPClient is the
// production implementation; tests substitute fakes.
type Client interface {
	// ResolveGeography maps a coordinate and radius to the census geography
	// that best answers questions at that scale.
	ResolveGeography(ctx context.Context, lat, lon, radiusMiles float64) (*Geography, error)
	// FetchVariables returns the requested ACS variables for a geography.
	// Suppressed or unavailable values come back as nil, never as the ACS
	// sentinel numbers.
	FetchVariables(ctx context.Context, geo Geography, vars []string) (map[string]*float64, error)
}

// HTTPClient talks to the live Census endpoints.
type HTTPClient struct {
	apiKey      string
	baseURL     string
	geocoderURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithBaseURL points the data API at a different host.
func WithBaseURL(u string) Option {
	return func(c *HTTPClient) { c.baseURL = u }
}

// WithGeocoderURL points the geocoder at a different host.
func WithGeocoderURL(u string) Option {
	return func(c *HTTPClient) { c.geocoderURL = u }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *HTTPClient) { c.logger = l }
}

// New builds a client. The key may be empty; FetchVariables then fails with
// ErrNoAPIKey before touching the network.
func New(apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		geocoderURL: defaultGeocoderURL,
		httpClient:  &http.Client{Timeout: requestTimeout},
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type geocodeEntity struct {
	GEOID  string `json:"GEOID"`
	State  string `json:"STATE"`
	County string `json:"COUNTY"`
	Name   string `json:"NAME"`
	ZCTA5  string `json:"ZCTA5"`
}

type geocodeResponse struct {
	Result struct {
		Geographies map[string][]geocodeEntity `json:"geographies"`
	} `json:"result"`
}

// ResolveGeography asks the geocoder which geographies contain the point,
// then picks the level matching the radius.
func (c *HTTPClient) ResolveGeography(ctx context.Context, lat, lon, radiusMiles float64) (*Geography, error) {
	q := url.Values{}
	q.Set("x", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("benchmark", "Public_AR_Current")
	q.Set("vintage", "Current_Current")
	q.Set("format", "json")

	body, err := c.get(ctx, "census geocoder", c.geocoderURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp geocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode geocoder response: %w", err)
	}

	var county, zcta *geocodeEntity
	for layer, entities := range resp.Result.Geographies {
		if len(entities) == 0 {
			continue
		}
		e := entities[0]
		switch {
		case layer == "Counties":
			county = &e
		case strings.Contains(layer, "ZIP Code Tabulation"):
			zcta = &e
		}
	}
	if county == nil {
		return nil, &GeoResolutionError{
			Latitude: lat, Longitude: lon, RadiusMiles: radiusMiles,
			Reason: "coordinates match no county",
		}
	}

	geo := &Geography{
		Level:      LevelCounty,
		Name:       county.Name,
		StateFIPS:  county.State,
		CountyFIPS: county.County,
	}
	if radiusMiles <= countyRadiusMiles {
		if zcta == nil {
			return nil, &GeoResolutionError{
				Latitude: lat, Longitude: lon, RadiusMiles: radiusMiles,
				Reason: "coordinates match no ZIP code tabulation area",
			}
		}
		geo.Level = LevelZCTA
		geo.ZCTA = zcta.GEOID
		geo.Name = "ZCTA " + zcta.GEOID
	}

	c.logger.Debug("resolved census geography",
		"level", geo.Level, "name", geo.Name, "radius_miles", radiusMiles)
	return geo, nil
}

// FetchVariables pulls the given ACS variables for one geography.
func (c *HTTPClient) FetchVariables(ctx context.Context, geo Geography, vars []string) (map[string]*float64, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	q := url.Values{}
	q.Set("get", "NAME,"+strings.Join(vars, ","))
	q.Set("key", c.apiKey)
	switch geo.Level {
	case LevelZCTA:
		q.Set("for", "zip code tabulation area:"+geo.ZCTA)
	case LevelCounty:
		q.Set("for", "county:"+geo.CountyFIPS)
		q.Set("in", "state:"+geo.StateFIPS)
	case LevelState:
		q.Set("for", "state:"+geo.StateFIPS)
	default:
		return nil, fmt.Errorf("unsupported geography level %q", geo.Level)
	}

	body, err := c.get(ctx, "census acs api", c.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	// The ACS API returns a row-oriented JSON matrix: a header row of
	// column names followed by one data row per geography.
	var matrix [][]*string
	if err := json.Unmarshal(body, &matrix); err != nil {
		return nil, fmt.Errorf("failed to decode acs response: %w", err)
	}
	if len(matrix) < 2 {
		return nil, fmt.Errorf("acs response has no data rows for %s", geo.Name)
	}

	header, row := matrix[0], matrix[1]
	values := make(map[string]*float64, len(vars))
	for i, col := range header {
		if col == nil || i >= len(row) {
			continue
		}
		if _, want := Variables[*col]; !want && !contains(vars, *col) {
			continue
		}
		values[*col] = parseACSValue(row[i])
	}
	return values, nil
}

// parseACSValue converts a raw ACS cell to a value pointer. The API encodes
// suppressed or unavailable data as "-", empty strings, nulls, or large
// negative sentinels like -666666666; all of those become nil.
func parseACSValue(raw *string) *float64 {
	if raw == nil {
		return nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" || s == "-" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= -111111111 {
		return nil
	}
	return &v
}

func contains(vars []string, v string) bool {
	for _, x := range vars {
		if x == v {
			return true
		}
	}
	return false
}

// get performs one GET with bounded exponential-backoff retries. 5xx and
// 429 responses and transport errors retry; other statuses fail fast.
func (c *HTTPClient) get(ctx context.Context, service, rawURL string) ([]byte, error) {
	var body []byte
	attempts := 0

	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(backoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn("census request failed", "service", service, "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err = io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			c.logger.Warn("census request retryable status",
				"service", service, "attempt", attempts, "status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil
	})
	if err != nil {
		return nil, &ExternalServiceError{Service: service, Attempts: attempts, Err: err}
	}
	return body, nil
}
