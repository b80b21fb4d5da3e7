package census

import (
	"errors"
	"fmt"
)

// ErrNoAPIKey means the client was asked to fetch data without a configured
// Census API key. Callers should surface this as a configuration problem
// before attempting any network call.
var ErrNoAPIKey = errors.New("census api key not configured")

// GeoResolutionError means a store's coordinates could not be resolved to
// any census geography: the point falls outside every tract the geocoder
// knows, or the requested radius intersects nothing.
type GeoResolutionError struct {
	Latitude    float64
	Longitude   float64
	RadiusMiles float64
	Reason      string
}

func (e *GeoResolutionError) Error() string {
	return fmt.Sprintf("no census geography for (%.4f, %.4f) within %.1f miles: %s",
		e.Latitude, e.Longitude, e.RadiusMiles, e.Reason)
}

// ExternalServiceError wraps a Census API failure that survived retries.
type ExternalServiceError struct {
	Service  string
	Attempts int
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Service, e.Attempts, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }
