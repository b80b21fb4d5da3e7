// Package config provides configuration types and loading for StoreLens.
// Configuration is resolved from defaults, environment variables, an optional
// YAML file, and CLI flags, in increasing order of precedence.
package config

import (
	"fmt"
	"time"
)

// Config holds the full runtime configuration.
type Config struct {
	// DataDir is the directory containing the parquet snapshot files.
	DataDir string `koanf:"data_dir"`

	// StoreCities is the store-location allowlist. Tables carrying a store
	// identifier are filtered to stores in these cities during load.
	StoreCities []string `koanf:"store_cities"`

	// CensusAPIKey authorizes requests to the Census ACS API. Only required
	// when the demographics pipeline is used.
	CensusAPIKey string `koanf:"census_api_key"`

	// CacheTTL is how long a loaded snapshot stays valid.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// DefaultStartDate and DefaultEndDate bound queries when the caller
	// supplies no date range (YYYY-MM-DD, empty means unbounded).
	DefaultStartDate string `koanf:"default_start_date"`
	DefaultEndDate   string `koanf:"default_end_date"`

	// Port is the HTTP listen port for the serve command.
	Port int `koanf:"port"`

	// StatePath is the path to the SQLite run-history database.
	StatePath string `koanf:"state_path"`

	// WatchData invalidates the snapshot cache when files under DataDir change.
	WatchData bool `koanf:"watch_data"`

	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d", c.Port)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative")
	}
	if c.DefaultStartDate != "" {
		if _, err := time.Parse("2006-01-02", c.DefaultStartDate); err != nil {
			return fmt.Errorf("default_start_date: %w", err)
		}
	}
	if c.DefaultEndDate != "" {
		if _, err := time.Parse("2006-01-02", c.DefaultEndDate); err != nil {
			return fmt.Errorf("default_end_date: %w", err)
		}
	}
	return nil
}

// DefaultDateRange returns the configured default date bounds. Zero times
// mean unbounded on that side.
func (c *Config) DefaultDateRange() (start, end time.Time) {
	if c.DefaultStartDate != "" {
		start, _ = time.Parse("2006-01-02", c.DefaultStartDate)
	}
	if c.DefaultEndDate != "" {
		end, _ = time.Parse("2006-01-02", c.DefaultEndDate)
	}
	return start, end
}
