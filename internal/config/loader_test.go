package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, []string{"rigby", "ririe", "rexburg"}, cfg.StoreCities)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ".storelens/state.db", cfg.StatePath)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storelens.yaml")
	content := `data_dir: /srv/cstore
store_cities: [Idaho Falls]
cache_ttl: 1h
port: 9000
default_start_date: "2023-01-01"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/srv/cstore", cfg.DataDir)
	assert.Equal(t, []string{"idaho falls"}, cfg.StoreCities, "cities are normalized to lower case")
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 9000, cfg.Port)
}

func TestLoad_ConfigFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/storelens.yaml", nil)
	require.Error(t, err)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storelens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\n"), 0644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	flags.String("state", "", "")
	require.NoError(t, flags.Parse([]string{"--port", "7777", "--state", "/tmp/st.db"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Port, "explicitly set flag wins over file")
	assert.Equal(t, "/tmp/st.db", cfg.StatePath, "--state maps to state_path")
}

func TestLoad_UnsetFlagDoesNotOverride(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 1234, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port, "flag default must not clobber config default")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STORELENS_DATA_DIR", "/mnt/snapshots")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "/mnt/snapshots", cfg.DataDir)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, true},
		{"port zero", func(c *Config) { c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"negative ttl", func(c *Config) { c.CacheTTL = -time.Minute }, true},
		{"bad start date", func(c *Config) { c.DefaultStartDate = "01/02/2023" }, true},
		{"good dates", func(c *Config) {
			c.DefaultStartDate = "2023-01-01"
			c.DefaultEndDate = "2023-12-31"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DataDir: "data", Port: 8080, CacheTTL: time.Minute}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_DefaultDateRange(t *testing.T) {
	cfg := &Config{DefaultStartDate: "2023-03-01", DefaultEndDate: "2023-03-31"}
	start, end := cfg.DefaultDateRange()
	assert.Equal(t, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC), end)

	var empty Config
	start, end = empty.DefaultDateRange()
	assert.True(t, start.IsZero())
	assert.True(t, end.IsZero())
}
