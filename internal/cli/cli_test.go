package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cairnlabs/storelens/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Stderr carries the slog output and must stay out of the captured
	// stdout, or JSON assertions would trip over log lines.
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if t.Failed() && stderr.Len() > 0 {
		t.Logf("stderr:\n%s", stderr.String())
	}
	return stdout.String(), err
}

// snapshotArgs points the CLI at a fixture snapshot with scratch state.
func snapshotArgs(t *testing.T, extra ...string) []string {
	t.Helper()

	args := []string{
		"--data-dir", testutil.WriteBasicSnapshot(t),
		"--cities", "rigby,ririe,rexburg",
		"--state", filepath.Join(t.TempDir(), "history.db"),
	}
	return append(args, extra...)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "StoreLens v")
	assert.Contains(t, out, "DuckDB")
}

func TestValidateCommand(t *testing.T) {
	out, err := runCLI(t, snapshotArgs(t, "validate")...)
	require.NoError(t, err)
	assert.Contains(t, out, "passed=true")
	assert.Contains(t, out, "revenue_reconciliation")
	// Per-table profile renders ahead of the findings.
	assert.Contains(t, out, "Non-null")
	assert.Contains(t, out, "transaction_items")
}

func TestValidateCommand_BadDataDir(t *testing.T) {
	_, err := runCLI(t, "--data-dir", "/nonexistent/snapshots", "validate")
	require.Error(t, err)
}

func TestQueryTopProducts_JSON(t *testing.T) {
	out, err := runCLI(t, snapshotArgs(t, "--output", "json", "query", "top-products")...)
	require.NoError(t, err)

	var result struct {
		Products []struct {
			GTIN string `json:"gtin"`
		} `json:"products"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Products, 5)
	assert.Equal(t, "G1", result.Products[0].GTIN)
}

func TestQueryTopProducts_Table(t *testing.T) {
	out, err := runCLI(t, snapshotArgs(t, "query", "top-products", "--limit", "2")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Lays Classic 2.5oz")
	assert.NotContains(t, out, "Voltz")
	assert.Contains(t, out, "Total revenue $1400.00")
}

func TestQueryBeverageBrands(t *testing.T) {
	out, err := runCLI(t, snapshotArgs(t, "query", "beverage-brands")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Sunny")
	assert.Contains(t, out, "drop?")
	assert.Contains(t, out, "1 drop candidates worth $40.00")
}

func TestQueryPaymentComparison(t *testing.T) {
	out, err := runCLI(t, snapshotArgs(t, "query", "payment-comparison")...)
	require.NoError(t, err)
	assert.Contains(t, out, "unknown")
	assert.Contains(t, out, "4 transactions totaling $14.83")
}

func TestQueryDemographics_RequiresKey(t *testing.T) {
	_, err := runCLI(t, snapshotArgs(t, "query", "demographics", "--store", "101")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "census_api_key")
}

func TestHistoryCommand_Empty(t *testing.T) {
	out, err := runCLI(t, snapshotArgs(t, "history")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No load history yet.")
}

func TestConfigInit(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := runCLI(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote storelens.yaml")

	data, err := os.ReadFile("storelens.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "data_dir")

	_, err = runCLI(t, "config", "init")
	require.Error(t, err, "refuses to overwrite without --force")

	_, err = runCLI(t, "config", "init", "--force")
	require.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	out, err := runCLI(t, snapshotArgs(t, "config", "show")...)
	require.NoError(t, err)
	assert.Contains(t, out, "store_cities")
	assert.Contains(t, out, "rigby")
}
