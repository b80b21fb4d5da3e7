package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Fixture writes parquet files for loader tests using a scratch DuckDB
// connection and COPY ... TO (FORMAT PARQUET).
type Fixture struct {
	t   *testing.T
	dir string
	db  *sql.DB
}

// NewFixture creates a fixture rooted in a fresh temp directory.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("failed to open scratch duckdb: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &Fixture{t: t, dir: t.TempDir(), db: db}
}

// Dir returns the snapshot directory.
func (f *Fixture) Dir() string {
	return f.dir
}

// WriteParquet evaluates query and writes the result to relPath under the
// fixture directory.
func (f *Fixture) WriteParquet(relPath, query string) {
	f.t.Helper()

	path := filepath.Join(f.dir, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		f.t.Fatalf("failed to create fixture dir: %v", err)
	}

	stmt := fmt.Sprintf("COPY (%s) TO '%s' (FORMAT PARQUET)",
		query, strings.ReplaceAll(path, "'", "''"))
	if _, err := f.db.Exec(stmt); err != nil {
		f.t.Fatalf("failed to write %s: %v\nquery: %s", relPath, err, query)
	}
}

// snapshotTable pairs a snapshot file with the query producing its rows.
type snapshotTable struct {
	Path  string
	Query string
}

// WriteBasicSnapshot writes the canonical small snapshot shared by tests
// and returns its directory. The data encodes the scenarios the pipelines
// are specified against:
//
//   - stores 101 (Rigby, with a stale duplicate record) and 102 (Ririe),
//     plus 201 (Boise) which the default allowlist excludes
//   - product G1 selling 100 units/week and G2 selling 50 units/week over
//     four ISO weeks (2023-06-05 .. 2023-06-26), plus three beverages and
//     a fuel product that must never surface in top products
//   - baskets T1 (cash), T2 (credit), T3 (no payment record -> unknown),
//     T4 (check -> other)
func WriteBasicSnapshot(t *testing.T) string {
	t.Helper()
	return WriteSnapshot(t, nil)
}

// WriteSnapshot writes the basic snapshot with per-file query overrides.
// An override with an empty query skips that file entirely.
func WriteSnapshot(t *testing.T, overrides map[string]string) string {
	t.Helper()
	f := NewFixture(t)

	for _, tbl := range basicTables {
		query := tbl.Query
		if override, ok := overrides[tbl.Path]; ok {
			if override == "" {
				continue
			}
			query = override
		}
		f.WriteParquet(tbl.Path, query)
	}
	return f.Dir()
}

var basicTables = []snapshotTable{
	{"cstore_stores.parquet", `SELECT * FROM (VALUES
		('101', 'Rigby Quickstop', 'CH1', 'Rigby', '100 Main St', '83442', 43.672, -111.915,
			TIMESTAMP '2020-01-01 00:00:00', TIMESTAMP '2021-06-01 00:00:00'),
		('101', 'Rigby Quickstop (old)', 'CH1', 'Rigby', '100 Main St', '83442', 43.672, -111.915,
			TIMESTAMP '2020-01-01 00:00:00', TIMESTAMP '2020-06-01 00:00:00'),
		('102', 'Ririe Corner', 'CH1', 'Ririe', '200 Oak Ave', '83443', 43.632, -111.772,
			TIMESTAMP '2020-02-01 00:00:00', NULL),
		('201', 'Boise Site', 'CH2', 'Boise', '300 Elm St', '83702', 43.615, -116.202,
			TIMESTAMP '2020-03-01 00:00:00', TIMESTAMP '2021-01-01 00:00:00')
	) AS t(STORE_ID, STORE_NAME, CHAIN_ID, CITY, STREET_ADDRESS, ZIP_CODE,
		LATITUDE, LONGITUDE, CREATED_AT, UPDATED_AT)`},

	{"cstore_master_ctin.parquet", `SELECT * FROM (VALUES
		('G1', 'Snacks', 'Chips', 'Lays', 'PepsiCo', 'Lays Classic 2.5oz', '2.5oz'),
		('G2', 'Snacks', 'Chips', 'Doritos', 'PepsiCo', 'Doritos Nacho 2.75oz', '2.75oz'),
		('B1', 'Packaged Beverages', 'Soda', 'Cola Co', 'Cola Co', 'Cola 12oz', '12oz'),
		('B2', 'Packaged Beverages', 'Energy Drinks', 'Voltz', 'Voltz Inc', 'Voltz Energy 16oz', '16oz'),
		('B3', 'Packaged Beverages', 'Juice', 'Sunny', 'Sunny Inc', 'Sunny OJ 10oz', '10oz'),
		('F1', 'Fuel', 'Unleaded', NULL, NULL, 'Unleaded 87', NULL)
	) AS t(GTIN, CATEGORY, SUBCATEGORY, BRAND, MANUFACTURER, SKUPOS_DESCRIPTION, UNIT_SIZE)`},

	// Four Mondays spanning ISO weeks 23-26 of 2023.
	{"cstore_transactions_daily_agg.parquet", `
		WITH weeks AS (
			SELECT * FROM (VALUES
				(DATE '2023-06-05', 23), (DATE '2023-06-12', 24),
				(DATE '2023-06-19', 25), (DATE '2023-06-26', 26)
			) AS w(DATE, WEEk)
		), metrics AS (
			SELECT * FROM (VALUES
				('G1', 'GTIN', 100, 200.0, 50),
				('G2', 'GTIN', 50, 150.0, 25),
				('B1', 'GTIN', 30, 60.0, 20),
				('B2', 'GTIN', 10, 40.0, 8),
				('B3', 'GTIN', 5, 10.0, 4),
				('F1', 'NONSCAN', 500, 1000.0, 100)
			) AS m(GTIN, SCAN_TYPE, QUANTITY, TOTAL_REVENUE_AMOUNT, TRANSACTION_COUNT)
		)
		SELECT '101' AS STORE_ID, m.GTIN, w.DATE, w.WEEk,
			2023 AS CALENDAR_YEAR, 6 AS CALENDAR_MONTH,
			m.SCAN_TYPE, m.QUANTITY, m.TOTAL_REVENUE_AMOUNT, m.TRANSACTION_COUNT,
			CAST(NULL AS VARCHAR) AS SKUPOS_DESCRIPTION,
			CAST(NULL AS VARCHAR) AS BRAND,
			CAST(NULL AS VARCHAR) AS CATEGORY
		FROM weeks w CROSS JOIN metrics m`},

	{"cstore_transaction_sets.parquet", `SELECT * FROM (VALUES
		('T1', '101', TIMESTAMP '2023-06-05 10:00:00', 6.35, 6.00, 0.35, 1),
		('T2', '101', TIMESTAMP '2023-06-06 11:00:00', 2.12, 2.00, 0.12, 1),
		('T3', '101', TIMESTAMP '2023-06-07 12:00:00', 3.18, 3.00, 0.18, 2),
		('T4', '102', TIMESTAMP '2023-06-08 13:00:00', 3.18, 3.00, 0.18, 2)
	) AS t(TRANSACTION_SET_ID, STORE_ID, DATE_TIME,
		GRAND_TOTAL_AMOUNT, SUBTOTAL_AMOUNT, TAX_AMOUNT, POS_TYPE_ID)`},

	{"transaction_items/part-0.parquet", `SELECT * FROM (VALUES
		('I1', 'T1', '101', 'G1', 'GTIN', TIMESTAMP '2023-06-05 10:00:00', 2.00, 2, 4.00, 0.00),
		('I2', 'T1', '101', 'B1', 'GTIN', TIMESTAMP '2023-06-05 10:00:00', 2.00, 1, 2.00, 0.00),
		('I3', 'T2', '101', 'G1', 'GTIN', TIMESTAMP '2023-06-06 11:00:00', 2.00, 1, 2.00, 0.00),
		('I4', 'T3', '101', 'B2', 'GTIN', TIMESTAMP '2023-06-07 12:00:00', 3.00, 1, 3.00, 0.00),
		('I5', 'T4', '102', 'G2', 'GTIN', TIMESTAMP '2023-06-08 13:00:00', 3.00, 1, 3.00, 0.00)
	) AS t(TRANSACTION_ITEM_ID, TRANSACTION_SET_ID, STORE_ID, GTIN, SCAN_TYPE,
		DATE_TIME, UNIT_PRICE, UNIT_QUANTITY, GRAND_TOTAL_AMOUNT, DISCOUNT_AMOUNT)`},

	{"cstore_payments.parquet", `SELECT * FROM (VALUES
		('T1', '101', 'cash', NULL, TIMESTAMP '2023-06-05 10:00:00'),
		('T2', '101', 'credit', 'VISA', TIMESTAMP '2023-06-06 11:00:00'),
		('T4', '102', 'check', NULL, TIMESTAMP '2023-06-08 13:00:00')
	) AS t(TRANSACTION_SET_ID, STORE_ID, PAYMENT_TYPE, CARD_TYPE, DATE_TIME)`},

	{"cstore_discounts.parquet", `SELECT * FROM (VALUES
		('D1', 'T1', '101', TIMESTAMP '2023-06-05 10:00:00', 0.50, 'LOYALTY')
	) AS t(DISCOUNT_ID, TRANSACTION_SET_ID, STORE_ID, DATE_TIME, DISCOUNT_AMOUNT, DISCOUNT_TYPE)`},

	{"cstore_shopper.parquet", `SELECT * FROM (VALUES
		('S1', '25-34', 'M'), ('S2', '35-44', 'F')
	) AS t(SHOPPER_ID, AGE_GROUP, GENDER)`},
}

// DefaultCities is the allowlist matching the basic snapshot.
var DefaultCities = []string{"rigby", "ririe", "rexburg"}
