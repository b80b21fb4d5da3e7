package warehouse

// load.go - parquet ingestion, store deduplication, allowlist filtering

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// load ingests all source tables. Stores load first: every other table with
// a store identifier filters against the allowlisted store set.
func (w *Warehouse) load(ctx context.Context) error {
	if err := w.loadStores(ctx); err != nil {
		return err
	}
	for _, spec := range tableSpecs {
		if err := w.loadTable(ctx, spec); err != nil {
			return err
		}
	}
	return w.createViews(ctx)
}

// resolveSource checks the source file (or partition directory) exists and
// returns the path passed to read_parquet.
func (w *Warehouse) resolveSource(spec tableSpec) (string, error) {
	path := filepath.Join(w.dataDir, spec.Source)
	if spec.Glob {
		matches, err := filepath.Glob(path)
		if err != nil || len(matches) == 0 {
			return "", &DataSourceError{Path: path, Err: fmt.Errorf("no parquet files found")}
		}
		return path, nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", &DataSourceError{Path: path, Err: err}
	}
	return path, nil
}

// stage creates a temporary raw view over the source parquet.
func (w *Warehouse) stage(ctx context.Context, spec tableSpec, src string) (string, error) {
	view := "_raw_" + spec.Name
	stmt := fmt.Sprintf(
		"CREATE OR REPLACE TEMP VIEW %s AS SELECT * FROM read_parquet(%s, union_by_name=true)",
		view, quote(src),
	)
	if _, err := w.db.ExecContext(ctx, stmt); err != nil {
		return "", &DataSourceError{Path: src, Err: err}
	}
	return view, nil
}

// columnsOf returns the column names of a staged view, upper-cased.
func (w *Warehouse) columnsOf(ctx context.Context, view string) (map[string]bool, error) {
	rows, err := w.db.QueryContext(ctx, fmt.Sprintf("SELECT column_name FROM (DESCRIBE %s)", view))
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", view, err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		cols[strings.ToUpper(name)] = true
	}
	return cols, rows.Err()
}

// checkRequired returns a SchemaError listing every absent required column.
func checkRequired(table string, cols map[string]bool, required []string) error {
	var missing []string
	for _, col := range required {
		if !cols[strings.ToUpper(col)] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Table: table, Columns: missing}
	}
	return nil
}

// idColumns are cast to VARCHAR during load so joins and filters never
// trip over mixed integer/string identifier encodings across files.
var idColumns = []string{"STORE_ID", "GTIN", "TRANSACTION_SET_ID", "TRANSACTION_ITEM_ID"}

// projection builds the SELECT list for the final table: identifier and
// time casts via REPLACE, plus NULL stubs for absent optional columns.
func projection(spec tableSpec, cols map[string]bool) string {
	var replaces []string
	for _, col := range idColumns {
		if cols[col] {
			replaces = append(replaces, fmt.Sprintf("CAST(%s AS VARCHAR) AS %s", col, col))
		}
	}
	for _, col := range spec.TimestampCols {
		replaces = append(replaces, fmt.Sprintf("CAST(%s AS TIMESTAMP) AS %s", col, col))
	}
	for _, col := range spec.DateCols {
		replaces = append(replaces, fmt.Sprintf("CAST(%s AS DATE) AS %s", col, col))
	}

	sel := "*"
	if len(replaces) > 0 {
		sel = fmt.Sprintf("* REPLACE (%s)", strings.Join(replaces, ", "))
	}
	for _, col := range spec.Optional {
		if !cols[strings.ToUpper(col)] {
			sel += fmt.Sprintf(", CAST(NULL AS VARCHAR) AS %s", col)
		}
	}
	return sel
}

// loadStores ingests, filters, and deduplicates the store table.
// Duplicates by STORE_ID, then by normalized street address, resolve to the
// most recent record by coalesce(UPDATED_AT, CREATED_AT).
func (w *Warehouse) loadStores(ctx context.Context) error {
	spec := storesSpec

	src, err := w.resolveSource(spec)
	if err != nil {
		return err
	}
	view, err := w.stage(ctx, spec, src)
	if err != nil {
		return err
	}
	cols, err := w.columnsOf(ctx, view)
	if err != nil {
		return err
	}
	if err := checkRequired(spec.Name, cols, spec.Required); err != nil {
		return err
	}

	// Full store-id set, kept so the validator can tell true orphans apart
	// from rows excluded by the city allowlist.
	stmt := fmt.Sprintf(`CREATE TEMP TABLE _all_store_ids AS
		SELECT DISTINCT CAST(STORE_ID AS VARCHAR) AS STORE_ID FROM %s`, view)
	if _, err := w.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to collect store ids: %w", err)
	}

	cityFilter := ""
	if len(w.cities) > 0 {
		quoted := make([]string, len(w.cities))
		for i, c := range w.cities {
			quoted[i] = quote(strings.ToLower(c))
		}
		cityFilter = fmt.Sprintf("WHERE lower(trim(CITY)) IN (%s)", strings.Join(quoted, ", "))
	}

	stmt = fmt.Sprintf(`CREATE OR REPLACE TABLE stores AS
		WITH src AS (
			SELECT * REPLACE (CAST(STORE_ID AS VARCHAR) AS STORE_ID),
			       COALESCE(UPDATED_AT, CREATED_AT) AS _sort_ts
			FROM %s
			%s
		), dedup_id AS (
			SELECT * FROM (
				SELECT *, row_number() OVER (
					PARTITION BY STORE_ID ORDER BY _sort_ts DESC NULLS LAST
				) AS _rn
				FROM src
			) WHERE _rn = 1
		), dedup_addr AS (
			SELECT * FROM (
				SELECT * EXCLUDE (_rn), row_number() OVER (
					PARTITION BY lower(trim(STREET_ADDRESS)) ORDER BY _sort_ts DESC NULLS LAST
				) AS _rn
				FROM dedup_id
			) WHERE _rn = 1
		)
		SELECT * EXCLUDE (_sort_ts, _rn) FROM dedup_addr`, view, cityFilter)
	if _, err := w.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to build stores table: %w", err)
	}

	if err := w.countRows(ctx, spec.Name); err != nil {
		return err
	}
	w.dropView(ctx, view)
	return nil
}

// loadTable ingests a non-store table, filtering to allowlisted stores when
// the table carries a store identifier.
func (w *Warehouse) loadTable(ctx context.Context, spec tableSpec) error {
	src, err := w.resolveSource(spec)
	if err != nil {
		return err
	}
	view, err := w.stage(ctx, spec, src)
	if err != nil {
		return err
	}
	cols, err := w.columnsOf(ctx, view)
	if err != nil {
		return err
	}
	if err := checkRequired(spec.Name, cols, spec.Required); err != nil {
		return err
	}

	filter := ""
	if spec.HasStoreID {
		// Orphans (store ids absent from the full store table) are counted
		// before filtering; they are excluded, not silently lost.
		var orphans int64
		countStmt := fmt.Sprintf(`SELECT COUNT(*) FROM %s
			WHERE CAST(STORE_ID AS VARCHAR) NOT IN (SELECT STORE_ID FROM _all_store_ids)`, view)
		if err := w.db.QueryRowContext(ctx, countStmt).Scan(&orphans); err != nil {
			return fmt.Errorf("failed to count orphan rows for %s: %w", spec.Name, err)
		}
		w.orphanCounts[spec.Name] = orphans
		if orphans > 0 {
			w.logger.Warn("excluding rows with unknown store ids", "table", spec.Name, "rows", orphans)
		}
		filter = "WHERE CAST(STORE_ID AS VARCHAR) IN (SELECT STORE_ID FROM stores)"
	}

	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT %s FROM %s %s",
		spec.Name, projection(spec, cols), view, filter)
	if _, err := w.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to build %s table: %w", spec.Name, err)
	}

	if err := w.countRows(ctx, spec.Name); err != nil {
		return err
	}
	w.dropView(ctx, view)
	return nil
}

// createViews defines the derived views shared by the insight pipelines.
func (w *Warehouse) createViews(ctx context.Context) error {
	scanList := "'" + strings.Join(NonFuelScanTypes, "', '") + "'"

	views := []string{
		fmt.Sprintf(`CREATE OR REPLACE VIEW items_nonfuel AS
			SELECT * FROM transaction_items WHERE SCAN_TYPE IN (%s)`, scanList),
		fmt.Sprintf(`CREATE OR REPLACE VIEW daily_nonfuel AS
			SELECT * FROM daily_agg WHERE SCAN_TYPE IN (%s)`, scanList),
		// Daily aggregates enriched with product master data. The master
		// record wins; the aggregate's own denormalized columns are the
		// fallback for products missing from the master table.
		`CREATE OR REPLACE VIEW daily_products AS
			SELECT d.* EXCLUDE (SKUPOS_DESCRIPTION, BRAND, CATEGORY),
			       COALESCE(p.SKUPOS_DESCRIPTION, d.SKUPOS_DESCRIPTION) AS SKUPOS_DESCRIPTION,
			       COALESCE(p.BRAND, d.BRAND) AS BRAND,
			       COALESCE(p.CATEGORY, d.CATEGORY) AS CATEGORY,
			       p.SUBCATEGORY AS SUBCATEGORY,
			       p.MANUFACTURER AS MANUFACTURER
			FROM daily_nonfuel d
			LEFT JOIN products p USING (GTIN)`,
	}
	for _, stmt := range views {
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create view: %w", err)
		}
	}
	return nil
}

func (w *Warehouse) countRows(ctx context.Context, table string) error {
	var n int64
	if err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return fmt.Errorf("failed to count %s: %w", table, err)
	}
	w.rowCounts[table] = n
	w.logger.Debug("table loaded", "table", table, "rows", n)
	return nil
}

func (w *Warehouse) dropView(ctx context.Context, view string) {
	_, _ = w.db.ExecContext(ctx, "DROP VIEW IF EXISTS "+view)
}

// quote returns s as a single-quoted SQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
