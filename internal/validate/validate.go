// Package validate runs data-quality checks over a loaded warehouse
// snapshot. Structural problems (missing files, missing columns) are the
// loader's to raise; everything here is an observation about the data,
// reported but never fatal.
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cairnlabs/storelens/internal/warehouse"
)

// totalsTolerance is the allowed absolute gap between a transaction set's
// grand total and its subtotal plus tax.
const totalsTolerance = 0.01

// reconcileTolerance is the allowed relative gap between daily-aggregate
// revenue and line-item revenue over the same window.
const reconcileTolerance = 0.01

// check is one validation rule.
type check struct {
	name string
	run  func(ctx context.Context, w *warehouse.Warehouse) ([]Finding, error)
}

var checks = []check{
	{"null_rates", checkNullRates},
	{"orphan_rows", checkOrphans},
	{"duplicate_ids", checkDuplicateIDs},
	{"scan_type_enum", checkScanTypes},
	{"value_ranges", checkValueRanges},
	{"pos_type_range", checkPOSTypes},
	{"set_totals", checkSetTotals},
	{"excessive_discounts", checkExcessiveDiscounts},
	{"revenue_reconciliation", checkReconciliation},
}

// Run executes every check against the snapshot. The returned error covers
// query execution only; data findings land in the report regardless of
// severity.
func Run(ctx context.Context, w *warehouse.Warehouse, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	report := &Report{StartedAt: time.Now().UTC(), Checks: len(checks)}

	tables, err := tableSummaries(ctx, w)
	if err != nil {
		return nil, err
	}
	report.Tables = tables

	for _, c := range checks {
		findings, err := c.run(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("check %s failed: %w", c.name, err)
		}
		for i := range findings {
			findings[i].Check = c.name
		}
		report.Findings = append(report.Findings, findings...)
	}
	report.Duration = time.Since(report.StartedAt)

	logger.Info("validation complete",
		"checks", report.Checks,
		"findings", len(report.Findings),
		"errors", report.CountBySeverity(SeverityError),
		"warnings", report.CountBySeverity(SeverityWarning),
		"passed", report.Passed())
	return report, nil
}

// tableSummaries profiles every loaded table: row count plus the non-null
// rate of each required column, in one scan per table.
func tableSummaries(ctx context.Context, w *warehouse.Warehouse) ([]TableSummary, error) {
	var out []TableSummary
	for _, table := range w.Tables() {
		ts := TableSummary{Table: table, Rows: w.RowCount(table)}
		cols := warehouse.RequiredColumns(table)
		if len(cols) == 0 {
			out = append(out, ts)
			continue
		}

		exprs := make([]string, len(cols))
		for i, col := range cols {
			exprs[i] = fmt.Sprintf("COUNT(%s)", col)
		}
		counts := make([]int64, len(cols))
		dests := make([]any, len(cols))
		for i := range counts {
			dests[i] = &counts[i]
		}
		query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), table)
		if err := w.QueryRow(ctx, query).Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to profile %s: %w", table, err)
		}

		for i, col := range cols {
			pct := 100.0
			if ts.Rows > 0 {
				pct = float64(counts[i]) / float64(ts.Rows) * 100
			}
			ts.Columns = append(ts.Columns, ColumnRate{Column: col, NonNullPercent: pct})
		}
		out = append(out, ts)
	}
	return out, nil
}

// countQuery runs a COUNT(*) style query and emits a finding when the count
// is positive.
func countQuery(ctx context.Context, w *warehouse.Warehouse, query string, mk func(n int64) Finding) ([]Finding, error) {
	var n int64
	if err := w.QueryRow(ctx, query).Scan(&n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return []Finding{mk(n)}, nil
}

// nullChecks lists the columns whose null rate matters to the pipelines.
var nullChecks = []struct {
	table, column string
}{
	{"transaction_items", "GTIN"},
	{"transaction_items", "SCAN_TYPE"},
	{"transaction_sets", "GRAND_TOTAL_AMOUNT"},
	{"stores", "LATITUDE"},
	{"stores", "LONGITUDE"},
	{"daily_agg", "TOTAL_REVENUE_AMOUNT"},
	{"payments", "PAYMENT_TYPE"},
}

func checkNullRates(ctx context.Context, w *warehouse.Warehouse) ([]Finding, error) {
	var findings []Finding
	for _, nc := range nullChecks {
		total := w.RowCount(nc.table)
		if total == 0 {
			continue
		}
		fs, err := countQuery(ctx, w, fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE %s IS NULL", nc.table, nc.column),
			func(n int64) Finding {
				return Finding{
					Table:    nc.table,
					Severity: SeverityWarning,
					Count:    n,
					Message: fmt.Sprintf("%s is null in %d of %d rows (%.1f%%)",
						nc.column, n, total, float64(n)/float64(total)*100),
				}
			})
		if err != nil {
			return nil, err
		}
		findings = append(findings, fs...)
	}
	return findings, nil
}

func checkOrphans(ctx context.Context, w *warehouse.Warehouse) ([]Finding, error) {
	var findings []Finding
	for _, table := range w.Tables() {
		if n := w.OrphanCount(table); n > 0 {
			findings = append(findings, Finding{
				Table:    table,
				Severity: SeverityWarning,
				Count:    n,
				Message:  fmt.Sprintf("%d rows referenced a store unknown to the snapshot and were excluded", n),
			})
		}
	}

	// Scanned items whose GTIN is missing from the product master lose
	// their description and brand in every ranking. Fuel rows are exempt:
	// NONSCAN lines carry no cataloged product.
	scanList := "'" + strings.Join(warehouse.NonFuelScanTypes, "', '") + "'"
	fs, err := countQuery(ctx, w, fmt.Sprintf(`
		SELECT COUNT(*) FROM transaction_items
		WHERE SCAN_TYPE IN (%s)
		  AND GTIN IS NOT NULL
		  AND GTIN NOT IN (SELECT GTIN FROM products)`, scanList),
		func(n int64) Finding {
			return Finding{
				Table:    "transaction_items",
				Severity: SeverityWarning,
				Count:    n,
				Message:  fmt.Sprintf("%d scanned line items reference a GTIN absent from the product master", n),
			}
		})
	if err != nil {
		return nil, err
	}
	return append(findings, fs...), nil
}

// idChecks lists the identifier columns that must be unique per table.
var idChecks = []struct {
	table, column string
}{
	{"transaction_sets", "TRANSACTION_SET_ID"},
	{"transaction_items", "TRANSACTION_ITEM_ID"},
	{"products", "GTIN"},
	{"stores", "STORE_ID"},
}

func checkDuplicateIDs(ctx context.Context, w *warehouse.Warehouse) ([]Finding, error) {
	var findings []Finding
	for _, ic := range idChecks {
		fs, err := countQuery(ctx, w, fmt.Sprintf(`
			SELECT COUNT(*) FROM (
				SELECT %s FROM %s GROUP BY %s HAVING COUNT(*) > 1
			)`, ic.column, ic.table, ic.column),
			func(n int64) Finding {
				return Finding{
					Table:    ic.table,
					Severity: SeverityError,
					Count:    n,
					Message:  fmt.Sprintf("%d %s values appear more than once", n, ic.column),
				}
			})
		if err != nil {
			return nil, err
		}
		findings = append(findings, fs...)
	}
	return findings, nil
}

func checkScanTypes(ctx context.Context, w *warehouse.Warehouse) ([]Finding, error) {
	scanList := "'" + strings.Join(warehouse.ScanTypes, "', '") + "'"
	return countQuery(ctx, w, fmt.Sprintf(`
		SELECT COUNT(*) FROM transaction_items
		WHERE SCAN_TYPE IS NOT NULL AND SCAN_TYPE NOT IN (%s)`, scanList),
		func(n int64) Finding {
			return Finding{
				Table:    "transaction_items",
				Severity: SeverityError,
				Count:    n,
				Message:  fmt.Sprintf("%d rows carry a SCAN_TYPE outside the known enumeration", n),
			}
		})
}

// rangeChecks lists columns that must never be negative.
var rangeChecks = []struct {
	table, column string
}{
	{"transaction_items", "UNIT_QUANTITY"},
	{"transaction_items", "UNIT_PRICE"},
	{"transaction_sets", "GRAND_TOTAL_AMOUNT"},
	{"daily_agg", "QUANTITY"},
	{"daily_agg", "TOTAL_REVENUE_AMOUNT"},
	{"daily_agg", "TRANSACTION_COUNT"},
}

func checkValueRanges(ctx context.Context, w *warehouse.Warehouse) ([]Finding, error) {
	var findings []Finding
	for _, rc := range rangeChecks {
		fs, err := countQuery(ctx, w, fmt.Sprintf(
			"SELECT COUNT(*) FROM %s WHERE %s < 0", rc.table, rc.column),
			func(n int64) Finding {
				return Finding{
					Table:    rc.table,
					Severity: SeverityError,
					Count:    n,
					Message:  fmt.Sprintf("%d rows have negative %s", n, rc.column),
				}
			})
		if err != nil {
			return nil, err
		}
		findings = append(findings, fs...)
	}
	return findings, nil
}

func checkPOSTypes(ctx context.Context, w *warehouse.Warehouse) ([]Finding, error) {
	return countQuery(ctx, w, `
		SELECT COUNT(*) FROM transaction_sets
		WHERE POS_TYPE_ID IS NOT NULL AND (POS_TYPE_ID < 1 OR POS_TYPE_ID > 4)`,
		func(n int64) Finding {
			return Finding{
				Table:    "transaction_sets",
				Severity: SeverityWarning,
				Count:    n,
				Message:  fmt.Sprintf("%d rows have POS_TYPE_ID outside 1..4", n),
			}
		})
}

func checkSetTotals(ctx context.Context, w *warehouse.Warehouse) ([]Finding, error) {
	return countQuery(ctx, w, fmt.Sprintf(`
		SELECT COUNT(*) FROM transaction_sets
		WHERE abs(CAST(GRAND_TOTAL_AMOUNT - (SUBTOTAL_AMOUNT + TAX_AMOUNT) AS DOUBLE)) > %g`,
		totalsTolerance),
		func(n int64) Finding {
			return Finding{
				Table:    "transaction_sets",
				Severity: SeverityWarning,
				Count:    n,
				Message:  fmt.Sprintf("%d sets where grand total differs from subtotal plus tax by more than $%.2f", n, totalsTolerance),
			}
		})
}

func checkExcessiveDiscounts(ctx context.Context, w *warehouse.Warehouse) ([]Finding, error) {
	return countQuery(ctx, w, `
		SELECT COUNT(*) FROM transaction_items
		WHERE DISCOUNT_AMOUNT > GRAND_TOTAL_AMOUNT AND DISCOUNT_AMOUNT > 0`,
		func(n int64) Finding {
			return Finding{
				Table:    "transaction_items",
				Severity: SeverityWarning,
				Count:    n,
				Message:  fmt.Sprintf("%d line items discounted beyond their own total", n),
			}
		})
}

// checkReconciliation compares daily-aggregate revenue against line-item
// revenue over the overlapping date window. The two feeds are produced
// independently upstream, so a small drift is expected.
func checkReconciliation(ctx context.Context, w *warehouse.Warehouse) ([]Finding, error) {
	scanList := "'" + strings.Join(warehouse.NonFuelScanTypes, "', '") + "'"

	var aggRevenue, itemRevenue float64
	err := w.QueryRow(ctx, fmt.Sprintf(`
		SELECT COALESCE(CAST(SUM(TOTAL_REVENUE_AMOUNT) AS DOUBLE), 0)
		FROM daily_agg
		WHERE SCAN_TYPE IN (%s)
		  AND DATE BETWEEN (SELECT CAST(min(DATE_TIME) AS DATE) FROM transaction_items)
		               AND (SELECT CAST(max(DATE_TIME) AS DATE) FROM transaction_items)`,
		scanList)).Scan(&aggRevenue)
	if err != nil {
		return nil, err
	}
	err = w.QueryRow(ctx, fmt.Sprintf(`
		SELECT COALESCE(CAST(SUM(GRAND_TOTAL_AMOUNT) AS DOUBLE), 0)
		FROM transaction_items WHERE SCAN_TYPE IN (%s)`, scanList)).Scan(&itemRevenue)
	if err != nil {
		return nil, err
	}

	if aggRevenue == 0 && itemRevenue == 0 {
		return nil, nil
	}
	base := aggRevenue
	if base == 0 {
		base = itemRevenue
	}
	drift := (aggRevenue - itemRevenue) / base
	if drift < 0 {
		drift = -drift
	}
	if drift <= reconcileTolerance {
		return []Finding{{
			Table:    "daily_agg",
			Severity: SeverityInfo,
			Message: fmt.Sprintf("aggregate revenue $%.2f reconciles with item revenue $%.2f (%.2f%% drift)",
				aggRevenue, itemRevenue, drift*100),
		}}, nil
	}
	return []Finding{{
		Table:    "daily_agg",
		Severity: SeverityWarning,
		Message: fmt.Sprintf("aggregate revenue $%.2f vs item revenue $%.2f drifts %.1f%%, beyond the %.0f%% tolerance",
			aggRevenue, itemRevenue, drift*100, reconcileTolerance*100),
	}}, nil
}
