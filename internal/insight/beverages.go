package insight

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cairnlabs/storelens/internal/warehouse"
)

// DropMetric selects the measure the beverage ranking surfaces removal
// candidates by.
type DropMetric string

const (
	DropByRevenue      DropMetric = "revenue"
	DropByQuantity     DropMetric = "quantity"
	DropByTransactions DropMetric = "transactions"
)

// dropPercentile marks the bottom share of brands as removal candidates.
const dropPercentile = 0.20

// beverageKeywords classify a category or subcategory as a packaged
// beverage. Matching is case-insensitive substring, as in the dashboard.
var beverageKeywords = []string{"beverage", "drink", "soda", "juice", "water", "energy"}

// BeverageFilter parameterizes the beverage brand ranking.
type BeverageFilter struct {
	Filter
	// Categories restricts to specific beverage categories (empty = all).
	Categories []string
	// ExcludeBrands removes brands before ranking, so a candidate list can
	// be re-evaluated after a removal decision.
	ExcludeBrands []string
	// Metric is the drop-ranking measure (default revenue).
	Metric DropMetric
}

// BrandRow is one brand's aggregate over the window.
type BrandRow struct {
	Brand        string  `json:"brand"`
	Category     string  `json:"category"`
	Manufacturer string  `json:"manufacturer"`
	Revenue      float64 `json:"revenue"`
	Quantity     int64   `json:"quantity"`
	Transactions int64   `json:"transactions"`
	AvgRevenue   float64 `json:"avg_revenue_per_transaction"`
}

// MonthlyPoint is one brand's revenue for one calendar month.
type MonthlyPoint struct {
	YearMonth string  `json:"year_month"`
	Brand     string  `json:"brand"`
	Revenue   float64 `json:"revenue"`
}

// BeverageKPIs summarizes the ranking.
type BeverageKPIs struct {
	TotalBrands        int     `json:"total_brands"`
	TotalRevenue       float64 `json:"total_revenue"`
	AvgRevenuePerBrand float64 `json:"avg_revenue_per_brand"`
	DropCandidates     int     `json:"drop_candidates"`
	PotentialLoss      float64 `json:"potential_loss"`
}

// BeverageResult is the pipeline output. Brands are ordered ascending by
// the drop metric (weakest first), ties broken by brand name, so the head
// of the list is the strongest removal candidate.
type BeverageResult struct {
	Brands         []BrandRow     `json:"brands"`
	DropCandidates []BrandRow     `json:"drop_candidates"`
	Monthly        []MonthlyPoint `json:"monthly"`
	KPIs           BeverageKPIs   `json:"kpis"`
}

func (m DropMetric) value(b BrandRow) float64 {
	switch m {
	case DropByQuantity:
		return float64(b.Quantity)
	case DropByTransactions:
		return float64(b.Transactions)
	default:
		return b.Revenue
	}
}

// beverageBase selects non-fuel daily aggregates whose category or
// subcategory matches a beverage keyword. Brands missing from the master
// data land in the "unknown" bucket rather than being dropped.
func beverageBase(f BeverageFilter) (string, []any) {
	var kw []string
	for _, k := range beverageKeywords {
		kw = append(kw,
			fmt.Sprintf("lower(COALESCE(CATEGORY, '')) LIKE '%%%s%%'", k),
			fmt.Sprintf("lower(COALESCE(SUBCATEGORY, '')) LIKE '%%%s%%'", k))
	}

	cond, args := f.where("DATE", "STORE_ID")
	query := fmt.Sprintf(`
		SELECT * REPLACE (COALESCE(NULLIF(trim(BRAND), ''), 'unknown') AS BRAND)
		FROM daily_products
		WHERE (%s) %s`, strings.Join(kw, " OR "), cond)

	if len(f.Categories) > 0 {
		query += " AND CATEGORY IN (" + placeholders(len(f.Categories)) + ")"
		for _, c := range f.Categories {
			args = append(args, c)
		}
	}
	if len(f.ExcludeBrands) > 0 {
		query += " AND COALESCE(NULLIF(trim(BRAND), ''), 'unknown') NOT IN (" +
			placeholders(len(f.ExcludeBrands)) + ")"
		for _, b := range f.ExcludeBrands {
			args = append(args, b)
		}
	}
	return query, args
}

// BeverageBrands aggregates packaged-beverage performance per brand and
// ranks brands ascending by the drop metric to surface removal candidates.
func BeverageBrands(ctx context.Context, w *warehouse.Warehouse, f BeverageFilter) (*BeverageResult, error) {
	base, args := beverageBase(f)

	query := fmt.Sprintf(`
		WITH filtered AS (%s)
		SELECT BRAND,
		       max(COALESCE(CATEGORY, '')),
		       max(COALESCE(MANUFACTURER, '')),
		       CAST(SUM(TOTAL_REVENUE_AMOUNT) AS DOUBLE),
		       CAST(SUM(QUANTITY) AS BIGINT),
		       CAST(SUM(TRANSACTION_COUNT) AS BIGINT),
		       CAST(COALESCE(SUM(TOTAL_REVENUE_AMOUNT) / NULLIF(SUM(TRANSACTION_COUNT), 0), 0) AS DOUBLE)
		FROM filtered
		GROUP BY BRAND`, base)

	rows, err := w.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("beverage brands query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &BeverageResult{}
	for rows.Next() {
		var b BrandRow
		if err := rows.Scan(&b.Brand, &b.Category, &b.Manufacturer,
			&b.Revenue, &b.Quantity, &b.Transactions, &b.AvgRevenue); err != nil {
			return nil, fmt.Errorf("failed to scan brand row: %w", err)
		}
		result.Brands = append(result.Brands, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating brand rows: %w", err)
	}

	// Weakest first; ties resolve by brand name so the order is stable.
	sort.SliceStable(result.Brands, func(i, j int) bool {
		vi, vj := f.Metric.value(result.Brands[i]), f.Metric.value(result.Brands[j])
		if vi != vj {
			return vi < vj
		}
		return result.Brands[i].Brand < result.Brands[j].Brand
	})

	result.KPIs.TotalBrands = len(result.Brands)
	for _, b := range result.Brands {
		result.KPIs.TotalRevenue += b.Revenue
	}
	if n := len(result.Brands); n > 0 {
		result.KPIs.AvgRevenuePerBrand = result.KPIs.TotalRevenue / float64(n)
	}

	threshold := metricQuantile(result.Brands, f.Metric, dropPercentile)
	for _, b := range result.Brands {
		if f.Metric.value(b) <= threshold {
			result.DropCandidates = append(result.DropCandidates, b)
			result.KPIs.PotentialLoss += b.Revenue
		}
	}
	result.KPIs.DropCandidates = len(result.DropCandidates)

	monthly, err := beverageMonthly(ctx, w, f)
	if err != nil {
		return nil, err
	}
	result.Monthly = monthly

	return result, nil
}

// metricQuantile returns the linearly interpolated q-quantile of the drop
// metric over brands (which must already be sorted ascending by it).
func metricQuantile(brands []BrandRow, m DropMetric, q float64) float64 {
	if len(brands) == 0 {
		return math.Inf(-1)
	}
	pos := q * float64(len(brands)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return m.value(brands[lo])*(1-frac) + m.value(brands[hi])*frac
}

// beverageMonthly returns the per-month revenue series per brand.
func beverageMonthly(ctx context.Context, w *warehouse.Warehouse, f BeverageFilter) ([]MonthlyPoint, error) {
	base, args := beverageBase(f)

	query := fmt.Sprintf(`
		WITH filtered AS (%s)
		SELECT printf('%%04d-%%02d', CALENDAR_YEAR, CALENDAR_MONTH) AS ym,
		       BRAND,
		       CAST(SUM(TOTAL_REVENUE_AMOUNT) AS DOUBLE)
		FROM filtered
		GROUP BY ym, BRAND
		ORDER BY ym, BRAND`, base)

	rows, err := w.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("beverage monthly query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var series []MonthlyPoint
	for rows.Next() {
		var pt MonthlyPoint
		if err := rows.Scan(&pt.YearMonth, &pt.Brand, &pt.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan monthly point: %w", err)
		}
		series = append(series, pt)
	}
	return series, rows.Err()
}
