package insight

import (
	"context"
	"fmt"

	"github.com/cairnlabs/storelens/internal/warehouse"
)

// DefaultTopProductsLimit caps the product ranking.
const DefaultTopProductsLimit = 5

// TopProductsFilter parameterizes the top-products pipeline.
type TopProductsFilter struct {
	Filter
	// Limit caps the ranking (default 5).
	Limit int
}

// ProductRow is one ranked product with its totals over the window.
type ProductRow struct {
	GTIN         string  `json:"gtin"`
	Description  string  `json:"description"`
	Brand        string  `json:"brand"`
	Category     string  `json:"category"`
	Revenue      float64 `json:"revenue"`
	Quantity     int64   `json:"quantity"`
	Transactions int64   `json:"transactions"`
	AvgPrice     float64 `json:"avg_price"`
}

// WeeklyPoint is one product's aggregate for one ISO week.
type WeeklyPoint struct {
	Year        int     `json:"year"`
	Week        int     `json:"week"`
	GTIN        string  `json:"gtin"`
	Description string  `json:"description"`
	Revenue     float64 `json:"revenue"`
	Quantity    int64   `json:"quantity"`
}

// TopProductsKPIs summarizes the ranked set.
type TopProductsKPIs struct {
	TotalRevenue         float64 `json:"total_revenue"`
	TotalQuantity        int64   `json:"total_quantity"`
	TotalTransactions    int64   `json:"total_transactions"`
	AvgRevenuePerProduct float64 `json:"avg_revenue_per_product"`
}

// TopProductsResult is the pipeline output.
type TopProductsResult struct {
	Products []ProductRow    `json:"products"`
	Weekly   []WeeklyPoint   `json:"weekly"`
	KPIs     TopProductsKPIs `json:"kpis"`
}

// topProductsBase filters the enriched daily aggregates to scannable,
// non-fuel rows with complete product attribution. Rows without a
// description, brand, and category cannot be presented meaningfully and
// are excluded, matching the dashboard's contract.
const topProductsBase = `
	SELECT * FROM daily_products
	WHERE SKUPOS_DESCRIPTION IS NOT NULL AND trim(SKUPOS_DESCRIPTION) <> ''
	  AND BRAND IS NOT NULL AND trim(BRAND) <> ''
	  AND CATEGORY IS NOT NULL AND trim(CATEGORY) <> ''
	  AND lower(CATEGORY) NOT LIKE '%fuel%'`

// TopProducts ranks products by summed weekly revenue, descending, over the
// filtered window. Ties break by GTIN ascending so reruns with identical
// parameters produce identical row order. Fewer than Limit qualifying
// products return as-is, never padded.
func TopProducts(ctx context.Context, w *warehouse.Warehouse, f TopProductsFilter) (*TopProductsResult, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultTopProductsLimit
	}

	cond, args := f.where("DATE", "STORE_ID")

	query := fmt.Sprintf(`
		WITH filtered AS (%s %s),
		weekly AS (
			SELECT CALENDAR_YEAR, WEEK, GTIN,
			       max(SKUPOS_DESCRIPTION) AS SKUPOS_DESCRIPTION,
			       max(BRAND) AS BRAND,
			       max(CATEGORY) AS CATEGORY,
			       CAST(SUM(TOTAL_REVENUE_AMOUNT) AS DOUBLE) AS revenue,
			       CAST(SUM(QUANTITY) AS BIGINT) AS quantity,
			       CAST(SUM(TRANSACTION_COUNT) AS BIGINT) AS transactions
			FROM filtered
			GROUP BY CALENDAR_YEAR, WEEK, GTIN
		)
		SELECT GTIN,
		       max(SKUPOS_DESCRIPTION), max(BRAND), max(CATEGORY),
		       CAST(SUM(revenue) AS DOUBLE),
		       CAST(SUM(quantity) AS BIGINT),
		       CAST(SUM(transactions) AS BIGINT)
		FROM weekly
		GROUP BY GTIN
		ORDER BY SUM(revenue) DESC, GTIN ASC
		LIMIT %d`, topProductsBase, cond, limit)

	rows, err := w.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("top products query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &TopProductsResult{}
	for rows.Next() {
		var p ProductRow
		if err := rows.Scan(&p.GTIN, &p.Description, &p.Brand, &p.Category,
			&p.Revenue, &p.Quantity, &p.Transactions); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		if p.Quantity > 0 {
			p.AvgPrice = p.Revenue / float64(p.Quantity)
		}
		result.Products = append(result.Products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}

	for _, p := range result.Products {
		result.KPIs.TotalRevenue += p.Revenue
		result.KPIs.TotalQuantity += p.Quantity
		result.KPIs.TotalTransactions += p.Transactions
	}
	if n := len(result.Products); n > 0 {
		result.KPIs.AvgRevenuePerProduct = result.KPIs.TotalRevenue / float64(n)
	}

	if len(result.Products) > 0 {
		weekly, err := topProductsWeekly(ctx, w, f, result.Products)
		if err != nil {
			return nil, err
		}
		result.Weekly = weekly
	}
	return result, nil
}

// topProductsWeekly returns the per-week series for the ranked products,
// ordered chronologically then by GTIN.
func topProductsWeekly(ctx context.Context, w *warehouse.Warehouse, f TopProductsFilter, top []ProductRow) ([]WeeklyPoint, error) {
	cond, args := f.where("DATE", "STORE_ID")
	gtins := make([]any, len(top))
	for i, p := range top {
		gtins[i] = p.GTIN
	}
	args = append(args, gtins...)

	query := fmt.Sprintf(`
		WITH filtered AS (%s %s)
		SELECT CALENDAR_YEAR, WEEK, GTIN, max(SKUPOS_DESCRIPTION),
		       CAST(SUM(TOTAL_REVENUE_AMOUNT) AS DOUBLE),
		       CAST(SUM(QUANTITY) AS BIGINT)
		FROM filtered
		WHERE GTIN IN (%s)
		GROUP BY CALENDAR_YEAR, WEEK, GTIN
		ORDER BY CALENDAR_YEAR, WEEK, GTIN`,
		topProductsBase, cond, placeholders(len(gtins)))

	rows, err := w.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("weekly series query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var series []WeeklyPoint
	for rows.Next() {
		var pt WeeklyPoint
		if err := rows.Scan(&pt.Year, &pt.Week, &pt.GTIN, &pt.Description,
			&pt.Revenue, &pt.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan weekly point: %w", err)
		}
		series = append(series, pt)
	}
	return series, rows.Err()
}
