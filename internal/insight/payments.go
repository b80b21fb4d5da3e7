package insight

import (
	"context"
	"fmt"

	"github.com/cairnlabs/storelens/internal/warehouse"
)

// PaymentClass partitions transactions by how they were paid. A basket with
// no payment record (or a null payment type) is "unknown": it is reported
// separately, never folded into "other".
type PaymentClass string

const (
	PayCash    PaymentClass = "cash"
	PayCredit  PaymentClass = "credit"
	PayOther   PaymentClass = "other"
	PayUnknown PaymentClass = "unknown"
)

// PaymentClasses is the fixed presentation order.
var PaymentClasses = []PaymentClass{PayCash, PayCredit, PayOther, PayUnknown}

// classTopProducts caps the per-class product preference list.
const classTopProducts = 10

// PaymentFilter parameterizes the payment comparison.
type PaymentFilter struct {
	Filter
	// Classes restricts the output (empty = all four classes).
	Classes []PaymentClass
}

// ClassProduct is one product ranked by line-item count within a class.
type ClassProduct struct {
	GTIN        string  `json:"gtin"`
	Description string  `json:"description"`
	Brand       string  `json:"brand"`
	Purchases   int64   `json:"purchases"`
	Revenue     float64 `json:"revenue"`
	Quantity    int64   `json:"quantity"`
}

// ClassSummary holds one payment class's aggregates. The comparison is a
// set of parallel summaries, not a merged table, so per-class semantics
// survive presentation.
type ClassSummary struct {
	Class         PaymentClass   `json:"class"`
	Transactions  int64          `json:"transactions"`
	TotalAmount   float64        `json:"total_amount"`
	AvgAmount     float64        `json:"avg_amount"`
	ItemCount     int64          `json:"item_count"`
	TotalQuantity int64          `json:"total_quantity"`
	TopProducts   []ClassProduct `json:"top_products"`
}

// PaymentMonthlyPoint is one class's transaction volume for one month.
type PaymentMonthlyPoint struct {
	YearMonth    string       `json:"year_month"`
	Class        PaymentClass `json:"class"`
	Transactions int64        `json:"transactions"`
	TotalAmount  float64      `json:"total_amount"`
}

// PaymentKPIs summarizes all classes together.
type PaymentKPIs struct {
	TotalTransactions int64   `json:"total_transactions"`
	TotalAmount       float64 `json:"total_amount"`
	TotalItems        int64   `json:"total_items"`
}

// PaymentResult is the pipeline output.
type PaymentResult struct {
	Classes []ClassSummary        `json:"classes"`
	Monthly []PaymentMonthlyPoint `json:"monthly"`
	KPIs    PaymentKPIs           `json:"kpis"`
}

// classifiedSets classifies every transaction set via its payment record.
// Case-insensitive: cash -> cash; credit, debit, card -> credit; anything
// else present -> other; absent or null -> unknown. Payments collapse to
// one row per set first (alphabetically first non-null type) so a basket
// with several payment rows never counts twice.
const classifiedSets = `
	SELECT t.TRANSACTION_SET_ID, t.STORE_ID, t.DATE_TIME, t.GRAND_TOTAL_AMOUNT,
	       CASE
	           WHEN p.PAYMENT_TYPE IS NULL THEN 'unknown'
	           WHEN p.PAYMENT_TYPE = 'cash' THEN 'cash'
	           WHEN p.PAYMENT_TYPE IN ('credit', 'debit', 'card') THEN 'credit'
	           ELSE 'other'
	       END AS PAYMENT_CLASS
	FROM transaction_sets t
	LEFT JOIN (
	    SELECT TRANSACTION_SET_ID, min(lower(PAYMENT_TYPE)) AS PAYMENT_TYPE
	    FROM payments
	    GROUP BY TRANSACTION_SET_ID
	) p USING (TRANSACTION_SET_ID)`

// PaymentComparison aggregates transactions and line items per payment
// class. Item counts across cash, credit, other, and unknown partition the
// filtered total exactly.
func PaymentComparison(ctx context.Context, w *warehouse.Warehouse, f PaymentFilter) (*PaymentResult, error) {
	cond, args := f.where("t.DATE_TIME", "t.STORE_ID")

	classes := f.Classes
	if len(classes) == 0 {
		classes = PaymentClasses
	}

	summaries := make(map[PaymentClass]*ClassSummary, len(classes))
	for _, c := range classes {
		summaries[c] = &ClassSummary{Class: c}
	}

	// Basket-level aggregates.
	query := fmt.Sprintf(`
		WITH classified AS (%s WHERE 1=1 %s)
		SELECT PAYMENT_CLASS,
		       COUNT(*),
		       CAST(SUM(GRAND_TOTAL_AMOUNT) AS DOUBLE),
		       CAST(AVG(GRAND_TOTAL_AMOUNT) AS DOUBLE)
		FROM classified
		GROUP BY PAYMENT_CLASS`, classifiedSets, cond)

	rows, err := w.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("payment summary query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var class string
		var count int64
		var total, avg float64
		if err := rows.Scan(&class, &count, &total, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan payment summary: %w", err)
		}
		if s, ok := summaries[PaymentClass(class)]; ok {
			s.Transactions = count
			s.TotalAmount = total
			s.AvgAmount = avg
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment summaries: %w", err)
	}

	if err := paymentItemAggregates(ctx, w, f, summaries); err != nil {
		return nil, err
	}
	for _, c := range classes {
		top, err := paymentTopProducts(ctx, w, f, c)
		if err != nil {
			return nil, err
		}
		summaries[c].TopProducts = top
	}

	result := &PaymentResult{}
	for _, c := range classes {
		s := summaries[c]
		result.Classes = append(result.Classes, *s)
		result.KPIs.TotalTransactions += s.Transactions
		result.KPIs.TotalAmount += s.TotalAmount
		result.KPIs.TotalItems += s.ItemCount
	}

	monthly, err := paymentMonthly(ctx, w, f)
	if err != nil {
		return nil, err
	}
	result.Monthly = monthly

	return result, nil
}

// classifiedItems joins line items to their basket's payment class. Items
// keep their own date and store columns for filtering.
const classifiedItems = `
	SELECT i.*, c.PAYMENT_CLASS
	FROM transaction_items i
	JOIN (` + classifiedSets + `) c USING (TRANSACTION_SET_ID)`

func paymentItemAggregates(ctx context.Context, w *warehouse.Warehouse, f PaymentFilter, summaries map[PaymentClass]*ClassSummary) error {
	cond, args := f.where("i.DATE_TIME", "i.STORE_ID")

	query := fmt.Sprintf(`
		WITH items AS (%s WHERE 1=1 %s)
		SELECT PAYMENT_CLASS,
		       COUNT(*),
		       CAST(SUM(UNIT_QUANTITY) AS BIGINT)
		FROM items
		GROUP BY PAYMENT_CLASS`, classifiedItems, cond)

	rows, err := w.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("payment item query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var class string
		var count, qty int64
		if err := rows.Scan(&class, &count, &qty); err != nil {
			return fmt.Errorf("failed to scan item aggregate: %w", err)
		}
		if s, ok := summaries[PaymentClass(class)]; ok {
			s.ItemCount = count
			s.TotalQuantity = qty
		}
	}
	return rows.Err()
}

func paymentTopProducts(ctx context.Context, w *warehouse.Warehouse, f PaymentFilter, class PaymentClass) ([]ClassProduct, error) {
	cond, args := f.where("i.DATE_TIME", "i.STORE_ID")
	args = append(args, string(class))

	query := fmt.Sprintf(`
		WITH items AS (%s WHERE 1=1 %s)
		SELECT i.GTIN,
		       max(COALESCE(p.SKUPOS_DESCRIPTION, '')),
		       max(COALESCE(p.BRAND, '')),
		       COUNT(*),
		       CAST(SUM(i.GRAND_TOTAL_AMOUNT) AS DOUBLE),
		       CAST(SUM(i.UNIT_QUANTITY) AS BIGINT)
		FROM items i
		LEFT JOIN products p USING (GTIN)
		WHERE i.PAYMENT_CLASS = ?
		GROUP BY i.GTIN
		ORDER BY COUNT(*) DESC, i.GTIN ASC
		LIMIT %d`, classifiedItems, cond, classTopProducts)

	rows, err := w.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("payment top products query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []ClassProduct
	for rows.Next() {
		var p ClassProduct
		if err := rows.Scan(&p.GTIN, &p.Description, &p.Brand,
			&p.Purchases, &p.Revenue, &p.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan class product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func paymentMonthly(ctx context.Context, w *warehouse.Warehouse, f PaymentFilter) ([]PaymentMonthlyPoint, error) {
	cond, args := f.where("t.DATE_TIME", "t.STORE_ID")

	query := fmt.Sprintf(`
		WITH classified AS (%s WHERE 1=1 %s)
		SELECT strftime(DATE_TIME, '%%Y-%%m') AS ym,
		       PAYMENT_CLASS,
		       COUNT(*),
		       CAST(SUM(GRAND_TOTAL_AMOUNT) AS DOUBLE)
		FROM classified
		GROUP BY ym, PAYMENT_CLASS
		ORDER BY ym, PAYMENT_CLASS`, classifiedSets, cond)

	rows, err := w.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("payment monthly query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var series []PaymentMonthlyPoint
	for rows.Next() {
		var pt PaymentMonthlyPoint
		var class string
		if err := rows.Scan(&pt.YearMonth, &class, &pt.Transactions, &pt.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan payment monthly point: %w", err)
		}
		pt.Class = PaymentClass(class)
		series = append(series, pt)
	}
	return series, rows.Err()
}
