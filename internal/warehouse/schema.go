package warehouse

// tableSpec describes one source file and how it becomes a warehouse table.
type tableSpec struct {
	// Name is the warehouse table name.
	Name string
	// Source is the parquet file (or glob pattern) relative to the data dir.
	Source string
	// Glob marks Source as a directory glob of partitioned files.
	Glob bool
	// Required columns; absence of any is a SchemaError.
	Required []string
	// Optional columns materialized as NULL VARCHAR when absent, so
	// downstream SQL can reference them unconditionally.
	Optional []string
	// HasStoreID applies the store allowlist filter during load.
	HasStoreID bool
	// TimestampCols are cast to TIMESTAMP during load.
	TimestampCols []string
	// DateCols are cast to DATE during load.
	DateCols []string
}

// storesSpec is handled separately by loadStores: it is filtered by city
// and deduplicated before any other table loads against it.
var storesSpec = tableSpec{
	Name:   "stores",
	Source: "cstore_stores.parquet",
	Required: []string{
		"STORE_ID", "STORE_NAME", "CITY", "STREET_ADDRESS", "ZIP_CODE",
		"LATITUDE", "LONGITUDE", "CREATED_AT", "UPDATED_AT",
	},
}

// tableSpecs lists the remaining source tables in load order.
// The source filename cstore_master_ctin.parquet is as shipped in the
// snapshot (not a typo here).
var tableSpecs = []tableSpec{
	{
		Name:     "products",
		Source:   "cstore_master_ctin.parquet",
		Required: []string{"GTIN", "CATEGORY", "SUBCATEGORY", "BRAND", "MANUFACTURER", "SKUPOS_DESCRIPTION"},
	},
	{
		Name:   "transaction_sets",
		Source: "cstore_transaction_sets.parquet",
		Required: []string{
			"TRANSACTION_SET_ID", "STORE_ID", "DATE_TIME",
			"GRAND_TOTAL_AMOUNT", "SUBTOTAL_AMOUNT", "TAX_AMOUNT", "POS_TYPE_ID",
		},
		HasStoreID:    true,
		TimestampCols: []string{"DATE_TIME"},
	},
	{
		Name:   "transaction_items",
		Source: "transaction_items/*.parquet",
		Glob:   true,
		Required: []string{
			"TRANSACTION_ITEM_ID", "TRANSACTION_SET_ID", "STORE_ID", "GTIN",
			"SCAN_TYPE", "DATE_TIME", "UNIT_PRICE", "UNIT_QUANTITY",
			"GRAND_TOTAL_AMOUNT", "DISCOUNT_AMOUNT",
		},
		HasStoreID:    true,
		TimestampCols: []string{"DATE_TIME"},
	},
	{
		Name:   "daily_agg",
		Source: "cstore_transactions_daily_agg.parquet",
		Required: []string{
			"STORE_ID", "GTIN", "DATE", "WEEK", "CALENDAR_YEAR", "CALENDAR_MONTH",
			"SCAN_TYPE", "QUANTITY", "TOTAL_REVENUE_AMOUNT", "TRANSACTION_COUNT",
		},
		Optional:   []string{"SKUPOS_DESCRIPTION", "BRAND", "CATEGORY"},
		HasStoreID: true,
		DateCols:   []string{"DATE"},
	},
	{
		Name:          "payments",
		Source:        "cstore_payments.parquet",
		Required:      []string{"TRANSACTION_SET_ID", "STORE_ID", "PAYMENT_TYPE", "DATE_TIME"},
		Optional:      []string{"CARD_TYPE"},
		HasStoreID:    true,
		TimestampCols: []string{"DATE_TIME"},
	},
	{
		Name:          "discounts",
		Source:        "cstore_discounts.parquet",
		Required:      []string{"STORE_ID", "DATE_TIME"},
		HasStoreID:    true,
		TimestampCols: []string{"DATE_TIME"},
	},
	{
		Name:   "shoppers",
		Source: "cstore_shopper.parquet",
	},
}

// RequiredColumns returns the required source columns of a loaded table,
// nil for unknown tables.
func RequiredColumns(table string) []string {
	if table == storesSpec.Name {
		return storesSpec.Required
	}
	for _, spec := range tableSpecs {
		if spec.Name == table {
			return spec.Required
		}
	}
	return nil
}

// ScanTypes is the fixed scan-type enumeration. NONSCAN marks fuel and
// other non-scanned line items.
var ScanTypes = []string{"GTIN", "PLU", "FMT_ERR", "NONSCAN"}

// NonFuelScanTypes are the scan types kept by "excluding fuel" filters.
var NonFuelScanTypes = []string{"GTIN", "PLU", "FMT_ERR"}
