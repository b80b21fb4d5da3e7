package insight

import (
	"context"
	"testing"

	"github.com/cairnlabs/storelens/internal/testutil"
	"github.com/cairnlabs/storelens/internal/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classByName(t *testing.T, result *PaymentResult, class PaymentClass) ClassSummary {
	t.Helper()
	for _, s := range result.Classes {
		if s.Class == class {
			return s
		}
	}
	t.Fatalf("class %q missing from result", class)
	return ClassSummary{}
}

func TestPaymentComparison_Classification(t *testing.T) {
	w := openBasic(t)

	result, err := PaymentComparison(context.Background(), w, PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, result.Classes, 4)

	cash := classByName(t, result, PayCash)
	assert.Equal(t, int64(1), cash.Transactions)
	assert.InDelta(t, 6.35, cash.TotalAmount, 1e-9)

	credit := classByName(t, result, PayCredit)
	assert.Equal(t, int64(1), credit.Transactions)
	assert.InDelta(t, 2.12, credit.TotalAmount, 1e-9)

	// T4 paid by check: present but neither cash nor card.
	other := classByName(t, result, PayOther)
	assert.Equal(t, int64(1), other.Transactions)

	// T3 has no payment record at all.
	unknown := classByName(t, result, PayUnknown)
	assert.Equal(t, int64(1), unknown.Transactions)
	assert.InDelta(t, 3.18, unknown.TotalAmount, 1e-9)
}

func TestPaymentComparison_ItemCountsPartitionTotal(t *testing.T) {
	w := openBasic(t)

	result, err := PaymentComparison(context.Background(), w, PaymentFilter{})
	require.NoError(t, err)

	var sum int64
	for _, s := range result.Classes {
		sum += s.ItemCount
	}
	assert.Equal(t, int64(5), sum, "every line item lands in exactly one class")
	assert.Equal(t, sum, result.KPIs.TotalItems)

	cash := classByName(t, result, PayCash)
	assert.Equal(t, int64(2), cash.ItemCount)
	assert.Equal(t, int64(3), cash.TotalQuantity)
}

func TestPaymentComparison_TopProductsPerClass(t *testing.T) {
	w := openBasic(t)

	result, err := PaymentComparison(context.Background(), w, PaymentFilter{})
	require.NoError(t, err)

	cash := classByName(t, result, PayCash)
	require.Len(t, cash.TopProducts, 2)
	// Equal line counts resolve by GTIN.
	assert.Equal(t, "B1", cash.TopProducts[0].GTIN)
	assert.Equal(t, "Cola 12oz", cash.TopProducts[0].Description)
	assert.Equal(t, "G1", cash.TopProducts[1].GTIN)

	unknown := classByName(t, result, PayUnknown)
	require.Len(t, unknown.TopProducts, 1)
	assert.Equal(t, "B2", unknown.TopProducts[0].GTIN)
}

func TestPaymentComparison_KPIs(t *testing.T) {
	w := openBasic(t)

	result, err := PaymentComparison(context.Background(), w, PaymentFilter{})
	require.NoError(t, err)

	assert.Equal(t, int64(4), result.KPIs.TotalTransactions)
	assert.InDelta(t, 14.83, result.KPIs.TotalAmount, 1e-9)
}

func TestPaymentComparison_MultiplePaymentRowsPerSet(t *testing.T) {
	// T1 split across two cash tenders: the basket still classifies and
	// counts exactly once, and its items stay un-inflated.
	dir := testutil.WriteSnapshot(t, map[string]string{
		"cstore_payments.parquet": `SELECT * FROM (VALUES
			('T1', '101', 'cash', NULL, TIMESTAMP '2023-06-05 10:00:00'),
			('T1', '101', 'cash', NULL, TIMESTAMP '2023-06-05 10:00:01'),
			('T2', '101', 'credit', 'VISA', TIMESTAMP '2023-06-06 11:00:00'),
			('T4', '102', 'check', NULL, TIMESTAMP '2023-06-08 13:00:00')
		) AS t(TRANSACTION_SET_ID, STORE_ID, PAYMENT_TYPE, CARD_TYPE, DATE_TIME)`,
	})
	w, err := warehouse.Open(context.Background(), warehouse.Config{
		DataDir:     dir,
		StoreCities: testutil.DefaultCities,
		Logger:      testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	result, err := PaymentComparison(context.Background(), w, PaymentFilter{})
	require.NoError(t, err)

	cash := classByName(t, result, PayCash)
	assert.Equal(t, int64(1), cash.Transactions)
	assert.InDelta(t, 6.35, cash.TotalAmount, 1e-9)
	assert.Equal(t, int64(2), cash.ItemCount)

	assert.Equal(t, int64(4), result.KPIs.TotalTransactions)
	assert.Equal(t, int64(5), result.KPIs.TotalItems)
}

func TestPaymentComparison_StoreFilter(t *testing.T) {
	w := openBasic(t)

	result, err := PaymentComparison(context.Background(), w, PaymentFilter{
		Filter: Filter{StoreIDs: []string{"101"}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), classByName(t, result, PayCash).Transactions)
	assert.Equal(t, int64(0), classByName(t, result, PayOther).Transactions,
		"the check payment happened at store 102")
	assert.Equal(t, int64(1), classByName(t, result, PayUnknown).Transactions)
}

func TestPaymentComparison_ClassSubset(t *testing.T) {
	w := openBasic(t)

	result, err := PaymentComparison(context.Background(), w, PaymentFilter{
		Classes: []PaymentClass{PayCash, PayCredit},
	})
	require.NoError(t, err)
	require.Len(t, result.Classes, 2)
	assert.Equal(t, PayCash, result.Classes[0].Class)
	assert.Equal(t, PayCredit, result.Classes[1].Class)
}

func TestPaymentComparison_MonthlySeries(t *testing.T) {
	w := openBasic(t)

	result, err := PaymentComparison(context.Background(), w, PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, result.Monthly, 4, "four classes active in June")

	for _, pt := range result.Monthly {
		assert.Equal(t, "2023-06", pt.YearMonth)
		assert.Equal(t, int64(1), pt.Transactions)
	}
	assert.Equal(t, PayCash, result.Monthly[0].Class)
}
