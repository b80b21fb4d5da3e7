package insight

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopProducts_RankingAndKPIs(t *testing.T) {
	w := openBasic(t)

	result, err := TopProducts(context.Background(), w, TopProductsFilter{})
	require.NoError(t, err)
	require.Len(t, result.Products, 5)

	// Revenue over four weeks: G1 800, G2 600, B1 240, B2 160, B3 40.
	gtins := make([]string, 0, len(result.Products))
	for _, p := range result.Products {
		gtins = append(gtins, p.GTIN)
	}
	assert.Equal(t, []string{"G1", "G2", "B1", "B2", "B3"}, gtins)

	top := result.Products[0]
	assert.Equal(t, "Lays Classic 2.5oz", top.Description)
	assert.Equal(t, "Lays", top.Brand)
	assert.InDelta(t, 800.0, top.Revenue, 1e-9)
	assert.Equal(t, int64(400), top.Quantity)
	assert.Equal(t, int64(200), top.Transactions)
	assert.InDelta(t, 2.0, top.AvgPrice, 1e-9)

	assert.InDelta(t, 1840.0, result.KPIs.TotalRevenue, 1e-9)
	assert.Equal(t, int64(780), result.KPIs.TotalQuantity)
	assert.Equal(t, int64(428), result.KPIs.TotalTransactions)
	assert.InDelta(t, 368.0, result.KPIs.AvgRevenuePerProduct, 1e-9)
}

func TestTopProducts_HigherVolumeOutranksLower(t *testing.T) {
	w := openBasic(t)

	// G1 sells 100 units/week and G2 sells 50 units/week over the same
	// four-week window, so G1 must rank first.
	result, err := TopProducts(context.Background(), w, TopProductsFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, result.Products, 2)
	assert.Equal(t, "G1", result.Products[0].GTIN)
	assert.Equal(t, "G2", result.Products[1].GTIN)
}

func TestTopProducts_NeverIncludesFuel(t *testing.T) {
	w := openBasic(t)

	// Fuel moves 500 units and $1000 per week, far more than anything
	// scannable, and still must not appear.
	result, err := TopProducts(context.Background(), w, TopProductsFilter{Limit: 100})
	require.NoError(t, err)
	for _, p := range result.Products {
		assert.NotEqual(t, "F1", p.GTIN)
		assert.NotContains(t, p.Category, "Fuel")
	}
}

func TestTopProducts_StableOrderAcrossReruns(t *testing.T) {
	w := openBasic(t)
	f := TopProductsFilter{Limit: 5}

	first, err := TopProducts(context.Background(), w, f)
	require.NoError(t, err)
	for range 3 {
		again, err := TopProducts(context.Background(), w, f)
		require.NoError(t, err)
		assert.Equal(t, first.Products, again.Products)
	}
}

func TestTopProducts_DateFilter(t *testing.T) {
	w := openBasic(t)

	// Drop the first week; G1 keeps 3 x $200.
	result, err := TopProducts(context.Background(), w, TopProductsFilter{
		Filter: Filter{Dates: DateRange{Start: date(2023, time.June, 12)}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Products)
	assert.Equal(t, "G1", result.Products[0].GTIN)
	assert.InDelta(t, 600.0, result.Products[0].Revenue, 1e-9)
}

func TestTopProducts_StoreFilterExcludesAll(t *testing.T) {
	w := openBasic(t)

	// The daily aggregates only cover store 101.
	result, err := TopProducts(context.Background(), w, TopProductsFilter{
		Filter: Filter{StoreIDs: []string{"102"}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Products)
	assert.Empty(t, result.Weekly)
}

func TestTopProducts_WeeklySeries(t *testing.T) {
	w := openBasic(t)

	result, err := TopProducts(context.Background(), w, TopProductsFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, result.Weekly, 8, "two products over four weeks")

	// Chronological, then GTIN within the week.
	assert.Equal(t, 23, result.Weekly[0].Week)
	assert.Equal(t, "G1", result.Weekly[0].GTIN)
	assert.Equal(t, "G2", result.Weekly[1].GTIN)
	assert.Equal(t, 26, result.Weekly[7].Week)
	assert.InDelta(t, 200.0, result.Weekly[0].Revenue, 1e-9)
}
