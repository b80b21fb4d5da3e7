package insight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeverageBrands_RankingWeakestFirst(t *testing.T) {
	w := openBasic(t)

	result, err := BeverageBrands(context.Background(), w, BeverageFilter{})
	require.NoError(t, err)
	require.Len(t, result.Brands, 3)

	// Revenue over four weeks: Sunny 40, Voltz 160, Cola Co 240.
	assert.Equal(t, "Sunny", result.Brands[0].Brand)
	assert.Equal(t, "Voltz", result.Brands[1].Brand)
	assert.Equal(t, "Cola Co", result.Brands[2].Brand)

	assert.InDelta(t, 40.0, result.Brands[0].Revenue, 1e-9)
	assert.Equal(t, int64(20), result.Brands[0].Quantity)
	assert.Equal(t, int64(16), result.Brands[0].Transactions)
	// Per transaction, not per aggregate row: $40 over 16 baskets.
	assert.InDelta(t, 2.5, result.Brands[0].AvgRevenue, 1e-9)

	assert.Equal(t, 3, result.KPIs.TotalBrands)
	assert.InDelta(t, 440.0, result.KPIs.TotalRevenue, 1e-9)
	assert.InDelta(t, 440.0/3, result.KPIs.AvgRevenuePerBrand, 1e-9)
}

func TestBeverageBrands_NeverIncludesSnacksOrFuel(t *testing.T) {
	w := openBasic(t)

	result, err := BeverageBrands(context.Background(), w, BeverageFilter{})
	require.NoError(t, err)
	for _, b := range result.Brands {
		assert.NotContains(t, []string{"Lays", "Doritos"}, b.Brand)
		assert.NotContains(t, b.Category, "Fuel")
	}
}

func TestBeverageBrands_DropCandidates(t *testing.T) {
	w := openBasic(t)

	result, err := BeverageBrands(context.Background(), w, BeverageFilter{})
	require.NoError(t, err)

	// Bottom 20% of three brands: only Sunny falls under the threshold.
	require.Len(t, result.DropCandidates, 1)
	assert.Equal(t, "Sunny", result.DropCandidates[0].Brand)
	assert.Equal(t, 1, result.KPIs.DropCandidates)
	assert.InDelta(t, 40.0, result.KPIs.PotentialLoss, 1e-9)
}

func TestBeverageBrands_OrderIndependentOfExcludedBrands(t *testing.T) {
	w := openBasic(t)
	ctx := context.Background()

	full, err := BeverageBrands(ctx, w, BeverageFilter{})
	require.NoError(t, err)

	reduced, err := BeverageBrands(ctx, w, BeverageFilter{ExcludeBrands: []string{"Sunny"}})
	require.NoError(t, err)
	require.Len(t, reduced.Brands, 2)

	// Removing a brand must not reorder the survivors.
	assert.Equal(t, full.Brands[1].Brand, reduced.Brands[0].Brand)
	assert.Equal(t, full.Brands[2].Brand, reduced.Brands[1].Brand)
}

func TestBeverageBrands_QuantityMetric(t *testing.T) {
	w := openBasic(t)

	result, err := BeverageBrands(context.Background(), w, BeverageFilter{Metric: DropByQuantity})
	require.NoError(t, err)
	require.Len(t, result.Brands, 3)

	// Quantities: Sunny 20, Voltz 40, Cola Co 120.
	assert.Equal(t, "Sunny", result.Brands[0].Brand)
	assert.Equal(t, int64(120), result.Brands[2].Quantity)
}

func TestBeverageBrands_CategoryFilter(t *testing.T) {
	w := openBasic(t)

	result, err := BeverageBrands(context.Background(), w, BeverageFilter{
		Categories: []string{"Packaged Beverages"},
	})
	require.NoError(t, err)
	assert.Len(t, result.Brands, 3)

	result, err = BeverageBrands(context.Background(), w, BeverageFilter{
		Categories: []string{"Frozen Beverages"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Brands)
}

func TestBeverageBrands_MonthlySeries(t *testing.T) {
	w := openBasic(t)

	result, err := BeverageBrands(context.Background(), w, BeverageFilter{})
	require.NoError(t, err)
	require.Len(t, result.Monthly, 3, "one June point per brand")

	assert.Equal(t, "2023-06", result.Monthly[0].YearMonth)
	assert.Equal(t, "Cola Co", result.Monthly[0].Brand)
	assert.InDelta(t, 240.0, result.Monthly[0].Revenue, 1e-9)
}

func TestMetricQuantile(t *testing.T) {
	brands := []BrandRow{
		{Brand: "a", Revenue: 10},
		{Brand: "b", Revenue: 20},
		{Brand: "c", Revenue: 30},
		{Brand: "d", Revenue: 40},
		{Brand: "e", Revenue: 50},
	}
	assert.InDelta(t, 18.0, metricQuantile(brands, DropByRevenue, 0.2), 1e-9)
	assert.InDelta(t, 10.0, metricQuantile(brands, DropByRevenue, 0), 1e-9)
	assert.InDelta(t, 50.0, metricQuantile(brands, DropByRevenue, 1), 1e-9)
	assert.True(t, metricQuantile(nil, DropByRevenue, 0.2) < 0)
}
