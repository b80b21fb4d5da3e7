package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cairnlabs/storelens/internal/census"
	"github.com/cairnlabs/storelens/internal/insight"
	"github.com/cairnlabs/storelens/internal/warehouse"
)

// queryOptions holds the flags shared by every query subcommand.
type queryOptions struct {
	Start  string
	End    string
	Stores []string
}

// filter resolves the shared flags to a pipeline filter, falling back to
// the configured default date range.
func (o *queryOptions) filter(rt *Runtime) (insight.Filter, error) {
	var f insight.Filter
	f.Dates.Start, f.Dates.End = rt.Config.DefaultDateRange()

	if o.Start != "" {
		t, err := time.Parse("2006-01-02", o.Start)
		if err != nil {
			return f, fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
		}
		f.Dates.Start = t
	}
	if o.End != "" {
		t, err := time.Parse("2006-01-02", o.End)
		if err != nil {
			return f, fmt.Errorf("--end must be YYYY-MM-DD: %w", err)
		}
		f.Dates.End = t
	}
	f.StoreIDs = o.Stores
	return f, nil
}

func openWarehouse(ctx context.Context, rt *Runtime) (*warehouse.Warehouse, error) {
	return warehouse.Open(ctx, warehouse.Config{
		DataDir:     rt.Config.DataDir,
		StoreCities: rt.Config.StoreCities,
		Logger:      rt.Logger,
	})
}

// NewQueryCommand creates the query command and its subcommands.
func NewQueryCommand() *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run an insight pipeline against the snapshot",
	}
	cmd.PersistentFlags().StringVar(&opts.Start, "start", "", "Window start (YYYY-MM-DD)")
	cmd.PersistentFlags().StringVar(&opts.End, "end", "", "Window end (YYYY-MM-DD)")
	cmd.PersistentFlags().StringSliceVar(&opts.Stores, "stores", nil, "Restrict to store IDs")

	cmd.AddCommand(newTopProductsCommand(opts))
	cmd.AddCommand(newBeverageBrandsCommand(opts))
	cmd.AddCommand(newPaymentComparisonCommand(opts))
	cmd.AddCommand(newDemographicsCommand(opts))
	return cmd
}

func newTopProductsCommand(opts *queryOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "top-products",
		Short: "Rank products by revenue over the window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := GetRuntime(cmd.Context())
			filter, err := opts.filter(rt)
			if err != nil {
				return err
			}

			w, err := openWarehouse(cmd.Context(), rt)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			result, err := insight.TopProducts(cmd.Context(), w,
				insight.TopProductsFilter{Filter: filter, Limit: limit})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if done, err := renderResult(out, rt.Config.OutputFormat, result); done {
				return err
			}
			rows := make([][]any, 0, len(result.Products))
			for i, p := range result.Products {
				rows = append(rows, []any{i + 1, p.GTIN, p.Description, p.Brand, p.Category,
					money(p.Revenue), p.Quantity, p.Transactions, money(p.AvgPrice)})
			}
			if err := renderRows(out, rt.Config.OutputFormat,
				[]any{"#", "GTIN", "Description", "Brand", "Category", "Revenue", "Qty", "Txns", "Avg Price"},
				rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nTotal revenue %s across %d products\n",
				money(result.KPIs.TotalRevenue), len(result.Products))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of products to rank (default 5)")
	return cmd
}

func newBeverageBrandsCommand(opts *queryOptions) *cobra.Command {
	var (
		metric     string
		categories []string
		exclude    []string
	)

	cmd := &cobra.Command{
		Use:   "beverage-brands",
		Short: "Rank beverage brands, weakest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := GetRuntime(cmd.Context())
			filter, err := opts.filter(rt)
			if err != nil {
				return err
			}

			w, err := openWarehouse(cmd.Context(), rt)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			result, err := insight.BeverageBrands(cmd.Context(), w, insight.BeverageFilter{
				Filter:        filter,
				Categories:    categories,
				ExcludeBrands: exclude,
				Metric:        insight.DropMetric(metric),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if done, err := renderResult(out, rt.Config.OutputFormat, result); done {
				return err
			}
			drop := make(map[string]bool, len(result.DropCandidates))
			for _, b := range result.DropCandidates {
				drop[b.Brand] = true
			}
			rows := make([][]any, 0, len(result.Brands))
			for _, b := range result.Brands {
				mark := ""
				if drop[b.Brand] {
					mark = "drop?"
				}
				rows = append(rows, []any{b.Brand, b.Category, money(b.Revenue),
					b.Quantity, b.Transactions, mark})
			}
			if err := renderRows(out, rt.Config.OutputFormat,
				[]any{"Brand", "Category", "Revenue", "Qty", "Txns", ""}, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d brands, %d drop candidates worth %s\n",
				result.KPIs.TotalBrands, result.KPIs.DropCandidates, money(result.KPIs.PotentialLoss))
			return nil
		},
	}
	cmd.Flags().StringVar(&metric, "metric", "revenue", "Ranking metric (revenue|quantity|transactions)")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "Restrict to beverage categories")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Brands to exclude before ranking")
	return cmd
}

func newPaymentComparisonCommand(opts *queryOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment-comparison",
		Short: "Compare transactions by payment class",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := GetRuntime(cmd.Context())
			filter, err := opts.filter(rt)
			if err != nil {
				return err
			}

			w, err := openWarehouse(cmd.Context(), rt)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			result, err := insight.PaymentComparison(cmd.Context(), w,
				insight.PaymentFilter{Filter: filter})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if done, err := renderResult(out, rt.Config.OutputFormat, result); done {
				return err
			}
			rows := make([][]any, 0, len(result.Classes))
			for _, c := range result.Classes {
				rows = append(rows, []any{c.Class, c.Transactions, money(c.TotalAmount),
					money(c.AvgAmount), c.ItemCount, c.TotalQuantity})
			}
			if err := renderRows(out, rt.Config.OutputFormat,
				[]any{"Class", "Txns", "Total", "Avg", "Items", "Qty"}, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d transactions totaling %s\n",
				result.KPIs.TotalTransactions, money(result.KPIs.TotalAmount))
			return nil
		},
	}
	return cmd
}

func newDemographicsCommand(opts *queryOptions) *cobra.Command {
	var (
		storeID string
		radius  float64
	)

	cmd := &cobra.Command{
		Use:   "demographics",
		Short: "Compare a store's trade area against its state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := GetRuntime(cmd.Context())
			if rt.Config.CensusAPIKey == "" {
				return fmt.Errorf("census_api_key is not configured (set STORELENS_CENSUS_API_KEY)")
			}

			w, err := openWarehouse(cmd.Context(), rt)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			client := census.New(rt.Config.CensusAPIKey, census.WithLogger(rt.Logger))
			result, err := insight.Demographics(cmd.Context(), w, client,
				insight.DemographicsFilter{StoreID: storeID, RadiusMiles: radius})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if done, err := renderResult(out, rt.Config.OutputFormat, result); done {
				return err
			}
			fmt.Fprintf(out, "%s (%s) vs state\n\n", result.Store.Name, result.Geography.Name)
			rows := make([][]any, 0, len(result.Rows))
			for _, r := range result.Rows {
				rows = append(rows, []any{r.Label, optional(r.LocalValue), optional(r.StateValue)})
			}
			return renderRows(out, rt.Config.OutputFormat,
				[]any{"Variable", "Local", "State"}, rows)
		},
	}
	cmd.Flags().StringVar(&storeID, "store", "", "Store ID (required)")
	cmd.Flags().Float64Var(&radius, "radius", 0, "Trade-area radius in miles (default 3)")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}
