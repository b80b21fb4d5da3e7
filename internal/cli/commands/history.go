package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cairnlabs/storelens/internal/state"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent snapshot loads and validation runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := GetRuntime(cmd.Context())

			store, err := state.Open(rt.Config.StatePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			epochs, err := store.RecentEpochs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			validations, err := store.RecentValidations(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if done, err := renderResult(out, rt.Config.OutputFormat, map[string]any{
				"epochs":      epochs,
				"validations": validations,
			}); done {
				return err
			}

			if len(epochs) == 0 {
				fmt.Fprintln(out, "No load history yet.")
				return nil
			}

			rows := make([][]any, 0, len(epochs))
			for _, e := range epochs {
				var total int64
				for _, n := range e.RowCounts {
					total += n
				}
				rows = append(rows, []any{
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.ID[:8],
					e.DataDir, total, e.Duration.Round(time.Millisecond), e.Status,
				})
			}
			if err := renderRows(out, rt.Config.OutputFormat,
				[]any{"Loaded At", "Epoch", "Data Dir", "Rows", "Duration", "Status"}, rows); err != nil {
				return err
			}

			if len(validations) > 0 {
				fmt.Fprintln(out)
				rows = rows[:0]
				for _, v := range validations {
					rows = append(rows, []any{
						v.CreatedAt.Format("2006-01-02 15:04:05"), v.EpochID[:8],
						v.Checks, v.Findings, v.Errors, v.Warnings, v.Passed,
					})
				}
				return renderRows(out, rt.Config.OutputFormat,
					[]any{"Validated At", "Epoch", "Checks", "Findings", "Errors", "Warnings", "Passed"}, rows)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of records to show")
	return cmd
}
