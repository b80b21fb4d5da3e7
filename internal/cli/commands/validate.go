package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cairnlabs/storelens/internal/validate"
	"github.com/cairnlabs/storelens/internal/warehouse"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the snapshot and run data-quality checks",
		Long: `Load the configured parquet snapshot and run every data-quality check
against it. Findings are reported; only a snapshot that cannot be loaded at
all (missing file, missing required column) fails the command.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := GetRuntime(cmd.Context())
			ctx := cmd.Context()

			w, err := warehouse.Open(ctx, warehouse.Config{
				DataDir:     rt.Config.DataDir,
				StoreCities: rt.Config.StoreCities,
				Logger:      rt.Logger,
			})
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			report, err := validate.Run(ctx, w, rt.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if done, err := renderResult(out, rt.Config.OutputFormat, report); done {
				return err
			}

			tableRows := make([][]any, 0, len(report.Tables))
			for _, ts := range report.Tables {
				var partial []string
				for _, c := range ts.Columns {
					if c.NonNullPercent < 100 {
						partial = append(partial, fmt.Sprintf("%s %.1f%%", c.Column, c.NonNullPercent))
					}
				}
				coverage := "all required columns 100%"
				if len(partial) > 0 {
					coverage = strings.Join(partial, ", ")
				}
				tableRows = append(tableRows, []any{ts.Table, ts.Rows, coverage})
			}
			if err := renderRows(out, rt.Config.OutputFormat,
				[]any{"Table", "Rows", "Non-null"}, tableRows); err != nil {
				return err
			}
			fmt.Fprintln(out)

			if len(report.Findings) == 0 {
				fmt.Fprintf(out, "All %d checks passed with no findings.\n", report.Checks)
				return nil
			}

			rows := make([][]any, 0, len(report.Findings))
			for _, f := range report.Findings {
				rows = append(rows, []any{f.Severity, f.Check, f.Table, f.Count, f.Message})
			}
			if err := renderRows(out, rt.Config.OutputFormat,
				[]any{"Severity", "Check", "Table", "Count", "Message"}, rows); err != nil {
				return err
			}

			fmt.Fprintf(out, "\n%d checks, %d findings (%d errors, %d warnings), passed=%v\n",
				report.Checks, len(report.Findings),
				report.CountBySeverity(validate.SeverityError),
				report.CountBySeverity(validate.SeverityWarning),
				report.Passed())
			return nil
		},
	}
}
