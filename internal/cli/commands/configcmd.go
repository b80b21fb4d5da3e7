package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cairnlabs/storelens/internal/config"
)

// NewConfigCommand creates the config command and its subcommands.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage storelens configuration",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter storelens.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			const path = "storelens.yaml"
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			starter, err := yaml.Marshal(config.Defaults())
			if err != nil {
				return fmt.Errorf("failed to encode starter config: %w", err)
			}
			header := []byte("# StoreLens configuration. Every key can also be set via\n" +
				"# STORELENS_* environment variables or CLI flags.\n")
			if err := os.WriteFile(path, append(header, starter...), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := GetRuntime(cmd.Context())

			cfg := rt.Config
			key := ""
			if cfg.CensusAPIKey != "" {
				key = "(set)"
			}
			out, err := yaml.Marshal(map[string]any{
				"data_dir":           cfg.DataDir,
				"store_cities":       cfg.StoreCities,
				"census_api_key":     key,
				"cache_ttl":          cfg.CacheTTL.String(),
				"default_start_date": cfg.DefaultStartDate,
				"default_end_date":   cfg.DefaultEndDate,
				"port":               cfg.Port,
				"state_path":         cfg.StatePath,
				"watch_data":         cfg.WatchData,
				"output":             cfg.OutputFormat,
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
