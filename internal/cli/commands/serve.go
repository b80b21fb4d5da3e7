package commands

import (
	"github.com/spf13/cobra"

	"github.com/cairnlabs/storelens/internal/cache"
	"github.com/cairnlabs/storelens/internal/census"
	"github.com/cairnlabs/storelens/internal/server"
	"github.com/cairnlabs/storelens/internal/state"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analytics JSON API",
		Long: `Start the HTTP server exposing the loaded snapshot: store list,
validation report, the four insight pipelines, and run history.`,
		Example: `  # Serve on the configured port
  storelens serve

  # Reload automatically when parquet files change
  storelens serve --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := GetRuntime(cmd.Context())
			cfg := rt.Config

			history, err := state.Open(cfg.StatePath)
			if err != nil {
				return err
			}
			defer func() { _ = history.Close() }()

			snapshots := cache.New(
				cache.Recorded(cache.Open(rt.Logger), history, rt.Logger),
				cfg.CacheTTL, rt.Logger)
			defer snapshots.InvalidateAll()

			var client census.Client
			if cfg.CensusAPIKey != "" {
				client = census.New(cfg.CensusAPIKey, census.WithLogger(rt.Logger))
			}

			srv := server.New(server.Config{
				Cache:   snapshots,
				Key:     rt.snapshotKey(),
				Census:  client,
				History: history,
				Port:    cfg.Port,
				Watch:   opts.Watch || cfg.WatchData,
				Logger:  rt.Logger,
			})
			return srv.Serve(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Invalidate the cache when parquet files change")
	return cmd
}
