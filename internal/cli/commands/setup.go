// Package commands implements the storelens subcommands.
package commands

import (
	"context"
	"log/slog"

	"github.com/cairnlabs/storelens/internal/cache"
	"github.com/cairnlabs/storelens/internal/config"
)

// Runtime carries the resolved configuration and logger into commands.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger
}

type runtimeKey struct{}

// WithRuntime stores the runtime in the context.
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// GetRuntime retrieves the runtime from the context, falling back to
// defaults so commands stay usable in tests.
func GetRuntime(ctx context.Context) *Runtime {
	if rt, ok := ctx.Value(runtimeKey{}).(*Runtime); ok {
		return rt
	}
	cfg := &config.Config{}
	if defaults, err := config.Load("", nil); err == nil {
		cfg = defaults
	}
	return &Runtime{Config: cfg, Logger: slog.New(slog.DiscardHandler)}
}

// snapshotKey is the cache key for the configured snapshot.
func (rt *Runtime) snapshotKey() cache.Key {
	return cache.Key{DataDir: rt.Config.DataDir, Cities: rt.Config.StoreCities}
}
