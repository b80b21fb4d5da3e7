// Command storelens is the convenience-store analytics CLI and API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cairnlabs/storelens/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
