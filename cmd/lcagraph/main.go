// Command lcagraph compiles LCA graphs into matrix bundles.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/lcagraph/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
