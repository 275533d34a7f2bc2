// Command rcli is a command line client for Redis that keeps a single
// connection per invocation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-redis/singleconn/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.App().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
