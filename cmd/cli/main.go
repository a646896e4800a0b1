package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/adrenalink/adrenalink/internal/cli"
)

func main() {
	// Ctrl-C cancels in-flight backend requests
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
