package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sentiment-alerts/internal/cli"
	"sentiment-alerts/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewLogger()
	root := cli.NewRootCmd(logger)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
