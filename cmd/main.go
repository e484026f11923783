package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/sentisounds/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger})
	defer runner.Close()

	if err := newCommand(runner).Run(ctx, os.Args); err != nil {
		logger.Error("command failed", "kind", shared.Kind(err), "error", err)
		runner.Close()
		stop()
		os.Exit(1)
	}
}
