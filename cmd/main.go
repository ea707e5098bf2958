package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/offline/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{Logger: logger})
	code := exitCode(logger, runner.app().Run(ctx, os.Args))
	stop()
	os.Exit(code)
}

// exitCode logs err and returns the process exit status for it.
func exitCode(logger *log.Logger, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, shared.ErrLocked):
		logger.Error("another offline process is running against this directory", "error", err)
		return 1
	default:
		logger.Error("application error", "error", err)
		return 1
	}
}
