package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/projectmapper/internal/config"
	"github.com/1broseidon/projectmapper/internal/coordinator"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return 0
}

// exitCode separates bad input from failures at runtime.
func exitCode(err error) int {
	var cerr *config.ConfigError
	var rerr *coordinator.RuntimeError
	switch {
	case errors.As(err, &cerr):
		return 2
	case errors.As(err, &rerr):
		return 3
	default:
		return 1
	}
}
