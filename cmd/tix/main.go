// Command tix is the thin façade over the core packages: argument
// parsing, dispatch, and output formatting only (SPEC_FULL.md 4.0c).
// No business logic lives here.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(exitCodeFor(err))
	}
}
