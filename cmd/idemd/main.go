// Command idemd is a demo payments API guarded by the idempotency
// coordinator. The business handlers are in-memory fakes; the point is to
// exercise replay, conflict and mismatch handling end to end over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(submain(context.Background()))
}

func submain(ctx context.Context) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if err != context.Canceled {
			fmt.Fprintf(os.Stderr, "idemd: %s\n", err)
		}
		return 1
	}
	return 0
}
