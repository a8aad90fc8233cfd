package main

import (
	"context"
	"os/signal"
	"syscall"

	"controller-dashboard/cmd"
)

func main() {
	// SIGTERM cancels every call without asking. Ctrl-C is handled per
	// command so running writes can be confirmed first.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
