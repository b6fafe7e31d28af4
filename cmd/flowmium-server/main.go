// Command flowmium-server is the orchestrator daemon: it serves the
// Workflow API Façade and runs the scheduler's reconciliation loop until
// signalled to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowmium-io/flowmium/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowmium-server: startup failed:", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "flowmium-server: exited with error:", err)
		os.Exit(1)
	}
}
