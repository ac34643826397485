// Package main is the entry point for the taskrunner service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenNSW/taskrunner/cmd/server/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := commands.New().Execute(ctx); err != nil {
		// zerr prints metadata and stack traces with %+v
		_, _ = fmt.Fprintf(os.Stderr, "%+v\n", err)
		stop()
		os.Exit(1)
	}
}
