// Package main is the entry point for the taskr CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"taskr/internal/cli"
	"taskr/internal/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, cli.NewEnv)
	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}
