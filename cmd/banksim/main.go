package main

import (
	"banksim/cmd/banksim/commands"
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := commands.RootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
