package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/pylock/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context) int {
	c := cli.New(os.Stderr, cli.LogInfo)
	return cli.ExitCode(c.Execute(ctx, os.Args[1:]))
}
