package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/zencamp/zencamp/internal/cli"
	"github.com/zencamp/zencamp/internal/common/logtrace"
)

func init() {
	logtrace.InitLogger("info", false)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}
