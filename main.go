package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pedrosfaria2/email-verifier/internal/app"
)

func main() {
	if err := run(); err != nil {
		slog.Error("email-verifier exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	return app.New().Run(ctx)
}
