package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/seoflow-backend/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		return 1
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		a.Log.Error("Background services failed to start", "error", err)
		return 1
	}
	if err := a.Run(ctx); err != nil {
		a.Log.Error("Server failed", "error", err)
		return 1
	}
	return 0
}
