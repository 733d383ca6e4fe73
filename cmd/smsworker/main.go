package main

import (
	"context"
	"os/signal"
	"syscall"

	"phone-auth-service/internal/factory"
	"phone-auth-service/internal/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wf, err := factory.NewWorkerFactory(ctx)
	if err != nil {
		util.Fatal("Failed to initialize worker", util.ErrorField(err))
	}
	defer wf.Close()

	if err := wf.Worker().Run(ctx); err != nil {
		util.Error("SMS worker exited", util.ErrorField(err))
	}
}
