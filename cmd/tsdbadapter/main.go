package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/opentsdb-pg/tsdbadapter/internal/bootstrap"
	"github.com/opentsdb-pg/tsdbadapter/internal/logging"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logging.Fatal("loading config: %v", err)
	}
	bootstrap.SetupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logging.Fatal("starting up: %v", err)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		logging.Fatal("server exited: %v", err)
	}
}
