package main

import (
	"context"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/hackgods/barbershop-scheduling/internal/app"
	"github.com/hackgods/barbershop-scheduling/internal/config"
	"github.com/hackgods/barbershop-scheduling/internal/menu"
	"github.com/hackgods/barbershop-scheduling/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	// logs go to stderr so they do not mix with the menu on stdout
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	deps, err := app.Open(ctx, cfg, logger, nil)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer deps.Close()

	if err := menu.New(deps.Scheduler, os.Stdin, os.Stdout).Run(ctx); err != nil {
		logger.Error("menu stopped", zap.Error(err))
	}
}
