package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/doctrack/doctrack/internal/app"
	"github.com/doctrack/doctrack/internal/config"
	"github.com/doctrack/doctrack/pkg/logger"
)

func main() {
	// LOG_LEVEL is re-applied from the loaded config below; this covers config errors.
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: driver=%s smtp=%v redis=%v mongo=%v", cfg.Database.Driver, cfg.SMTP.Host != "", cfg.RateLimit.UseRedis, cfg.MongoDB.URI != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, nil)
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	if err := a.Serve(ctx); err != nil {
		logger.Errorf("%v", err)
	}
}
