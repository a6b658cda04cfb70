package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"truthcert/internal/config"
	"truthcert/internal/observability/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Env: cfg.LogEnv, Level: cfg.LogLevel, ServiceName: "truthd"})
	defer logger.Sync()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal("failed to init service", zap.Error(err))
	}
	defer app.Close()

	log.Info("truthd listening", zap.String("addr", cfg.HTTPAddr), zap.String("mode", app.mode))
	if err := app.server.Run(ctx); err != nil {
		log.Error("server exited", zap.Error(err))
	}
}
