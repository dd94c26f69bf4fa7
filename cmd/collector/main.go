package main

import (
	"context"
	"os/signal"
	"syscall"

	"swapcollector/config"
	"swapcollector/internal/collector"
	"swapcollector/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run collector
	if err := collector.StartCollector(ctx, cfg, log); err != nil {
		log.Fatal("collector failed", zap.Error(err))
	}

	<-ctx.Done()
	log.Info("shutting down")
}
