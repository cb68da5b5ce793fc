package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yomu-hq/yomu-reader/internal/app"
	"github.com/yomu-hq/yomu-reader/internal/config"
	"github.com/yomu-hq/yomu-reader/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reader start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("reader starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader, err := app.New(cfg, logger.ZapLogger{})
	if err != nil {
		logger.ErrorObj("failed to initialize reader", "error", err)
		return err
	}
	defer reader.Close()

	if err := reader.Run(ctx); err != nil {
		return fmt.Errorf("reader run: %w", err)
	}

	return nil
}
