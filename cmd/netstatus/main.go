package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"netstatus/internal/app"
	"netstatus/internal/config"
	"netstatus/internal/logging"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "config.yaml", "path to configuration file (YAML)")
		addr       = pflag.String("addr", ":8080", "address for the web server")
		logLevel   = pflag.String("log-level", "", "override the configured log level")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("loaded configuration",
		zap.String("path", *configPath),
		zap.String("interface", cfg.Interface),
		zap.String("notifier", cfg.Notifier),
		zap.Int("peers", len(cfg.Peers)))

	application := app.New(cfg, *addr, logger)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Start(startCtx); err != nil {
		logger.Fatal("start", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := application.Stop(stopCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
