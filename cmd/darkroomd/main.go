package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"darkroom/internal/bot"
	"darkroom/internal/config"
	"darkroom/internal/daemon"
	"darkroom/internal/ledger"
	"darkroom/internal/logging"
	"darkroom/internal/services/comfy"
	"darkroom/internal/services/deepseek"
	"darkroom/internal/services/telegram"
	"darkroom/internal/workflows"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open ledger store", slog.Any("error", err))
		os.Exit(1)
	}

	library, err := workflows.Load(cfg)
	if err != nil {
		logger.Error("load workflow templates", slog.Any("error", err))
		os.Exit(1)
	}

	comfyClient := comfy.New(cfg, logger)
	if err := comfyClient.Health(ctx); err != nil {
		logger.Error("comfyui unreachable", slog.String("url", cfg.Comfy.BaseURL), slog.Any("error", err))
		os.Exit(1)
	}

	deps := bot.Deps{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Library:   library,
		Messenger: telegram.New(cfg),
		Comfy:     comfyClient,
	}
	if classifier := deepseek.NewFromConfig(cfg); classifier != nil {
		deps.Classifier = classifier
	}

	d, err := daemon.New(cfg, store, logger, bot.New(deps))
	if err != nil {
		logger.Error("create daemon", slog.Any("error", err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", slog.Any("error", err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("darkroomd shutting down")
	d.Stop()
}
