package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"futsentry/internal/binance"
	"futsentry/internal/config"
	"futsentry/internal/fuse"
	"futsentry/internal/history"
	"futsentry/internal/logger"
	"futsentry/internal/report"
	"futsentry/internal/scheduler"
	"futsentry/internal/storage"
	"futsentry/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	journal, err := storage.New(cfg.Storage.DBPath, cfg.Storage.MaxRows)
	if err != nil {
		logger.Fatal("Failed to initialize journal: %v", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			logger.Error("Failed to close journal: %v", err)
		}
	}()

	market := binance.NewClient(
		cfg.Binance.BaseURL,
		cfg.Spot.BaseURL,
		cfg.Spot.Coins,
		cfg.RequestTimeout(),
		cfg.Binance.RequestsPerSecond,
	)

	prices := history.New(cfg.Signal.HistoryDepthK)

	weights := fuse.Weights{
		Global:       cfg.Signal.Weights.Global,
		Taker:        cfg.Signal.Weights.Taker,
		OpenInterest: cfg.Signal.Weights.OpenInterest,
	}
	builder := report.New(market, weights, prices)

	var sink scheduler.Sink
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(
			cfg.Telegram.BotToken,
			cfg.Telegram.GroupChatID,
			cfg.Telegram.MaxRetries,
			cfg.Telegram.RetryDelayBase,
			builder,
			prices,
			journal,
		)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		sink = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := scheduler.New(
		scheduler.Config{
			Watchlist:        cfg.Signal.Watchlist,
			PumpThresholdPct: cfg.Signal.PumpThresholdPct,
			HourlyCron:       cfg.Signal.HourlyCron,
			FourHourlyCron:   cfg.Signal.FourHourlyCron,
			PumpInterval:     cfg.PumpInterval(),
			SampleInterval:   cfg.SampleInterval(),
		},
		builder,
		market,
		prices,
		sink,
		journal,
	)
	if err := runner.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler: %v", err)
	}

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Signal engine running (watchlist: %v, pump threshold: %.2f%%)",
		cfg.Signal.Watchlist, cfg.Signal.PumpThresholdPct)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, cleaning up...")
	cancel()
	runner.Stop()
	logger.Info("Service stopped")
}
