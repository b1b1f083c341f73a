package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Vodeneev/bttsbot/internal/monitor/feed"
	"github.com/Vodeneev/bttsbot/internal/monitor/monitor"
	"github.com/Vodeneev/bttsbot/internal/monitor/notifier"
	"github.com/Vodeneev/bttsbot/internal/monitor/recommender"
	"github.com/Vodeneev/bttsbot/internal/pkg/config"
	"github.com/Vodeneev/bttsbot/internal/pkg/health"
	"github.com/Vodeneev/bttsbot/internal/pkg/logging"
	"github.com/Vodeneev/bttsbot/internal/pkg/metrics"
)

const (
	defaultConfigPath = "configs/production.yaml"
	serviceName       = "btts-bot"
)

func main() {
	fmt.Println("Starting BTTS bot...")

	var configPath string
	var healthAddr string

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = defaultConfigPath
	}

	flag.StringVar(&configPath, "config", defaultConfig, "Path to config file (can be set via CONFIG_PATH env var)")
	flag.StringVar(&healthAddr, "health-addr", "", "Health server listen address, overrides health.addr (e.g. :8080)")
	flag.Parse()

	fmt.Printf("Loading config from: %s\n", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if healthAddr != "" {
		cfg.Health.Addr = healthAddr
	}

	_, logCloser, err := logging.SetupLogger(&cfg.Logging, serviceName)
	if err != nil {
		log.Printf("Warning: failed to setup logging: %v, continuing with default logger", err)
	} else {
		defer logCloser.Close()
		slog.Info("Logging initialized", "level", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		log.Fatalf("btts-bot: invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, stopping bot...")
		cancel()
	}()

	bot, err := notifier.ConnectBotAPI(ctx, cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint, cfg.Monitor.Interval)
	if err != nil {
		slog.Info("Stopped before telegram bot was ready", "error", err)
		return
	}

	loopMetrics := metrics.NewLoopMetrics()
	feedClient := feed.NewClient(&cfg.Feed)
	recClient := recommender.NewClient(&cfg.Recommender)
	tgNotifier := notifier.NewTelegramNotifier(bot, cfg.Telegram.ChatID,
		notifier.WithSendInterval(cfg.Telegram.SendInterval),
		notifier.WithMaxStored(cfg.Telegram.MaxStored),
	)

	mon := monitor.New(feedClient, recClient, tgNotifier, feed.BTTSPercentage, loopMetrics, monitor.Options{
		Interval:     cfg.Monitor.Interval,
		HistoryLimit: recClient.HistoryLimit(),
		LinkTemplate: cfg.Monitor.LinkTemplate,
	})

	status := func() any {
		return struct {
			monitor.Status
			StoredMessages int `json:"stored_messages"`
		}{mon.Status(), tgNotifier.Len()}
	}
	health.Run(ctx, cfg.Health.Addr, serviceName, health.NewMux(status, loopMetrics.Registry()), cfg.Health.ReadHeaderTimeout)

	slog.Info("Starting pick loop",
		"leagues", len(cfg.Feed.Leagues),
		"model", cfg.Recommender.Model,
		"chat_id", cfg.Telegram.ChatID)
	mon.Run(ctx)

	slog.Info("BTTS bot stopped")
}
