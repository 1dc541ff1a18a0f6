package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/intraday_trade_bot/internal/config"
	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/infrastructure/broker"
	"github.com/vitos/intraday_trade_bot/internal/infrastructure/logger"
	"github.com/vitos/intraday_trade_bot/internal/infrastructure/marketdata"
	"github.com/vitos/intraday_trade_bot/internal/infrastructure/notifier"
	"github.com/vitos/intraday_trade_bot/internal/infrastructure/storage"
	"github.com/vitos/intraday_trade_bot/internal/usecase"
	"github.com/vitos/intraday_trade_bot/internal/web"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var log *zap.Logger
	if cfg.Logging.File != "" {
		log = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
		if err != nil {
			fmt.Printf("Failed to init logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer log.Sync()

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	symbols := make([]string, 0, len(cfg.Bots))
	seen := make(map[string]bool)
	for _, b := range cfg.Bots {
		if !seen[b.Symbol] {
			seen[b.Symbol] = true
			symbols = append(symbols, b.Symbol)
		}
	}

	var brk domain.Broker
	var market domain.MarketData
	synthetic := marketdata.NewSyntheticFeed()
	switch cfg.Broker.Mode {
	case "oanda":
		baseURL := cfg.Broker.BaseURL
		if baseURL == "" {
			baseURL = broker.PracticeBaseURL
		}
		oanda := broker.NewOandaAdapter(baseURL, cfg.Broker.StreamURL, cfg.Broker.Token, cfg.Broker.AccountID, log)
		oanda.StartPriceStream(ctx, symbols)
		brk = oanda
		market = marketdata.NewService(oanda, synthetic, log)
	default:
		// Paper mode trades the synthetic feed against itself.
		log.Warn("Paper mode: fills and candles are SYNTHETIC")
		brk = broker.NewPaperBroker(synthetic, "M15", cfg.Broker.SlippageBps, log)
		market = synthetic
	}

	events, err := cfg.NewsEvents()
	if err != nil {
		log.Fatal("Bad news calendar", zap.Error(err))
	}
	calendar := usecase.NewStaticCalendar(events)

	var notify domain.Notifier
	if cfg.Notify.WebhookURL != "" {
		notify = notifier.NewWebhookNotifier(cfg.Notify.WebhookURL, log)
	} else {
		notify = notifier.NewLogNotifier(log)
	}

	var explainer domain.Explainer
	if cfg.Explainer.BaseURL != "" {
		explainer = notifier.NewChatExplainer(cfg.Explainer.BaseURL, cfg.Explainer.APIKey, cfg.Explainer.Model)
	} else {
		explainer = notifier.RuleExplainer{}
	}

	selector := usecase.NewSelector(usecase.SelectorConfig{
		MinRiskReward:      cfg.Risk.MinRiskReward,
		BaseAccount:        cfg.Risk.BaseAccount,
		MinLot:             cfg.Risk.MinLot,
		MinATRPercent:      cfg.Risk.MinATRPercent,
		HighATRPercent:     cfg.Risk.HighATRPercent,
		MaxSpreadMultiple:  cfg.Risk.MaxSpreadMultiple,
		NewsLockWindow:     time.Duration(cfg.Risk.NewsLockMinutes) * time.Minute,
		DailyCapPerSide:    cfg.Risk.DailyCapPerSide,
		BlockDuplicateSide: cfg.Risk.BlockDuplicateSide,
	}, store, store, brk, calendar, log)

	executor := usecase.NewTradeExecutor(brk, store, notify, log)

	lifecycle := usecase.NewLifecycle(usecase.LifecycleConfig{
		BreakEvenR:      cfg.Lifecycle.BreakEvenR,
		BreakEvenBuffer: cfg.Lifecycle.BreakEvenBuffer,
		LockR:           cfg.Lifecycle.LockR,
		LockOffsetR:     cfg.Lifecycle.LockOffsetR,
		ATRStartR:       cfg.Lifecycle.ATRStartR,
		PartialTrailR:   cfg.Lifecycle.PartialTrailR,
	}, cfg.Bots, store, store, brk, market, notify, explainer, log)

	scheduler, err := usecase.NewScheduler(usecase.SchedulerConfig{
		ScanInterval:      time.Duration(cfg.Scheduler.ScanIntervalSec) * time.Second,
		HeartbeatInterval: time.Duration(cfg.Scheduler.HeartbeatIntervalSec) * time.Second,
		CandleCount:       cfg.Scheduler.CandleCount,
	}, cfg.Bots, market, selector, executor, lifecycle, store, store, log)
	if err != nil {
		log.Fatal("Failed to build scheduler", zap.Error(err))
	}

	server := web.NewServer(cfg.Server.Port, store, store, store, store, selector, lifecycle, log)

	go scheduler.Run(ctx)
	go scheduler.RunHeartbeat(ctx)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("Web server failed", zap.Error(err))
		}
	}()

	// First scan immediately rather than one interval from now.
	scheduler.Tick(ctx, time.Now().UTC())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("Shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Web server shutdown failed", zap.Error(err))
	}
}
