// One-shot strategy scan against live or synthetic candles. Prints
// per-bot diagnostics without touching storage or placing orders.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/intraday_trade_bot/internal/config"
	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/infrastructure/broker"
	"github.com/vitos/intraday_trade_bot/internal/infrastructure/logger"
	"github.com/vitos/intraday_trade_bot/internal/infrastructure/marketdata"
	"github.com/vitos/intraday_trade_bot/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	candleCount := flag.Int("candles", 200, "candles to fetch per bot")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger("warn")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	var market domain.MarketData
	synthetic := marketdata.NewSyntheticFeed()
	if cfg.Broker.Mode == "oanda" {
		baseURL := cfg.Broker.BaseURL
		if baseURL == "" {
			baseURL = broker.PracticeBaseURL
		}
		oanda := broker.NewOandaAdapter(baseURL, cfg.Broker.StreamURL, cfg.Broker.Token, cfg.Broker.AccountID, log)
		market = marketdata.NewService(oanda, synthetic, log)
	} else {
		fmt.Println("paper mode: scanning SYNTHETIC candles")
		market = synthetic
	}

	ctx := context.Background()
	now := time.Now().UTC()
	fmt.Printf("scan at %s\n\n", now.Format(time.RFC3339))

	for _, bot := range cfg.Bots {
		strt, err := strategy.New(bot.Strategy, bot.Symbol)
		if err != nil {
			fmt.Printf("[%s] SKIP: %v\n", bot.ID, err)
			continue
		}
		if !strt.WindowOpen(now) {
			fmt.Printf("[%s] %s %s: window closed\n", bot.ID, bot.Strategy, bot.Symbol)
			continue
		}

		candles, err := market.FetchOHLCV(ctx, bot.Symbol, bot.Timeframe, *candleCount)
		if err != nil {
			fmt.Printf("[%s] candles unavailable: %v\n", bot.ID, err)
			continue
		}

		sig, notes := strt.Diagnose(candles, now)
		if sig == nil {
			fmt.Printf("[%s] %s %s: no signal\n", bot.ID, bot.Strategy, bot.Symbol)
			for _, n := range notes {
				fmt.Printf("    - %s\n", n)
			}
			continue
		}
		fmt.Printf("[%s] SIGNAL %s %s entry=%.2f stop=%.2f tp=%.2f rr=%.2f (%s)\n",
			bot.ID, sig.Side, sig.Symbol, sig.Entry, sig.Stop, sig.TakeProfit, sig.RiskReward, sig.Reason)
	}
}
