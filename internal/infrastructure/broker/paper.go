package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

// PaperBroker simulates fills against a candle feed for offline and
// dry-run operation. Orders fill at the latest close plus configured
// slippage; stop and target execution stays with the lifecycle manager,
// exactly as for the live broker.
type PaperBroker struct {
	feed        domain.MarketData
	timeframe   string
	slippageBps float64
	spreadBps   float64
	logger      *zap.Logger

	mu     sync.Mutex
	seq    int
	trades map[string]*paperTrade
}

type paperTrade struct {
	Symbol string
	Units  float64
	Stop   float64
	TP     float64
}

func NewPaperBroker(feed domain.MarketData, timeframe string, slippageBps float64, logger *zap.Logger) *PaperBroker {
	if timeframe == "" {
		timeframe = "M15"
	}
	return &PaperBroker{
		feed:        feed,
		timeframe:   timeframe,
		slippageBps: slippageBps,
		spreadBps:   1,
		logger:      logger,
		trades:      make(map[string]*paperTrade),
	}
}

func (b *PaperBroker) lastClose(ctx context.Context, symbol string) (float64, error) {
	candles, err := b.feed.FetchOHLCV(ctx, symbol, b.timeframe, 2)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("no candles for %s", symbol)
	}
	return candles[len(candles)-1].Close, nil
}

func (b *PaperBroker) PlaceMarketOrder(ctx context.Context, symbol string, units, stopPrice, takeProfitPrice float64, tag string) (*domain.OrderResult, error) {
	if units == 0 {
		return nil, fmt.Errorf("zero units for %s", symbol)
	}
	mid, err := b.lastClose(ctx, symbol)
	if err != nil {
		return nil, err
	}
	// Slippage works against the taker on both sides.
	dir := 1.0
	if units < 0 {
		dir = -1
	}
	fill := mid * (1 + dir*b.slippageBps/10000)

	b.mu.Lock()
	b.seq++
	ref := fmt.Sprintf("paper-%d", b.seq)
	b.trades[ref] = &paperTrade{Symbol: symbol, Units: units, Stop: stopPrice, TP: takeProfitPrice}
	b.mu.Unlock()

	b.logger.Info("Paper fill",
		zap.String("symbol", symbol),
		zap.Float64("units", units),
		zap.Float64("fill", fill),
		zap.String("ref", ref),
		zap.String("tag", tag))
	return &domain.OrderResult{Ref: ref, FillPrice: fill}, nil
}

func (b *PaperBroker) UpdateStopLoss(_ context.Context, ref string, price float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.trades[ref]
	if !ok {
		return fmt.Errorf("unknown trade %s", ref)
	}
	t.Stop = price
	return nil
}

func (b *PaperBroker) CloseTrade(_ context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.trades[ref]; !ok {
		return fmt.Errorf("unknown trade %s", ref)
	}
	delete(b.trades, ref)
	return nil
}

func (b *PaperBroker) CloseTradeUnits(_ context.Context, ref string, units float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.trades[ref]
	if !ok {
		return fmt.Errorf("unknown trade %s", ref)
	}
	if t.Units > 0 {
		t.Units -= units
	} else {
		t.Units += units
	}
	return nil
}

func (b *PaperBroker) GetMidPrice(ctx context.Context, symbol string) (float64, error) {
	return b.lastClose(ctx, symbol)
}

func (b *PaperBroker) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	mid, err := b.lastClose(ctx, symbol)
	if err != nil {
		return nil, err
	}
	half := mid * b.spreadBps / 10000 / 2
	return &domain.Quote{Bid: mid - half, Ask: mid + half, Time: time.Now().UTC()}, nil
}

func (b *PaperBroker) GetAverageSpread(ctx context.Context, symbol string) (float64, error) {
	q, err := b.GetQuote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.Spread(), nil
}

func (b *PaperBroker) GetCandles(ctx context.Context, symbol, granularity string, count int) ([]domain.Candle, error) {
	return b.feed.FetchOHLCV(ctx, symbol, granularity, count)
}

// OpenTrades reports the simulated trades still open, for diagnostics.
func (b *PaperBroker) OpenTrades() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.trades)
}
