package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

// TradeExecutor turns an approved signal into a broker order and an
// OPEN position record.
type TradeExecutor struct {
	broker    domain.Broker
	positions domain.PositionRepository
	notifier  domain.Notifier
	logger    *zap.Logger
}

func NewTradeExecutor(broker domain.Broker, positions domain.PositionRepository, notifier domain.Notifier, logger *zap.Logger) *TradeExecutor {
	return &TradeExecutor{
		broker:    broker,
		positions: positions,
		notifier:  notifier,
		logger:    logger,
	}
}

// Open places a signed market order for qty units in the signal's
// direction, persists the resulting OPEN position and fires a
// notification. The signal's stop becomes both the live stop and the
// immutable initial stop.
func (e *TradeExecutor) Open(ctx context.Context, bot domain.BotConfig, sig *domain.Signal, qty float64, now time.Time) (*domain.Position, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("invalid quantity %f for %s", qty, sig.Symbol)
	}

	units := qty * sig.Side.Direction()
	tag := fmt.Sprintf("%s/%s", bot.ID, sig.Strategy)
	res, err := e.broker.PlaceMarketOrder(ctx, sig.Symbol, units, sig.Stop, sig.TakeProfit, tag)
	if err != nil {
		return nil, fmt.Errorf("place order %s %s: %w", sig.Symbol, sig.Side, err)
	}

	entry := res.FillPrice
	if entry == 0 {
		entry = sig.Entry
	}

	pos := &domain.Position{
		ID:               fmt.Sprintf("%s-%s-%d", bot.ID, sig.Symbol, sig.BarTime),
		Status:           domain.StatusOpen,
		Side:             sig.Side,
		Symbol:           sig.Symbol,
		StrategyID:       bot.ID,
		BrokerRef:        res.Ref,
		EntryTime:        now,
		EntryPrice:       entry,
		Quantity:         qty,
		StopPrice:        sig.Stop,
		InitialStopPrice: sig.Stop,
		TakeProfitPrice:  sig.TakeProfit,
	}
	if err := e.positions.AddPosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("persist position %s: %w", pos.ID, err)
	}

	e.logger.Info("Position opened",
		zap.String("id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(pos.Side)),
		zap.Float64("entry", pos.EntryPrice),
		zap.Float64("stop", pos.StopPrice),
		zap.Float64("qty", pos.Quantity))
	e.notifier.Notify(ctx, "position_opened",
		fmt.Sprintf("%s %s %s qty %.2f @ %.5f stop %.5f", bot.ID, pos.Side, pos.Symbol, qty, entry, sig.Stop))

	return pos, nil
}
