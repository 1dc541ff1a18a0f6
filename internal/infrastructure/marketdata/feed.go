package marketdata

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

// Service serves OHLCV series from the broker, with an optional
// synthetic fallback for outages. Fallback candles are flagged loudly
// in the log so a live session never silently trades on fake data.
type Service struct {
	broker   domain.Broker
	fallback domain.MarketData
	logger   *zap.Logger
}

func NewService(broker domain.Broker, fallback domain.MarketData, logger *zap.Logger) *Service {
	return &Service{broker: broker, fallback: fallback, logger: logger}
}

func (s *Service) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	candles, err := s.broker.GetCandles(ctx, symbol, timeframe, limit)
	if err == nil && len(candles) > 0 {
		return candles, nil
	}
	if s.fallback == nil {
		if err != nil {
			return nil, fmt.Errorf("fetch candles %s %s: %w", symbol, timeframe, err)
		}
		return nil, fmt.Errorf("fetch candles %s %s: empty response", symbol, timeframe)
	}
	s.logger.Warn("broker candles unavailable, serving SYNTHETIC data",
		zap.String("symbol", symbol),
		zap.String("timeframe", timeframe),
		zap.Error(err),
	)
	return s.fallback.FetchOHLCV(ctx, symbol, timeframe, limit)
}
