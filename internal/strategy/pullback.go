package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/indicator"
)

// TrendPullback joins an established trend after a shallow pullback to
// the fast EMA. ADX(14) must read above 25, direction comes from the
// EMA9/EMA21 ordering, and entry requires a break of the preceding
// candle's extreme in the trend direction.
type TrendPullback struct {
	Symbol string
	MinADX float64
}

func NewTrendPullback(symbol string) *TrendPullback {
	return &TrendPullback{Symbol: symbol, MinADX: 25}
}

func (s *TrendPullback) Name() string { return "trend_pullback" }

// WindowOpen is permissive: the pattern is session-agnostic and trades
// any weekday hour.
func (s *TrendPullback) WindowOpen(now time.Time) bool {
	return isWeekday(now)
}

func (s *TrendPullback) Scan(candles []domain.Candle, now time.Time) *domain.Signal {
	return scanOnly(s, candles, now)
}

func (s *TrendPullback) Diagnose(candles []domain.Candle, now time.Time) (*domain.Signal, []string) {
	if len(candles) < 30 {
		return nil, []string{"pullback: insufficient candles"}
	}
	last := len(candles) - 1
	c := candles[last]
	prev := candles[last-1]

	adx := indicator.ADX(candles, 14)
	if math.IsNaN(adx[last]) || adx[last] <= s.MinADX {
		return nil, []string{fmt.Sprintf("pullback: ADX %.1f below %.0f, no trend", adx[last], s.MinADX)}
	}

	closes := indicator.Closes(candles)
	fast := indicator.EMA(closes, 9)[last]
	slow := indicator.EMA(closes, 21)[last]
	atr := indicator.LastATR(candles, 14)
	if math.IsNaN(fast) || math.IsNaN(slow) || atr == 0 {
		return nil, []string{"pullback: EMA/ATR undefined"}
	}

	var side domain.Side
	if fast > slow {
		side = domain.SideLong
	} else if fast < slow {
		side = domain.SideShort
	} else {
		return nil, []string{"pullback: EMAs flat, no direction"}
	}

	if math.Abs(c.Close-fast) > 0.5*atr {
		return nil, []string{fmt.Sprintf("pullback: price %.5f not near EMA9 %.5f", c.Close, fast)}
	}

	// Break of the preceding candle's extreme in the trend direction.
	if side == domain.SideLong && c.Close <= prev.High {
		return nil, []string{"pullback: no break of prior high"}
	}
	if side == domain.SideShort && c.Close >= prev.Low {
		return nil, []string{"pullback: no break of prior low"}
	}

	entry := c.Close
	stop := entry - 1.8*atr*side.Direction()
	target := entry + 2.2*atr*side.Direction()

	sig := &domain.Signal{
		Strategy:   s.Name(),
		Symbol:     s.Symbol,
		Side:       side,
		Entry:      entry,
		Stop:       stop,
		TakeProfit: target,
		RiskReward: riskReward(entry, stop, target),
		Reason:     fmt.Sprintf("trend pullback %s, ADX %.1f, entry %.5f off EMA9", side, adx[last], entry),
		BarTime:    c.Time,
		CreatedAt:  now,
	}
	return sig, []string{"pullback: " + sig.Reason}
}
