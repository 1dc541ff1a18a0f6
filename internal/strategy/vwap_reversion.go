package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/indicator"
)

// VWAPReversion fades stretched moves back toward the session VWAP:
// price at least 1% away from the 50-candle VWAP, RSI confirming
// exhaustion, and a 50-EMA trend filter on the reversion side. The
// target is the VWAP itself.
type VWAPReversion struct {
	Symbol       string
	VWAPWindow   int
	MinDeviation float64 // fraction of VWAP
}

func NewVWAPReversion(symbol string) *VWAPReversion {
	return &VWAPReversion{Symbol: symbol, VWAPWindow: 50, MinDeviation: 0.01}
}

func (s *VWAPReversion) Name() string { return "vwap_reversion" }

func (s *VWAPReversion) WindowOpen(now time.Time) bool {
	return isWeekday(now)
}

func (s *VWAPReversion) Scan(candles []domain.Candle, now time.Time) *domain.Signal {
	return scanOnly(s, candles, now)
}

func (s *VWAPReversion) Diagnose(candles []domain.Candle, now time.Time) (*domain.Signal, []string) {
	if len(candles) < s.VWAPWindow+1 {
		return nil, []string{"vwap: insufficient candles"}
	}
	last := len(candles) - 1
	c := candles[last]

	vwap := indicator.VWAP(candles[len(candles)-s.VWAPWindow:])
	if vwap == 0 {
		return nil, []string{"vwap: undefined"}
	}
	deviation := (c.Close - vwap) / vwap

	closes := indicator.Closes(candles)
	rsi := indicator.RSI(closes, 14)[last]
	ema50 := indicator.EMA(closes, 50)[last]
	atr := indicator.LastATR(candles, 14)
	if math.IsNaN(rsi) || math.IsNaN(ema50) || atr == 0 {
		return nil, []string{"vwap: RSI/EMA/ATR undefined"}
	}

	// A genuine stretch puts price on the far side of the slow EMA as
	// well as the VWAP; anything else is trend, not exhaustion.
	var side domain.Side
	switch {
	case deviation <= -s.MinDeviation && rsi < 35 && c.Close < ema50:
		side = domain.SideLong
	case deviation >= s.MinDeviation && rsi > 65 && c.Close > ema50:
		side = domain.SideShort
	default:
		return nil, []string{fmt.Sprintf("vwap: deviation %.2f%% / RSI %.1f / EMA filter not aligned", deviation*100, rsi)}
	}

	entry := c.Close
	stop := entry - 1.5*atr*side.Direction()
	target := vwap

	sig := &domain.Signal{
		Strategy:   s.Name(),
		Symbol:     s.Symbol,
		Side:       side,
		Entry:      entry,
		Stop:       stop,
		TakeProfit: target,
		RiskReward: riskReward(entry, stop, target),
		Reason:     fmt.Sprintf("reversion %s to VWAP %.5f from %.5f (RSI %.1f)", side, vwap, entry, rsi),
		BarTime:    c.Time,
		CreatedAt:  now,
	}
	return sig, []string{"vwap: " + sig.Reason}
}
