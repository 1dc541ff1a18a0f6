package strategy

import (
	"fmt"
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/indicator"
)

// ORB trades breakouts of the opening-range candle: the high/low of the
// candle at the configured session-open timestamp. A later close beyond
// that range, optionally confirmed by volume against the trailing
// 10-candle average, fires a breakout signal.
type ORB struct {
	Symbol      string
	OpenHourUTC int
	OpenMinUTC  int
	WindowHours int // scanning window length after the open
}

func NewORB(symbol string, openHour, openMin int) *ORB {
	return &ORB{
		Symbol:      symbol,
		OpenHourUTC: openHour,
		OpenMinUTC:  openMin,
		WindowHours: 4,
	}
}

func (s *ORB) Name() string { return "orb" }

func (s *ORB) openTime(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), s.OpenHourUTC, s.OpenMinUTC, 0, 0, time.UTC)
}

func (s *ORB) WindowOpen(now time.Time) bool {
	if !isWeekday(now) {
		return false
	}
	open := s.openTime(now)
	return !now.Before(open) && now.Before(open.Add(time.Duration(s.WindowHours)*time.Hour))
}

func (s *ORB) Scan(candles []domain.Candle, now time.Time) *domain.Signal {
	return scanOnly(s, candles, now)
}

func (s *ORB) Diagnose(candles []domain.Candle, now time.Time) (*domain.Signal, []string) {
	orIdx := indexAt(candles, s.openTime(now).Unix())
	if orIdx < 0 {
		return nil, []string{"orb: no candle at session open"}
	}
	rangeHigh := candles[orIdx].High
	rangeLow := candles[orIdx].Low

	volumeKnown := !allZeroVolume(candles)

	for i := orIdx + 1; i < len(candles); i++ {
		c := candles[i]
		var side domain.Side
		switch {
		case c.Close > rangeHigh:
			side = domain.SideLong
		case c.Close < rangeLow:
			side = domain.SideShort
		default:
			continue
		}

		if volumeKnown {
			if avg := avgVolume(candles, i, 10); avg > 0 && c.Volume < avg {
				return nil, []string{fmt.Sprintf("orb: %s breakout at %.5f lacked volume (%.0f < avg %.0f)", side, c.Close, c.Volume, avg)}
			}
		}

		atr := indicator.LastATR(candles[:i+1], 14)
		if atr == 0 {
			return nil, []string{"orb: breakout found but ATR undefined"}
		}

		entry := c.Close
		var stop, target float64
		if side == domain.SideLong {
			stop = rangeLow - 0.2*atr
			target = entry + 2*atr
		} else {
			stop = rangeHigh + 0.2*atr
			target = entry - 2*atr
		}

		sig := &domain.Signal{
			Strategy:   s.Name(),
			Symbol:     s.Symbol,
			Side:       side,
			Entry:      entry,
			Stop:       stop,
			TakeProfit: target,
			RiskReward: riskReward(entry, stop, target),
			Reason:     fmt.Sprintf("opening range %.5f-%.5f broken %s at %.5f", rangeLow, rangeHigh, side, entry),
			BarTime:    c.Time,
			CreatedAt:  now,
		}
		return sig, []string{"orb: " + sig.Reason}
	}

	return nil, []string{"orb: no breakout of opening range yet"}
}
