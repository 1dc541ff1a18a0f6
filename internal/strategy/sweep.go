package strategy

import (
	"fmt"
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/indicator"
)

// sweepDayState is the per-London-day record of the liquidity-sweep
// play: the swing low in use, the last reaction zone, and which zones
// have already been traded today.
// sweepDayState carries only the once-per-day invariant: zones already
// traded on this London day.
type sweepDayState struct {
	TradedZones map[string]bool
}

// LiquiditySweep is the London-session long reversal: a probe below a
// recent swing low that closes back above it, a displacement candle
// confirming the reclaim, then an entry on the revisit of the reaction
// zone. Each zone is tradable at most once per calendar day.
type LiquiditySweep struct {
	Symbol        string
	MinSweepDepth float64 // price units below the swing low
	MaxSweepDepth float64
	WindowStart   int // minutes past London midnight
	WindowEnd     int

	days *dayStore[sweepDayState]
}

func NewLiquiditySweep(symbol string) *LiquiditySweep {
	return &LiquiditySweep{
		Symbol:        symbol,
		MinSweepDepth: 0.10,
		MaxSweepDepth: 1.00,
		WindowStart:   8 * 60,
		WindowEnd:     11*60 + 30,
		days:          newDayStore[sweepDayState](5),
	}
}

func (s *LiquiditySweep) Name() string { return "liquidity_sweep" }

func (s *LiquiditySweep) WindowOpen(now time.Time) bool {
	if !isWeekday(now) {
		return false
	}
	m := londonMinute(now)
	return m >= s.WindowStart && m < s.WindowEnd
}

func (s *LiquiditySweep) Scan(candles []domain.Candle, now time.Time) *domain.Signal {
	return scanOnly(s, candles, now)
}

func (s *LiquiditySweep) Diagnose(candles []domain.Candle, now time.Time) (*domain.Signal, []string) {
	state := s.days.get(LondonDateKey(now))
	if state.TradedZones == nil {
		state.TradedZones = make(map[string]bool)
	}

	atr := indicator.LastATR(candles, 14)

	// Most recent swing low with a qualifying sweep after it.
	for sl := len(candles) - 3; sl >= 2; sl-- {
		if !isSwingLow(candles, sl) {
			continue
		}
		swingLow := candles[sl].Low

		sweepIdx := -1
		for k := sl + 1; k < len(candles); k++ {
			depth := swingLow - candles[k].Low
			if depth >= s.MinSweepDepth && depth <= s.MaxSweepDepth && candles[k].Close > swingLow {
				sweepIdx = k
				break
			}
		}
		if sweepIdx < 0 {
			continue
		}

		// Bullish displacement whose preceding candle is bearish; that
		// preceding candle's high/low become the reaction zone.
		dispIdx := -1
		for d := sweepIdx + 1; d < len(candles); d++ {
			c := candles[d]
			if !c.Bullish() || !candles[d-1].Bearish() {
				continue
			}
			strong := c.Close > candles[sweepIdx].High ||
				(c.Range() > 0 && c.BodySize() >= 0.4*c.Range()) ||
				(atr > 0 && c.Range() > 1.2*atr)
			if strong {
				dispIdx = d
				break
			}
		}
		if dispIdx < 0 {
			return nil, []string{fmt.Sprintf("sweep: swept %.5f but no displacement yet", swingLow)}
		}

		zoneLow := candles[dispIdx-1].Low
		zoneHigh := candles[dispIdx-1].High
		zoneKey := fmt.Sprintf("%.5f|%.5f", zoneLow, zoneHigh)

		if state.TradedZones[zoneKey] {
			return nil, []string{fmt.Sprintf("sweep: zone %.5f-%.5f already traded today", zoneLow, zoneHigh)}
		}

		// Two mutually exclusive entry paths: (a) leave the zone upward
		// then return into it, or (b) tap-and-go within 15 candles.
		leftZone := false
		for q := dispIdx + 1; q < len(candles); q++ {
			c := candles[q]
			touched := c.Low <= zoneHigh && c.High >= zoneLow

			if leftZone {
				if touched && c.Bullish() && c.Close >= zoneLow && c.Close <= zoneHigh {
					return s.emit(state, zoneKey, c, zoneLow, "zone revisit", now), nil
				}
			} else {
				if touched && c.Bullish() && q <= dispIdx+15 {
					return s.emit(state, zoneKey, c, zoneLow, "tap-and-go", now), nil
				}
			}
			if c.Close > zoneHigh {
				leftZone = true
			}
		}
		return nil, []string{fmt.Sprintf("sweep: zone %.5f-%.5f armed, waiting for entry", zoneLow, zoneHigh)}
	}

	return nil, []string{"sweep: no swept swing low found"}
}

func (s *LiquiditySweep) emit(state *sweepDayState, zoneKey string, c domain.Candle, zoneLow float64, path string, now time.Time) *domain.Signal {
	state.TradedZones[zoneKey] = true
	entry := c.Close
	stop := zoneLow - 1.0
	risk := entry - stop
	return &domain.Signal{
		Strategy:   s.Name(),
		Symbol:     s.Symbol,
		Side:       domain.SideLong,
		Entry:      entry,
		Stop:       stop,
		TakeProfit: entry + 3*risk,
		RiskReward: 3,
		Reason:     fmt.Sprintf("london sweep %s entry at %.5f (zone low %.5f)", path, entry, zoneLow),
		BarTime:    c.Time,
		CreatedAt:  now,
	}
}
