package strategy

import (
	"fmt"
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/indicator"
)

// contDayState anchors the day's dominant impulse leg and remembers
// which of the two setups has already fired.
type contDayState struct {
	LegLow         float64
	LegHigh        float64
	PullbackTraded bool
	BreakoutTraded bool
}

// Continuation trades the continuation of the day's dominant London
// impulse leg: either a pullback rejection inside the 38-62%
// retracement of the leg, or a breakout through a narrow band around
// the leg high. Each setup fires at most once per day.
type Continuation struct {
	Symbol       string
	AnchorStart  int     // minutes past London midnight
	AnchorEnd    int
	WindowEnd    int
	MinLegUSD    float64 // minimum leg size in price units
	MinLegATRMul float64 // or this multiple of ATR, whichever admits

	days *dayStore[contDayState]
}

func NewContinuation(symbol string) *Continuation {
	return &Continuation{
		Symbol:       symbol,
		AnchorStart:  2 * 60,
		AnchorEnd:    8*60 + 30,
		WindowEnd:    12 * 60,
		MinLegUSD:    20.0,
		MinLegATRMul: 2.0,
		days:         newDayStore[contDayState](5),
	}
}

func (s *Continuation) Name() string { return "london_continuation" }

func (s *Continuation) WindowOpen(now time.Time) bool {
	if !isWeekday(now) {
		return false
	}
	m := londonMinute(now)
	return m >= s.AnchorEnd && m < s.WindowEnd
}

func (s *Continuation) Scan(candles []domain.Candle, now time.Time) *domain.Signal {
	return scanOnly(s, candles, now)
}

func (s *Continuation) Diagnose(candles []domain.Candle, now time.Time) (*domain.Signal, []string) {
	state := s.days.get(LondonDateKey(now))
	atr := indicator.LastATR(candles, 14)

	legLow, legHigh, legEnd, ok := s.anchorLeg(candles)
	if !ok {
		return nil, []string{"continuation: no impulse leg in anchor window"}
	}
	legSize := legHigh - legLow
	if legSize < s.MinLegUSD && (atr == 0 || legSize < s.MinLegATRMul*atr) {
		return nil, []string{fmt.Sprintf("continuation: leg %.5f too small (min %.2f or %.1fxATR)", legSize, s.MinLegUSD, s.MinLegATRMul)}
	}
	state.LegLow, state.LegHigh = legLow, legHigh

	// Setup 1: pullback rejection into the 38-62% retracement zone.
	if !state.PullbackTraded {
		zoneHigh := legHigh - 0.38*legSize
		zoneLow := legHigh - 0.62*legSize
		for i := legEnd + 1; i < len(candles); i++ {
			c := candles[i]
			if c.Low > zoneHigh || c.High < zoneLow {
				continue
			}
			if !c.Bullish() || c.Close < zoneLow {
				continue
			}
			state.PullbackTraded = true
			entry := c.Close
			stop := zoneLow - 0.2*atr
			risk := entry - stop
			sig := &domain.Signal{
				Strategy:   s.Name(),
				Symbol:     s.Symbol,
				Side:       domain.SideLong,
				Entry:      entry,
				Stop:       stop,
				TakeProfit: entry + 3*risk,
				RiskReward: 3,
				Reason:     fmt.Sprintf("pullback rejection in %.5f-%.5f of leg %.5f->%.5f", zoneLow, zoneHigh, legLow, legHigh),
				BarTime:    c.Time,
				CreatedAt:  now,
			}
			return sig, []string{"continuation: " + sig.Reason}
		}
	}

	// Setup 2: breakout through a narrow band around the leg high.
	if !state.BreakoutTraded && atr > 0 {
		bandLow := legHigh - 0.1*atr
		bandHigh := legHigh + 0.1*atr
		for i := legEnd + 1; i < len(candles); i++ {
			c := candles[i]
			if c.Close <= bandHigh {
				continue
			}
			state.BreakoutTraded = true
			entry := c.Close
			stop := bandLow - 0.2*atr
			risk := entry - stop
			sig := &domain.Signal{
				Strategy:   s.Name(),
				Symbol:     s.Symbol,
				Side:       domain.SideLong,
				Entry:      entry,
				Stop:       stop,
				TakeProfit: entry + 3*risk,
				RiskReward: 3,
				Reason:     fmt.Sprintf("breakout above leg high band %.5f-%.5f", bandLow, bandHigh),
				BarTime:    c.Time,
				CreatedAt:  now,
			}
			return sig, []string{"continuation: " + sig.Reason}
		}
	}

	return nil, []string{"continuation: leg anchored, no setup triggered"}
}

// anchorLeg finds the largest swing-low to subsequent swing-high move
// among candles inside the anchor window.
func (s *Continuation) anchorLeg(candles []domain.Candle) (low, high float64, highIdx int, ok bool) {
	inAnchor := func(c domain.Candle) bool {
		m := londonMinute(c.Start())
		return m >= s.AnchorStart && m < s.AnchorEnd
	}

	best := 0.0
	for i := 2; i < len(candles)-2; i++ {
		if !inAnchor(candles[i]) || !isSwingLow(candles, i) {
			continue
		}
		for j := i + 1; j < len(candles)-2; j++ {
			if !inAnchor(candles[j]) || !isSwingHigh(candles, j) {
				continue
			}
			size := candles[j].High - candles[i].Low
			if size > best {
				best = size
				low, high, highIdx = candles[i].Low, candles[j].High, j
				ok = true
			}
		}
	}
	return low, high, highIdx, ok
}
