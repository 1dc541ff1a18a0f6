package strategy_test

import (
	"testing"
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/indicator"
	"github.com/vitos/intraday_trade_bot/internal/strategy"
)

// trendSeries ramps price steadily upward, pulls back to the fast EMA
// over three candles, then closes at triggerClose on the final candle.
// The prior candle's high is 110.9, so triggerClose above that breaks
// the extreme and anything at or below it does not.
func trendSeries(triggerClose float64) []domain.Candle {
	var candles []domain.Candle
	ts := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC).Unix()
	add := func(o, h, l, c float64) {
		candles = append(candles, domain.Candle{
			Time: ts, Open: o, High: h, Low: l, Close: c, Volume: 100,
		})
		ts += 15 * 60
	}

	for i := 0; i < 56; i++ {
		c := 100 + 0.2*float64(i)
		add(c-0.2, c+1, c-1, c)
	}
	add(111, 111.2, 110.4, 110.6)
	add(110.6, 110.8, 110.2, 110.4)
	add(110.4, 110.9, 110.1, 110.3)
	add(110.4, triggerClose+0.2, 110.2, triggerClose)
	return candles
}

func TestTrendPullback_LongEntryOnBreak(t *testing.T) {
	s := strategy.NewTrendPullback("NAS100")
	now := time.Date(2025, 7, 15, 15, 0, 0, 0, time.UTC)
	candles := trendSeries(111.1)

	sig, reasons := s.Diagnose(candles, now)
	if sig == nil {
		t.Fatalf("expected long pullback entry, got none; reasons: %v", reasons)
	}
	if sig.Side != domain.SideLong {
		t.Fatalf("side = %s, want LONG", sig.Side)
	}
	if !floatEquals(sig.Entry, 111.1) {
		t.Errorf("entry = %f, want trigger close 111.1", sig.Entry)
	}
	atr := indicator.LastATR(candles, 14)
	if !floatEquals(sig.Stop, 111.1-1.8*atr) {
		t.Errorf("stop = %f, want entry-1.8*ATR", sig.Stop)
	}
	if !floatEquals(sig.TakeProfit, 111.1+2.2*atr) {
		t.Errorf("take profit = %f, want entry+2.2*ATR", sig.TakeProfit)
	}
}

func TestTrendPullback_NoBreakNoEntry(t *testing.T) {
	s := strategy.NewTrendPullback("NAS100")
	now := time.Date(2025, 7, 15, 15, 0, 0, 0, time.UTC)

	// Closes inside the prior candle's range: setup without trigger.
	if sig, _ := s.Diagnose(trendSeries(110.5), now); sig != nil {
		t.Fatalf("no break of prior high, got %+v", sig)
	}
}

func TestTrendPullback_NeedsHistory(t *testing.T) {
	s := strategy.NewTrendPullback("NAS100")
	now := time.Date(2025, 7, 15, 15, 0, 0, 0, time.UTC)

	if sig, _ := s.Diagnose(trendSeries(111.1)[:20], now); sig != nil {
		t.Fatal("short history must not signal")
	}
}

func TestTrendPullback_WeekendClosed(t *testing.T) {
	s := strategy.NewTrendPullback("NAS100")
	if s.WindowOpen(time.Date(2025, 7, 19, 15, 0, 0, 0, time.UTC)) {
		t.Error("Saturday should be closed")
	}
	if !s.WindowOpen(time.Date(2025, 7, 16, 3, 0, 0, 0, time.UTC)) {
		t.Error("weekday overnight hours should be open")
	}
}
