package strategy_test

import (
	"testing"
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/indicator"
	"github.com/vitos/intraday_trade_bot/internal/strategy"
)

const epsilon = 0.000001

func floatEquals(a, b float64) bool {
	return (a-b) < epsilon && (b-a) < epsilon
}

// flatCandle builds a symmetric candle around price.
func flatCandle(ts int64, price, halfRange, volume float64) domain.Candle {
	return domain.Candle{
		Time: ts, Open: price, Close: price,
		High: price + halfRange, Low: price - halfRange,
		Volume: volume,
	}
}

func TestORB_LongBreakout(t *testing.T) {
	open := time.Date(2025, 7, 15, 13, 30, 0, 0, time.UTC) // Tuesday
	const step = int64(15 * 60)

	var candles []domain.Candle
	ts := open.Unix() - 20*step
	for i := 0; i < 20; i++ {
		candles = append(candles, flatCandle(ts, 105, 1, 100))
		ts += step
	}
	// Opening range candle: high 110, low 100.
	candles = append(candles, domain.Candle{
		Time: open.Unix(), Open: 105, High: 110, Low: 100, Close: 105, Volume: 100,
	})
	// Breakout with confirming volume.
	breakout := domain.Candle{
		Time: open.Unix() + step, Open: 106, High: 116, Low: 105, Close: 115, Volume: 250,
	}
	candles = append(candles, breakout)

	orb := strategy.NewORB("US30", 13, 30)
	now := open.Add(30 * time.Minute)
	if !orb.WindowOpen(now) {
		t.Fatal("window should be open after session open")
	}

	sig := orb.Scan(candles, now)
	if sig == nil {
		t.Fatal("expected a breakout signal")
	}
	if sig.Side != domain.SideLong {
		t.Fatalf("side = %s, want LONG", sig.Side)
	}
	if !floatEquals(sig.Entry, 115) {
		t.Errorf("entry = %f, want 115", sig.Entry)
	}
	if sig.Stop >= 100 {
		t.Errorf("stop = %f, must be below the range low 100", sig.Stop)
	}
	atr := indicator.LastATR(candles, 14)
	if !floatEquals(sig.TakeProfit, sig.Entry+2*atr) {
		t.Errorf("target = %f, want entry + 2xATR = %f", sig.TakeProfit, sig.Entry+2*atr)
	}
	if sig.BarTime != breakout.Time {
		t.Errorf("bar time = %d, want breakout bar %d", sig.BarTime, breakout.Time)
	}
}

func TestORB_VolumeVeto(t *testing.T) {
	open := time.Date(2025, 7, 15, 13, 30, 0, 0, time.UTC)
	const step = int64(15 * 60)

	var candles []domain.Candle
	ts := open.Unix() - 20*step
	for i := 0; i < 20; i++ {
		candles = append(candles, flatCandle(ts, 105, 1, 100))
		ts += step
	}
	candles = append(candles, domain.Candle{
		Time: open.Unix(), Open: 105, High: 110, Low: 100, Close: 105, Volume: 100,
	})
	// Breakout on thin volume: 10 against a trailing average of 100.
	candles = append(candles, domain.Candle{
		Time: open.Unix() + step, Open: 106, High: 116, Low: 105, Close: 115, Volume: 10,
	})

	orb := strategy.NewORB("US30", 13, 30)
	sig, reasons := orb.Diagnose(candles, open.Add(30*time.Minute))
	if sig != nil {
		t.Fatalf("expected volume veto, got signal %+v", sig)
	}
	if len(reasons) == 0 {
		t.Error("expected a skip reason")
	}
}

func TestORB_NoOpeningRangeCandle(t *testing.T) {
	open := time.Date(2025, 7, 15, 13, 30, 0, 0, time.UTC)
	candles := []domain.Candle{flatCandle(open.Unix()-900, 105, 1, 100)}

	orb := strategy.NewORB("US30", 13, 30)
	if sig := orb.Scan(candles, open.Add(time.Hour)); sig != nil {
		t.Fatal("no session-open candle must mean no signal")
	}
}

func TestORB_WindowClosedOnWeekend(t *testing.T) {
	orb := strategy.NewORB("US30", 13, 30)
	saturday := time.Date(2025, 7, 19, 14, 0, 0, 0, time.UTC)
	if orb.WindowOpen(saturday) {
		t.Error("window must be closed on Saturday")
	}
}
