package indicator_test

import (
	"math"
	"testing"

	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/indicator"
)

const epsilon = 0.000001

func floatEquals(a, b float64) bool {
	return (a-b) < epsilon && (b-a) < epsilon
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := indicator.SMA(values, 3)

	if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
		t.Errorf("expected NaN for first n-1 values, got %v", out[:2])
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if !floatEquals(out[i+2], w) {
			t.Errorf("SMA[%d] = %f, want %f", i+2, out[i+2], w)
		}
	}
}

func TestEMA_SeededBySimpleAverage(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := indicator.EMA(values, 3)

	if !math.IsNaN(out[1]) {
		t.Error("expected NaN before seed index")
	}
	// Seed = avg(1,2,3) = 2, k = 0.5
	if !floatEquals(out[2], 2) {
		t.Errorf("EMA seed = %f, want 2", out[2])
	}
	if !floatEquals(out[3], 3) {
		t.Errorf("EMA[3] = %f, want 3", out[3])
	}
	if !floatEquals(out[4], 4) {
		t.Errorf("EMA[4] = %f, want 4", out[4])
	}
}

func TestATR_ConstantRange(t *testing.T) {
	// Candles with a constant 2.0 true range and no gaps.
	var candles []domain.Candle
	for i := 0; i < 20; i++ {
		candles = append(candles, domain.Candle{
			Time: int64(i * 60), Open: 100, High: 101, Low: 99, Close: 100,
		})
	}
	out := indicator.ATR(candles, 14)

	if !math.IsNaN(out[12]) {
		t.Error("ATR must be undefined before the period completes")
	}
	for i := 13; i < len(out); i++ {
		if !floatEquals(out[i], 2.0) {
			t.Errorf("ATR[%d] = %f, want 2.0", i, out[i])
		}
	}
	if !floatEquals(indicator.LastATR(candles, 14), 2.0) {
		t.Errorf("LastATR = %f, want 2.0", indicator.LastATR(candles, 14))
	}
}

func TestVWAP(t *testing.T) {
	weighted := []domain.Candle{
		{High: 11, Low: 9, Close: 10, Volume: 1},  // typical 10
		{High: 21, Low: 19, Close: 20, Volume: 3}, // typical 20
	}
	if got := indicator.VWAP(weighted); !floatEquals(got, 17.5) {
		t.Errorf("VWAP = %f, want 17.5", got)
	}

	// FX symbols report zero volume; VWAP degrades to an equal-weighted
	// average of typical prices.
	zeroVol := []domain.Candle{
		{High: 11, Low: 9, Close: 10},
		{High: 21, Low: 19, Close: 20},
	}
	if got := indicator.VWAP(zeroVol); !floatEquals(got, 15) {
		t.Errorf("zero-volume VWAP = %f, want 15", got)
	}
}

func TestRSI_Extremes(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = float64(100 + i)
		down[i] = float64(100 - i)
	}

	rsiUp := indicator.RSI(up, 14)
	if !floatEquals(rsiUp[len(rsiUp)-1], 100) {
		t.Errorf("monotonic gains RSI = %f, want 100", rsiUp[len(rsiUp)-1])
	}
	rsiDown := indicator.RSI(down, 14)
	if !floatEquals(rsiDown[len(rsiDown)-1], 0) {
		t.Errorf("monotonic losses RSI = %f, want 0", rsiDown[len(rsiDown)-1])
	}
	if !math.IsNaN(rsiUp[13]) {
		t.Error("RSI must be undefined for the first n values")
	}
}

func TestADX_RequiresTwoPeriods(t *testing.T) {
	var short []domain.Candle
	for i := 0; i < 27; i++ {
		short = append(short, domain.Candle{High: float64(101 + i), Low: float64(99 + i), Close: float64(100 + i)})
	}
	out := indicator.ADX(short, 14)
	for i, v := range out {
		if !math.IsNaN(v) {
			t.Fatalf("ADX[%d] defined with only %d candles", i, len(short))
		}
	}
}

func TestADX_TrendingMarket(t *testing.T) {
	var candles []domain.Candle
	for i := 0; i < 60; i++ {
		base := 100 + float64(i)*2
		candles = append(candles, domain.Candle{High: base + 1, Low: base - 1, Close: base + 0.5})
	}
	out := indicator.ADX(candles, 14)
	last := out[len(out)-1]
	if math.IsNaN(last) {
		t.Fatal("ADX undefined on a sufficient series")
	}
	if last < 25 || last > 100 {
		t.Errorf("strong one-way trend should read ADX > 25, got %f", last)
	}
}
