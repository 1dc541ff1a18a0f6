// Package indicator provides pure, deterministic technical indicators
// over ascending candle series. Values that are not yet defined for a
// period are NaN.
package indicator

import (
	"math"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

func Closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// SMA returns the simple moving average of values. The first n-1
// entries are NaN.
func SMA(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	if n <= 0 || len(values) < n {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= n {
			sum -= values[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA returns the exponential moving average, seeded by the simple
// average of the first n values and then multiplicatively smoothed.
func EMA(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	if n <= 0 || len(values) < n {
		return out
	}
	seed := 0.0
	for i := 0; i < n; i++ {
		seed += values[i]
	}
	seed /= float64(n)
	out[n-1] = seed
	k := 2.0 / float64(n+1)
	for i := n; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// TrueRange for candle i uses the previous close; the first candle's
// true range is its high-low span.
func TrueRange(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			out[i] = c.High - c.Low
			continue
		}
		prevClose := candles[i-1].Close
		tr := c.High - c.Low
		if d := math.Abs(c.High - prevClose); d > tr {
			tr = d
		}
		if d := math.Abs(c.Low - prevClose); d > tr {
			tr = d
		}
		out[i] = tr
	}
	return out
}

// ATR is the Wilder-smoothed average true range. The first n-1 values
// are NaN.
func ATR(candles []domain.Candle, n int) []float64 {
	out := nanSlice(len(candles))
	if n <= 0 || len(candles) < n {
		return out
	}
	tr := TrueRange(candles)
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += tr[i]
	}
	out[n-1] = sum / float64(n)
	for i := n; i < len(candles); i++ {
		out[i] = (out[i-1]*float64(n-1) + tr[i]) / float64(n)
	}
	return out
}

// LastATR is a convenience for the most recent defined ATR value, or 0
// when the series is too short.
func LastATR(candles []domain.Candle, n int) float64 {
	atr := ATR(candles, n)
	if len(atr) == 0 {
		return 0
	}
	v := atr[len(atr)-1]
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// VWAP computes cumulative typical-price volume weighting over the
// supplied window. When cumulative volume is zero (FX symbols routinely
// report no volume) it degrades to an equal-weighted average of typical
// prices; callers treat that as a documented degraded mode, not an error.
func VWAP(candles []domain.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var pv, vol, tpSum float64
	for _, c := range candles {
		tp := c.TypicalPrice()
		pv += tp * c.Volume
		vol += c.Volume
		tpSum += tp
	}
	if vol == 0 {
		return tpSum / float64(len(candles))
	}
	return pv / vol
}

// RSI is the standard Wilder gain/loss smoothing over closes. The first
// n values are NaN.
func RSI(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	if n <= 0 || len(values) <= n {
		return out
	}
	var gain, loss float64
	for i := 1; i <= n; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(n)
	avgLoss := loss / float64(n)
	out[n] = rsiValue(avgGain, avgLoss)
	for i := n + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(n-1) + g) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + l) / float64(n)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ADX applies Wilder DM/TR smoothing then smoothed DX. A defined value
// needs at least 2n candles; earlier entries are NaN.
func ADX(candles []domain.Candle, n int) []float64 {
	out := nanSlice(len(candles))
	if n <= 0 || len(candles) < 2*n {
		return out
	}
	tr := TrueRange(candles)
	plusDM := make([]float64, len(candles))
	minusDM := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder running sums seeded over the first n bars
	var smTR, smPlus, smMinus float64
	for i := 1; i <= n; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := nanSlice(len(candles))
	dx[n] = dxValue(smPlus, smMinus, smTR)
	for i := n + 1; i < len(candles); i++ {
		smTR = smTR - smTR/float64(n) + tr[i]
		smPlus = smPlus - smPlus/float64(n) + plusDM[i]
		smMinus = smMinus - smMinus/float64(n) + minusDM[i]
		dx[i] = dxValue(smPlus, smMinus, smTR)
	}

	// ADX: smoothed DX, first defined at index 2n-1
	seed := 0.0
	for i := n; i < 2*n; i++ {
		seed += dx[i]
	}
	out[2*n-1] = seed / float64(n)
	for i := 2 * n; i < len(candles); i++ {
		out[i] = (out[i-1]*float64(n-1) + dx[i]) / float64(n)
	}
	return out
}

func dxValue(plus, minus, tr float64) float64 {
	if tr == 0 {
		return 0
	}
	pdi := 100 * plus / tr
	mdi := 100 * minus / tr
	if pdi+mdi == 0 {
		return 0
	}
	return 100 * math.Abs(pdi-mdi) / (pdi + mdi)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
