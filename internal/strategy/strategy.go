// Package strategy contains the chart-pattern evaluators. Every
// evaluator is a pure function of a candle series and the wall clock:
// it produces at most one signal per scan and keeps no state other than
// small per-calendar-day records.
package strategy

import (
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

// Strategy is the common capability the scheduler drives.
type Strategy interface {
	Name() string
	// WindowOpen reports whether the strategy's trading session allows
	// scanning at the given time.
	WindowOpen(now time.Time) bool
	// Scan evaluates the series and returns a signal or nil.
	Scan(candles []domain.Candle, now time.Time) *domain.Signal
	// Diagnose is the observable variant of Scan: it additionally
	// returns human-readable skip/accept reasons for the activity log.
	Diagnose(candles []domain.Candle, now time.Time) (*domain.Signal, []string)
}

// scanOnly adapts Diagnose into Scan for evaluators implemented in
// terms of their diagnostic path.
func scanOnly(s Strategy, candles []domain.Candle, now time.Time) *domain.Signal {
	sig, _ := s.Diagnose(candles, now)
	return sig
}

// indexAt finds the candle opening exactly at ts, or -1.
func indexAt(candles []domain.Candle, ts int64) int {
	for i, c := range candles {
		if c.Time == ts {
			return i
		}
	}
	return -1
}

// avgVolume averages the volume of up to n candles ending before idx.
func avgVolume(candles []domain.Candle, idx, n int) float64 {
	start := idx - n
	if start < 0 {
		start = 0
	}
	if start >= idx {
		return 0
	}
	sum := 0.0
	for _, c := range candles[start:idx] {
		sum += c.Volume
	}
	return sum / float64(idx-start)
}

// allZeroVolume reports whether the series carries no volume data at
// all, which is routine for FX feeds.
func allZeroVolume(candles []domain.Candle) bool {
	for _, c := range candles {
		if c.Volume > 0 {
			return false
		}
	}
	return true
}

// isSwingLow reports a 5-candle fractal low at index i.
func isSwingLow(candles []domain.Candle, i int) bool {
	if i < 2 || i > len(candles)-3 {
		return false
	}
	l := candles[i].Low
	return l < candles[i-1].Low && l < candles[i-2].Low &&
		l < candles[i+1].Low && l < candles[i+2].Low
}

// isSwingHigh reports a 5-candle fractal high at index i.
func isSwingHigh(candles []domain.Candle, i int) bool {
	if i < 2 || i > len(candles)-3 {
		return false
	}
	h := candles[i].High
	return h > candles[i-1].High && h > candles[i-2].High &&
		h > candles[i+1].High && h > candles[i+2].High
}

// riskReward relates the target distance to the stop distance.
func riskReward(entry, stop, target float64) float64 {
	risk := entry - stop
	if risk < 0 {
		risk = -risk
	}
	if risk == 0 {
		return 0
	}
	reward := target - entry
	if reward < 0 {
		reward = -reward
	}
	return reward / risk
}
