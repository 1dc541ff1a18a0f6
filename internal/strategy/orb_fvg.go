package strategy

import (
	"fmt"
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

// rangeBand is the per-instrument eligibility window for the opening
// range, expressed as a percent of last price, plus the stop buffer
// applied beyond the range bound.
type rangeBand struct {
	MinPct     float64
	MaxPct     float64
	StopBuffer float64
}

var orbBands = map[string]rangeBand{
	"US30":   {MinPct: 0.10, MaxPct: 0.60, StopBuffer: 5.0},
	"NAS100": {MinPct: 0.12, MaxPct: 0.80, StopBuffer: 3.0},
	"SPX500": {MinPct: 0.08, MaxPct: 0.50, StopBuffer: 1.0},
	"XAUUSD": {MinPct: 0.10, MaxPct: 0.70, StopBuffer: 0.5},
}

var defaultORBBand = rangeBand{MinPct: 0.05, MaxPct: 0.65, StopBuffer: 0}

const (
	fvgScanCandles    = 5  // candles after breakout searched for a gap
	retestScanCandles = 10 // candles after the gap searched for a retest
	profileBins       = 60
	profileLookback   = 60
	lvnThreshold      = 0.40 // bin volume below 40% of peak marks a low-volume node
)

// FixedORB is the New-York-open confluence play: opening-range breakout
// confirmed by a fair-value gap beyond the range that lines up with a
// low-volume node of the recent volume profile, entered on the retest
// of that zone.
type FixedORB struct {
	Symbol string
}

func NewFixedORB(symbol string) *FixedORB {
	return &FixedORB{Symbol: symbol}
}

func (s *FixedORB) Name() string { return "orb_fvg_lvn" }

func (s *FixedORB) band() rangeBand {
	if b, ok := orbBands[s.Symbol]; ok {
		return b
	}
	return defaultORBBand
}

// WindowOpen allows scanning from 15 minutes after the New York open
// (once the opening range has completed) until three hours in, weekdays
// only.
func (s *FixedORB) WindowOpen(now time.Time) bool {
	if !isWeekday(now) {
		return false
	}
	open := NewYorkOpenUTC(now)
	return !now.Before(open.Add(15*time.Minute)) && now.Before(open.Add(3*time.Hour))
}

func (s *FixedORB) Scan(candles []domain.Candle, now time.Time) *domain.Signal {
	return scanOnly(s, candles, now)
}

func (s *FixedORB) Diagnose(candles []domain.Candle, now time.Time) (*domain.Signal, []string) {
	var reasons []string
	open := NewYorkOpenUTC(now)

	orIdx := indexAt(candles, open.Unix())
	if orIdx < 0 {
		return nil, append(reasons, "orb_fvg: no opening-range candle for today's NY open")
	}
	orHigh, orLow := candles[orIdx].High, candles[orIdx].Low
	orSize := orHigh - orLow
	last := candles[len(candles)-1].Close
	if last == 0 || orSize <= 0 {
		return nil, append(reasons, "orb_fvg: degenerate opening range")
	}

	band := s.band()
	rangePct := orSize / last * 100
	if rangePct < band.MinPct || rangePct > band.MaxPct {
		return nil, append(reasons, fmt.Sprintf("orb_fvg: range %.3f%% outside eligibility band [%.3f%%, %.3f%%]", rangePct, band.MinPct, band.MaxPct))
	}

	// Breakout beyond the opening range.
	breakIdx := -1
	var side domain.Side
	for i := orIdx + 1; i < len(candles); i++ {
		if candles[i].Close > orHigh {
			breakIdx, side = i, domain.SideLong
			break
		}
		if candles[i].Close < orLow {
			breakIdx, side = i, domain.SideShort
			break
		}
	}
	if breakIdx < 0 {
		return nil, append(reasons, "orb_fvg: no breakout of opening range yet")
	}
	reasons = append(reasons, fmt.Sprintf("orb_fvg: %s breakout at bar %d", side, breakIdx))

	gapLow, gapHigh, gapEnd, ok := s.findGap(candles, breakIdx, side, orHigh, orLow)
	if !ok {
		return nil, append(reasons, "orb_fvg: no fair-value gap beyond the range within 5 candles")
	}
	gapMid := (gapLow + gapHigh) / 2
	reasons = append(reasons, fmt.Sprintf("orb_fvg: gap %.5f-%.5f", gapLow, gapHigh))

	nodeLow, nodeHigh, ok := s.nearestLowVolumeNode(candles, gapEnd, gapMid)
	if !ok {
		return nil, append(reasons, "orb_fvg: no low-volume node in profile")
	}
	// The node must overlap the gap or sit within a quarter of the
	// opening-range size of its midpoint.
	overlap := nodeLow <= gapHigh && nodeHigh >= gapLow
	nodeMid := (nodeLow + nodeHigh) / 2
	dist := nodeMid - gapMid
	if dist < 0 {
		dist = -dist
	}
	if !overlap && dist > 0.25*orSize {
		return nil, append(reasons, fmt.Sprintf("orb_fvg: nearest node %.5f too far from gap midpoint %.5f", nodeMid, gapMid))
	}

	zoneLow, zoneHigh := gapLow, gapHigh
	if overlap {
		if nodeLow > zoneLow {
			zoneLow = nodeLow
		}
		if nodeHigh < zoneHigh {
			zoneHigh = nodeHigh
		}
	}
	zoneMid := (zoneLow + zoneHigh) / 2

	// Retest: touch the zone, close on the breakout side of its
	// midpoint, with a same-direction body.
	for i := gapEnd + 1; i < len(candles) && i <= gapEnd+retestScanCandles; i++ {
		c := candles[i]
		touched := c.Low <= zoneHigh && c.High >= zoneLow
		if !touched {
			continue
		}
		if side == domain.SideLong && (!c.Bullish() || c.Close <= zoneMid) {
			continue
		}
		if side == domain.SideShort && (!c.Bearish() || c.Close >= zoneMid) {
			continue
		}

		entry := c.Close
		var stop float64
		if side == domain.SideLong {
			stop = orLow - band.StopBuffer
		} else {
			stop = orHigh + band.StopBuffer
		}
		risk := entry - stop
		if risk < 0 {
			risk = -risk
		}
		if risk == 0 {
			return nil, append(reasons, "orb_fvg: zero risk distance, rejecting")
		}
		target := entry + 3*risk*side.Direction()

		sig := &domain.Signal{
			Strategy:   s.Name(),
			Symbol:     s.Symbol,
			Side:       side,
			Entry:      entry,
			Stop:       stop,
			TakeProfit: target,
			RiskReward: 3,
			Reason:     fmt.Sprintf("NY ORB %s + FVG/LVN retest of %.5f-%.5f", side, zoneLow, zoneHigh),
			BarTime:    c.Time,
			CreatedAt:  now,
		}
		return sig, append(reasons, "orb_fvg: "+sig.Reason)
	}

	return nil, append(reasons, "orb_fvg: zone not retested yet")
}

// findGap searches up to fvgScanCandles candles after the breakout for
// a 3-candle fair-value gap on the breakout side: the first candle's
// body must not overlap the combined range of the next two, and the gap
// must sit beyond the opening-range boundary.
func (s *FixedORB) findGap(candles []domain.Candle, breakIdx int, side domain.Side, orHigh, orLow float64) (gapLow, gapHigh float64, gapEnd int, ok bool) {
	for j := breakIdx; j < len(candles)-2 && j <= breakIdx+fvgScanCandles-2; j++ {
		bodyLow, bodyHigh := candles[j].Body()
		combLow := candles[j+1].Low
		if candles[j+2].Low < combLow {
			combLow = candles[j+2].Low
		}
		combHigh := candles[j+1].High
		if candles[j+2].High > combHigh {
			combHigh = candles[j+2].High
		}

		if side == domain.SideLong {
			// Body below the combined range leaves an untested gap above it.
			if bodyHigh < combLow && bodyHigh >= orHigh {
				return bodyHigh, combLow, j + 2, true
			}
		} else {
			if bodyLow > combHigh && bodyLow <= orLow {
				return combHigh, bodyLow, j + 2, true
			}
		}
	}
	return 0, 0, 0, false
}

// nearestLowVolumeNode builds a fixed-bin volume profile over the
// candles preceding endIdx and returns the bounds of the low-volume bin
// closest to ref.
func (s *FixedORB) nearestLowVolumeNode(candles []domain.Candle, endIdx int, ref float64) (low, high float64, ok bool) {
	start := endIdx - profileLookback
	if start < 0 {
		start = 0
	}
	window := candles[start:endIdx]
	if len(window) == 0 || allZeroVolume(window) {
		return 0, 0, false
	}

	minP, maxP := window[0].Low, window[0].High
	for _, c := range window {
		if c.Low < minP {
			minP = c.Low
		}
		if c.High > maxP {
			maxP = c.High
		}
	}
	if maxP <= minP {
		return 0, 0, false
	}

	binSize := (maxP - minP) / profileBins
	bins := make([]float64, profileBins)
	for _, c := range window {
		idx := int((c.TypicalPrice() - minP) / binSize)
		if idx < 0 {
			idx = 0
		}
		if idx >= profileBins {
			idx = profileBins - 1
		}
		bins[idx] += c.Volume
	}

	peak := 0.0
	for _, v := range bins {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return 0, 0, false
	}

	best := -1
	bestDist := 0.0
	for i, v := range bins {
		if v >= peak*lvnThreshold {
			continue
		}
		center := minP + (float64(i)+0.5)*binSize
		d := center - ref
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return minP + float64(best)*binSize, minP + float64(best+1)*binSize, true
}
