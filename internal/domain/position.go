package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Direction is +1 for longs, -1 for shorts.
func (s Side) Direction() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// Stage labels one stop-management transition of an open position.
type Stage string

const (
	StageBreakEven Stage = "BE"
	StageTP1Close  Stage = "TP1CLOSE"
	StageTP2Close  Stage = "TP2CLOSE"
	StageLock      Stage = "LOCK"
	StageATRTrail  Stage = "ATR"
)

// StopChange is one append-only record of a stop move.
type StopChange struct {
	Ts      time.Time `json:"ts"`
	OldStop float64   `json:"old_stop"`
	NewStop float64   `json:"new_stop"`
	Stage   Stage     `json:"stage"`
}

// Position is the central stateful entity of the engine. It is created
// OPEN by the executor, mutated by the lifecycle manager on heartbeats
// (stop moves, partial quantity reduction) and transitions to CLOSED
// exactly once, after which it is immutable.
//
// InitialStopPrice never changes once set: it is the sole basis for
// R-multiple and stage-threshold math regardless of later stop moves.
type Position struct {
	ID               string
	Status           PositionStatus
	Side             Side
	Symbol           string
	StrategyID       string
	BrokerRef        string
	EntryTime        time.Time
	EntryPrice       float64
	Quantity         float64
	StopPrice        float64
	InitialStopPrice float64
	TakeProfitPrice  float64
	ExitTime         *time.Time
	ExitPrice        float64
	RealizedPnL      float64
	RMultiple        float64
	StopChanges      []StopChange
}

// InitialRisk is the original entry-to-stop distance (1R).
func (p *Position) InitialRisk() float64 {
	d := p.EntryPrice - p.InitialStopPrice
	if d < 0 {
		d = -d
	}
	return d
}

// RNow returns the signed favorable move at price, in R units.
// Positive means the position is in profit.
func (p *Position) RNow(price float64) float64 {
	r := p.InitialRisk()
	if r == 0 {
		return 0
	}
	return (price - p.EntryPrice) * p.Side.Direction() / r
}

// HasStage reports whether a lifecycle stage was already recorded,
// which is what makes stage transitions fire at most once.
func (p *Position) HasStage(stage Stage) bool {
	for _, sc := range p.StopChanges {
		if sc.Stage == stage {
			return true
		}
	}
	return false
}

// RecordStopChange appends to the stop-change log and applies the new stop.
func (p *Position) RecordStopChange(ts time.Time, newStop float64, stage Stage) {
	p.StopChanges = append(p.StopChanges, StopChange{
		Ts:      ts,
		OldStop: p.StopPrice,
		NewStop: newStop,
		Stage:   stage,
	})
	p.StopPrice = newStop
}

// Tightens reports whether candidate is a tighter stop than the current
// one for this side. Stops only ever tighten.
func (p *Position) Tightens(candidate float64) bool {
	if p.Side == SideLong {
		return candidate > p.StopPrice
	}
	return candidate < p.StopPrice
}

// StopHit reports whether price has crossed the (possibly trailed) stop.
func (p *Position) StopHit(price float64) bool {
	if p.Side == SideLong {
		return price <= p.StopPrice
	}
	return price >= p.StopPrice
}

// TargetHit reports whether price has crossed the take-profit.
func (p *Position) TargetHit(price float64) bool {
	if p.TakeProfitPrice == 0 {
		return false
	}
	if p.Side == SideLong {
		return price >= p.TakeProfitPrice
	}
	return price <= p.TakeProfitPrice
}

// PnL computes the signed profit for qty units exiting at price.
func (p *Position) PnL(price, qty float64) float64 {
	return (price - p.EntryPrice) * p.Side.Direction() * qty
}
