package domain

import (
	"context"
	"time"
)

// OrderResult is the broker acknowledgement of a filled market order.
type OrderResult struct {
	Ref       string
	FillPrice float64
}

// Quote is a two-sided price snapshot.
type Quote struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

func (q Quote) Mid() float64    { return (q.Bid + q.Ask) / 2 }
func (q Quote) Spread() float64 { return q.Ask - q.Bid }

// Broker defines the order and pricing surface the engine consumes.
// Units are signed: positive opens long, negative opens short.
type Broker interface {
	PlaceMarketOrder(ctx context.Context, instrument string, units float64, stopPrice, takeProfitPrice float64, tag string) (*OrderResult, error)
	UpdateStopLoss(ctx context.Context, ref string, price float64) error
	CloseTrade(ctx context.Context, ref string) error
	CloseTradeUnits(ctx context.Context, ref string, units float64) error
	GetMidPrice(ctx context.Context, instrument string) (float64, error)
	GetQuote(ctx context.Context, instrument string) (*Quote, error)
	GetAverageSpread(ctx context.Context, instrument string) (float64, error)
	GetCandles(ctx context.Context, instrument, granularity string, count int) ([]Candle, error)
}

// MarketData supplies OHLCV series, ascending by time. Implementations
// must fall back to a clearly logged synthetic series when the live
// source is unavailable.
type MarketData interface {
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
}

// PositionRepository stores positions. UpdatePosition is merge-style:
// the caller passes the full mutated record.
type PositionRepository interface {
	AddPosition(ctx context.Context, p *Position) error
	UpdatePosition(ctx context.Context, p *Position) error
	GetOpenPositions(ctx context.Context) ([]*Position, error)
	GetClosedPositionsForStrategy(ctx context.Context, strategyID, symbol string, limit int) ([]*Position, error)
	CountEntriesSince(ctx context.Context, symbol string, side Side, since time.Time) (int, error)
}

// LedgerRepository appends to the realized cash ledger. AddLedgerEntry
// computes CashAfter from the latest prior entry.
type LedgerRepository interface {
	AddLedgerEntry(ctx context.Context, ts time.Time, delta float64, refType LedgerRefType, refID string) (*LedgerEntry, error)
	GetLatestLedgerEntry(ctx context.Context) (*LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, limit int) ([]*LedgerEntry, error)
}

// SignalRepository keeps the signal audit trail and backs the
// fingerprint dedupe at the ingestion boundary.
type SignalRepository interface {
	AddSignal(ctx context.Context, s *Signal) error
	HasSignal(ctx context.Context, fingerprint string) (bool, error)
	ListSignals(ctx context.Context, limit int) ([]*Signal, error)
}

// ActivityRepository upserts the single rolling scheduler snapshot.
type ActivityRepository interface {
	UpdateSchedulerActivity(ctx context.Context, a *SchedulerActivity) error
	GetSchedulerActivity(ctx context.Context) (*SchedulerActivity, error)
}

// Notifier delivers fire-and-forget events. Implementations must never
// block or fail the tick.
type Notifier interface {
	Notify(ctx context.Context, event, message string)
}

// Explainer produces a natural-language note for a losing trade.
type Explainer interface {
	ExplainLoss(ctx context.Context, p *Position) (string, error)
}

// NewsCalendar answers whether a high-impact release for the currency
// is scheduled within the window around now.
type NewsCalendar interface {
	HighImpactNear(now time.Time, currency string, window time.Duration) bool
}
