package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

type lockCalendar struct{}

func (lockCalendar) HighImpactNear(time.Time, string, time.Duration) bool { return true }

func testSignal() *domain.Signal {
	return &domain.Signal{
		Strategy:   "orb",
		Symbol:     "US30",
		Side:       domain.SideLong,
		Entry:      1000,
		Stop:       990,
		TakeProfit: 1020,
		RiskReward: 2,
		BarTime:    1752585600,
	}
}

func testBot() domain.BotConfig {
	return domain.BotConfig{ID: "bot1", Strategy: "orb", Symbol: "US30", Timeframe: "M15", RiskPercent: 1, Enabled: true}
}

func TestSelector_SizesFromDynamicEquity(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	_, err := store.AddLedgerEntry(ctx, time.Now(), 500, domain.RefExit, "p1")
	require.NoError(t, err)

	sel := NewSelector(SelectorConfig{BaseAccount: 10000}, store, store, newMockBroker(), quietCalendar{}, zap.NewNop())
	now := time.Date(2025, 7, 15, 14, 0, 0, 0, time.UTC)
	candles := flatSeries(30, 1000, 2, now) // ATR 4 = 0.4% of price

	dec := sel.Evaluate(ctx, testBot(), testSignal(), candles, now)
	require.True(t, dec.Approved, dec.Reason)
	// (10000 + 500) * 1% / stop distance 10
	assert.InDelta(t, 10.5, dec.Quantity, 1e-9)
}

func TestSelector_MinRiskReward(t *testing.T) {
	sel := NewSelector(SelectorConfig{BaseAccount: 10000, MinRiskReward: 1.5}, newMemStore(), newMemStore(), newMockBroker(), quietCalendar{}, zap.NewNop())
	now := time.Date(2025, 7, 15, 14, 0, 0, 0, time.UTC)

	sig := testSignal()
	sig.RiskReward = 1.2
	dec := sel.Evaluate(context.Background(), testBot(), sig, flatSeries(30, 1000, 2, now), now)
	assert.False(t, dec.Approved)
	assert.Contains(t, dec.Reason, "R:R")
}

func TestSelector_VolatilityClamp(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 7, 15, 14, 0, 0, 0, time.UTC)

	t.Run("too quiet rejects", func(t *testing.T) {
		sel := NewSelector(SelectorConfig{BaseAccount: 10000}, newMemStore(), newMemStore(), newMockBroker(), quietCalendar{}, zap.NewNop())
		dec := sel.Evaluate(ctx, testBot(), testSignal(), flatSeries(30, 1000, 0.5, now), now) // ATR 1 = 0.1%
		assert.False(t, dec.Approved)
		assert.Contains(t, dec.Reason, "too quiet")
	})

	t.Run("too volatile halves risk", func(t *testing.T) {
		sel := NewSelector(SelectorConfig{BaseAccount: 10000}, newMemStore(), newMemStore(), newMockBroker(), quietCalendar{}, zap.NewNop())
		dec := sel.Evaluate(ctx, testBot(), testSignal(), flatSeries(30, 1000, 10, now), now) // ATR 20 = 2%
		require.True(t, dec.Approved, dec.Reason)
		// 10000 * 0.5% / 10
		assert.InDelta(t, 5.0, dec.Quantity, 1e-9)
	})
}

func TestSelector_SpreadFilter(t *testing.T) {
	broker := newMockBroker()
	broker.quote = &domain.Quote{Bid: 997, Ask: 1002}
	broker.avgSpread = 1

	sel := NewSelector(SelectorConfig{BaseAccount: 10000, MaxSpreadMultiple: 2}, newMemStore(), newMemStore(), broker, quietCalendar{}, zap.NewNop())
	now := time.Date(2025, 7, 15, 14, 0, 0, 0, time.UTC)

	dec := sel.Evaluate(context.Background(), testBot(), testSignal(), flatSeries(30, 1000, 2, now), now)
	assert.False(t, dec.Approved)
	assert.Contains(t, dec.Reason, "spread")
}

func TestSelector_NewsLock(t *testing.T) {
	sel := NewSelector(SelectorConfig{BaseAccount: 10000}, newMemStore(), newMemStore(), newMockBroker(), lockCalendar{}, zap.NewNop())
	now := time.Date(2025, 7, 15, 14, 0, 0, 0, time.UTC)

	dec := sel.Evaluate(context.Background(), testBot(), testSignal(), flatSeries(30, 1000, 2, now), now)
	assert.False(t, dec.Approved)
	assert.Contains(t, dec.Reason, "news")
}

func TestSelector_DuplicateSideGuard(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.AddPosition(ctx, &domain.Position{
		ID: "p1", Status: domain.StatusOpen, Symbol: "US30", Side: domain.SideLong, Quantity: 1,
	}))

	sel := NewSelector(SelectorConfig{BaseAccount: 10000, BlockDuplicateSide: true}, store, store, newMockBroker(), quietCalendar{}, zap.NewNop())
	now := time.Date(2025, 7, 15, 14, 0, 0, 0, time.UTC)

	dec := sel.Evaluate(ctx, testBot(), testSignal(), flatSeries(30, 1000, 2, now), now)
	assert.False(t, dec.Approved)
	assert.Contains(t, dec.Reason, "already exists")
}

func TestSelector_DailyCapCountsProvisionalApprovals(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sel := NewSelector(SelectorConfig{BaseAccount: 10000, DailyCapPerSide: 2}, store, store, newMockBroker(), quietCalendar{}, zap.NewNop())
	now := time.Date(2025, 7, 15, 14, 0, 0, 0, time.UTC)
	candles := flatSeries(30, 1000, 2, now)

	sel.ResetTick()
	require.True(t, sel.Evaluate(ctx, testBot(), testSignal(), candles, now).Approved)
	require.True(t, sel.Evaluate(ctx, testBot(), testSignal(), candles, now).Approved)

	// Nothing persisted yet; only provisional approvals block the third.
	dec := sel.Evaluate(ctx, testBot(), testSignal(), candles, now)
	assert.False(t, dec.Approved)
	assert.Contains(t, dec.Reason, "daily cap")

	// Persisted entries from today block even after a fresh tick.
	sel.ResetTick()
	require.NoError(t, store.AddPosition(ctx, &domain.Position{
		ID: "a", Status: domain.StatusClosed, Symbol: "US30", Side: domain.SideLong, EntryTime: now.Add(-2 * time.Hour), Quantity: 1,
	}))
	require.NoError(t, store.AddPosition(ctx, &domain.Position{
		ID: "b", Status: domain.StatusClosed, Symbol: "US30", Side: domain.SideLong, EntryTime: now.Add(-time.Hour), Quantity: 1,
	}))
	dec = sel.Evaluate(ctx, testBot(), testSignal(), candles, now)
	assert.False(t, dec.Approved)

	// The opposite side is capped independently.
	short := testSignal()
	short.Side = domain.SideShort
	short.Stop = 1010
	assert.True(t, sel.Evaluate(ctx, testBot(), short, candles, now).Approved)
}
