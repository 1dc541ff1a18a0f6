package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/indicator"
)

// LifecycleConfig holds the staging thresholds, in R units unless
// noted. Zero values take the documented defaults.
type LifecycleConfig struct {
	BreakEvenR      float64 // stage trigger for BE / TP1CLOSE
	BreakEvenBuffer float64 // absolute price buffer past entry (trail policy)
	LockR           float64 // trail policy lock trigger
	LockOffsetR     float64 // lock stop offset from entry, in R
	ATRStartR       float64 // trail policy ATR-trail trigger
	PartialTrailR   float64 // partial policy TP2 + ATR-trail trigger
	CandleCount     int     // candles fetched per heartbeat
}

func (c *LifecycleConfig) applyDefaults() {
	if c.BreakEvenR == 0 {
		c.BreakEvenR = 1.0
	}
	if c.LockR == 0 {
		c.LockR = 1.5
	}
	if c.LockOffsetR == 0 {
		c.LockOffsetR = 0.5
	}
	if c.ATRStartR == 0 {
		c.ATRStartR = 2.0
	}
	if c.PartialTrailR == 0 {
		c.PartialTrailR = 3.0
	}
	if c.CandleCount == 0 {
		c.CandleCount = 100
	}
}

// Lifecycle drives every open position through its staged stop moves
// and terminal exit, once per heartbeat. Positions are read fresh from
// persistence each heartbeat, never cached across ticks.
type Lifecycle struct {
	cfg       LifecycleConfig
	bots      map[string]domain.BotConfig
	positions domain.PositionRepository
	ledger    domain.LedgerRepository
	broker    domain.Broker
	market    domain.MarketData
	notifier  domain.Notifier
	explainer domain.Explainer
	logger    *zap.Logger
}

func NewLifecycle(
	cfg LifecycleConfig,
	bots []domain.BotConfig,
	positions domain.PositionRepository,
	ledger domain.LedgerRepository,
	broker domain.Broker,
	market domain.MarketData,
	notifier domain.Notifier,
	explainer domain.Explainer,
	logger *zap.Logger,
) *Lifecycle {
	cfg.applyDefaults()
	byID := make(map[string]domain.BotConfig, len(bots))
	for _, b := range bots {
		byID[b.ID] = b
	}
	return &Lifecycle{
		cfg:       cfg,
		bots:      byID,
		positions: positions,
		ledger:    ledger,
		broker:    broker,
		market:    market,
		notifier:  notifier,
		explainer: explainer,
		logger:    logger,
	}
}

func (m *Lifecycle) botFor(p *domain.Position) domain.BotConfig {
	if b, ok := m.bots[p.StrategyID]; ok {
		return b
	}
	return domain.BotConfig{Timeframe: "M15", StopLogic: domain.StopLogicTrail, ATRMultiple: 2}
}

// Heartbeat manages every open position once. Per-position failures
// are logged and skipped; the heartbeat itself never fails.
func (m *Lifecycle) Heartbeat(ctx context.Context, now time.Time) {
	open, err := m.positions.GetOpenPositions(ctx)
	if err != nil {
		m.logger.Error("Heartbeat: cannot load open positions", zap.Error(err))
		return
	}
	for _, p := range open {
		if err := m.manage(ctx, p, now); err != nil {
			m.logger.Error("Heartbeat: position management failed",
				zap.String("id", p.ID), zap.Error(err))
		}
	}
}

func (m *Lifecycle) manage(ctx context.Context, p *domain.Position, now time.Time) error {
	bot := m.botFor(p)

	price, atr, ok := m.currentPrice(ctx, p, bot)
	if !ok {
		return fmt.Errorf("no price available for %s", p.Symbol)
	}

	switch bot.StopLogic {
	case domain.StopLogicPartial:
		m.applyPartialPolicy(ctx, p, bot, price, atr, now)
	default:
		m.applyTrailPolicy(ctx, p, bot, price, atr, now)
	}

	// Terminal exit against the possibly-trailed stop.
	switch {
	case p.StopHit(price):
		return m.close(ctx, p, bot, p.StopPrice, "stop hit", now)
	case p.TargetHit(price):
		return m.close(ctx, p, bot, p.TakeProfitPrice, "target hit", now)
	}
	return m.positions.UpdatePosition(ctx, p)
}

// currentPrice resolves the heartbeat price: latest close on the
// position's timeframe, else a broker mid quote (degraded, no ATR).
func (m *Lifecycle) currentPrice(ctx context.Context, p *domain.Position, bot domain.BotConfig) (price, atr float64, ok bool) {
	candles, err := m.market.FetchOHLCV(ctx, p.Symbol, bot.Timeframe, m.cfg.CandleCount)
	if err == nil && len(candles) > 0 {
		return candles[len(candles)-1].Close, indicator.LastATR(candles, 14), true
	}
	if err != nil {
		m.logger.Warn("Heartbeat candles unavailable, falling back to mid price",
			zap.String("symbol", p.Symbol), zap.Error(err))
	}
	mid, err := m.broker.GetMidPrice(ctx, p.Symbol)
	if err != nil || mid == 0 {
		return 0, 0, false
	}
	return mid, 0, true
}

// applyPartialPolicy: close 50% and go to break-even at BreakEvenR,
// close half the remainder at PartialTrailR, then ATR-trail the rest.
func (m *Lifecycle) applyPartialPolicy(ctx context.Context, p *domain.Position, bot domain.BotConfig, price, atr float64, now time.Time) {
	rNow := p.RNow(price)

	if rNow >= m.cfg.BreakEvenR && !p.HasStage(domain.StageTP1Close) {
		m.partialClose(ctx, p, bot, price, p.Quantity*0.5, now)
		m.moveStop(ctx, p, p.EntryPrice, domain.StageTP1Close, now)
	}

	if rNow >= m.cfg.PartialTrailR && !p.HasStage(domain.StageTP2Close) {
		m.partialClose(ctx, p, bot, price, p.Quantity*0.5, now)
		// The ATR trail governs the remainder from here on.
		p.TakeProfitPrice = 0
		p.RecordStopChange(now, p.StopPrice, domain.StageTP2Close)
	}

	if rNow >= m.cfg.PartialTrailR && atr > 0 && bot.ATRMultiple > 0 {
		cand := price - bot.ATRMultiple*atr*p.Side.Direction()
		if p.Tightens(cand) {
			m.moveStop(ctx, p, cand, domain.StageATRTrail, now)
		}
	}
}

// applyTrailPolicy keeps full size and walks the stop through the
// break-even, lock and ATR thresholds, taking the single tightest
// qualifying candidate per heartbeat.
func (m *Lifecycle) applyTrailPolicy(ctx context.Context, p *domain.Position, bot domain.BotConfig, price, atr float64, now time.Time) {
	rNow := p.RNow(price)
	r := p.InitialRisk()
	dir := p.Side.Direction()

	type candidate struct {
		stop  float64
		stage domain.Stage
	}
	var cands []candidate
	if rNow >= m.cfg.BreakEvenR && !p.HasStage(domain.StageBreakEven) {
		cands = append(cands, candidate{p.EntryPrice + m.cfg.BreakEvenBuffer*dir, domain.StageBreakEven})
	}
	if rNow >= m.cfg.LockR && !p.HasStage(domain.StageLock) {
		cands = append(cands, candidate{p.EntryPrice + m.cfg.LockOffsetR*r*dir, domain.StageLock})
	}
	if rNow >= m.cfg.ATRStartR && atr > 0 && bot.ATRMultiple > 0 {
		cands = append(cands, candidate{price - bot.ATRMultiple*atr*dir, domain.StageATRTrail})
	}

	best := candidate{}
	found := false
	for _, c := range cands {
		if !p.Tightens(c.stop) {
			continue
		}
		if !found || (p.Side == domain.SideLong && c.stop > best.stop) || (p.Side == domain.SideShort && c.stop < best.stop) {
			best, found = c, true
		}
	}
	if found {
		m.moveStop(ctx, p, best.stop, best.stage, now)
	}
}

// moveStop records the stop change locally, mirrors it to the broker
// best-effort and notifies. A broker failure never blocks the local
// state update.
func (m *Lifecycle) moveStop(ctx context.Context, p *domain.Position, newStop float64, stage domain.Stage, now time.Time) {
	old := p.StopPrice
	p.RecordStopChange(now, newStop, stage)

	if p.BrokerRef != "" {
		if err := m.broker.UpdateStopLoss(ctx, p.BrokerRef, newStop); err != nil {
			m.logger.Warn("Broker stop update failed, local state kept",
				zap.String("id", p.ID), zap.Error(err))
		}
	}
	m.logger.Info("Stop moved",
		zap.String("id", p.ID),
		zap.String("stage", string(stage)),
		zap.Float64("old", old),
		zap.Float64("new", newStop))
	m.notifier.Notify(ctx, "stop_updated",
		fmt.Sprintf("%s %s stop %.5f -> %.5f (%s)", p.Symbol, p.Side, old, newStop, stage))
}

// partialClose realizes P/L for qty units at price, posts the ledger
// entry and reduces the open quantity.
func (m *Lifecycle) partialClose(ctx context.Context, p *domain.Position, bot domain.BotConfig, price, qty float64, now time.Time) {
	if qty <= 0 || qty >= p.Quantity {
		return
	}
	pnl := p.PnL(price, qty)

	if p.BrokerRef != "" {
		if err := m.broker.CloseTradeUnits(ctx, p.BrokerRef, qty); err != nil {
			m.logger.Warn("Broker partial close failed, local state kept",
				zap.String("id", p.ID), zap.Error(err))
		}
	}
	if _, err := m.ledger.AddLedgerEntry(ctx, now, pnl, domain.RefExit, p.ID); err != nil {
		m.logger.Error("Ledger entry for partial close failed", zap.String("id", p.ID), zap.Error(err))
	}
	p.Quantity -= qty
	p.RealizedPnL += pnl

	m.logger.Info("Partial close",
		zap.String("id", p.ID),
		zap.Float64("qty", qty),
		zap.Float64("price", price),
		zap.Float64("pnl", pnl))
	m.notifier.Notify(ctx, "position_partial_close",
		fmt.Sprintf("%s %s closed %.2f @ %.5f (pnl %.2f)", p.Symbol, p.Side, qty, price, pnl))
}

// close finishes the position at exitPrice: single OPEN -> CLOSED
// transition, ledger postings, R-multiple against the original stop
// distance, best-effort broker close, loss explanation.
func (m *Lifecycle) close(ctx context.Context, p *domain.Position, bot domain.BotConfig, exitPrice float64, cause string, now time.Time) error {
	pnl := p.PnL(exitPrice, p.Quantity)
	fee := 0.0
	if bot.FeeBps > 0 {
		fee = exitPrice * p.Quantity * bot.FeeBps / 10000
	}

	if p.BrokerRef != "" {
		if err := m.broker.CloseTrade(ctx, p.BrokerRef); err != nil {
			m.logger.Warn("Broker close failed, local state kept",
				zap.String("id", p.ID), zap.Error(err))
		}
	}

	if _, err := m.ledger.AddLedgerEntry(ctx, now, pnl, domain.RefExit, p.ID); err != nil {
		m.logger.Error("Ledger EXIT entry failed", zap.String("id", p.ID), zap.Error(err))
	}
	if fee > 0 {
		if _, err := m.ledger.AddLedgerEntry(ctx, now, -fee, domain.RefFee, p.ID); err != nil {
			m.logger.Error("Ledger FEE entry failed", zap.String("id", p.ID), zap.Error(err))
		}
	}

	exitTime := now
	p.Status = domain.StatusClosed
	p.ExitTime = &exitTime
	p.ExitPrice = exitPrice
	p.RealizedPnL += pnl - fee
	if r := p.InitialRisk(); r > 0 {
		p.RMultiple = (exitPrice - p.EntryPrice) * p.Side.Direction() / r
	}
	if err := m.positions.UpdatePosition(ctx, p); err != nil {
		return fmt.Errorf("persist close of %s: %w", p.ID, err)
	}

	m.logger.Info("Position closed",
		zap.String("id", p.ID),
		zap.String("cause", cause),
		zap.Float64("exit", exitPrice),
		zap.Float64("pnl", p.RealizedPnL),
		zap.Float64("r_multiple", p.RMultiple))
	m.notifier.Notify(ctx, "position_closed",
		fmt.Sprintf("%s %s closed @ %.5f (%s, %.2fR)", p.Symbol, p.Side, exitPrice, cause, p.RMultiple))

	if p.RealizedPnL < 0 && m.explainer != nil {
		note, err := m.explainer.ExplainLoss(ctx, p)
		if err != nil {
			m.logger.Warn("Loss explanation unavailable", zap.String("id", p.ID), zap.Error(err))
		} else if note != "" {
			m.logger.Info("Loss explanation", zap.String("id", p.ID), zap.String("note", note))
		}
	}
	return nil
}

// CloseByID closes one open position at the current market price,
// regardless of staging. Used by the manual close endpoint.
func (m *Lifecycle) CloseByID(ctx context.Context, id string, now time.Time) error {
	open, err := m.positions.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}
	for _, p := range open {
		if p.ID != id {
			continue
		}
		bot := m.botFor(p)
		price, _, ok := m.currentPrice(ctx, p, bot)
		if !ok {
			return fmt.Errorf("no price available for %s", p.Symbol)
		}
		return m.close(ctx, p, bot, price, "manual close", now)
	}
	return fmt.Errorf("no open position with id %s", id)
}
