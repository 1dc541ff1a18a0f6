package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/strategy"
)

const maxActivityMessages = 40

// SchedulerConfig sets the two loop cadences and the candle request
// size used for scans.
type SchedulerConfig struct {
	ScanInterval      time.Duration
	HeartbeatInterval time.Duration
	CandleCount       int
}

func (c *SchedulerConfig) applyDefaults() {
	if c.ScanInterval == 0 {
		c.ScanInterval = 5 * time.Minute
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.CandleCount == 0 {
		c.CandleCount = 200
	}
}

// botUnit pairs a bot config with its constructed evaluator.
type botUnit struct {
	cfg  domain.BotConfig
	strt strategy.Strategy
}

// Scheduler owns the single authoritative tick: bucket-idempotent
// scanning across all bots, selection, execution, the open-position
// heartbeat, and the rolling activity snapshot. There is exactly one
// scheduler instance; idempotency comes from the time-bucket key and
// the signal fingerprint check, no locks beyond the local mutex.
type Scheduler struct {
	cfg       SchedulerConfig
	bots      []botUnit
	market    domain.MarketData
	selector  *Selector
	executor  *TradeExecutor
	lifecycle *Lifecycle
	signals   domain.SignalRepository
	activity  domain.ActivityRepository
	logger    *zap.Logger

	mu         sync.Mutex
	lastBucket string
}

func NewScheduler(
	cfg SchedulerConfig,
	bots []domain.BotConfig,
	market domain.MarketData,
	selector *Selector,
	executor *TradeExecutor,
	lifecycle *Lifecycle,
	signals domain.SignalRepository,
	activity domain.ActivityRepository,
	logger *zap.Logger,
) (*Scheduler, error) {
	cfg.applyDefaults()
	units := make([]botUnit, 0, len(bots))
	for _, b := range bots {
		s, err := strategy.New(b.Strategy, b.Symbol)
		if err != nil {
			return nil, fmt.Errorf("bot %s: %w", b.ID, err)
		}
		units = append(units, botUnit{cfg: b, strt: s})
	}
	return &Scheduler{
		cfg:       cfg,
		bots:      units,
		market:    market,
		selector:  selector,
		executor:  executor,
		lifecycle: lifecycle,
		signals:   signals,
		activity:  activity,
		logger:    logger,
	}, nil
}

// bucketKey collapses now into the (date, hour, minute-bucket) key that
// makes repeated invocations within one interval idempotent.
func (s *Scheduler) bucketKey(now time.Time) string {
	bucketMin := int(s.cfg.ScanInterval.Minutes())
	if bucketMin < 1 {
		bucketMin = 1
	}
	return fmt.Sprintf("%s|%02d|%02d", now.UTC().Format("2006-01-02"), now.UTC().Hour(), now.UTC().Minute()/bucketMin)
}

// Tick is the single authoritative scan entry point. A repeated call
// inside the same bucket only runs the heartbeat. The tick never
// panics out: the top-level boundary recovers, logs and lets the timer
// reschedule normally.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Tick panic recovered", zap.Any("panic", r))
		}
	}()

	key := s.bucketKey(now)
	s.mu.Lock()
	repeat := key == s.lastBucket
	if !repeat {
		s.lastBucket = key
	}
	s.mu.Unlock()

	if repeat {
		s.lifecycle.Heartbeat(ctx, now)
		return
	}

	s.selector.ResetTick()

	act := &domain.SchedulerActivity{
		LastRun: now,
		Window:  key,
	}
	for _, u := range s.bots {
		act.Universe = append(act.Universe, u.cfg.Symbol)
		s.scanBot(ctx, u, now, act)
	}

	s.lifecycle.Heartbeat(ctx, now)

	if len(act.Messages) > maxActivityMessages {
		act.Messages = act.Messages[len(act.Messages)-maxActivityMessages:]
	}
	if err := s.activity.UpdateSchedulerActivity(ctx, act); err != nil {
		s.logger.Warn("Activity snapshot write failed", zap.Error(err))
	}
	s.logger.Info("Tick done",
		zap.String("bucket", key),
		zap.Int("opportunities", act.Opportunities),
		zap.Int("trades", act.TradesPlaced))
}

func (s *Scheduler) scanBot(ctx context.Context, u botUnit, now time.Time, act *domain.SchedulerActivity) {
	note := func(format string, args ...any) {
		act.Messages = append(act.Messages, fmt.Sprintf("[%s] ", u.cfg.ID)+fmt.Sprintf(format, args...))
	}

	if !u.cfg.Enabled {
		return
	}
	if !u.strt.WindowOpen(now) {
		note("window closed")
		return
	}

	candles, err := s.market.FetchOHLCV(ctx, u.cfg.Symbol, u.cfg.Timeframe, s.cfg.CandleCount)
	if err != nil {
		s.logger.Warn("Candle fetch failed, skipping bot this tick",
			zap.String("bot", u.cfg.ID), zap.Error(err))
		note("candles unavailable: %v", err)
		return
	}

	sig, reasons := u.strt.Diagnose(candles, now)
	for _, r := range reasons {
		note("%s", r)
	}
	if sig == nil {
		return
	}
	act.Opportunities++

	// Fingerprint dedupe: the same symbol+bar+side is ingested once.
	if dup, err := s.signals.HasSignal(ctx, sig.Fingerprint()); err == nil && dup {
		note("duplicate signal %s", sig.Fingerprint())
		return
	}
	if err := s.signals.AddSignal(ctx, sig); err != nil {
		s.logger.Warn("Signal audit write failed", zap.String("bot", u.cfg.ID), zap.Error(err))
	}

	dec := s.selector.Evaluate(ctx, u.cfg, sig, candles, now)
	if !dec.Approved {
		note("rejected: %s", dec.Reason)
		return
	}

	pos, err := s.executor.Open(ctx, u.cfg, sig, dec.Quantity, now)
	if err != nil {
		s.logger.Error("Order submission failed", zap.String("bot", u.cfg.ID), zap.Error(err))
		note("order failed: %v", err)
		return
	}
	act.TradesPlaced++
	note("opened %s %s qty %.2f @ %.5f", pos.Side, pos.Symbol, pos.Quantity, pos.EntryPrice)
}

// Run drives the scan loop. The next tick is scheduled only after the
// current one settles, so ticks never overlap themselves.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(s.cfg.ScanInterval)
	defer timer.Stop()

	s.logger.Info("Scheduler started", zap.Duration("interval", s.cfg.ScanInterval))
	for {
		select {
		case <-timer.C:
			s.Tick(ctx, time.Now().UTC())
			timer.Reset(s.cfg.ScanInterval)
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		}
	}
}

// heartbeat runs one maintenance pass behind the same recover boundary
// as Tick, so a panic on the maintenance path cannot kill the process.
func (s *Scheduler) heartbeat(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Heartbeat panic recovered", zap.Any("panic", r))
		}
	}()
	s.lifecycle.Heartbeat(ctx, now)
}

// RunHeartbeat keeps trailing-stop maintenance alive even while the
// scan window is closed.
func (s *Scheduler) RunHeartbeat(ctx context.Context) {
	timer := time.NewTimer(s.cfg.HeartbeatInterval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.heartbeat(ctx, time.Now().UTC())
			timer.Reset(s.cfg.HeartbeatInterval)
		case <-ctx.Done():
			return
		}
	}
}
