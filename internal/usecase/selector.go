package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/intraday_trade_bot/internal/domain"
	"github.com/vitos/intraday_trade_bot/internal/indicator"
)

// SelectorConfig enumerates every knob of the signal selection and
// sizing stage, with defaults applied by NewSelector.
type SelectorConfig struct {
	MinRiskReward      float64 // reject signals below this R:R
	BaseAccount        float64 // equity base before realized ledger P/L
	MinLot             float64 // floor for computed position size
	MinATRPercent      float64 // reject when ATR%% of price is below this
	HighATRPercent     float64 // halve risk when ATR%% exceeds this
	MaxSpreadMultiple  float64 // reject when spread > multiple x average
	NewsLockWindow     time.Duration
	DailyCapPerSide    int  // same-symbol same-side entries per UTC day
	BlockDuplicateSide bool // one open position per symbol+side
}

func (c *SelectorConfig) applyDefaults() {
	if c.MinRiskReward == 0 {
		c.MinRiskReward = 1.0
	}
	if c.MinLot == 0 {
		c.MinLot = 1
	}
	if c.MinATRPercent == 0 {
		c.MinATRPercent = 0.25
	}
	if c.HighATRPercent == 0 {
		c.HighATRPercent = 1.0
	}
	if c.MaxSpreadMultiple == 0 {
		c.MaxSpreadMultiple = 2.0
	}
	if c.NewsLockWindow == 0 {
		c.NewsLockWindow = 15 * time.Minute
	}
	if c.DailyCapPerSide == 0 {
		c.DailyCapPerSide = 2
	}
}

// Decision is the selector verdict for one signal. Reason carries the
// human-readable veto when Approved is false.
type Decision struct {
	Approved bool
	Quantity float64
	Reason   string
}

func rejected(format string, args ...any) *Decision {
	return &Decision{Reason: fmt.Sprintf(format, args...)}
}

// Selector filters signals through the guard chain and sizes the ones
// that survive. Guards veto with a reason, never an error: collaborator
// failures degrade to skipping the affected guard.
type Selector struct {
	cfg       SelectorConfig
	ledger    domain.LedgerRepository
	positions domain.PositionRepository
	broker    domain.Broker
	news      domain.NewsCalendar
	logger    *zap.Logger

	mu          sync.Mutex
	provisional map[string]int // symbol|side -> approvals earlier in this tick
}

func NewSelector(cfg SelectorConfig, ledger domain.LedgerRepository, positions domain.PositionRepository, broker domain.Broker, news domain.NewsCalendar, logger *zap.Logger) *Selector {
	cfg.applyDefaults()
	return &Selector{
		cfg:         cfg,
		ledger:      ledger,
		positions:   positions,
		broker:      broker,
		news:        news,
		logger:      logger,
		provisional: make(map[string]int),
	}
}

// ResetTick clears the provisional approval counts. The scheduler calls
// it once at the start of every tick so that daily caps see placements
// made earlier in the same tick.
func (s *Selector) ResetTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provisional = make(map[string]int)
}

// Equity is the dynamic account equity: the configured base plus the
// latest realized ledger balance.
func (s *Selector) Equity(ctx context.Context) float64 {
	equity := s.cfg.BaseAccount
	entry, err := s.ledger.GetLatestLedgerEntry(ctx)
	if err != nil {
		s.logger.Warn("Ledger unavailable, using base equity", zap.Error(err))
		return equity
	}
	if entry != nil {
		equity += entry.CashAfter
	}
	return equity
}

// Evaluate runs the guard chain over one signal and, if everything
// passes, returns the approved quantity.
func (s *Selector) Evaluate(ctx context.Context, bot domain.BotConfig, sig *domain.Signal, candles []domain.Candle, now time.Time) *Decision {
	if sig.RiskReward < s.cfg.MinRiskReward {
		return rejected("%s: R:R %.2f below minimum %.2f", sig.Symbol, sig.RiskReward, s.cfg.MinRiskReward)
	}
	stopDistance := sig.StopDistance()
	if stopDistance == 0 {
		return rejected("%s: zero stop distance", sig.Symbol)
	}

	riskPercent := bot.RiskPercent

	// Volatility clamp.
	if len(candles) > 0 {
		atr := indicator.LastATR(candles, 14)
		price := candles[len(candles)-1].Close
		if atr > 0 && price > 0 {
			atrPct := atr / price * 100
			if atrPct < s.cfg.MinATRPercent {
				return rejected("%s: ATR %.3f%% too quiet (min %.2f%%)", sig.Symbol, atrPct, s.cfg.MinATRPercent)
			}
			if atrPct > s.cfg.HighATRPercent {
				riskPercent /= 2
				s.logger.Info("Volatility clamp halves risk",
					zap.String("symbol", sig.Symbol), zap.Float64("atr_pct", atrPct))
			}
		}
	}

	// Spread filter, skipped when broker pricing is unavailable.
	if quote, err := s.broker.GetQuote(ctx, sig.Symbol); err == nil && quote != nil {
		if avg, err := s.broker.GetAverageSpread(ctx, sig.Symbol); err == nil && avg > 0 {
			if quote.Spread() > s.cfg.MaxSpreadMultiple*avg {
				return rejected("%s: spread %.5f above %.1fx average %.5f", sig.Symbol, quote.Spread(), s.cfg.MaxSpreadMultiple, avg)
			}
		}
	} else if err != nil {
		s.logger.Warn("Quote unavailable, skipping spread filter", zap.String("symbol", sig.Symbol), zap.Error(err))
	}

	// News lock.
	if s.news != nil && s.news.HighImpactNear(now, CurrencyOf(sig.Symbol), s.cfg.NewsLockWindow) {
		return rejected("%s: high-impact %s news within %s", sig.Symbol, CurrencyOf(sig.Symbol), s.cfg.NewsLockWindow)
	}

	// Duplicate open position on the same symbol+side.
	if s.cfg.BlockDuplicateSide {
		open, err := s.positions.GetOpenPositions(ctx)
		if err != nil {
			s.logger.Warn("Open positions unavailable, skipping duplicate guard", zap.Error(err))
		} else {
			for _, p := range open {
				if p.Symbol == sig.Symbol && p.Side == sig.Side {
					return rejected("%s: open %s position already exists", sig.Symbol, sig.Side)
				}
			}
		}
	}

	// Per-symbol/per-side daily cap, counting provisional approvals
	// from earlier in this tick.
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	count, err := s.positions.CountEntriesSince(ctx, sig.Symbol, sig.Side, dayStart)
	if err != nil {
		s.logger.Warn("Entry count unavailable, skipping daily cap", zap.Error(err))
		count = 0
	}
	key := sig.Symbol + "|" + string(sig.Side)
	s.mu.Lock()
	count += s.provisional[key]
	s.mu.Unlock()
	if count >= s.cfg.DailyCapPerSide {
		return rejected("%s: daily cap %d reached for %s", sig.Symbol, s.cfg.DailyCapPerSide, sig.Side)
	}

	qty := s.Equity(ctx) * riskPercent / 100 / stopDistance
	if qty < s.cfg.MinLot {
		qty = s.cfg.MinLot
	}

	s.mu.Lock()
	s.provisional[key]++
	s.mu.Unlock()

	return &Decision{Approved: true, Quantity: qty}
}
