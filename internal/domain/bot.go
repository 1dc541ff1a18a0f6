package domain

import "time"

// StopLogic selects the lifecycle staging policy for a bot.
type StopLogic string

const (
	// StopLogicPartial closes 50% at break-even R, another quarter at 3R,
	// then trails the remainder by ATR.
	StopLogicPartial StopLogic = "partial"
	// StopLogicTrail keeps full size and walks the stop through
	// break-even, lock and ATR-trail thresholds.
	StopLogicTrail StopLogic = "trail"
)

// BotConfig is one (strategy, symbol) trading unit. Read-only to the
// engine at tick time.
type BotConfig struct {
	ID          string    `yaml:"id"`
	Strategy    string    `yaml:"strategy"`
	Symbol      string    `yaml:"symbol"`
	Timeframe   string    `yaml:"timeframe"`
	RiskPercent float64   `yaml:"risk_percent"`
	StopLogic   StopLogic `yaml:"stop_logic"`
	ATRMultiple float64   `yaml:"atr_multiple"`
	TakeProfitR float64   `yaml:"take_profit_r"`
	SlippageBps float64   `yaml:"slippage_bps"`
	FeeBps      float64   `yaml:"fee_bps"`
	Enabled     bool      `yaml:"enabled"`
}

// NewsEvent is one scheduled macro release on the economic calendar.
type NewsEvent struct {
	Time     time.Time
	Currency string
	Impact   string // "high", "medium", "low"
	Title    string
}
