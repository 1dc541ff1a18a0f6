package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

type Config struct {
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"` // empty logs to stderr
	} `yaml:"logging"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Broker struct {
		Mode        string  `yaml:"mode"` // "paper" or "oanda"
		BaseURL     string  `yaml:"base_url"`
		StreamURL   string  `yaml:"stream_url"`
		Token       string  `yaml:"token"`
		AccountID   string  `yaml:"account_id"`
		SlippageBps float64 `yaml:"slippage_bps"` // paper-mode fill slippage
	} `yaml:"broker"`

	Risk struct {
		BaseAccount        float64 `yaml:"base_account"`
		MinRiskReward      float64 `yaml:"min_risk_reward"`
		MinLot             float64 `yaml:"min_lot"`
		MinATRPercent      float64 `yaml:"min_atr_percent"`
		HighATRPercent     float64 `yaml:"high_atr_percent"`
		MaxSpreadMultiple  float64 `yaml:"max_spread_multiple"`
		NewsLockMinutes    int     `yaml:"news_lock_minutes"`
		DailyCapPerSide    int     `yaml:"daily_cap_per_side"`
		BlockDuplicateSide bool    `yaml:"block_duplicate_side"`
	} `yaml:"risk"`

	Lifecycle struct {
		BreakEvenR      float64 `yaml:"break_even_r"`
		BreakEvenBuffer float64 `yaml:"break_even_buffer"`
		LockR           float64 `yaml:"lock_r"`
		LockOffsetR     float64 `yaml:"lock_offset_r"`
		ATRStartR       float64 `yaml:"atr_start_r"`
		PartialTrailR   float64 `yaml:"partial_trail_r"`
	} `yaml:"lifecycle"`

	Scheduler struct {
		ScanIntervalSec      int `yaml:"scan_interval_sec"`
		HeartbeatIntervalSec int `yaml:"heartbeat_interval_sec"`
		CandleCount          int `yaml:"candle_count"`
	} `yaml:"scheduler"`

	Notify struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"notify"`

	Explainer struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
	} `yaml:"explainer"`

	News []struct {
		Time     string `yaml:"time"` // RFC3339
		Currency string `yaml:"currency"`
		Impact   string `yaml:"impact"`
		Title    string `yaml:"title"`
	} `yaml:"news"`

	Bots []domain.BotConfig `yaml:"bots"`
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "bot.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Broker.Mode == "" {
		c.Broker.Mode = "paper"
	}
	if c.Risk.BaseAccount == 0 {
		c.Risk.BaseAccount = 10000
	}
}

func (c *Config) validate() error {
	switch c.Broker.Mode {
	case "paper":
	case "oanda":
		if c.Broker.Token == "" || c.Broker.AccountID == "" {
			return fmt.Errorf("oanda mode requires broker.token and broker.account_id")
		}
	default:
		return fmt.Errorf("unknown broker mode %q", c.Broker.Mode)
	}
	ids := make(map[string]bool, len(c.Bots))
	for _, b := range c.Bots {
		if b.ID == "" || b.Strategy == "" || b.Symbol == "" {
			return fmt.Errorf("bot %q: id, strategy and symbol are required", b.ID)
		}
		if ids[b.ID] {
			return fmt.Errorf("duplicate bot id %q", b.ID)
		}
		ids[b.ID] = true
	}
	return nil
}

// NewsEvents parses the configured calendar entries. Bad timestamps
// are an error: a silently dropped event defeats the news lock.
func (c *Config) NewsEvents() ([]domain.NewsEvent, error) {
	events := make([]domain.NewsEvent, 0, len(c.News))
	for _, n := range c.News {
		ts, err := time.Parse(time.RFC3339, n.Time)
		if err != nil {
			return nil, fmt.Errorf("news event %q: bad time %q: %w", n.Title, n.Time, err)
		}
		events = append(events, domain.NewsEvent{
			Time:     ts.UTC(),
			Currency: n.Currency,
			Impact:   n.Impact,
			Title:    n.Title,
		})
	}
	return events, nil
}
