package domain

import (
	"fmt"
	"time"
)

// Signal is a directional trade candidate produced by one strategy scan.
// It is ephemeral: persisted only as an audit record and for fingerprint
// dedupe at the ingestion boundary.
type Signal struct {
	Strategy   string  `json:"strategy"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Entry      float64 `json:"entry"`
	Stop       float64 `json:"stop"`
	TakeProfit float64 `json:"take_profit"`
	RiskReward float64 `json:"risk_reward"`
	Reason     string  `json:"reason"`
	BarTime    int64   `json:"bar_time"` // epoch seconds of the bar that produced the signal
	CreatedAt  time.Time
}

// Fingerprint identifies a signal for duplicate suppression: the same
// symbol, bar and side must never be ingested twice.
func (s *Signal) Fingerprint() string {
	return fmt.Sprintf("%s|%d|%s", s.Symbol, s.BarTime, s.Side)
}

// StopDistance is the absolute entry-to-stop distance (the 1R unit).
func (s *Signal) StopDistance() float64 {
	d := s.Entry - s.Stop
	if d < 0 {
		d = -d
	}
	return d
}
