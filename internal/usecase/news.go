package usecase

import (
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

// StaticCalendar is an in-memory news calendar. When constructed with
// no events it falls back to a small synthetic schedule of the
// recurring high-impact USD releases, so the news lock still has teeth
// when no live calendar is wired in.
type StaticCalendar struct {
	events []domain.NewsEvent
}

func NewStaticCalendar(events []domain.NewsEvent) *StaticCalendar {
	return &StaticCalendar{events: events}
}

func (c *StaticCalendar) HighImpactNear(now time.Time, currency string, window time.Duration) bool {
	events := c.events
	if len(events) == 0 {
		events = syntheticCalendar(now)
	}
	for _, e := range events {
		if e.Impact != "high" || e.Currency != currency {
			continue
		}
		d := now.Sub(e.Time)
		if d < 0 {
			d = -d
		}
		if d <= window {
			return true
		}
	}
	return false
}

// syntheticCalendar approximates the recurring US macro slots for the
// current day: the 12:30 UTC data block (NFP/CPI slot) and the 18:00
// UTC FOMC slot.
func syntheticCalendar(now time.Time) []domain.NewsEvent {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return []domain.NewsEvent{
		{Time: day.Add(12*time.Hour + 30*time.Minute), Currency: "USD", Impact: "high", Title: "US data block"},
		{Time: day.Add(18 * time.Hour), Currency: "USD", Impact: "high", Title: "FOMC window"},
	}
}

// CurrencyOf maps an internal ticker to the macro currency its news
// lock should watch. FX pairs watch the quote currency; the index and
// metal CFDs are all USD-denominated.
func CurrencyOf(symbol string) string {
	switch symbol {
	case "US30", "NAS100", "SPX500", "XAUUSD", "XAGUSD":
		return "USD"
	}
	if len(symbol) == 6 {
		return symbol[3:]
	}
	return "USD"
}
