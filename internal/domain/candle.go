package domain

import "time"

type Candle struct {
	Time   int64   `json:"time"` // epoch seconds, bar open
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"` // zero is legitimate for FX feeds
}

func (c Candle) Start() time.Time {
	return time.Unix(c.Time, 0).UTC()
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

func (c Candle) Bearish() bool { return c.Close < c.Open }

// Body returns the low and high bound of the candle body.
func (c Candle) Body() (float64, float64) {
	if c.Open <= c.Close {
		return c.Open, c.Close
	}
	return c.Close, c.Open
}

func (c Candle) BodySize() float64 {
	lo, hi := c.Body()
	return hi - lo
}

func (c Candle) Range() float64 { return c.High - c.Low }

// TypicalPrice is (H+L+C)/3, the price used for VWAP and volume profiles.
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}
