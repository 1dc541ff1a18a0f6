package marketdata

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

// basePrices anchor the synthetic walk to plausible levels per symbol.
var basePrices = map[string]float64{
	"US30":   44000,
	"NAS100": 23000,
	"SPX500": 6400,
	"XAUUSD": 3400,
	"EURUSD": 1.17,
	"GBPUSD": 1.34,
	"USDJPY": 147,
}

// SyntheticFeed generates a deterministic random-walk candle series,
// seeded per symbol and per UTC day so repeated calls within a process
// agree with each other. Offline substitute for real market data.
type SyntheticFeed struct {
	mu sync.Mutex
	// cache keeps a generated walk per (symbol, timeframe, day) so
	// successive fetches extend the same series instead of reseeding.
	cache map[string][]domain.Candle
}

func NewSyntheticFeed() *SyntheticFeed {
	return &SyntheticFeed{cache: make(map[string][]domain.Candle)}
}

// TimeframeDuration parses the broker-style granularity codes
// (M1, M5, M15, M30, H1, H4, D).
func TimeframeDuration(timeframe string) (time.Duration, error) {
	switch {
	case timeframe == "D":
		return 24 * time.Hour, nil
	case strings.HasPrefix(timeframe, "M"):
		n, err := strconv.Atoi(timeframe[1:])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("bad timeframe %q", timeframe)
		}
		return time.Duration(n) * time.Minute, nil
	case strings.HasPrefix(timeframe, "H"):
		n, err := strconv.Atoi(timeframe[1:])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("bad timeframe %q", timeframe)
		}
		return time.Duration(n) * time.Hour, nil
	}
	return 0, fmt.Errorf("bad timeframe %q", timeframe)
}

func (f *SyntheticFeed) FetchOHLCV(_ context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	step, err := TimeframeDuration(timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	now := time.Now().UTC()
	end := now.Truncate(step) // last completed bar opens one step earlier
	day := now.Format("2006-01-02")
	key := symbol + "|" + timeframe + "|" + day

	f.mu.Lock()
	defer f.mu.Unlock()

	series, ok := f.cache[key]
	if !ok || len(series) == 0 || series[len(series)-1].Time < end.Add(-step).Unix() {
		series = f.generate(symbol, day, step, end, limit+200)
		f.cache[key] = series
	}
	if len(series) > limit {
		series = series[len(series)-limit:]
	}
	out := make([]domain.Candle, len(series))
	copy(out, series)
	return out, nil
}

func (f *SyntheticFeed) generate(symbol, day string, step time.Duration, end time.Time, n int) []domain.Candle {
	h := fnv.New64a()
	h.Write([]byte(symbol + "|" + day))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	base, ok := basePrices[symbol]
	if !ok {
		base = 100
	}
	// Per-bar volatility around 5 basis points of the base price.
	vol := base * 0.0005

	candles := make([]domain.Candle, n)
	price := base
	ts := end.Add(-time.Duration(n) * step)
	for i := 0; i < n; i++ {
		open := price
		drift := rng.NormFloat64() * vol
		close := open + drift
		high := open
		if close > high {
			high = close
		}
		high += rng.Float64() * vol * 0.5
		low := open
		if close < low {
			low = close
		}
		low -= rng.Float64() * vol * 0.5

		candles[i] = domain.Candle{
			Time:   ts.Unix(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: float64(50 + rng.Intn(200)),
		}
		price = close
		ts = ts.Add(step)
	}
	return candles
}
