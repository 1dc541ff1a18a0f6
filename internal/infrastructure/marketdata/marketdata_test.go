package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

func TestTimeframeDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"M1":  time.Minute,
		"M15": 15 * time.Minute,
		"H1":  time.Hour,
		"H4":  4 * time.Hour,
		"D":   24 * time.Hour,
	}
	for tf, want := range cases {
		got, err := TimeframeDuration(tf)
		require.NoError(t, err, tf)
		assert.Equal(t, want, got, tf)
	}
	for _, bad := range []string{"", "X5", "M0", "Mfoo"} {
		_, err := TimeframeDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestSyntheticFeedDeterministicAndOrdered(t *testing.T) {
	ctx := context.Background()
	a := NewSyntheticFeed()
	b := NewSyntheticFeed()

	first, err := a.FetchOHLCV(ctx, "US30", "M15", 120)
	require.NoError(t, err)
	second, err := b.FetchOHLCV(ctx, "US30", "M15", 120)
	require.NoError(t, err)

	require.Len(t, first, 120)
	assert.Equal(t, first, second, "same symbol and day must reproduce the same series")

	for i := 1; i < len(first); i++ {
		assert.Equal(t, first[i-1].Time+900, first[i].Time, "bars must be contiguous")
	}
	for i, c := range first {
		assert.LessOrEqual(t, c.Low, c.Open, "bar %d", i)
		assert.LessOrEqual(t, c.Low, c.Close, "bar %d", i)
		assert.GreaterOrEqual(t, c.High, c.Open, "bar %d", i)
		assert.GreaterOrEqual(t, c.High, c.Close, "bar %d", i)
		assert.Greater(t, c.Volume, 0.0, "bar %d", i)
	}
}

func TestSyntheticFeedSymbolsDiverge(t *testing.T) {
	feed := NewSyntheticFeed()
	ctx := context.Background()

	us30, err := feed.FetchOHLCV(ctx, "US30", "M15", 50)
	require.NoError(t, err)
	gold, err := feed.FetchOHLCV(ctx, "XAUUSD", "M15", 50)
	require.NoError(t, err)

	assert.NotEqual(t, us30[0].Close, gold[0].Close)
	assert.InDelta(t, 44000, us30[len(us30)-1].Close, 44000*0.05)
	assert.InDelta(t, 3400, gold[len(gold)-1].Close, 3400*0.05)
}

type stubBroker struct {
	domain.Broker
	candles []domain.Candle
	err     error
}

func (s *stubBroker) GetCandles(context.Context, string, string, int) ([]domain.Candle, error) {
	return s.candles, s.err
}

func TestServicePrefersBroker(t *testing.T) {
	real := []domain.Candle{{Time: 1000, Open: 1, High: 2, Low: 0.5, Close: 1.5}}
	svc := NewService(&stubBroker{candles: real}, NewSyntheticFeed(), zap.NewNop())

	got, err := svc.FetchOHLCV(context.Background(), "EURUSD", "M5", 10)
	require.NoError(t, err)
	assert.Equal(t, real, got)
}

func TestServiceFallsBackToSynthetic(t *testing.T) {
	svc := NewService(&stubBroker{err: errors.New("gateway timeout")}, NewSyntheticFeed(), zap.NewNop())

	got, err := svc.FetchOHLCV(context.Background(), "US30", "M15", 30)
	require.NoError(t, err)
	assert.Len(t, got, 30)
}

func TestServiceErrorsWithoutFallback(t *testing.T) {
	svc := NewService(&stubBroker{err: errors.New("gateway timeout")}, nil, zap.NewNop())

	_, err := svc.FetchOHLCV(context.Background(), "US30", "M15", 30)
	assert.ErrorContains(t, err, "fetch candles")
}
