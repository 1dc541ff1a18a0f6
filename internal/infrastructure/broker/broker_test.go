package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

func TestInstrumentMapping(t *testing.T) {
	tests := []struct {
		symbol     string
		instrument string
	}{
		{"US30", "US30_USD"},
		{"NAS100", "NAS100_USD"},
		{"XAUUSD", "XAU_USD"},
		{"EURUSD", "EUR_USD"},
		{"GBPJPY", "GBP_JPY"},
		{"WEIRD", "WEIRD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.instrument, Instrument(tt.symbol))
		assert.Equal(t, tt.symbol, Symbol(tt.instrument))
	}
}

func TestSpreadRingAverage(t *testing.T) {
	var r spreadRing
	assert.Zero(t, r.average())

	r.add(1)
	r.add(2)
	r.add(3)
	assert.InDelta(t, 2.0, r.average(), 1e-9)

	// Overflow wraps and keeps only the last spreadRingSize values.
	for i := 0; i < spreadRingSize; i++ {
		r.add(10)
	}
	assert.InDelta(t, 10.0, r.average(), 1e-9)
}

type fixedFeed struct{ close float64 }

func (f fixedFeed) FetchOHLCV(_ context.Context, _ string, _ string, limit int) ([]domain.Candle, error) {
	now := time.Now().Unix()
	return []domain.Candle{
		{Time: now - 900, Open: f.close, High: f.close, Low: f.close, Close: f.close},
		{Time: now, Open: f.close, High: f.close, Low: f.close, Close: f.close},
	}, nil
}

func TestPaperBrokerFillAndClose(t *testing.T) {
	ctx := context.Background()
	b := NewPaperBroker(fixedFeed{close: 44000}, "M15", 2, zap.NewNop())

	res, err := b.PlaceMarketOrder(ctx, "US30", 10, 43900, 44300, "bot1/orb")
	require.NoError(t, err)
	assert.InDelta(t, 44000*(1+2.0/10000), res.FillPrice, 1e-6, "slippage against the buyer")
	assert.Equal(t, 1, b.OpenTrades())

	require.NoError(t, b.UpdateStopLoss(ctx, res.Ref, 44000))
	require.NoError(t, b.CloseTradeUnits(ctx, res.Ref, 5))
	require.NoError(t, b.CloseTrade(ctx, res.Ref))
	assert.Zero(t, b.OpenTrades())

	assert.Error(t, b.CloseTrade(ctx, res.Ref))
}

func TestPaperBrokerQuote(t *testing.T) {
	ctx := context.Background()
	b := NewPaperBroker(fixedFeed{close: 200}, "M15", 0, zap.NewNop())

	q, err := b.GetQuote(ctx, "SPX500")
	require.NoError(t, err)
	assert.InDelta(t, 200, q.Mid(), 1e-9)
	assert.Greater(t, q.Spread(), 0.0)

	mid, err := b.GetMidPrice(ctx, "SPX500")
	require.NoError(t, err)
	assert.InDelta(t, 200, mid, 1e-9)
}

func TestStartPriceStreamReturnsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Unreachable endpoint: the reconnect loop must run in the
	// background so the caller can continue wiring the engine.
	o := NewOandaAdapter(PracticeBaseURL, "ws://127.0.0.1:1", "tok", "acct", zap.NewNop())

	done := make(chan struct{})
	go func() {
		o.StartPriceStream(ctx, []string{"US30"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartPriceStream blocked its caller")
	}
}
