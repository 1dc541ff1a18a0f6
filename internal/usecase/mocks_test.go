package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

// memStore is an in-memory implementation of every repository
// interface, used across the usecase tests.
type memStore struct {
	mu        sync.Mutex
	positions map[string]*domain.Position
	ledger    []*domain.LedgerEntry
	signals   map[string]*domain.Signal
	activity  *domain.SchedulerActivity
}

func newMemStore() *memStore {
	return &memStore{
		positions: make(map[string]*domain.Position),
		signals:   make(map[string]*domain.Signal),
	}
}

func (s *memStore) AddPosition(_ context.Context, p *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[p.ID]; ok {
		return fmt.Errorf("duplicate position %s", p.ID)
	}
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *memStore) UpdatePosition(_ context.Context, p *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *memStore) GetOpenPositions(context.Context) ([]*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Position
	for _, p := range s.positions {
		if p.Status == domain.StatusOpen {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) GetClosedPositionsForStrategy(_ context.Context, strategyID, symbol string, limit int) ([]*domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Position
	for _, p := range s.positions {
		if p.Status != domain.StatusClosed || p.StrategyID != strategyID {
			continue
		}
		if symbol != "" && p.Symbol != symbol {
			continue
		}
		cp := *p
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) CountEntriesSince(_ context.Context, symbol string, side domain.Side, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.positions {
		if p.Symbol == symbol && p.Side == side && !p.EntryTime.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) AddLedgerEntry(_ context.Context, ts time.Time, delta float64, refType domain.LedgerRefType, refID string) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cashAfter := delta
	if n := len(s.ledger); n > 0 {
		cashAfter += s.ledger[n-1].CashAfter
	}
	e := &domain.LedgerEntry{
		ID:        int64(len(s.ledger) + 1),
		Ts:        ts,
		Delta:     delta,
		CashAfter: cashAfter,
		RefType:   refType,
		RefID:     refID,
	}
	s.ledger = append(s.ledger, e)
	return e, nil
}

func (s *memStore) GetLatestLedgerEntry(context.Context) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ledger) == 0 {
		return nil, nil
	}
	cp := *s.ledger[len(s.ledger)-1]
	return &cp, nil
}

func (s *memStore) ListLedgerEntries(_ context.Context, limit int) ([]*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.LedgerEntry, 0, len(s.ledger))
	for i := len(s.ledger) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		cp := *s.ledger[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) AddSignal(_ context.Context, sig *domain.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sig
	s.signals[sig.Fingerprint()] = &cp
	return nil
}

func (s *memStore) HasSignal(_ context.Context, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.signals[fingerprint]
	return ok, nil
}

func (s *memStore) ListSignals(_ context.Context, limit int) ([]*domain.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Signal
	for _, sig := range s.signals {
		cp := *sig
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) UpdateSchedulerActivity(_ context.Context, a *domain.SchedulerActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.activity = &cp
	return nil
}

func (s *memStore) GetSchedulerActivity(context.Context) (*domain.SchedulerActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activity == nil {
		return &domain.SchedulerActivity{}, nil
	}
	cp := *s.activity
	return &cp, nil
}

// mockBroker records orders and serves fixed prices.
type mockBroker struct {
	mu          sync.Mutex
	mid         float64
	quote       *domain.Quote
	avgSpread   float64
	candles     []domain.Candle
	failOrders  bool
	orders      []string
	stopUpdates map[string]float64
	partial     map[string]float64
	closed      map[string]bool
}

func newMockBroker() *mockBroker {
	return &mockBroker{
		stopUpdates: make(map[string]float64),
		partial:     make(map[string]float64),
		closed:      make(map[string]bool),
	}
}

func (b *mockBroker) PlaceMarketOrder(_ context.Context, instrument string, units, stop, tp float64, tag string) (*domain.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failOrders {
		return nil, fmt.Errorf("broker down")
	}
	ref := fmt.Sprintf("ord-%d", len(b.orders)+1)
	b.orders = append(b.orders, fmt.Sprintf("%s %s %.2f", instrument, tag, units))
	return &domain.OrderResult{Ref: ref, FillPrice: b.mid}, nil
}

func (b *mockBroker) UpdateStopLoss(_ context.Context, ref string, price float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopUpdates[ref] = price
	return nil
}

func (b *mockBroker) CloseTrade(_ context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed[ref] = true
	return nil
}

func (b *mockBroker) CloseTradeUnits(_ context.Context, ref string, units float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.partial[ref] += units
	return nil
}

func (b *mockBroker) GetMidPrice(context.Context, string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mid == 0 {
		return 0, fmt.Errorf("no price")
	}
	return b.mid, nil
}

func (b *mockBroker) GetQuote(context.Context, string) (*domain.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.quote == nil {
		return nil, fmt.Errorf("no quote")
	}
	cp := *b.quote
	return &cp, nil
}

func (b *mockBroker) GetAverageSpread(context.Context, string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.avgSpread, nil
}

func (b *mockBroker) GetCandles(context.Context, string, string, int) ([]domain.Candle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.candles, nil
}

// mockMarket serves a fixed candle series per symbol.
type mockMarket struct {
	mu     sync.Mutex
	series map[string][]domain.Candle
	err    error
}

func newMockMarket() *mockMarket {
	return &mockMarket{series: make(map[string][]domain.Candle)}
}

func (m *mockMarket) FetchOHLCV(_ context.Context, symbol, _ string, _ int) ([]domain.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.series[symbol], nil
}

// mockNotifier collects events.
type mockNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *mockNotifier) Notify(_ context.Context, event, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event+": "+message)
}

func (n *mockNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if len(e) >= len(event) && e[:len(event)] == event {
			c++
		}
	}
	return c
}

// mockExplainer records which positions it was asked about.
type mockExplainer struct {
	mu    sync.Mutex
	asked []string
}

func (e *mockExplainer) ExplainLoss(_ context.Context, p *domain.Position) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.asked = append(e.asked, p.ID)
	return "stopped out against the prevailing trend", nil
}

// quietCalendar never locks.
type quietCalendar struct{}

func (quietCalendar) HighImpactNear(time.Time, string, time.Duration) bool { return false }

// flatSeries builds n identical candles ending at end.
func flatSeries(n int, price, halfRange float64, end time.Time) []domain.Candle {
	out := make([]domain.Candle, n)
	ts := end.Unix() - int64(n-1)*900
	for i := range out {
		out[i] = domain.Candle{
			Time: ts, Open: price, Close: price,
			High: price + halfRange, Low: price - halfRange, Volume: 100,
		}
		ts += 900
	}
	return out
}
