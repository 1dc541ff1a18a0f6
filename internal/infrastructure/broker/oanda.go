package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vitos/intraday_trade_bot/internal/domain"
)

const (
	PracticeBaseURL = "https://api-fxpractice.oanda.com"
	LiveBaseURL     = "https://api-fxtrade.oanda.com"

	spreadRingSize = 64
)

// OandaAdapter implements domain.Broker against the OANDA v3 REST API,
// with an optional websocket price stream feeding the quote cache and
// the rolling spread average.
type OandaAdapter struct {
	baseURL   string
	wsURL     string
	token     string
	accountID string
	client    *http.Client
	logger    *zap.Logger

	mu      sync.Mutex
	quotes  map[string]domain.Quote
	spreads map[string]*spreadRing
	wsConn  *websocket.Conn
}

func NewOandaAdapter(baseURL, wsURL, token, accountID string, logger *zap.Logger) *OandaAdapter {
	return &OandaAdapter{
		baseURL:   baseURL,
		wsURL:     wsURL,
		token:     token,
		accountID: accountID,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
		quotes:    make(map[string]domain.Quote),
		spreads:   make(map[string]*spreadRing),
	}
}

// spreadRing keeps the last N observed spreads for one instrument.
type spreadRing struct {
	buf  [spreadRingSize]float64
	n    int
	next int
}

func (r *spreadRing) add(v float64) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % spreadRingSize
	if r.n < spreadRingSize {
		r.n++
	}
}

func (r *spreadRing) average() float64 {
	if r.n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < r.n; i++ {
		sum += r.buf[i]
	}
	return sum / float64(r.n)
}

// --- REST ---

func (o *OandaAdapter) sendRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("broker API %s %s: %s", method, path, string(respBody))
	}
	return respBody, nil
}

func price(f float64) string { return strconv.FormatFloat(f, 'f', 5, 64) }

func (o *OandaAdapter) PlaceMarketOrder(ctx context.Context, instrument string, units, stopPrice, takeProfitPrice float64, tag string) (*domain.OrderResult, error) {
	order := map[string]any{
		"type":         "MARKET",
		"instrument":   Instrument(instrument),
		"units":        strconv.FormatFloat(units, 'f', 2, 64),
		"timeInForce":  "FOK",
		"positionFill": "DEFAULT",
	}
	if stopPrice > 0 {
		order["stopLossOnFill"] = map[string]string{"price": price(stopPrice)}
	}
	if takeProfitPrice > 0 {
		order["takeProfitOnFill"] = map[string]string{"price": price(takeProfitPrice)}
	}
	if tag != "" {
		order["clientExtensions"] = map[string]string{"tag": tag}
	}

	respBody, err := o.sendRequest(ctx, http.MethodPost, "/v3/accounts/"+o.accountID+"/orders", map[string]any{"order": order})
	if err != nil {
		return nil, err
	}

	var result struct {
		OrderFillTransaction struct {
			Price       string `json:"price"`
			TradeOpened struct {
				TradeID string `json:"tradeID"`
			} `json:"tradeOpened"`
		} `json:"orderFillTransaction"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode order response: %w", err)
	}
	fill, _ := strconv.ParseFloat(result.OrderFillTransaction.Price, 64)
	ref := result.OrderFillTransaction.TradeOpened.TradeID
	if ref == "" {
		return nil, fmt.Errorf("order for %s not filled", instrument)
	}

	o.logger.Info("Order filled",
		zap.String("instrument", instrument),
		zap.Float64("units", units),
		zap.Float64("fill", fill),
		zap.String("ref", ref))
	return &domain.OrderResult{Ref: ref, FillPrice: fill}, nil
}

func (o *OandaAdapter) UpdateStopLoss(ctx context.Context, ref string, stopPrice float64) error {
	payload := map[string]any{
		"stopLoss": map[string]string{"price": price(stopPrice), "timeInForce": "GTC"},
	}
	_, err := o.sendRequest(ctx, http.MethodPut, "/v3/accounts/"+o.accountID+"/trades/"+ref+"/orders", payload)
	return err
}

func (o *OandaAdapter) CloseTrade(ctx context.Context, ref string) error {
	_, err := o.sendRequest(ctx, http.MethodPut, "/v3/accounts/"+o.accountID+"/trades/"+ref+"/close",
		map[string]string{"units": "ALL"})
	return err
}

func (o *OandaAdapter) CloseTradeUnits(ctx context.Context, ref string, units float64) error {
	_, err := o.sendRequest(ctx, http.MethodPut, "/v3/accounts/"+o.accountID+"/trades/"+ref+"/close",
		map[string]string{"units": strconv.FormatFloat(units, 'f', 2, 64)})
	return err
}

func (o *OandaAdapter) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	// Stream-fed cache first; quotes older than 30s force a REST fetch.
	o.mu.Lock()
	q, ok := o.quotes[symbol]
	o.mu.Unlock()
	if ok && time.Since(q.Time) < 30*time.Second {
		return &q, nil
	}

	respBody, err := o.sendRequest(ctx, http.MethodGet,
		"/v3/accounts/"+o.accountID+"/pricing?instruments="+Instrument(symbol), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Prices []struct {
			Bids []struct {
				Price string `json:"price"`
			} `json:"bids"`
			Asks []struct {
				Price string `json:"price"`
			} `json:"asks"`
		} `json:"prices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode pricing response: %w", err)
	}
	if len(result.Prices) == 0 || len(result.Prices[0].Bids) == 0 || len(result.Prices[0].Asks) == 0 {
		return nil, fmt.Errorf("no pricing for %s", symbol)
	}
	bid, _ := strconv.ParseFloat(result.Prices[0].Bids[0].Price, 64)
	ask, _ := strconv.ParseFloat(result.Prices[0].Asks[0].Price, 64)

	quote := domain.Quote{Bid: bid, Ask: ask, Time: time.Now().UTC()}
	o.recordQuote(symbol, quote)
	return &quote, nil
}

func (o *OandaAdapter) GetMidPrice(ctx context.Context, symbol string) (float64, error) {
	q, err := o.GetQuote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.Mid(), nil
}

func (o *OandaAdapter) GetAverageSpread(ctx context.Context, symbol string) (float64, error) {
	o.mu.Lock()
	ring := o.spreads[symbol]
	o.mu.Unlock()
	if ring != nil {
		if avg := ring.average(); avg > 0 {
			return avg, nil
		}
	}
	// No history yet: the current spread is the best estimate.
	q, err := o.GetQuote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return q.Spread(), nil
}

func (o *OandaAdapter) GetCandles(ctx context.Context, symbol, granularity string, count int) ([]domain.Candle, error) {
	path := fmt.Sprintf("/v3/instruments/%s/candles?granularity=%s&count=%d&price=M",
		Instrument(symbol), granularity, count)
	respBody, err := o.sendRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Candles []struct {
			Time     string  `json:"time"`
			Volume   float64 `json:"volume"`
			Complete bool    `json:"complete"`
			Mid      struct {
				O string `json:"o"`
				H string `json:"h"`
				L string `json:"l"`
				C string `json:"c"`
			} `json:"mid"`
		} `json:"candles"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode candles response: %w", err)
	}

	candles := make([]domain.Candle, 0, len(result.Candles))
	for _, c := range result.Candles {
		ts, err := time.Parse(time.RFC3339, c.Time)
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(c.Mid.O, 64)
		high, _ := strconv.ParseFloat(c.Mid.H, 64)
		low, _ := strconv.ParseFloat(c.Mid.L, 64)
		cl, _ := strconv.ParseFloat(c.Mid.C, 64)
		candles = append(candles, domain.Candle{
			Time: ts.Unix(), Open: open, High: high, Low: low, Close: cl, Volume: c.Volume,
		})
	}
	return candles, nil
}

func (o *OandaAdapter) recordQuote(symbol string, q domain.Quote) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quotes[symbol] = q
	ring := o.spreads[symbol]
	if ring == nil {
		ring = &spreadRing{}
		o.spreads[symbol] = ring
	}
	ring.add(q.Spread())
}

// --- Price stream ---

// StartPriceStream launches the websocket price feed for symbols in a
// background goroutine and returns immediately. The feed keeps the
// quote cache warm, reconnecting with backoff until ctx is cancelled.
func (o *OandaAdapter) StartPriceStream(ctx context.Context, symbols []string) {
	if o.wsURL == "" {
		o.logger.Info("No stream URL configured, quotes served over REST only")
		return
	}
	go o.streamLoop(ctx, symbols)
}

func (o *OandaAdapter) streamLoop(ctx context.Context, symbols []string) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := o.streamOnce(ctx, symbols); err != nil {
			o.logger.Warn("Price stream disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (o *OandaAdapter) streamOnce(ctx context.Context, symbols []string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, o.wsURL, http.Header{
		"Authorization": []string{"Bearer " + o.token},
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	o.mu.Lock()
	o.wsConn = conn
	o.mu.Unlock()

	instruments := make([]string, len(symbols))
	for i, s := range symbols {
		instruments[i] = Instrument(s)
	}
	if err := conn.WriteJSON(map[string]any{"op": "subscribe", "instruments": instruments}); err != nil {
		return err
	}
	o.logger.Info("Price stream connected", zap.Strings("instruments", instruments))

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var tick struct {
			Type       string `json:"type"`
			Instrument string `json:"instrument"`
			Bid        string `json:"bid"`
			Ask        string `json:"ask"`
		}
		if err := json.Unmarshal(message, &tick); err != nil {
			o.logger.Warn("Price stream decode error", zap.Error(err))
			continue
		}
		if tick.Type == "HEARTBEAT" || tick.Instrument == "" {
			continue
		}
		bid, _ := strconv.ParseFloat(tick.Bid, 64)
		ask, _ := strconv.ParseFloat(tick.Ask, 64)
		if bid == 0 || ask == 0 {
			continue
		}
		o.recordQuote(Symbol(tick.Instrument), domain.Quote{Bid: bid, Ask: ask, Time: time.Now().UTC()})
	}
}
