package binance

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crypto-trading-bot/internal/logger"
)

const (
	wsReconnectInterval = 5 * time.Second
	wsReadTimeout       = 90 * time.Second
	wsPriceStaleAfter   = 10 * time.Second
)

// tickerStream keeps a mini-ticker websocket open per symbol and caches
// the latest trade price, so the decision loop never blocks on REST for
// a price it already has.
type tickerStream struct {
	wsBase string

	mu     sync.RWMutex
	prices map[string]tickPrice

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type tickPrice struct {
	price float64
	at    time.Time
}

// miniTickerEvent is the subset of the stream payload we care about.
type miniTickerEvent struct {
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	EventTime int64  `json:"E"`
}

func newTickerStream(wsBase string) *tickerStream {
	return &tickerStream{
		wsBase: strings.TrimRight(wsBase, "/"),
		prices: make(map[string]tickPrice),
	}
}

// Start launches one reconnecting reader per symbol. The parent context
// only bounds startup; the readers run until Stop.
func (ts *tickerStream) Start(ctx context.Context, symbols []string) error {
	runCtx, cancel := context.WithCancel(context.Background())
	ts.cancel = cancel

	for _, symbol := range symbols {
		ts.wg.Add(1)
		go ts.run(runCtx, symbol)
	}
	return nil
}

func (ts *tickerStream) Stop() {
	if ts.cancel != nil {
		ts.cancel()
		ts.wg.Wait()
		ts.cancel = nil
	}
}

// lastPrice returns the streamed price if it is fresh enough to trade on.
func (ts *tickerStream) lastPrice(symbol string) (float64, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	tp, ok := ts.prices[symbol]
	if !ok || time.Since(tp.at) > wsPriceStaleAfter {
		return 0, false
	}
	return tp.price, true
}

func (ts *tickerStream) run(ctx context.Context, symbol string) {
	defer ts.wg.Done()

	url := ts.wsBase + "/ws/" + strings.ToLower(symbol) + "@miniTicker"
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			logger.Warn(ctx, "Ticker stream dial failed, retrying",
				"symbol", symbol,
				"error", err.Error())
			if !sleepCtx(ctx, wsReconnectInterval) {
				return
			}
			continue
		}

		logger.Info(ctx, "Ticker stream connected", "symbol", symbol)
		ts.readLoop(ctx, conn, symbol)
		conn.Close()

		if !sleepCtx(ctx, wsReconnectInterval) {
			return
		}
	}
}

func (ts *tickerStream) readLoop(ctx context.Context, conn *websocket.Conn, symbol string) {
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	// Close the socket when the context dies so ReadMessage unblocks.
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
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn(ctx, "Ticker stream read failed, reconnecting",
					"symbol", symbol,
					"error", err.Error())
			}
			return
		}

		var ev miniTickerEvent
		if err := json.Unmarshal(msg, &ev); err != nil || ev.Close == "" {
			continue
		}
		price, err := strconv.ParseFloat(ev.Close, 64)
		if err != nil {
			continue
		}

		ts.mu.Lock()
		ts.prices[ev.Symbol] = tickPrice{price: price, at: time.Now()}
		ts.mu.Unlock()

		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
