package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crypto-trading-bot/internal/types"
)

func newDryRunClient(baseURL string) *Client {
	return New(Params{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		APISecret:    "test-secret",
		Mode:         "DRY_RUN",
		PaperBalance: 10000,
		BaseAsset:    "BTC",
		QuoteAsset:   "USDT",
	})
}

func TestSignMatchesDocumentedVector(t *testing.T) {
	// Example straight from the Binance signed-endpoint docs.
	c := New(Params{APISecret: "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"})
	query := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"

	got := c.sign(query)
	want := "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71"
	if got != want {
		t.Errorf("Expected signature %s, got %s", want, got)
	}
}

func TestPriceFallsBackToREST(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			t.Errorf("Expected ticker path, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			t.Errorf("Expected symbol BTCUSDT, got %s", r.URL.Query().Get("symbol"))
		}
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"50000.00"}`)
	}))
	defer srv.Close()

	c := newDryRunClient(srv.URL)
	price, err := c.Price(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if price != 50000 {
		t.Errorf("Expected price 50000, got %f", price)
	}
}

func TestPaperFillBuyAndSell(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"50000.00"}`)
	}))
	defer srv.Close()

	c := newDryRunClient(srv.URL)
	ctx := context.Background()

	buy, err := c.PlaceMarketOrder(ctx, types.OrderReq{Symbol: "BTCUSDT", Side: "BUY", Qty: 0.02})
	if err != nil {
		t.Fatalf("Expected buy to fill, got %v", err)
	}
	if !buy.Simulated {
		t.Error("Expected dry-run fill to be marked simulated")
	}
	if !strings.HasPrefix(buy.OrderID, "SIM-") {
		t.Errorf("Expected SIM- order id, got %s", buy.OrderID)
	}
	if buy.Price != 50000 {
		t.Errorf("Expected fill at live price 50000, got %f", buy.Price)
	}

	balances, err := c.Balances(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if math.Abs(balances["USDT"]-9000) > 1e-9 {
		t.Errorf("Expected 9000 USDT after buy, got %f", balances["USDT"])
	}
	if balances["BTC"] != 0.02 {
		t.Errorf("Expected 0.02 BTC after buy, got %f", balances["BTC"])
	}

	if _, err := c.PlaceMarketOrder(ctx, types.OrderReq{Symbol: "BTCUSDT", Side: "SELL", Qty: 0.02}); err != nil {
		t.Fatalf("Expected sell to fill, got %v", err)
	}

	balances, _ = c.Balances(ctx)
	if math.Abs(balances["USDT"]-10000) > 1e-9 {
		t.Errorf("Expected balance restored to 10000, got %f", balances["USDT"])
	}
	if balances["BTC"] != 0 {
		t.Errorf("Expected 0 BTC after sell, got %f", balances["BTC"])
	}
}

func TestPaperFillInsufficientBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"50000.00"}`)
	}))
	defer srv.Close()

	c := newDryRunClient(srv.URL)
	ctx := context.Background()

	_, err := c.PlaceMarketOrder(ctx, types.OrderReq{Symbol: "BTCUSDT", Side: "BUY", Qty: 1})
	if err == nil {
		t.Fatal("Expected buy beyond paper balance to be rejected")
	}
	if !strings.Contains(err.Error(), "insufficient balance") {
		t.Errorf("Expected insufficient balance error, got %v", err)
	}

	balances, _ := c.Balances(ctx)
	if balances["USDT"] != 10000 {
		t.Errorf("Expected balance untouched after rejection, got %f", balances["USDT"])
	}
}

func TestLiveOrderSendsSignedRequest(t *testing.T) {
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/v3/order" {
			t.Errorf("Expected POST /api/v3/order, got %s %s", r.Method, r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-MBX-APIKEY")
		fmt.Fprint(w, `{
			"orderId": 28,
			"clientOrderId": "my-order-1",
			"transactTime": 1507725176595,
			"executedQty": "0.02000000",
			"cummulativeQuoteQty": "1000.00000000",
			"status": "FILLED"
		}`)
	}))
	defer srv.Close()

	c := New(Params{
		BaseURL:    srv.URL,
		APIKey:     "live-key",
		APISecret:  "live-secret",
		Mode:       "LIVE",
		BaseAsset:  "BTC",
		QuoteAsset: "USDT",
	})

	fill, err := c.PlaceMarketOrder(context.Background(), types.OrderReq{
		Symbol:        "BTCUSDT",
		Side:          "BUY",
		Qty:           0.02,
		ClientOrderID: "my-order-1",
	})
	if err != nil {
		t.Fatalf("Expected order to fill, got %v", err)
	}

	if gotKey != "live-key" {
		t.Errorf("Expected X-MBX-APIKEY header, got %q", gotKey)
	}

	// The signature must cover the exact query string that was sent.
	idx := strings.LastIndex(gotQuery, "&signature=")
	if idx < 0 {
		t.Fatalf("Expected signature parameter in query %q", gotQuery)
	}
	payload, sig := gotQuery[:idx], gotQuery[idx+len("&signature="):]

	mac := hmac.New(sha256.New, []byte("live-secret"))
	mac.Write([]byte(payload))
	if want := hex.EncodeToString(mac.Sum(nil)); sig != want {
		t.Errorf("Expected signature %s over sent query, got %s", want, sig)
	}

	for _, part := range []string{"symbol=BTCUSDT", "side=BUY", "type=MARKET", "quantity=0.02", "newClientOrderId=my-order-1", "timestamp="} {
		if !strings.Contains(payload, part) {
			t.Errorf("Expected query to contain %q, got %q", part, payload)
		}
	}

	if fill.OrderID != "28" {
		t.Errorf("Expected order id 28, got %s", fill.OrderID)
	}
	if fill.Price != 50000 {
		t.Errorf("Expected average fill price 50000, got %f", fill.Price)
	}
	if fill.Qty != 0.02 {
		t.Errorf("Expected executed qty 0.02, got %f", fill.Qty)
	}
	if fill.Ts != 1507725176 {
		t.Errorf("Expected fill timestamp in seconds, got %d", fill.Ts)
	}
	if fill.Simulated {
		t.Error("Expected live fill not to be marked simulated")
	}
}

func TestLiveOrderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-2010,"msg":"Account has insufficient balance for requested action."}`)
	}))
	defer srv.Close()

	c := New(Params{BaseURL: srv.URL, APIKey: "k", APISecret: "s", Mode: "LIVE"})

	_, err := c.PlaceMarketOrder(context.Background(), types.OrderReq{Symbol: "BTCUSDT", Side: "BUY", Qty: 1})
	if err == nil {
		t.Fatal("Expected rejection error")
	}
	if !strings.Contains(err.Error(), "order rejected") || !strings.Contains(err.Error(), "insufficient balance") {
		t.Errorf("Expected rejection with exchange message, got %v", err)
	}
}

func TestLiveOrderUnfilledStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"orderId":29,"transactTime":1507725176595,"executedQty":"0","cummulativeQuoteQty":"0","status":"EXPIRED"}`)
	}))
	defer srv.Close()

	c := New(Params{BaseURL: srv.URL, APIKey: "k", APISecret: "s", Mode: "LIVE"})

	_, err := c.PlaceMarketOrder(context.Background(), types.OrderReq{Symbol: "BTCUSDT", Side: "BUY", Qty: 1})
	if err == nil {
		t.Fatal("Expected unfilled status to error")
	}
	if !strings.Contains(err.Error(), "order not filled") {
		t.Errorf("Expected order not filled error, got %v", err)
	}
}

func TestBalancesLiveKeepsOnlyFreeAssets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/account" {
			t.Errorf("Expected account path, got %s", r.URL.Path)
		}
		if r.Header.Get("X-MBX-APIKEY") != "live-key" {
			t.Error("Expected API key header on signed endpoint")
		}
		if r.URL.Query().Get("signature") == "" {
			t.Error("Expected signature parameter on signed endpoint")
		}
		fmt.Fprint(w, `{"balances":[
			{"asset":"BTC","free":"0.50000000","locked":"0.00000000"},
			{"asset":"USDT","free":"1200.25","locked":"10.00"},
			{"asset":"ETH","free":"0.00000000","locked":"0.00000000"}
		]}`)
	}))
	defer srv.Close()

	c := New(Params{BaseURL: srv.URL, APIKey: "live-key", APISecret: "s", Mode: "LIVE"})

	balances, err := c.Balances(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("Expected 2 assets with free balance, got %d", len(balances))
	}
	if balances["BTC"] != 0.5 {
		t.Errorf("Expected 0.5 BTC, got %f", balances["BTC"])
	}
	if balances["USDT"] != 1200.25 {
		t.Errorf("Expected 1200.25 USDT, got %f", balances["USDT"])
	}
	if _, ok := balances["ETH"]; ok {
		t.Error("Expected zero-balance asset to be dropped")
	}
}

func TestKlinesParsesRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("Expected klines path, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "1h" || q.Get("limit") != "2" {
			t.Errorf("Unexpected klines query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `[
			[1700000000000,"49000.0","49500.0","48800.0","49200.0","120.5",1700003599999,"0",0,"0","0","0"],
			[1700003600000,"49200.0","49400.0","49000.0","49100.0","98.2",1700007199999,"0",0,"0","0","0"]
		]`)
	}))
	defer srv.Close()

	c := newDryRunClient(srv.URL)
	candles, err := c.Klines(context.Background(), "BTCUSDT", "1h", 2)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(candles))
	}

	first := candles[0]
	if first.Ts != 1700000000 {
		t.Errorf("Expected open time in seconds, got %d", first.Ts)
	}
	if first.Open != 49000 || first.High != 49500 || first.Low != 48800 || first.Close != 49200 {
		t.Errorf("Unexpected OHLC: %+v", first)
	}
	if first.Vol != 120.5 {
		t.Errorf("Expected volume 120.5, got %f", first.Vol)
	}
}

func TestKlinesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		fmt.Fprint(w, `{"code":-1003,"msg":"Too many requests."}`)
	}))
	defer srv.Close()

	c := newDryRunClient(srv.URL)
	_, err := c.Klines(context.Background(), "BTCUSDT", "1h", 10)
	if err == nil {
		t.Fatal("Expected error on non-200 response")
	}
}
