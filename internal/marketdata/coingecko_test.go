package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crypto-trading-bot/internal/store"
)

func testConfig(url string) *store.Config {
	cfg := &store.Config{}
	cfg.MarketData.BaseURL = url
	cfg.MarketData.CacheTTL = time.Minute
	cfg.MarketData.MinRequestGap = time.Millisecond
	return cfg
}

// chartJSON builds an hourly [ts_ms, price] series ending at endTs.
func chartJSON(endTs int64, hours int, basePrice float64) string {
	var sb strings.Builder
	sb.WriteString(`{"prices":[`)
	for i := 0; i < hours; i++ {
		ts := (endTs - int64(hours-1-i)*3600) * 1000
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "[%d,%f]", ts, basePrice+float64(i))
	}
	sb.WriteString("]}")
	return sb.String()
}

func newTestServer(t *testing.T, calls *int64) *httptest.Server {
	endTs := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC).Unix()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/coins/markets"):
			if ids := r.URL.Query().Get("ids"); ids != "bitcoin" {
				t.Errorf("Expected ids=bitcoin, got %s", ids)
			}
			w.Write([]byte(`[{"current_price":50000,"high_24h":51000,"low_24h":48000,"price_change_percentage_24h":2.5,"total_volume":123456789}]`))
		case strings.HasPrefix(r.URL.Path, "/coins/bitcoin/market_chart"):
			if days := r.URL.Query().Get("days"); days != "2" {
				t.Errorf("Expected days=2, got %s", days)
			}
			w.Write([]byte(chartJSON(endTs, 48, 49000)))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestSnapshotBuildsWindows(t *testing.T) {
	var calls int64
	server := newTestServer(t, &calls)
	defer server.Close()

	c := New(testConfig(server.URL))
	snap, err := c.Snapshot(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if snap.CurrentPrice != 50000 {
		t.Errorf("Expected price 50000, got %f", snap.CurrentPrice)
	}
	if snap.Change24hPct != 2.5 {
		t.Errorf("Expected 24h change 2.5, got %f", snap.Change24hPct)
	}
	// 48 hourly points pair into 47 candles plus the final flat one.
	if got := len(snap.Window48h); got != 48 {
		t.Errorf("Expected 48 candles in 48h window, got %d", got)
	}
	if got := len(snap.Window24h); got == 0 || got > 26 {
		t.Errorf("Expected roughly 24 candles in 24h window, got %d", got)
	}
	if got := len(snap.Window12h); got == 0 || got > 14 {
		t.Errorf("Expected roughly 12 candles in 12h window, got %d", got)
	}

	// Pseudo-OHLC: high/low bracket open/close of consecutive prices.
	first := snap.Window48h[0]
	if first.Open != 49000 || first.Close != 49001 {
		t.Errorf("Unexpected first candle open/close: %f/%f", first.Open, first.Close)
	}
	if first.High != 49001 || first.Low != 49000 {
		t.Errorf("Unexpected first candle high/low: %f/%f", first.High, first.Low)
	}
}

func TestSnapshotUsesCache(t *testing.T) {
	var calls int64
	server := newTestServer(t, &calls)
	defer server.Close()

	c := New(testConfig(server.URL))
	if _, err := c.Snapshot(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	firstCalls := atomic.LoadInt64(&calls)

	if _, err := c.Snapshot(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("Second snapshot failed: %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != firstCalls {
		t.Errorf("Expected cached snapshot, but HTTP calls rose from %d to %d", firstCalls, got)
	}
}

func TestSnapshotServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := New(testConfig(server.URL))
	if _, err := c.Snapshot(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("Expected error for HTTP 429")
	}
}

func TestSnapshotUnknownCoin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/coins/markets") {
			w.Write([]byte(`[]`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := New(testConfig(server.URL))
	if _, err := c.Snapshot(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("Expected error for empty markets response")
	}
}

func TestCoinIDMapping(t *testing.T) {
	c := New(testConfig("http://unused"))

	cases := map[string]string{
		"BTCUSDT":  "bitcoin",
		"ETHUSDT":  "ethereum",
		"SOLUSD":   "solana",
		"DOGE":     "dogecoin",
		"ZZZZUSDT": "bitcoin",
	}
	for symbol, want := range cases {
		if got := c.coinID(symbol); got != want {
			t.Errorf("coinID(%s): expected %s, got %s", symbol, want, got)
		}
	}

	cfg := testConfig("http://unused")
	cfg.MarketData.CoinID = "pepe"
	if got := New(cfg).coinID("BTCUSDT"); got != "pepe" {
		t.Errorf("Expected config override pepe, got %s", got)
	}
}

func TestRateLimiterSpacing(t *testing.T) {
	rl := NewRateLimiter(1, 30*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	// First token is free, the next two wait one refill each.
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Expected at least ~60ms of throttling, got %v", elapsed)
	}
}

func TestRateLimiterContextCancel(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	rl.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Fatal("Expected context deadline error")
	}
}
