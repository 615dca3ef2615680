package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/store"
	"crypto-trading-bot/internal/trace"
	"crypto-trading-bot/internal/types"
)

// coinIDs maps trading symbols to CoinGecko coin IDs.
var coinIDs = map[string]string{
	"BTC": "bitcoin", "ETH": "ethereum", "BNB": "binancecoin",
	"XRP": "ripple", "ADA": "cardano", "SOL": "solana",
	"DOT": "polkadot", "DOGE": "dogecoin", "MATIC": "matic-network",
	"LTC": "litecoin", "AVAX": "avalanche-2", "LINK": "chainlink",
	"ATOM": "cosmos", "UNI": "uniswap", "XLM": "stellar",
}

// Client fetches prices and candle history from the CoinGecko public API.
type Client struct {
	cfg     *store.Config
	base    string
	httpc   *http.Client
	limiter *RateLimiter
	cache   *snapshotCache
}

// Compile-time interface check
var _ interfaces.MarketDataSource = (*Client)(nil)

// New creates a CoinGecko client from the marketdata config section.
func New(cfg *store.Config) *Client {
	return &Client{
		cfg:  cfg,
		base: strings.TrimRight(cfg.MarketData.BaseURL, "/"),
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: NewRateLimiter(1, cfg.MarketData.MinRequestGap),
		cache:   newSnapshotCache(cfg.MarketData.CacheTTL),
	}
}

type marketRow struct {
	CurrentPrice             float64  `json:"current_price"`
	High24h                  *float64 `json:"high_24h"`
	Low24h                   *float64 `json:"low_24h"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	TotalVolume              float64  `json:"total_volume"`
}

type chartResponse struct {
	Prices [][]float64 `json:"prices"`
}

// Snapshot returns the current price plus the 12h/24h/48h candle windows.
// Results are cached briefly; too little history comes back as thin
// windows, which the indicator layer reports as insufficient data.
func (c *Client) Snapshot(ctx context.Context, symbol string) (*types.MarketSnapshot, error) {
	if snap, ok := c.cache.get(symbol); ok {
		return snap, nil
	}

	ctx, span := trace.StartSpan(ctx, "coingecko-snapshot")
	defer span.End()

	coinID := c.coinID(symbol)

	row, err := c.fetchMarket(ctx, coinID)
	if err != nil {
		return nil, err
	}
	candles, err := c.fetchChart(ctx, coinID, 2)
	if err != nil {
		return nil, err
	}

	snap := &types.MarketSnapshot{
		Symbol:       symbol,
		CurrentPrice: row.CurrentPrice,
		Window12h:    windowSince(candles, 12*time.Hour),
		Window24h:    windowSince(candles, 24*time.Hour),
		Window48h:    candles,
		FetchedAt:    time.Now().UTC(),
	}
	if row.PriceChangePercentage24h != nil {
		snap.Change24hPct = *row.PriceChangePercentage24h
	}

	logger.Debug(ctx, "Market snapshot fetched",
		"symbol", symbol,
		"coin_id", coinID,
		"price", snap.CurrentPrice,
		"candles_48h", len(candles))

	c.cache.set(symbol, snap)
	return snap, nil
}

func (c *Client) fetchMarket(ctx context.Context, coinID string) (*marketRow, error) {
	url := fmt.Sprintf("%s/coins/markets?vs_currency=usd&ids=%s&order=market_cap_desc&sparkline=false", c.base, coinID)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var rows []marketRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("coingecko markets decode failed: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("coingecko returned no market data for %s", coinID)
	}
	return &rows[0], nil
}

// fetchChart pulls the [timestamp_ms, price] series and folds consecutive
// pairs into pseudo-OHLC candles, since the free chart endpoint has no
// true OHLC.
func (c *Client) fetchChart(ctx context.Context, coinID string, days int) ([]types.Candle, error) {
	url := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d", c.base, coinID, days)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("coingecko chart decode failed: %w", err)
	}

	candles := make([]types.Candle, 0, len(chart.Prices))
	for i := 0; i+1 < len(chart.Prices); i++ {
		cur, next := chart.Prices[i], chart.Prices[i+1]
		if len(cur) < 2 || len(next) < 2 {
			continue
		}
		p1, p2 := cur[1], next[1]
		candles = append(candles, types.Candle{
			Ts:    int64(cur[0]) / 1000,
			Open:  p1,
			High:  max(p1, p2),
			Low:   min(p1, p2),
			Close: p2,
		})
	}
	if n := len(chart.Prices); n > 0 && len(chart.Prices[n-1]) >= 2 {
		last := chart.Prices[n-1]
		candles = append(candles, types.Candle{
			Ts:    int64(last[0]) / 1000,
			Open:  last[1],
			High:  last[1],
			Low:   last[1],
			Close: last[1],
		})
	}
	return candles, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "crypto-trading-bot/1.0")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// coinID resolves the symbol through the config override, then the
// builtin map. Unknown symbols default to bitcoin.
func (c *Client) coinID(symbol string) string {
	if c.cfg.MarketData.CoinID != "" {
		return c.cfg.MarketData.CoinID
	}
	base := strings.ToUpper(symbol)
	for _, suffix := range []string{"USDT", "USD"} {
		base = strings.TrimSuffix(base, suffix)
	}
	if id, ok := coinIDs[base]; ok {
		return id
	}
	return "bitcoin"
}

// windowSince slices the trailing candles newer than the cutoff, measured
// from the last candle so tests and replays are deterministic.
func windowSince(candles []types.Candle, span time.Duration) []types.Candle {
	if len(candles) == 0 {
		return nil
	}
	cutoff := candles[len(candles)-1].Ts - int64(span.Seconds())
	for i, c := range candles {
		if c.Ts >= cutoff {
			return candles[i:]
		}
	}
	return candles
}
