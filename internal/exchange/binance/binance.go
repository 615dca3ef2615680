package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/types"
)

type Params struct {
	BaseURL   string
	WSBaseURL string
	APIKey    string
	APISecret string
	Mode      string // DRY_RUN fills orders locally at the live price

	// Paper balances for DRY_RUN, quote asset amount.
	PaperBalance float64
	BaseAsset    string
	QuoteAsset   string
}

// Client talks to the Binance spot REST API and keeps a websocket
// mini-ticker stream for the traded symbols. In DRY_RUN mode orders are
// filled against an internal paper book at the live price.
type Client struct {
	p      Params
	httpc  *http.Client
	stream *tickerStream

	isStreamInit bool

	mu    sync.Mutex
	paper map[string]float64
}

// Compile-time interface check
var _ interfaces.Exchange = (*Client)(nil)

func New(p Params) *Client {
	if p.BaseURL == "" {
		p.BaseURL = "https://api.binance.com"
	}
	if p.WSBaseURL == "" {
		p.WSBaseURL = "wss://stream.binance.com:9443"
	}
	c := &Client{
		p:      p,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		stream: newTickerStream(p.WSBaseURL),
	}
	if p.Mode == "DRY_RUN" {
		c.paper = map[string]float64{
			p.QuoteAsset: p.PaperBalance,
			p.BaseAsset:  0,
		}
	}
	return c
}

func (c *Client) Name() string { return "BINANCE" }

// Price prefers the streamed ticker and falls back to the REST endpoint
// when the stream is down or stale.
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	if p, ok := c.stream.lastPrice(symbol); ok {
		return p, nil
	}

	body, err := c.get(ctx, fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.p.BaseURL, symbol), false)
	if err != nil {
		return 0, err
	}
	var out struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("price decode failed: %w", err)
	}
	price, err := strconv.ParseFloat(out.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("price %q not numeric: %w", out.Price, err)
	}
	return price, nil
}

// Balances returns free amounts per asset. DRY_RUN serves the paper book
// so no API keys are needed to trade against live prices.
func (c *Client) Balances(ctx context.Context) (map[string]float64, error) {
	if c.p.Mode == "DRY_RUN" {
		c.mu.Lock()
		defer c.mu.Unlock()
		out := make(map[string]float64, len(c.paper))
		for asset, amt := range c.paper {
			out[asset] = amt
		}
		return out, nil
	}

	query := fmt.Sprintf("timestamp=%d", time.Now().UnixMilli())
	u := fmt.Sprintf("%s/api/v3/account?%s&signature=%s", c.p.BaseURL, query, c.sign(query))
	body, err := c.get(ctx, u, true)
	if err != nil {
		return nil, err
	}

	var out struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("account decode failed: %w", err)
	}

	balances := make(map[string]float64)
	for _, b := range out.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		if free > 0 {
			balances[b.Asset] = free
		}
	}
	return balances, nil
}

// PlaceMarketOrder submits a market order, or fills it from the paper
// book in DRY_RUN. Any rejection comes back as an error and means the
// order did not execute.
func (c *Client) PlaceMarketOrder(ctx context.Context, req types.OrderReq) (types.Fill, error) {
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}

	if c.p.Mode == "DRY_RUN" {
		return c.paperFill(ctx, req)
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", req.Side)
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(req.Qty, 'f', -1, 64))
	params.Set("newClientOrderId", req.ClientOrderID)
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	query := params.Encode()
	u := fmt.Sprintf("%s/api/v3/order?%s&signature=%s", c.p.BaseURL, query, c.sign(query))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", u, nil)
	if err != nil {
		return types.Fill{}, err
	}
	httpReq.Header.Set("X-MBX-APIKEY", c.p.APIKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return types.Fill{}, fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Fill{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return types.Fill{}, &types.OrderRejectedError{Reason: fmt.Sprintf("http %d: %s", resp.StatusCode, string(body))}
	}

	var order struct {
		OrderID             int64  `json:"orderId"`
		ClientOrderID       string `json:"clientOrderId"`
		TransactTime        int64  `json:"transactTime"`
		ExecutedQty         string `json:"executedQty"`
		CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
		Status              string `json:"status"`
	}
	if err := json.Unmarshal(body, &order); err != nil {
		return types.Fill{}, fmt.Errorf("order decode failed: %w", err)
	}
	if order.Status != "FILLED" && order.Status != "PARTIALLY_FILLED" {
		return types.Fill{}, &types.OrderRejectedError{Reason: fmt.Sprintf("order not filled, status %s", order.Status)}
	}

	executed, _ := strconv.ParseFloat(order.ExecutedQty, 64)
	quoteQty, _ := strconv.ParseFloat(order.CummulativeQuoteQty, 64)
	if executed <= 0 {
		return types.Fill{}, fmt.Errorf("order reported zero executed quantity")
	}

	return types.Fill{
		OrderID: strconv.FormatInt(order.OrderID, 10),
		Symbol:  req.Symbol,
		Side:    req.Side,
		Price:   quoteQty / executed,
		Qty:     executed,
		Ts:      order.TransactTime / 1000,
	}, nil
}

// paperFill executes the order against the internal book at the current
// live price, with the same insufficient-balance rejections a real
// account would produce.
func (c *Client) paperFill(ctx context.Context, req types.OrderReq) (types.Fill, error) {
	price, err := c.Price(ctx, req.Symbol)
	if err != nil {
		return types.Fill{}, fmt.Errorf("cannot price paper fill: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	value := price * req.Qty
	switch req.Side {
	case "BUY":
		if c.paper[c.p.QuoteAsset] < value {
			return types.Fill{}, &types.OrderRejectedError{Reason: fmt.Sprintf("insufficient balance: need %.2f %s, have %.2f", value, c.p.QuoteAsset, c.paper[c.p.QuoteAsset])}
		}
		c.paper[c.p.QuoteAsset] -= value
		c.paper[c.p.BaseAsset] += req.Qty
	case "SELL":
		if c.paper[c.p.BaseAsset] < req.Qty {
			return types.Fill{}, &types.OrderRejectedError{Reason: fmt.Sprintf("insufficient balance: need %.8f %s, have %.8f", req.Qty, c.p.BaseAsset, c.paper[c.p.BaseAsset])}
		}
		c.paper[c.p.BaseAsset] -= req.Qty
		c.paper[c.p.QuoteAsset] += value
	default:
		return types.Fill{}, fmt.Errorf("unknown order side %q", req.Side)
	}

	logger.Info(ctx, "Dry-run order filled at live price",
		"symbol", req.Symbol,
		"side", req.Side,
		"qty", req.Qty,
		"price", price)

	return types.Fill{
		OrderID:   "SIM-" + req.ClientOrderID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Price:     price,
		Qty:       req.Qty,
		Ts:        time.Now().Unix(),
		Simulated: true,
	}, nil
}

// Klines fetches recent exchange candles.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	u := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d", c.p.BaseURL, symbol, interval, limit)
	body, err := c.get(ctx, u, false)
	if err != nil {
		return nil, err
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("klines decode failed: %w", err)
	}

	candles := make([]types.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		openTime, _ := row[0].(float64)
		candles = append(candles, types.Candle{
			Ts:    int64(openTime) / 1000,
			Open:  parseFloat(row[1]),
			High:  parseFloat(row[2]),
			Low:   parseFloat(row[3]),
			Close: parseFloat(row[4]),
			Vol:   parseFloat(row[5]),
		})
	}
	return candles, nil
}

func (c *Client) Start(ctx context.Context, symbols []string) error {
	if c.isStreamInit {
		return nil
	}
	if err := c.stream.Start(ctx, symbols); err != nil {
		return fmt.Errorf("failed to start ticker stream: %w", err)
	}
	c.isStreamInit = true
	return nil
}

func (c *Client) Stop(ctx context.Context) {
	c.stream.Stop()
	c.isStreamInit = false
}

func (c *Client) get(ctx context.Context, u string, signed bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.p.APIKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance http %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// sign computes the HMAC-SHA256 of the exact query string being sent.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.p.APISecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}
