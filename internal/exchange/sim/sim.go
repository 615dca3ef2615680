package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/types"
)

// startPrices anchor the random walk at a plausible level per pair.
var startPrices = map[string]float64{
	"BTCUSDT": 42000.00,
	"ETHUSDT": 2500.00,
	"BNBUSDT": 300.00,
}

type Params struct {
	Symbol         string
	BaseAsset      string
	QuoteAsset     string
	InitialBalance float64
	Volatility     float64
	StartPrice     float64 // 0 picks a per-symbol default
	Seed           int64   // 0 seeds from the clock
}

// Exchange is a self-contained paper exchange: prices follow a random
// walk and orders fill instantly unless the balance cannot cover them.
type Exchange struct {
	p Params

	mu       sync.Mutex
	rng      *rand.Rand
	price    float64
	balances map[string]float64
	orderSeq int64
}

// Compile-time interface check
var _ interfaces.Exchange = (*Exchange)(nil)

func New(p Params) *Exchange {
	price := p.StartPrice
	if price == 0 {
		if sp, ok := startPrices[p.Symbol]; ok {
			price = sp
		} else {
			price = startPrices["BTCUSDT"]
		}
	}
	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Exchange{
		p:     p,
		rng:   rand.New(rand.NewSource(seed)),
		price: price,
		balances: map[string]float64{
			p.QuoteAsset: p.InitialBalance,
			p.BaseAsset:  0,
		},
	}
}

func (e *Exchange) Name() string { return "SIMULATION" }

// Price advances the random walk one step and returns the new price.
func (e *Exchange) Price(ctx context.Context, symbol string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step(), nil
}

// step moves the price within the volatility band. Caller must hold e.mu.
func (e *Exchange) step() float64 {
	changePct := (e.rng.Float64()*2 - 1) * e.p.Volatility
	next := e.price * (1 + changePct)
	if next > 0 {
		e.price = next
	}
	return e.price
}

func (e *Exchange) Balances(ctx context.Context) (map[string]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]float64, len(e.balances))
	for asset, amt := range e.balances {
		out[asset] = amt
	}
	return out, nil
}

// PlaceMarketOrder fills instantly at the walked price. Orders the
// balance cannot cover are rejected the way a real account would.
func (e *Exchange) PlaceMarketOrder(ctx context.Context, req types.OrderReq) (types.Fill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	price := e.step()
	value := price * req.Qty

	switch req.Side {
	case "BUY":
		if e.balances[e.p.QuoteAsset] < value {
			return types.Fill{}, &types.OrderRejectedError{Reason: fmt.Sprintf("insufficient balance: need %.2f %s, have %.2f", value, e.p.QuoteAsset, e.balances[e.p.QuoteAsset])}
		}
		e.balances[e.p.QuoteAsset] -= value
		e.balances[e.p.BaseAsset] += req.Qty
	case "SELL":
		if e.balances[e.p.BaseAsset] < req.Qty {
			return types.Fill{}, &types.OrderRejectedError{Reason: fmt.Sprintf("insufficient balance: need %.8f %s, have %.8f", req.Qty, e.p.BaseAsset, e.balances[e.p.BaseAsset])}
		}
		e.balances[e.p.BaseAsset] -= req.Qty
		e.balances[e.p.QuoteAsset] += value
	default:
		return types.Fill{}, fmt.Errorf("unknown order side %q", req.Side)
	}

	e.orderSeq++
	fill := types.Fill{
		OrderID:   fmt.Sprintf("SIM-%d", e.orderSeq),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Price:     price,
		Qty:       req.Qty,
		Ts:        time.Now().Unix(),
		Simulated: true,
	}

	logger.Info(ctx, "Simulated order filled",
		"symbol", req.Symbol,
		"side", req.Side,
		"qty", req.Qty,
		"price", price,
		"order_id", fill.OrderID)

	return fill, nil
}

// Klines synthesizes a candle history by walking the price backwards, so
// indicator warm-up works without any external data source.
func (e *Exchange) Klines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	step, err := intervalSeconds(interval)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	candles := make([]types.Candle, limit)
	price := e.price
	for i := limit - 1; i >= 0; i-- {
		changePct := (e.rng.Float64()*2 - 1) * e.p.Volatility
		open := price / (1 + changePct)
		high := price
		low := open
		if open > price {
			high, low = open, price
		}
		candles[i] = types.Candle{
			Ts:    now - int64(limit-1-i)*step,
			Open:  open,
			High:  high * (1 + e.rng.Float64()*e.p.Volatility/2),
			Low:   low * (1 - e.rng.Float64()*e.p.Volatility/2),
			Close: price,
			Vol:   e.rng.Float64() * 100,
		}
		price = open
	}
	return candles, nil
}

func (e *Exchange) Start(ctx context.Context, symbols []string) error { return nil }

func (e *Exchange) Stop(ctx context.Context) {}

func intervalSeconds(interval string) (int64, error) {
	switch interval {
	case "1m":
		return 60, nil
	case "5m":
		return 300, nil
	case "15m":
		return 900, nil
	case "1h":
		return 3600, nil
	case "4h":
		return 14400, nil
	case "1d":
		return 86400, nil
	}
	return 0, fmt.Errorf("unsupported interval %q", interval)
}
