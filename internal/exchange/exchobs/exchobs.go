package exchobs

import (
	"context"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/trace"
	"crypto-trading-bot/internal/types"
)

// observableExchange wraps an Exchange with observability (logging & tracing)
type observableExchange struct {
	exchange interfaces.Exchange
}

// Compile-time interface check
var _ interfaces.Exchange = (*observableExchange)(nil)

// Wrap wraps an exchange with observability middleware
func Wrap(exchange interfaces.Exchange) interfaces.Exchange {
	return &observableExchange{
		exchange: exchange,
	}
}

// Price returns the current price with observability
func (oe *observableExchange) Price(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.Price")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching price", "symbol", symbol)

	price, err := oe.exchange.Price(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch price", err, "symbol", symbol)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "Price fetched successfully", "symbol", symbol, "price", price)
	return price, nil
}

// Balances fetches account balances with observability
func (oe *observableExchange) Balances(ctx context.Context) (map[string]float64, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.Balances")
	defer span.End()

	balances, err := oe.exchange.Balances(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch balances", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Balances fetched successfully", "assets", len(balances))
	return balances, nil
}

// PlaceMarketOrder places an order with observability
func (oe *observableExchange) PlaceMarketOrder(ctx context.Context, req types.OrderReq) (types.Fill, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.PlaceMarketOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing market order",
		"symbol", req.Symbol,
		"side", req.Side,
		"qty", req.Qty,
		"tag", req.Tag,
	)

	fill, err := oe.exchange.PlaceMarketOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Order rejected", err,
			"symbol", req.Symbol,
			"side", req.Side,
			"qty", req.Qty,
		)
		return types.Fill{}, err
	}

	logger.InfoSkip(ctx, 1, "Order filled",
		"symbol", req.Symbol,
		"order_id", fill.OrderID,
		"price", fill.Price,
		"qty", fill.Qty,
		"simulated", fill.Simulated,
	)
	return fill, nil
}

// Klines fetches candles with observability
func (oe *observableExchange) Klines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.Klines")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching klines", "symbol", symbol, "interval", interval, "limit", limit)

	candles, err := oe.exchange.Klines(ctx, symbol, interval, limit)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch klines", err, "symbol", symbol)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Klines fetched successfully", "symbol", symbol, "count", len(candles))
	return candles, nil
}

// Start initializes the exchange with observability
func (oe *observableExchange) Start(ctx context.Context, symbols []string) error {
	ctx, span := trace.StartSpan(ctx, "exchange.Start")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Starting exchange", "name", oe.exchange.Name(), "symbols", symbols)

	if err := oe.exchange.Start(ctx, symbols); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to start exchange", err, "name", oe.exchange.Name())
		return err
	}
	return nil
}

// Stop shuts down the exchange with observability
func (oe *observableExchange) Stop(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "exchange.Stop")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Stopping exchange", "name", oe.exchange.Name())
	oe.exchange.Stop(ctx)
}

// Name passes through to the wrapped exchange
func (oe *observableExchange) Name() string {
	return oe.exchange.Name()
}
