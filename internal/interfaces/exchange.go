package interfaces

import (
	"context"

	"crypto-trading-bot/internal/types"
)

type Exchange interface {
	// Price returns the current spot price for a symbol.
	Price(ctx context.Context, symbol string) (float64, error)

	// Balances returns free balances per asset (e.g. BTC, USDT).
	Balances(ctx context.Context) (map[string]float64, error)

	// PlaceMarketOrder submits a market order. A rejection (insufficient
	// balance, rate limit, connectivity) is returned as an error and means
	// the order did not execute.
	PlaceMarketOrder(ctx context.Context, req types.OrderReq) (types.Fill, error)

	// Klines fetches recent exchange candles for a symbol.
	Klines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error)

	// Start brings up live connections (e.g. the ticker stream).
	Start(ctx context.Context, symbols []string) error

	// Stop gracefully shuts down exchange connections.
	Stop(ctx context.Context)

	Name() string
}
