package interfaces

import (
	"context"

	"crypto-trading-bot/internal/types"
)

type MarketDataSource interface {
	// Snapshot fetches the current price and the 12h/24h/48h candle
	// windows for a symbol. Too little history surfaces as
	// ta.ErrInsufficientData, not a crash.
	Snapshot(ctx context.Context, symbol string) (*types.MarketSnapshot, error)
}

type SentimentProvider interface {
	GetSentiment(ctx context.Context, symbol string) (types.NewsSentiment, error)
}
