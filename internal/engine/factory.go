package engine

import (
	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/ledger"
	"crypto-trading-bot/internal/limiter"
	"crypto-trading-bot/internal/store"
)

// Params collects the engine's collaborators. Sentiment may be nil.
type Params struct {
	Market    interfaces.MarketDataSource
	Exchange  interfaces.Exchange
	Advisor   interfaces.Advisor
	Limiter   *limiter.Limiter
	Ledger    *ledger.Ledger
	Sentiment interfaces.SentimentProvider
}

func New(cfg *store.Config, p Params) interfaces.Engine {
	return newEngine(cfg, p)
}
