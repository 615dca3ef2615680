package exchange

import (
	"fmt"

	"crypto-trading-bot/internal/exchange/binance"
	"crypto-trading-bot/internal/exchange/sim"
	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/store"
)

// New builds the exchange selected in the config. BINANCE talks to the real
// API (orders are paper-filled at live prices in DRY_RUN mode); SIMULATION is
// fully synthetic and needs no network at all.
func New(cfg *store.Config) (interfaces.Exchange, error) {
	switch cfg.Exchange {
	case "SIMULATION":
		return sim.New(sim.Params{
			Symbol:         cfg.Symbol,
			BaseAsset:      cfg.BaseAsset(),
			QuoteAsset:     cfg.QuoteAsset(),
			InitialBalance: cfg.Simulation.InitialBalance,
			Volatility:     cfg.Simulation.Volatility,
		}), nil
	case "BINANCE":
		key, secret := store.BinanceAPIKey(), store.BinanceAPISecret()
		if cfg.Mode == "LIVE" && (key == "" || secret == "") {
			return nil, fmt.Errorf("exchange BINANCE in LIVE mode requires BINANCE_API_KEY and BINANCE_API_SECRET")
		}
		return binance.New(binance.Params{
			APIKey:       key,
			APISecret:    secret,
			Mode:         cfg.Mode,
			PaperBalance: cfg.Simulation.InitialBalance,
			BaseAsset:    cfg.BaseAsset(),
			QuoteAsset:   cfg.QuoteAsset(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", cfg.Exchange)
	}
}
