package llm

import (
	"context"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/llm/fallback"
	"crypto-trading-bot/internal/llm/ollama"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/store"
)

// New builds the advisor chain for the configured provider. With provider
// NONE every recommendation comes from the rule-based calculator.
func New(cfg *store.Config) interfaces.Advisor {
	fb := fallback.New()

	if cfg.LLM.Provider != "OLLAMA" {
		logger.Info(context.Background(), "AI advisor disabled, using rule-based recommendations only")
		return NewBridge(nil, fb, cfg.LLM.Timeout)
	}

	client := ollama.New(cfg)
	if !client.Healthy(context.Background()) {
		logger.Warn(context.Background(), "Ollama not reachable, recommendations will fall back until it comes up",
			"url", cfg.LLM.URL,
			"model", cfg.LLM.Model)
	}
	return NewBridge(client, fb, cfg.LLM.Timeout)
}
