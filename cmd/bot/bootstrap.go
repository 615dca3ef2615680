package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"crypto-trading-bot/internal/engine"
	"crypto-trading-bot/internal/engine/engineobs"
	"crypto-trading-bot/internal/eod"
	"crypto-trading-bot/internal/eod/eodobs"
	"crypto-trading-bot/internal/exchange"
	"crypto-trading-bot/internal/exchange/exchobs"
	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/llm"
	"crypto-trading-bot/internal/llm/llmobs"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/news"
	"crypto-trading-bot/internal/store"
	"crypto-trading-bot/internal/trace"
	"crypto-trading-bot/internal/tradelog"
)

// initializeSystem brings up env, logger and tracer, in that order. A
// tracer failure is reported but not fatal; the bot trades fine without
// spans.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// shutdownSystem flushes whatever the tracer's batcher still holds.
func shutdownSystem(ctx context.Context) {
	if err := trace.Shutdown(ctx); err != nil {
		logger.Warn(ctx, "Tracer shutdown failed", "error", err.Error())
	}
}

// configPath honors the TRADER_CONFIG override used by the deploy scripts.
func configPath() string {
	if p := os.Getenv("TRADER_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// compressOldLogs gzips tradelog files past the configured retention.
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeExchange builds the configured exchange wrapped in its
// observability middleware.
func initializeExchange(ctx context.Context, cfg *store.Config) (interfaces.Exchange, error) {
	ex, err := exchange.New(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	}

	return exchobs.Wrap(ex), nil
}

// initializeAdvisor builds the advisor chain with observability. The
// factory already degrades to rule-based recommendations when no LLM
// provider is configured.
func initializeAdvisor(cfg *store.Config) interfaces.Advisor {
	return llmobs.Wrap(llm.New(cfg))
}

// initializeSentiment returns nil when headline sentiment is disabled;
// the engine treats a nil provider as "no sentiment input".
func initializeSentiment(ctx context.Context, cfg *store.Config) interfaces.SentimentProvider {
	if !cfg.News.Enabled {
		logger.Info(ctx, "Headline sentiment disabled")
		return nil
	}
	return news.New(cfg)
}

// initializeEngine assembles the decision engine with observability.
func initializeEngine(cfg *store.Config, p engine.Params) interfaces.Engine {
	return engineobs.Wrap(engine.New(cfg, p))
}

// initializeEOD builds the daily summarizer with observability.
func initializeEOD() interfaces.EodSummarizer {
	return eodobs.Wrap(eod.New())
}
