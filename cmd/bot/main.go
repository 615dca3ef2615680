package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-trading-bot/internal/api"
	"crypto-trading-bot/internal/engine"
	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/ledger"
	"crypto-trading-bot/internal/limiter"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/marketdata"
	"crypto-trading-bot/internal/report"
	"crypto-trading-bot/internal/store"
)

func fatal(ctx context.Context, msg string, err error) {
	logger.ErrorWithErr(ctx, msg, err)
	os.Exit(1)
}

func main() {
	if err := initializeSystem(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer shutdownSystem(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := store.LoadConfig(configPath())
	if err != nil {
		fatal(ctx, "Failed to load config", err)
	}

	compressOldLogs(ctx)

	ex, err := initializeExchange(ctx, cfg)
	if err != nil {
		fatal(ctx, "Failed to initialize exchange", err)
	}
	if err := ex.Start(ctx, []string{cfg.Symbol}); err != nil {
		// The ticker stream is an optimization; REST still serves prices.
		logger.Warn(ctx, "Exchange stream failed to start", "error", err.Error())
	}
	defer ex.Stop(context.Background())

	balances, err := ex.Balances(ctx)
	if err != nil {
		fatal(ctx, "Failed to fetch starting balances", err)
	}
	led := ledger.New(cfg.BaseAsset(), cfg.QuoteAsset(), balances)

	lim, err := limiter.New(cfg.Limiter.StatePath, cfg.Limiter.MaxTradesPerDay)
	if err != nil {
		fatal(ctx, "Failed to load trade limiter state", err)
	}

	eng := initializeEngine(cfg, engine.Params{
		Market:    marketdata.New(cfg),
		Exchange:  ex,
		Advisor:   initializeAdvisor(cfg),
		Limiter:   lim,
		Ledger:    led,
		Sentiment: initializeSentiment(ctx, cfg),
	})

	summarizer := initializeEOD()
	reporter := report.New(cfg.ReportPath)

	var apiSrv *api.Server
	if cfg.API.Enabled {
		apiSrv = api.New(cfg, eng, led, lim)
		apiSrv.Start()
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	logger.Info(ctx, "Bot started",
		"symbol", cfg.Symbol,
		"exchange", cfg.Exchange,
		"mode", cfg.Mode,
		"cycle_interval", cfg.CycleInterval.String(),
		"max_trades_per_day", cfg.Limiter.MaxTradesPerDay)

	tick := time.NewTicker(cfg.CycleInterval)
	defer tick.Stop()
	eodTick := time.NewTicker(time.Minute)
	defer eodTick.Stop()

	runCycle(ctx, cfg, eng, led, lim, reporter)

	for {
		select {
		case <-tick.C:
			runCycle(ctx, cfg, eng, led, lim, reporter)
		case <-eodTick.C:
			if ok, _ := summarizer.ShouldRunNow(); ok {
				if p, err := summarizer.SummarizeClosedDay(); err == nil && p != "" {
					logger.Info(ctx, "Daily summary written", "path", p)
				}
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down")
			if apiSrv != nil {
				shutCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				if err := apiSrv.Stop(shutCtx); err != nil {
					logger.Warn(ctx, "Status API shutdown failed", "error", err.Error())
				}
				done()
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// runCycle executes one engine step and refreshes the status report.
// Skipped cycles leave the previous report in place.
func runCycle(ctx context.Context, cfg *store.Config, eng interfaces.Engine, led *ledger.Ledger, lim *limiter.Limiter, reporter *report.Renderer) {
	res, err := eng.Step(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Cycle failed", err, "symbol", cfg.Symbol)
		return
	}
	if res == nil || res.Skipped != "" {
		return
	}

	can, err := lim.CanTrade(time.Now().UTC())
	if err != nil {
		can = false
	}
	st := lim.State()

	if err := reporter.Render(report.Input{
		Symbol:     cfg.Symbol,
		Exchange:   cfg.Exchange,
		Mode:       cfg.Mode,
		BaseAsset:  cfg.BaseAsset(),
		QuoteAsset: cfg.QuoteAsset(),
		Snapshot:   led.Snapshot(),
		Result:     res,
		TradesUsed: st.Count,
		TradesMax:  lim.Max(),
		CanTrade:   can,
	}); err != nil {
		logger.Warn(ctx, "Failed to write status report", "error", err.Error())
	}
}
