package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/ledger"
	"crypto-trading-bot/internal/limiter"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/store"
	"crypto-trading-bot/internal/ta"
	"crypto-trading-bot/internal/tradelog"
	"crypto-trading-bot/internal/types"
)

// MACD context for the advisor prompt uses the standard EMA pair.
const (
	emaFastPeriod = 12
	emaSlowPeriod = 26
)

// Engine drives one trading decision per cycle for a single pair. It
// owns no market state of its own: balances and the position live in
// the ledger, the daily budget in the limiter.
type Engine struct {
	cfg       *store.Config
	market    interfaces.MarketDataSource
	exch      interfaces.Exchange
	advisor   interfaces.Advisor
	lim       *limiter.Limiter
	led       *ledger.Ledger
	sentiment interfaces.SentimentProvider // nil when news is disabled

	// stepMu serializes cycles; an overlapping tick is skipped, never
	// queued behind a slow cycle.
	stepMu sync.Mutex

	mu         sync.Mutex
	rec        types.Recommendation
	recAt      time.Time
	tgt        targets
	prevSnap   *types.MarketSnapshot
	prevInds   types.IndicatorSet
	prevPivots types.PivotLevels
	lastResult *types.StepResult

	now func() time.Time
}

var _ interfaces.Engine = (*Engine)(nil)

func newEngine(cfg *store.Config, p Params) *Engine {
	return &Engine{
		cfg:       cfg,
		market:    p.Market,
		exch:      p.Exchange,
		advisor:   p.Advisor,
		lim:       p.Limiter,
		led:       p.Ledger,
		sentiment: p.Sentiment,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Step runs one full decision cycle: refresh market data and the
// recommendation, evaluate the transition rules, and apply the outcome.
// The whole cycle runs under the configured deadline; an expired cycle
// is abandoned without touching any state and retried next tick.
func (e *Engine) Step(ctx context.Context) (*types.StepResult, error) {
	if !e.stepMu.TryLock() {
		logger.Warn(ctx, "Previous cycle still running, skipping tick", "symbol", e.cfg.Symbol)
		return &types.StepResult{Symbol: e.cfg.Symbol, State: e.state(), Skipped: "previous cycle still running"}, nil
	}
	defer e.stepMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.CycleDeadline)
	defer cancel()

	now := e.now()

	// The snapshot and balance fetches are independent HTTP calls; the
	// advisor refreshes on its own slower cadence against the previous
	// snapshot so a slow model never delays the market fetch.
	var (
		wg       sync.WaitGroup
		snap     *types.MarketSnapshot
		snapErr  error
		balances map[string]float64
		balErr   error
		freshRec types.Recommendation
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		snap, snapErr = e.market.Snapshot(ctx, e.cfg.Symbol)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		balances, balErr = e.exch.Balances(ctx)
	}()

	refreshing := e.needsRecommendation(now) && e.previousSnapshot() != nil
	if refreshing {
		wg.Add(1)
		go func() {
			defer wg.Done()
			freshRec = e.refreshRecommendation(ctx)
		}()
	}
	wg.Wait()

	if snapErr != nil {
		return nil, fmt.Errorf("cycle abandoned, market data unavailable: %w", snapErr)
	}
	if balErr != nil {
		logger.Warn(ctx, "Balance fetch failed, reconcile skipped this cycle", "error", balErr)
	}
	if refreshing {
		e.adoptRecommendation(freshRec, now)
	}

	price := snap.CurrentPrice

	inds, pivots, indErr := e.computeIndicators(snap)
	if indErr != nil {
		logger.Warn(ctx, "Insufficient candle history, holding",
			"error", indErr, "candles_48h", len(snap.Window48h))
		res := &types.StepResult{
			Symbol:   e.cfg.Symbol,
			State:    e.state(),
			Price:    price,
			Time:     now.Unix(),
			Decision: types.Decision{Action: types.Hold, Reason: "insufficient candle history"},
		}
		e.storeResult(res)
		return res, nil
	}

	// The first cycle has no previous snapshot for the advisor, so
	// prime the recommendation synchronously this once.
	if e.needsRecommendation(now) && !refreshing {
		e.adoptRecommendation(e.recommend(ctx, snap, inds, pivots), now)
	}
	rec := e.currentRecommendation()

	canTrade, limErr := e.lim.CanTrade(now)
	if limErr != nil {
		logger.ErrorWithErr(ctx, "Trade limiter state unavailable, trading blocked this cycle", limErr)
		canTrade = false
	}

	stateBefore := e.state()
	d := evaluate(evalInput{
		HasPosition: e.led.HasPosition(),
		CanTrade:    canTrade,
		TradesUsed:  e.lim.State().Count,
		TradesMax:   e.lim.Max(),
		Price:       price,
		Targets:     e.currentTargets(),
		Rec:         rec,
		Inds:        inds,
	})

	logger.Decision(ctx, e.cfg.Symbol, d.Action, rec.Confidence, d.Reason,
		"state", stateBefore, "source", rec.Source, "price", price)
	_ = tradelog.AppendDecision(tradelog.DecisionEntry{
		Symbol:     e.cfg.Symbol,
		State:      stateBefore,
		Action:     d.Action,
		Reason:     d.Reason,
		Source:     rec.Source,
		Confidence: rec.Confidence,
		Price:      price,
		Indicators: map[string]float64{
			"RSI":       inds.RSI,
			"SMA_SHORT": inds.SMAShort,
			"SMA_LONG":  inds.SMALong,
			"MACD_HIST": inds.MACDHist,
			"PP":        pivots.PP,
			"R1":        pivots.R1,
			"S1":        pivots.S1,
		},
	})

	res := &types.StepResult{
		Symbol:     e.cfg.Symbol,
		Decision:   types.Decision{Action: d.Action, Reason: d.Reason, Confidence: rec.Confidence},
		Price:      price,
		Time:       now.Unix(),
		Rec:        rec,
		Indicators: inds,
		Pivots:     pivots,
	}

	switch d.Action {
	case types.Buy:
		e.executeBuy(ctx, d, price, rec, res)
	case types.Sell:
		e.executeSell(ctx, d, price, rec, res)
	}

	if balErr == nil {
		e.led.Reconcile(ctx, balances)
	}

	res.State = e.state()
	res.Targets = types.ExitTargets(e.currentTargets())
	e.storeCycle(snap, inds, pivots, res)
	return res, nil
}

// LastResult returns the most recent completed cycle, nil before the
// first one.
func (e *Engine) LastResult() *types.StepResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult
}

// executeBuy places the entry order sized as the configured fraction of
// the quote balance. The daily budget is charged before the order goes
// out: a persistence failure then blocks the order, and an exchange
// rejection refunds the charge so the observable count never moves for
// an order that did not execute.
func (e *Engine) executeBuy(ctx context.Context, d decision, price float64, rec types.Recommendation, res *types.StepResult) {
	quote := e.led.Balance(e.cfg.QuoteAsset())
	qty := sizeBuy(quote, e.cfg.Trading.BuyFraction, price)
	if qty <= 0 {
		res.Decision.Action = types.Hold
		res.Decision.Reason = d.Reason + " | skipped: no quote balance to spend"
		logger.Warn(ctx, "BUY signal with no quote balance", "quote_balance", quote)
		return
	}

	if err := e.lim.RecordTrade("BUY"); err != nil {
		res.Decision.Action = types.Hold
		res.Decision.Reason = d.Reason + " | blocked: trade state persist failed"
		logger.ErrorWithErr(ctx, "Trade state persist failed, order not sent", err, "side", "BUY")
		return
	}

	fill, err := e.exch.PlaceMarketOrder(ctx, types.OrderReq{
		Symbol: e.cfg.Symbol, Side: "BUY", Qty: qty, Tag: d.Tag,
	})
	if err != nil {
		if rerr := e.lim.Refund("BUY"); rerr != nil {
			logger.ErrorWithErr(ctx, "Failed to refund trade budget after rejection", rerr)
		}
		res.Decision.Reason = d.Reason + " | order_err:" + err.Error()
		logger.ErrorWithErr(ctx, "BUY order rejected", err, "symbol", e.cfg.Symbol, "qty", qty, "price", price)
		return
	}

	if err := e.led.ApplyFill(ctx, fill, d.Cause); err != nil {
		logger.ErrorWithErr(ctx, "Ledger refused BUY fill", err, "order_id", fill.OrderID)
	}
	e.setTargets(targetsForEntry(fill.Price, rec, e.cfg.Trading.StopLossPct, e.cfg.Trading.TakeProfitPct))

	res.Fill = &fill
	logger.Trade(ctx, e.cfg.Symbol, "BUY", fill.Qty, fill.Price, fill.OrderID,
		"tag", d.Tag, "confidence", rec.Confidence, "simulated", fill.Simulated)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:     e.cfg.Symbol,
		Side:       "BUY",
		OrderID:    fill.OrderID,
		Reason:     d.Cause,
		Qty:        fill.Qty,
		Price:      fill.Price,
		Confidence: rec.Confidence,
		Source:     rec.Source,
		Simulated:  fill.Simulated,
	})
}

// executeSell closes the full position; partial exits are not a thing
// here. Charge-then-refund mirrors executeBuy.
func (e *Engine) executeSell(ctx context.Context, d decision, price float64, rec types.Recommendation, res *types.StepResult) {
	pos := e.led.Position()
	if pos == nil {
		logger.Warn(ctx, "SELL decision with no open position", "reason", d.Reason)
		res.Decision.Action = types.Hold
		return
	}

	if err := e.lim.RecordTrade("SELL"); err != nil {
		res.Decision.Action = types.Hold
		res.Decision.Reason = d.Reason + " | blocked: trade state persist failed"
		logger.ErrorWithErr(ctx, "Trade state persist failed, order not sent", err, "side", "SELL")
		return
	}

	fill, err := e.exch.PlaceMarketOrder(ctx, types.OrderReq{
		Symbol: e.cfg.Symbol, Side: "SELL", Qty: pos.Qty, Tag: d.Tag,
	})
	if err != nil {
		if rerr := e.lim.Refund("SELL"); rerr != nil {
			logger.ErrorWithErr(ctx, "Failed to refund trade budget after rejection", rerr)
		}
		res.Decision.Reason = d.Reason + " | order_err:" + err.Error()
		logger.ErrorWithErr(ctx, "SELL order rejected", err, "symbol", e.cfg.Symbol, "qty", pos.Qty, "price", price)
		return
	}

	realizedBefore := e.led.RealizedPnL()
	if err := e.led.ApplyFill(ctx, fill, d.Cause); err != nil {
		logger.ErrorWithErr(ctx, "Ledger refused SELL fill", err, "order_id", fill.OrderID)
	}
	e.setTargets(targets{})

	res.Fill = &fill
	realized := e.led.RealizedPnL() - realizedBefore
	logger.Trade(ctx, e.cfg.Symbol, "SELL", fill.Qty, fill.Price, fill.OrderID,
		"tag", d.Tag, "reason", d.Cause, "realized_pnl", realized, "simulated", fill.Simulated)
	_ = tradelog.Append(tradelog.Entry{
		Symbol:      e.cfg.Symbol,
		Side:        "SELL",
		OrderID:     fill.OrderID,
		Reason:      d.Cause,
		Qty:         fill.Qty,
		Price:       fill.Price,
		Confidence:  rec.Confidence,
		Source:      rec.Source,
		RealizedPnL: realized,
		Simulated:   fill.Simulated,
	})
}

// computeIndicators derives the per-cycle indicator set from the 48h
// window and the pivot levels from the 24h window.
func (e *Engine) computeIndicators(snap *types.MarketSnapshot) (types.IndicatorSet, types.PivotLevels, error) {
	closes := ta.Closes(snap.Window48h)

	smaShort, err := ta.SMA(closes, e.cfg.Indicators.SMAShort)
	if err != nil {
		return types.IndicatorSet{}, types.PivotLevels{}, err
	}
	smaLong, err := ta.SMA(closes, e.cfg.Indicators.SMALong)
	if err != nil {
		return types.IndicatorSet{}, types.PivotLevels{}, err
	}
	rsi, err := ta.RSI(closes, e.cfg.Indicators.RSIPeriod)
	if err != nil {
		return types.IndicatorSet{}, types.PivotLevels{}, err
	}
	cross, err := ta.Crossover(closes, e.cfg.Indicators.SMAShort, e.cfg.Indicators.SMALong)
	if err != nil {
		return types.IndicatorSet{}, types.PivotLevels{}, err
	}

	fast, slow, macdHist := ta.ContextIndicators(closes, emaFastPeriod, emaSlowPeriod)
	inds := types.IndicatorSet{
		SMAShort:   smaShort,
		SMALong:    smaLong,
		RSI:        rsi,
		Cross:      cross,
		EMAFast:    fast,
		EMASlow:    slow,
		MACDHist:   macdHist,
		Volatility: ta.Volatility(snap.Window48h),
	}
	return inds, pivotWindow(snap.Window24h), nil
}

// pivotWindow computes the classic pivot levels from the previous
// period's range: highest high, lowest low, last close of the window.
func pivotWindow(candles []types.Candle) types.PivotLevels {
	if len(candles) == 0 {
		return types.PivotLevels{}
	}
	high, low := candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return ta.PivotPoints(high, low, candles[len(candles)-1].Close)
}

// recommend asks the advisor, which always answers (the bridge falls
// back internally). An error here means even the fallback is missing,
// so hold.
func (e *Engine) recommend(ctx context.Context, snap *types.MarketSnapshot, inds types.IndicatorSet, pivots types.PivotLevels) types.Recommendation {
	rec, err := e.advisor.Recommend(ctx, snap, inds, pivots, e.advisorContext(ctx))
	if err != nil {
		logger.ErrorWithErr(ctx, "Advisor unavailable, holding", err)
		return types.Recommendation{
			Action:    types.Hold,
			Reasoning: "advisor unavailable",
			Source:    types.SourceFallback,
			At:        e.now().Unix(),
		}
	}
	return rec
}

// refreshRecommendation runs the advisor against the previous cycle's
// snapshot while the current one is still being fetched.
func (e *Engine) refreshRecommendation(ctx context.Context) types.Recommendation {
	e.mu.Lock()
	snap, inds, pivots := e.prevSnap, e.prevInds, e.prevPivots
	e.mu.Unlock()
	return e.recommend(ctx, snap, inds, pivots)
}

func (e *Engine) advisorContext(ctx context.Context) types.AdvisorContext {
	pctx := types.AdvisorContext{
		QuoteBalance: e.led.Balance(e.cfg.QuoteAsset()),
		BaseBalance:  e.led.Balance(e.cfg.BaseAsset()),
		Position:     e.led.Position(),
		RealizedPnL:  e.led.RealizedPnL(),
	}
	if e.sentiment != nil {
		if s, err := e.sentiment.GetSentiment(ctx, e.cfg.Symbol); err == nil {
			pctx.Sentiment = &s
		}
	}
	return pctx
}

func (e *Engine) state() string {
	if e.led.HasPosition() {
		return types.StatePositionOpen
	}
	return types.StateIdle
}

func (e *Engine) needsRecommendation(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recAt.IsZero() || now.Sub(e.recAt) >= e.cfg.LLM.RefreshInterval
}

// adoptRecommendation installs a fresh recommendation and, with a
// position open, folds its levels into the exit targets.
func (e *Engine) adoptRecommendation(rec types.Recommendation, now time.Time) {
	hasPos := e.led.HasPosition()
	e.mu.Lock()
	e.rec = rec
	e.recAt = now
	if hasPos && e.prevSnap != nil {
		e.tgt = refreshTargets(e.tgt, e.prevSnap.CurrentPrice, rec)
	}
	e.mu.Unlock()
}

func (e *Engine) currentRecommendation() types.Recommendation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec
}

func (e *Engine) currentTargets() targets {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tgt
}

func (e *Engine) setTargets(t targets) {
	e.mu.Lock()
	e.tgt = t
	e.mu.Unlock()
}

func (e *Engine) previousSnapshot() *types.MarketSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prevSnap
}

func (e *Engine) storeCycle(snap *types.MarketSnapshot, inds types.IndicatorSet, pivots types.PivotLevels, res *types.StepResult) {
	e.mu.Lock()
	e.prevSnap = snap
	e.prevInds = inds
	e.prevPivots = pivots
	e.lastResult = res
	e.mu.Unlock()
}

func (e *Engine) storeResult(res *types.StepResult) {
	e.mu.Lock()
	e.lastResult = res
	e.mu.Unlock()
}
