package engine

import (
	"fmt"

	"crypto-trading-bot/internal/types"
)

const rsiOversold = 30.0

// evalInput is everything a decision depends on, gathered up front so
// the transition rules stay pure and directly testable.
type evalInput struct {
	HasPosition bool
	CanTrade    bool
	TradesUsed  int
	TradesMax   int
	Price       float64
	Targets     targets
	Rec         types.Recommendation
	Inds        types.IndicatorSet
}

// decision is the outcome of one evaluation, before any side effects.
type decision struct {
	Action string // BUY | SELL | HOLD
	Cause  string // canonical trigger, e.g. STOP_LOSS, RSI_OVERSOLD
	Reason string // human-readable detail for logs
	Tag    string // order tag: LLM | RSI | SMA | SL | TP
}

// targets are the exit levels for the open position, refreshed from each
// recommendation and seeded from config percentages when the
// recommendation carries no usable level.
type targets struct {
	StopLoss   float64
	TakeProfit float64
	BuyTarget  float64
	SellTarget float64
}

func evaluate(in evalInput) decision {
	if in.HasPosition {
		return evaluateExit(in)
	}
	return evaluateEntry(in)
}

func evaluateEntry(in evalInput) decision {
	var d decision
	switch {
	case in.Rec.WantsBuy():
		d = decision{Action: types.Buy, Cause: "ADVISOR_BUY", Tag: "LLM",
			Reason: fmt.Sprintf("advisor %s (confidence %.0f)", in.Rec.Action, in.Rec.Confidence)}
	case in.Inds.RSI < rsiOversold:
		d = decision{Action: types.Buy, Cause: "RSI_OVERSOLD", Tag: "RSI",
			Reason: fmt.Sprintf("RSI oversold at %.1f", in.Inds.RSI)}
	case in.Inds.Cross == types.CrossUp:
		d = decision{Action: types.Buy, Cause: "SMA_CROSS_UP", Tag: "SMA",
			Reason: "SMA short crossed above SMA long"}
	default:
		return decision{Action: types.Hold,
			Reason: fmt.Sprintf("no entry signal (advisor %s, RSI %.1f, cross %s)", in.Rec.Action, in.Inds.RSI, in.Inds.Cross)}
	}
	return capGate(d, in)
}

func evaluateExit(in evalInput) decision {
	var d decision
	switch {
	// Stop-loss wins when both levels are crossed in the same evaluation.
	case in.Targets.StopLoss > 0 && in.Price <= in.Targets.StopLoss:
		d = decision{Action: types.Sell, Cause: "STOP_LOSS", Tag: "SL",
			Reason: fmt.Sprintf("stop loss hit: price %.2f <= %.2f", in.Price, in.Targets.StopLoss)}
	case in.Targets.TakeProfit > 0 && in.Price >= in.Targets.TakeProfit:
		d = decision{Action: types.Sell, Cause: "TAKE_PROFIT", Tag: "TP",
			Reason: fmt.Sprintf("take profit hit: price %.2f >= %.2f", in.Price, in.Targets.TakeProfit)}
	case in.Rec.WantsSell():
		d = decision{Action: types.Sell, Cause: "ADVISOR_SELL", Tag: "LLM",
			Reason: fmt.Sprintf("advisor %s (confidence %.0f)", in.Rec.Action, in.Rec.Confidence)}
	default:
		return decision{Action: types.Hold, Reason: "position held, no exit trigger"}
	}
	return capGate(d, in)
}

// capGate suppresses any order once the daily cap is spent, keeping the
// name of the trigger it blocked in the reason.
func capGate(d decision, in evalInput) decision {
	if in.CanTrade {
		return d
	}
	return decision{Action: types.Hold, Cause: "CAP_REACHED",
		Reason: fmt.Sprintf("%s suppressed: daily trade cap reached (%d/%d)", d.Cause, in.TradesUsed, in.TradesMax)}
}

// sizeBuy converts the configured fraction of the quote balance into a
// base quantity at the current price.
func sizeBuy(quoteBalance, fraction, price float64) float64 {
	if price <= 0 || quoteBalance <= 0 {
		return 0
	}
	return quoteBalance * fraction / price
}

// targetsForEntry derives the exit levels for a fresh position. Levels
// the recommendation left unusable fall back to the configured
// percentages off the entry price.
func targetsForEntry(entry float64, rec types.Recommendation, stopLossPct, takeProfitPct float64) targets {
	t := targets{
		StopLoss:   rec.StopLoss,
		TakeProfit: rec.TakeProfit,
		BuyTarget:  rec.BuyTarget,
		SellTarget: rec.SellTarget,
	}
	if t.StopLoss <= 0 || t.StopLoss >= entry {
		t.StopLoss = entry * (1 - stopLossPct/100)
	}
	if t.TakeProfit <= entry {
		t.TakeProfit = entry * (1 + takeProfitPct/100)
	}
	return t
}

// refreshTargets folds a newer recommendation into the current exit
// levels. A level only moves when the new value is usable against the
// current price, so a garbled recommendation never drops the stop.
func refreshTargets(cur targets, price float64, rec types.Recommendation) targets {
	out := cur
	if rec.StopLoss > 0 && rec.StopLoss < price {
		out.StopLoss = rec.StopLoss
	}
	if rec.TakeProfit > price {
		out.TakeProfit = rec.TakeProfit
	}
	if rec.BuyTarget > 0 {
		out.BuyTarget = rec.BuyTarget
	}
	if rec.SellTarget > 0 {
		out.SellTarget = rec.SellTarget
	}
	return out
}
