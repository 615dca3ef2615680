package fallback

import (
	"context"
	"fmt"
	"time"

	"crypto-trading-bot/internal/types"
)

// Calculator produces a deterministic recommendation from pivots and
// indicators. It is the advisor of last resort: pure, instant, and
// incapable of failing.
type Calculator struct{}

func New() *Calculator { return &Calculator{} }

// Recommend maps the pivot levels straight onto trade targets and derives
// the action from RSI extremes, then the SMA crossover.
func (c *Calculator) Recommend(ctx context.Context, snap *types.MarketSnapshot, inds types.IndicatorSet, pivots types.PivotLevels, pctx types.AdvisorContext) (types.Recommendation, error) {
	action := types.Hold
	trigger := "no clear signal"
	switch {
	case inds.RSI < 30:
		action = types.Buy
		trigger = fmt.Sprintf("RSI %.1f oversold", inds.RSI)
	case inds.RSI > 70:
		action = types.Sell
		trigger = fmt.Sprintf("RSI %.1f overbought", inds.RSI)
	case inds.Cross == types.CrossUp:
		action = types.Buy
		trigger = "SMA crossover up"
	case inds.Cross == types.CrossDown:
		action = types.Sell
		trigger = "SMA crossover down"
	}

	return types.Recommendation{
		Action:     action,
		Confidence: 50,
		StopLoss:   pivots.S2,
		TakeProfit: pivots.R2,
		BuyTarget:  pivots.S1,
		SellTarget: pivots.R1,
		Reasoning:  fmt.Sprintf("Rule-based targets from pivot levels (%s)", trigger),
		Source:     types.SourceFallback,
		At:         time.Now().Unix(),
	}, nil
}
