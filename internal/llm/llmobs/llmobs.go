package llmobs

import (
	"context"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/trace"
	"crypto-trading-bot/internal/types"
)

// observableAdvisor wraps an Advisor with observability (logging & tracing)
type observableAdvisor struct {
	advisor interfaces.Advisor
}

// Compile-time interface check
var _ interfaces.Advisor = (*observableAdvisor)(nil)

// Wrap wraps an advisor with observability middleware
func Wrap(advisor interfaces.Advisor) interfaces.Advisor {
	return &observableAdvisor{
		advisor: advisor,
	}
}

// Recommend requests a recommendation with observability
func (oa *observableAdvisor) Recommend(
	ctx context.Context,
	snap *types.MarketSnapshot,
	inds types.IndicatorSet,
	pivots types.PivotLevels,
	pctx types.AdvisorContext,
) (types.Recommendation, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Recommend")
	defer span.End()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting recommendation",
		"symbol", snap.Symbol,
		"price", snap.CurrentPrice,
		"rsi", inds.RSI,
	)

	rec, err := oa.advisor.Recommend(ctx, snap, inds, pivots, pctx)
	if err != nil {
		// Use ErrorWithErrSkip(1) to report the actual caller
		logger.ErrorWithErrSkip(ctx, 1, "Failed to get recommendation", err,
			"symbol", snap.Symbol,
			"price", snap.CurrentPrice,
		)
		return types.Recommendation{}, err
	}

	// Log recommendation result - use InfoSkip(1) to report the actual caller
	logger.InfoSkip(ctx, 1, "Recommendation received",
		"symbol", snap.Symbol,
		"action", rec.Action,
		"source", rec.Source,
		"confidence", rec.Confidence,
		"stop_loss", rec.StopLoss,
		"take_profit", rec.TakeProfit,
	)

	return rec, nil
}
