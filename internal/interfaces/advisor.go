package interfaces

import (
	"context"

	"crypto-trading-bot/internal/types"
)

type Advisor interface {
	Recommend(ctx context.Context, snap *types.MarketSnapshot, inds types.IndicatorSet, pivots types.PivotLevels, pctx types.AdvisorContext) (types.Recommendation, error)
}
