package llm

import (
	"context"
	"time"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/types"
)

// Bridge is the advisor the engine talks to. It tries the AI backend
// under a bounded timeout and degrades to the deterministic calculator
// on any failure, so a recommendation is always produced. Callers tell
// the two paths apart only through the Source field.
type Bridge struct {
	primary  interfaces.Advisor
	fallback interfaces.Advisor
	timeout  time.Duration
}

// Compile-time interface check
var _ interfaces.Advisor = (*Bridge)(nil)

// NewBridge wires a primary advisor (nil for none) in front of the
// fallback calculator.
func NewBridge(primary, fallback interfaces.Advisor, timeout time.Duration) *Bridge {
	return &Bridge{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
	}
}

// Recommend never returns an error: any primary failure is absorbed and
// answered by the fallback.
func (b *Bridge) Recommend(ctx context.Context, snap *types.MarketSnapshot, inds types.IndicatorSet, pivots types.PivotLevels, pctx types.AdvisorContext) (types.Recommendation, error) {
	if b.primary != nil {
		cctx, cancel := context.WithTimeout(ctx, b.timeout)
		rec, err := b.primary.Recommend(cctx, snap, inds, pivots, pctx)
		cancel()
		if err == nil {
			rec.Source = types.SourceAI
			return rec, nil
		}
		logger.Warn(ctx, "AI advisor unavailable, using rule-based fallback",
			"symbol", snap.Symbol,
			"error", err.Error())
	}

	rec, _ := b.fallback.Recommend(ctx, snap, inds, pivots, pctx)
	rec.Source = types.SourceFallback
	return rec, nil
}
