package engineobs

import (
	"context"
	"time"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/trace"
	"crypto-trading-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Step(ctx context.Context) (*types.StepResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting trading cycle")

	result, err := oe.engine.Step(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Trading cycle failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	if result.Skipped != "" {
		logger.WarnSkip(ctx, 1, "Trading cycle skipped",
			"reason", result.Skipped,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return result, nil
	}

	logger.InfoSkip(ctx, 1, "Trading cycle completed",
		"symbol", result.Symbol,
		"state", result.State,
		"action", result.Decision.Action,
		"confidence", result.Decision.Confidence,
		"reason", result.Decision.Reason,
		"source", result.Rec.Source,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

func (oe *observableEngine) LastResult() *types.StepResult {
	return oe.engine.LastResult()
}
