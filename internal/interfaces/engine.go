package interfaces

import (
	"context"

	"crypto-trading-bot/internal/types"
)

type Engine interface {
	// Step runs one decision cycle. An overlapping call is skipped, not
	// queued; the result then carries a Skipped marker.
	Step(ctx context.Context) (*types.StepResult, error)

	// LastResult returns the most recent completed cycle, nil before the
	// first one. Serves the status API.
	LastResult() *types.StepResult
}
