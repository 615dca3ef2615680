package fallback

import (
	"context"
	"testing"

	"crypto-trading-bot/internal/types"
)

var pivots = types.PivotLevels{PP: 100, R1: 110, R2: 120, S1: 90, S2: 80}

func recommend(t *testing.T, inds types.IndicatorSet) types.Recommendation {
	t.Helper()
	rec, err := New().Recommend(context.Background(), &types.MarketSnapshot{CurrentPrice: 100}, inds, pivots, types.AdvisorContext{})
	if err != nil {
		t.Fatalf("Fallback must never fail, got %v", err)
	}
	return rec
}

func TestTargetsMapToPivots(t *testing.T) {
	rec := recommend(t, types.IndicatorSet{RSI: 50})

	if rec.BuyTarget != 90 {
		t.Errorf("Expected buy target S1=90, got %f", rec.BuyTarget)
	}
	if rec.SellTarget != 110 {
		t.Errorf("Expected sell target R1=110, got %f", rec.SellTarget)
	}
	if rec.StopLoss != 80 {
		t.Errorf("Expected stop loss S2=80, got %f", rec.StopLoss)
	}
	if rec.TakeProfit != 120 {
		t.Errorf("Expected take profit R2=120, got %f", rec.TakeProfit)
	}
	if rec.Confidence != 50 {
		t.Errorf("Expected fixed confidence 50, got %f", rec.Confidence)
	}
	if rec.Source != types.SourceFallback {
		t.Errorf("Expected source FALLBACK, got %s", rec.Source)
	}
}

func TestActionFromRSI(t *testing.T) {
	if rec := recommend(t, types.IndicatorSet{RSI: 25}); rec.Action != types.Buy {
		t.Errorf("Expected BUY for RSI 25, got %s", rec.Action)
	}
	if rec := recommend(t, types.IndicatorSet{RSI: 75}); rec.Action != types.Sell {
		t.Errorf("Expected SELL for RSI 75, got %s", rec.Action)
	}
	if rec := recommend(t, types.IndicatorSet{RSI: 50}); rec.Action != types.Hold {
		t.Errorf("Expected HOLD for RSI 50, got %s", rec.Action)
	}
}

func TestActionFromCrossover(t *testing.T) {
	if rec := recommend(t, types.IndicatorSet{RSI: 50, Cross: types.CrossUp}); rec.Action != types.Buy {
		t.Errorf("Expected BUY for crossover up, got %s", rec.Action)
	}
	if rec := recommend(t, types.IndicatorSet{RSI: 50, Cross: types.CrossDown}); rec.Action != types.Sell {
		t.Errorf("Expected SELL for crossover down, got %s", rec.Action)
	}
	// RSI extremes win over the crossover.
	if rec := recommend(t, types.IndicatorSet{RSI: 25, Cross: types.CrossDown}); rec.Action != types.Buy {
		t.Errorf("Expected RSI extreme to take precedence, got %s", rec.Action)
	}
}
