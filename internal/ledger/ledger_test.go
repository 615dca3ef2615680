package ledger

import (
	"context"
	"math"
	"testing"

	"crypto-trading-bot/internal/types"
)

func testLedger() *Ledger {
	return New("BTC", "USDT", map[string]float64{"USDT": 10000})
}

func buyFill(price, qty float64) types.Fill {
	return types.Fill{OrderID: "o1", Symbol: "BTCUSDT", Side: "BUY", Price: price, Qty: qty, Ts: 1700000000}
}

func sellFill(price, qty float64) types.Fill {
	return types.Fill{OrderID: "o2", Symbol: "BTCUSDT", Side: "SELL", Price: price, Qty: qty, Ts: 1700000600}
}

func TestApplyBuyOpensPosition(t *testing.T) {
	l := testLedger()
	ctx := context.Background()

	if err := l.ApplyFill(ctx, buyFill(50000, 0.02), "rsi oversold"); err != nil {
		t.Fatalf("ApplyFill failed: %v", err)
	}

	if got := l.Balance("USDT"); math.Abs(got-9000) > 1e-9 {
		t.Errorf("Expected USDT balance 9000, got %f", got)
	}
	if got := l.Balance("BTC"); math.Abs(got-0.02) > 1e-12 {
		t.Errorf("Expected BTC balance 0.02, got %f", got)
	}
	pos := l.Position()
	if pos == nil {
		t.Fatal("Expected open position")
	}
	if pos.EntryPrice != 50000 {
		t.Errorf("Expected entry price 50000, got %f", pos.EntryPrice)
	}
}

func TestApplySellRealizesPnL(t *testing.T) {
	l := testLedger()
	ctx := context.Background()

	l.ApplyFill(ctx, buyFill(50000, 0.02), "entry")
	if err := l.ApplyFill(ctx, sellFill(55000, 0.02), "take profit"); err != nil {
		t.Fatalf("ApplyFill failed: %v", err)
	}

	wantPnL := (55000.0 - 50000.0) * 0.02
	if got := l.RealizedPnL(); math.Abs(got-wantPnL) > 1e-9 {
		t.Errorf("Expected realized PnL %f, got %f", wantPnL, got)
	}
	if l.HasPosition() {
		t.Error("Expected position to be closed")
	}
	if got := l.Balance("USDT"); math.Abs(got-10100) > 1e-9 {
		t.Errorf("Expected USDT balance 10100, got %f", got)
	}
	if got := l.Balance("BTC"); got != 0 {
		t.Errorf("Expected BTC balance 0, got %f", got)
	}
}

func TestSecondBuyRejected(t *testing.T) {
	l := testLedger()
	ctx := context.Background()

	l.ApplyFill(ctx, buyFill(50000, 0.02), "entry")
	if err := l.ApplyFill(ctx, buyFill(48000, 0.02), "entry"); err == nil {
		t.Fatal("Expected second buy to be rejected while position is open")
	}
	if got := l.Balance("USDT"); math.Abs(got-9000) > 1e-9 {
		t.Errorf("Expected balances unchanged after rejection, got USDT %f", got)
	}
}

func TestSellWithoutPositionRejected(t *testing.T) {
	l := testLedger()

	if err := l.ApplyFill(context.Background(), sellFill(50000, 0.02), "exit"); err == nil {
		t.Fatal("Expected sell without position to be rejected")
	}
	if got := l.Balance("USDT"); got != 10000 {
		t.Errorf("Expected USDT balance unchanged at 10000, got %f", got)
	}
}

func TestBuyBeyondBalanceRejected(t *testing.T) {
	l := testLedger()

	if err := l.ApplyFill(context.Background(), buyFill(50000, 1.0), "entry"); err == nil {
		t.Fatal("Expected buy beyond tracked balance to be rejected")
	}
	if got := l.Balance("USDT"); got != 10000 {
		t.Errorf("Expected USDT balance unchanged, got %f", got)
	}
	if l.HasPosition() {
		t.Error("Expected no position after rejected buy")
	}
}

func TestReconcileFlagsDriftWithoutCorrecting(t *testing.T) {
	l := testLedger()

	drifts := l.Reconcile(context.Background(), map[string]float64{"USDT": 9950, "BTC": 0})
	if len(drifts) != 1 {
		t.Fatalf("Expected 1 drift, got %d", len(drifts))
	}
	if drifts[0].Asset != "USDT" {
		t.Errorf("Expected USDT drift, got %s", drifts[0].Asset)
	}
	if math.Abs(drifts[0].Delta-(-50)) > 1e-9 {
		t.Errorf("Expected delta -50, got %f", drifts[0].Delta)
	}
	// Ledger keeps its own number.
	if got := l.Balance("USDT"); got != 10000 {
		t.Errorf("Expected ledger balance untouched at 10000, got %f", got)
	}
}

func TestReconcileIgnoresFloatNoise(t *testing.T) {
	l := testLedger()

	drifts := l.Reconcile(context.Background(), map[string]float64{"USDT": 10000.000001, "BTC": 0})
	if len(drifts) != 0 {
		t.Errorf("Expected no drift for float noise, got %d", len(drifts))
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	l := testLedger()
	ctx := context.Background()
	l.ApplyFill(ctx, buyFill(50000, 0.02), "entry")

	snap := l.Snapshot()
	snap.Balances["USDT"] = 0
	snap.Position.EntryPrice = 1
	if len(snap.Trades) > 0 {
		snap.Trades[0].Price = 1
	}

	if got := l.Balance("USDT"); math.Abs(got-9000) > 1e-9 {
		t.Errorf("Snapshot mutation leaked into ledger balances: %f", got)
	}
	if got := l.Position().EntryPrice; got != 50000 {
		t.Errorf("Snapshot mutation leaked into ledger position: %f", got)
	}
	if got := l.Snapshot().Trades[0].Price; got != 50000 {
		t.Errorf("Snapshot mutation leaked into trade history: %f", got)
	}
}

func TestStats(t *testing.T) {
	l := testLedger()
	ctx := context.Background()

	l.ApplyFill(ctx, buyFill(50000, 0.02), "entry")
	l.ApplyFill(ctx, sellFill(55000, 0.02), "take profit") // +100
	l.ApplyFill(ctx, buyFill(50000, 0.02), "entry")
	l.ApplyFill(ctx, sellFill(49000, 0.02), "stop loss") // -20

	stats := l.Snapshot().Stats
	if stats.Closed != 2 {
		t.Fatalf("Expected 2 closed trades, got %d", stats.Closed)
	}
	if stats.Wins != 1 || stats.Losses != 1 {
		t.Errorf("Expected 1 win / 1 loss, got %d / %d", stats.Wins, stats.Losses)
	}
	if math.Abs(stats.WinRate-50) > 1e-9 {
		t.Errorf("Expected win rate 50, got %f", stats.WinRate)
	}
	if math.Abs(stats.LargestWin-100) > 1e-9 {
		t.Errorf("Expected largest win 100, got %f", stats.LargestWin)
	}
	if math.Abs(stats.LargestLoss-(-20)) > 1e-9 {
		t.Errorf("Expected largest loss -20, got %f", stats.LargestLoss)
	}
}

func TestEquity(t *testing.T) {
	l := testLedger()
	l.ApplyFill(context.Background(), buyFill(50000, 0.02), "entry")

	// 9000 USDT + 0.02 BTC at 60000 = 10200.
	if got := l.Equity(60000); math.Abs(got-10200) > 1e-9 {
		t.Errorf("Expected equity 10200, got %f", got)
	}
}
