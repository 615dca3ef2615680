package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/types"
)

// reconcileTolerance is the relative drift between ledger and exchange
// balances that is considered float noise rather than a discrepancy.
const reconcileTolerance = 1e-6

// Drift is one flagged balance discrepancy from Reconcile.
type Drift struct {
	Asset    string
	Ledger   float64
	Exchange float64
	Delta    float64
}

// Ledger is the authoritative in-memory record of balances, the open
// position, and realized P&L. It is single-writer: only the decision
// cycle mutates it, everyone else reads through Snapshot.
type Ledger struct {
	mu          sync.Mutex
	base, quote string
	balances    map[string]float64
	position    *types.Position
	realized    float64
	history     []types.TradeRecord
}

// New seeds the ledger with the exchange-reported starting balances.
func New(baseAsset, quoteAsset string, initial map[string]float64) *Ledger {
	balances := make(map[string]float64, len(initial))
	for asset, amt := range initial {
		balances[asset] = amt
	}
	if _, ok := balances[baseAsset]; !ok {
		balances[baseAsset] = 0
	}
	if _, ok := balances[quoteAsset]; !ok {
		balances[quoteAsset] = 0
	}
	return &Ledger{
		base:     baseAsset,
		quote:    quoteAsset,
		balances: balances,
	}
}

// ApplyFill folds a confirmed fill into balances and the position.
// A BUY opens the single position; a SELL closes it and realizes P&L.
// The fill is rejected (no mutation) if it would drive a balance
// negative or open a second position.
func (l *Ledger) ApplyFill(ctx context.Context, fill types.Fill, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch fill.Side {
	case "BUY":
		return l.applyBuy(ctx, fill, reason)
	case "SELL":
		return l.applySell(ctx, fill, reason)
	}
	return fmt.Errorf("unknown fill side %q", fill.Side)
}

func (l *Ledger) applyBuy(ctx context.Context, fill types.Fill, reason string) error {
	if l.position != nil {
		return fmt.Errorf("cannot open position: one is already open at %.2f", l.position.EntryPrice)
	}
	cost := fill.Price * fill.Qty
	if l.balances[l.quote]+1e-9 < cost {
		return fmt.Errorf("buy fill of %.2f %s exceeds tracked balance %.2f", cost, l.quote, l.balances[l.quote])
	}

	l.balances[l.quote] = clampZero(l.balances[l.quote] - cost)
	l.balances[l.base] += fill.Qty
	l.position = &types.Position{
		EntryPrice: fill.Price,
		Qty:        fill.Qty,
		Side:       "LONG",
		OpenedAt:   time.Unix(fill.Ts, 0).UTC(),
	}
	l.history = append(l.history, types.TradeRecord{
		Ts:     fill.Ts,
		Side:   "BUY",
		Price:  fill.Price,
		Qty:    fill.Qty,
		Reason: reason,
	})
	return nil
}

func (l *Ledger) applySell(ctx context.Context, fill types.Fill, reason string) error {
	if l.position == nil {
		logger.Warn(ctx, "Sell fill with no open position", "symbol", fill.Symbol, "qty", fill.Qty)
		return fmt.Errorf("sell fill with no open position")
	}
	if fill.Qty > l.position.Qty+1e-9 {
		return fmt.Errorf("sell qty %.8f exceeds position %.8f", fill.Qty, l.position.Qty)
	}
	if l.balances[l.base]+1e-9 < fill.Qty {
		return fmt.Errorf("sell fill of %.8f %s exceeds tracked balance %.8f", fill.Qty, l.base, l.balances[l.base])
	}

	pnl := (fill.Price - l.position.EntryPrice) * fill.Qty

	l.balances[l.base] = clampZero(l.balances[l.base] - fill.Qty)
	l.balances[l.quote] += fill.Price * fill.Qty
	l.realized += pnl
	l.history = append(l.history, types.TradeRecord{
		Ts:          fill.Ts,
		Side:        "SELL",
		Price:       fill.Price,
		Qty:         fill.Qty,
		RealizedPnL: pnl,
		Reason:      reason,
	})

	if remaining := l.position.Qty - fill.Qty; remaining > 1e-9 {
		l.position.Qty = remaining
	} else {
		l.position = nil
	}
	return nil
}

// Reconcile compares ledger balances against the exchange's view and
// returns every drift beyond tolerance. Drifts are flagged, never
// applied: silently adopting the exchange numbers would mask bugs.
func (l *Ledger) Reconcile(ctx context.Context, exchangeBalances map[string]float64) []Drift {
	l.mu.Lock()
	defer l.mu.Unlock()

	var drifts []Drift
	for _, asset := range []string{l.base, l.quote} {
		ours := l.balances[asset]
		theirs, ok := exchangeBalances[asset]
		if !ok {
			continue
		}
		tol := reconcileTolerance * math.Max(1, math.Abs(ours))
		if delta := theirs - ours; math.Abs(delta) > tol {
			drifts = append(drifts, Drift{Asset: asset, Ledger: ours, Exchange: theirs, Delta: delta})
			logger.Warn(ctx, "Balance drift between ledger and exchange",
				"asset", asset,
				"ledger", ours,
				"exchange", theirs,
				"delta", delta)
		}
	}
	return drifts
}

// Snapshot deep-copies the ledger state for reporting.
func (l *Ledger) Snapshot() types.PortfolioSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	balances := make(map[string]float64, len(l.balances))
	for asset, amt := range l.balances {
		balances[asset] = amt
	}
	trades := make([]types.TradeRecord, len(l.history))
	copy(trades, l.history)

	var pos *types.Position
	if l.position != nil {
		p := *l.position
		pos = &p
	}

	return types.PortfolioSnapshot{
		Balances:    balances,
		Position:    pos,
		RealizedPnL: l.realized,
		Trades:      trades,
		Stats:       computeStats(trades),
		TakenAt:     time.Now().UTC(),
	}
}

// Balance returns the tracked amount of one asset.
func (l *Ledger) Balance(asset string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[asset]
}

// Position returns a copy of the open position, or nil when flat.
func (l *Ledger) Position() *types.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.position == nil {
		return nil
	}
	p := *l.position
	return &p
}

// HasPosition reports whether a position is open.
func (l *Ledger) HasPosition() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position != nil
}

// RealizedPnL returns the running total over all closed trades.
func (l *Ledger) RealizedPnL() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realized
}

// Equity values the whole portfolio in quote terms at the given price.
func (l *Ledger) Equity(price float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[l.quote] + l.balances[l.base]*price
}

func computeStats(trades []types.TradeRecord) types.TradeStats {
	var s types.TradeStats
	for _, t := range trades {
		if t.Side != "SELL" {
			continue
		}
		s.Closed++
		if t.RealizedPnL >= 0 {
			s.Wins++
			if t.RealizedPnL > s.LargestWin {
				s.LargestWin = t.RealizedPnL
			}
		} else {
			s.Losses++
			if t.RealizedPnL < s.LargestLoss {
				s.LargestLoss = t.RealizedPnL
			}
		}
	}
	if s.Closed > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Closed) * 100
	}
	return s
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
