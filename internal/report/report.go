package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"crypto-trading-bot/internal/types"
)

// alertProximity is the fraction of a target level within which the
// report starts warning that the price is approaching it.
const alertProximity = 0.02

// Renderer writes the human-readable portfolio status file. The file is
// replaced atomically so a reader never sees a half-written report.
type Renderer struct {
	path      string
	startedAt time.Time
	now       func() time.Time
}

func New(path string) *Renderer {
	return &Renderer{
		path:      path,
		startedAt: time.Now().UTC(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Input bundles one cycle's view of the bot for rendering.
type Input struct {
	Symbol     string
	Exchange   string
	Mode       string
	BaseAsset  string
	QuoteAsset string
	Snapshot   types.PortfolioSnapshot
	Result     *types.StepResult
	TradesUsed int
	TradesMax  int
	CanTrade   bool
}

// Render formats the status file and swaps it into place.
func (r *Renderer) Render(in Input) error {
	var b strings.Builder

	mode := in.Mode
	if in.Exchange == "SIMULATION" {
		mode += " (SIMULATION)"
	}

	now := r.now()
	fmt.Fprintf(&b, "==============================================\n")
	fmt.Fprintf(&b, "  CRYPTO TRADING BOT - PORTFOLIO STATUS\n")
	fmt.Fprintf(&b, "  %s on %s | mode %s\n", in.Symbol, in.Exchange, mode)
	fmt.Fprintf(&b, "==============================================\n\n")
	fmt.Fprintf(&b, "Last Updated:    %s\n", now.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Bot Started:     %s\n", r.startedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "Uptime:          %s\n", formatUptime(now.Sub(r.startedAt)))

	if in.Result == nil {
		fmt.Fprintf(&b, "\nAwaiting first trading cycle.\n")
		r.writeBalances(&b, in, 0)
		return r.write(b.String())
	}

	res := in.Result
	price := res.Price

	fmt.Fprintf(&b, "\n--- MARKET -----------------------------------\n")
	fmt.Fprintf(&b, "Current Price:   %.2f\n", price)
	fmt.Fprintf(&b, "State:           %s\n", res.State)
	fmt.Fprintf(&b, "Last Decision:   %s\n", res.Decision.Action)
	fmt.Fprintf(&b, "Reason:          %s\n", res.Decision.Reason)

	fmt.Fprintf(&b, "\n--- TRADING TARGETS --------------------------\n")
	fmt.Fprintf(&b, "Stop-Loss:       %s\n", formatLevel(res.Targets.StopLoss))
	fmt.Fprintf(&b, "Take-Profit:     %s\n", formatLevel(res.Targets.TakeProfit))
	fmt.Fprintf(&b, "Buy Target:      %s\n", formatLevel(res.Targets.BuyTarget))
	fmt.Fprintf(&b, "Sell Target:     %s\n", formatLevel(res.Targets.SellTarget))

	p := res.Pivots
	fmt.Fprintf(&b, "\n--- PIVOT LEVELS -----------------------------\n")
	fmt.Fprintf(&b, "R2:              %.2f\n", p.R2)
	fmt.Fprintf(&b, "R1:              %.2f\n", p.R1)
	fmt.Fprintf(&b, "PP:              %.2f\n", p.PP)
	fmt.Fprintf(&b, "S1:              %.2f\n", p.S1)
	fmt.Fprintf(&b, "S2:              %.2f\n", p.S2)

	fmt.Fprintf(&b, "\n--- ADVISOR ----------------------------------\n")
	fmt.Fprintf(&b, "Recommendation:  %s (%s)\n", res.Rec.Action, res.Rec.Source)
	fmt.Fprintf(&b, "Confidence:      %.0f\n", res.Rec.Confidence)
	if res.Rec.Reasoning != "" {
		fmt.Fprintf(&b, "Reasoning:       %s\n", res.Rec.Reasoning)
	}

	fmt.Fprintf(&b, "\n--- DAILY TRADE BUDGET -----------------------\n")
	fmt.Fprintf(&b, "Trades Today:    %d/%d\n", in.TradesUsed, in.TradesMax)
	if in.CanTrade {
		fmt.Fprintf(&b, "Can Trade:       yes\n")
	} else {
		fmt.Fprintf(&b, "Can Trade:       no (cap reached, resets at UTC midnight)\n")
	}

	fmt.Fprintf(&b, "\n--- POSITION ---------------------------------\n")
	if pos := in.Snapshot.Position; pos != nil {
		value := pos.Qty * price
		entryValue := pos.Qty * pos.EntryPrice
		unrealized := value - entryValue
		var unrealizedPct float64
		if entryValue > 0 {
			unrealizedPct = unrealized / entryValue * 100
		}
		fmt.Fprintf(&b, "Status:          LONG\n")
		fmt.Fprintf(&b, "Entry Price:     %.2f\n", pos.EntryPrice)
		fmt.Fprintf(&b, "Size:            %.8f\n", pos.Qty)
		fmt.Fprintf(&b, "Value:           %.2f\n", value)
		fmt.Fprintf(&b, "Unrealized PnL:  %+.2f (%+.2f%%)\n", unrealized, unrealizedPct)
		fmt.Fprintf(&b, "Opened At:       %s\n", pos.OpenedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	} else {
		fmt.Fprintf(&b, "Status:          no open position\n")
	}

	r.writeBalances(&b, in, price)

	stats := in.Snapshot.Stats
	fmt.Fprintf(&b, "\n--- PERFORMANCE ------------------------------\n")
	fmt.Fprintf(&b, "Realized PnL:    %+.2f\n", in.Snapshot.RealizedPnL)
	fmt.Fprintf(&b, "Closed Trades:   %d (%d wins / %d losses)\n", stats.Closed, stats.Wins, stats.Losses)
	fmt.Fprintf(&b, "Win Rate:        %.1f%%\n", stats.WinRate)
	fmt.Fprintf(&b, "Largest Win:     %.2f\n", stats.LargestWin)
	fmt.Fprintf(&b, "Largest Loss:    %.2f\n", stats.LargestLoss)

	inds := res.Indicators
	fmt.Fprintf(&b, "\n--- INDICATORS -------------------------------\n")
	fmt.Fprintf(&b, "SMA Short/Long:  %.2f / %.2f\n", inds.SMAShort, inds.SMALong)
	fmt.Fprintf(&b, "RSI:             %.1f\n", inds.RSI)
	fmt.Fprintf(&b, "MACD Histogram:  %.4f\n", inds.MACDHist)
	fmt.Fprintf(&b, "Cross:           %s\n", inds.Cross)

	fmt.Fprintf(&b, "\n--- ALERTS -----------------------------------\n")
	alerts := targetAlerts(price, res.Targets)
	if len(alerts) == 0 {
		fmt.Fprintf(&b, "none\n")
	}
	for _, a := range alerts {
		fmt.Fprintf(&b, "* %s\n", a)
	}

	return r.write(b.String())
}

func (r *Renderer) writeBalances(b *strings.Builder, in Input, price float64) {
	fmt.Fprintf(b, "\n--- BALANCES ---------------------------------\n")
	assets := make([]string, 0, len(in.Snapshot.Balances))
	for asset := range in.Snapshot.Balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		fmt.Fprintf(b, "%-8s         %.8f\n", asset+":", in.Snapshot.Balances[asset])
	}
	if price > 0 {
		equity := in.Snapshot.Balances[in.QuoteAsset] + in.Snapshot.Balances[in.BaseAsset]*price
		fmt.Fprintf(b, "Equity:          %.2f %s\n", equity, in.QuoteAsset)
	}
}

// targetAlerts flags levels the price has reached or is within the
// proximity band of. The engine acts on reached levels itself; these
// lines exist for the human watching the file.
func targetAlerts(price float64, tgt types.ExitTargets) []string {
	var alerts []string
	add := func(name string, level float64, reached bool) {
		if level <= 0 || price <= 0 {
			return
		}
		switch {
		case reached:
			alerts = append(alerts, fmt.Sprintf("%s reached (level %.2f, price %.2f)", name, level, price))
		case math.Abs(price-level)/level <= alertProximity:
			alerts = append(alerts, fmt.Sprintf("approaching %s (level %.2f, price %.2f)", name, level, price))
		}
	}
	add("stop loss", tgt.StopLoss, price <= tgt.StopLoss)
	add("take profit", tgt.TakeProfit, price >= tgt.TakeProfit)
	add("buy target", tgt.BuyTarget, price <= tgt.BuyTarget)
	add("sell target", tgt.SellTarget, price >= tgt.SellTarget)
	return alerts
}

func formatLevel(v float64) string {
	if v <= 0 {
		return "not set"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// write replaces the report file via a temp file in the same directory,
// so a reader never observes a torn report.
func (r *Renderer) write(text string) error {
	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("failed to create temp report file: %w", err)
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp report file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace report file: %w", err)
	}
	return nil
}
