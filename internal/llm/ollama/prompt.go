package ollama

import (
	"fmt"
	"strings"
	"time"

	"crypto-trading-bot/internal/types"
)

// buildPrompt renders the analyst prompt for one cycle. The response
// format section must stay in lockstep with ParseRecommendation.
func buildPrompt(snap *types.MarketSnapshot, inds types.IndicatorSet, pivots types.PivotLevels, pctx types.AdvisorContext) string {
	high12, low12 := windowRange(snap.Window12h, snap.CurrentPrice)
	high24, low24 := windowRange(snap.Window24h, snap.CurrentPrice)
	high48, low48 := windowRange(snap.Window48h, snap.CurrentPrice)

	trend := "BEARISH (short < long)"
	if inds.SMAShort > inds.SMALong {
		trend = "BULLISH (short > long)"
	}

	rsiCondition := "NEUTRAL"
	switch {
	case inds.RSI > 70:
		rsiCondition = "OVERBOUGHT"
	case inds.RSI < 30:
		rsiCondition = "OVERSOLD"
	}

	position := "No open position"
	if p := pctx.Position; p != nil && p.EntryPrice > 0 {
		pnlPct := (snap.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
		position = fmt.Sprintf("Entry: $%.2f, Qty: %.6f, Current P&L: %.2f%%", p.EntryPrice, p.Qty, pnlPct)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a crypto trading analyst specializing in support and resistance analysis. Analyze the following market data and recommend precise trade targets.\n\n")
	fmt.Fprintf(&b, "MARKET DATA FOR %s:\n", snap.Symbol)
	fmt.Fprintf(&b, "- Current Price: $%.2f\n", snap.CurrentPrice)
	fmt.Fprintf(&b, "- 24h High: $%.2f\n", high24)
	fmt.Fprintf(&b, "- 24h Low: $%.2f\n", low24)
	fmt.Fprintf(&b, "- 24h Change: %.2f%%\n", snap.Change24hPct)
	fmt.Fprintf(&b, "- Price Ranges: 12h Range: $%.2f - $%.2f, 48h Range: $%.2f - $%.2f\n", low12, high12, low48, high48)
	fmt.Fprintf(&b, "- Moving Averages: SMA(short): %.2f, SMA(long): %.2f, Trend: %s\n", inds.SMAShort, inds.SMALong, trend)
	fmt.Fprintf(&b, "- RSI (14): %.2f (%s)\n", inds.RSI, rsiCondition)
	if inds.MACDHist != 0 {
		fmt.Fprintf(&b, "- MACD Histogram: %.4f\n", inds.MACDHist)
	}
	fmt.Fprintf(&b, "- Account Balance: $%.2f USDT\n\n", pctx.QuoteBalance)

	fmt.Fprintf(&b, "PIVOT LEVELS (prior period):\n")
	fmt.Fprintf(&b, "- Pivot: $%.2f\n", pivots.PP)
	fmt.Fprintf(&b, "- Resistance: R1 $%.2f, R2 $%.2f\n", pivots.R1, pivots.R2)
	fmt.Fprintf(&b, "- Support: S1 $%.2f, S2 $%.2f\n\n", pivots.S1, pivots.S2)

	fmt.Fprintf(&b, "RECENT HOURLY CLOSES:\n%s\n", hourlySummary(snap.Window24h))

	if s := pctx.Sentiment; s != nil && s.Headlines > 0 {
		fmt.Fprintf(&b, "NEWS SENTIMENT: %s (score %.2f over %d headlines)\n%s\n\n", s.Label, s.Score, s.Headlines, s.Summary)
	}

	fmt.Fprintf(&b, "CURRENT POSITION:\n%s\n\n", position)

	b.WriteString(`Provide your analysis in EXACTLY this format (use these exact labels):

RECOMMENDATION: [STRONG_BUY/BUY/HOLD/SELL/STRONG_SELL]
CONFIDENCE: [0-100]%
STOP_LOSS: $[price]
TAKE_PROFIT: $[price]
BUY_TARGET: $[price - a good entry point near support]
SELL_TARGET: $[price - a good exit point near resistance]
REASONING: [Your 2-3 sentence explanation including support/resistance analysis]

Rules:
1. BUY_TARGET should be near a support level for good entry
2. SELL_TARGET should be near a resistance level for good exit
3. Stop-loss should be below strong support
4. Take-profit should be near or above resistance
5. Even for HOLD recommendations, provide buy/sell targets for future reference
6. Provide specific dollar amounts, not percentages`)

	return b.String()
}

// windowRange returns the high/low over a candle window, falling back to
// the current price for an empty window.
func windowRange(candles []types.Candle, fallback float64) (high, low float64) {
	if len(candles) == 0 {
		return fallback, fallback
	}
	high, low = candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low
}

// hourlySummary lists up to the last 12 closes so the model sees the
// short-term shape without blowing up the prompt.
func hourlySummary(candles []types.Candle) string {
	if len(candles) == 0 {
		return "Not available"
	}
	start := 0
	if len(candles) > 12 {
		start = len(candles) - 12
	}
	var b strings.Builder
	for _, c := range candles[start:] {
		ts := time.Unix(c.Ts, 0).UTC().Format("15:04")
		fmt.Fprintf(&b, "%s UTC: $%.2f\n", ts, c.Close)
	}
	return b.String()
}
