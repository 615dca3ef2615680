package ollama

import (
	"fmt"
	"strconv"
	"strings"

	"crypto-trading-bot/internal/types"
)

// ParseRecommendation extracts the labeled fields from a model reply.
// Each missing or garbled field is filled from the pivots or the current
// price; only a reply without any recommendation line is rejected, which
// sends the caller to the deterministic fallback.
func ParseRecommendation(text string, price float64, pivots types.PivotLevels) (types.Recommendation, error) {
	action, ok := extractAction(text)
	if !ok {
		return types.Recommendation{}, fmt.Errorf("no recommendation line in model reply")
	}

	rec := types.Recommendation{
		Action:     action,
		Confidence: 50,
		Reasoning:  "AI analysis completed",
	}

	if v, ok := extractNumber(text, "CONFIDENCE"); ok {
		rec.Confidence = clamp(v, 0, 100)
	}
	if v, ok := extractFirstNumber(text, "STOP_LOSS", "STOP LOSS"); ok && v > 0 {
		rec.StopLoss = v
	} else {
		rec.StopLoss = price * 0.95
	}
	if v, ok := extractFirstNumber(text, "TAKE_PROFIT", "TAKE PROFIT"); ok && v > 0 {
		rec.TakeProfit = v
	} else {
		rec.TakeProfit = price * 1.10
	}
	if v, ok := extractFirstNumber(text, "BUY_TARGET", "BUY TARGET"); ok && v > 0 {
		rec.BuyTarget = v
	} else {
		rec.BuyTarget = pivots.S1
	}
	if v, ok := extractFirstNumber(text, "SELL_TARGET", "SELL TARGET"); ok && v > 0 {
		rec.SellTarget = v
	} else {
		rec.SellTarget = pivots.R1
	}
	if r, ok := extractReasoning(text); ok {
		rec.Reasoning = r
	}

	// A stop above the current price or a target below it would trigger
	// instantly; treat them as garbled and use the percentage defaults.
	if rec.StopLoss >= price {
		rec.StopLoss = price * 0.95
	}
	if rec.TakeProfit <= price {
		rec.TakeProfit = price * 1.10
	}

	return rec, nil
}

// extractAction finds the recommendation token. Strong variants match
// anywhere in the text since models like to bold or restate them.
func extractAction(text string) (string, bool) {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "STRONG_BUY") || strings.Contains(upper, "STRONG BUY"):
		return types.StrongBuy, true
	case strings.Contains(upper, "STRONG_SELL") || strings.Contains(upper, "STRONG SELL"):
		return types.StrongSell, true
	}
	idx := strings.Index(upper, "RECOMMENDATION")
	if idx < 0 {
		return "", false
	}
	rest := upper[idx:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	switch {
	case strings.Contains(rest, "BUY"):
		return types.Buy, true
	case strings.Contains(rest, "SELL"):
		return types.Sell, true
	case strings.Contains(rest, "HOLD"):
		return types.Hold, true
	}
	// Label present but token unrecognized: stay flat.
	return types.Hold, true
}

// extractNumber pulls the first number after a label, tolerating "$",
// "%", markdown bold, and thousands separators.
func extractNumber(text, label string) (float64, bool) {
	upper := strings.ToUpper(text)
	idx := strings.Index(upper, strings.ToUpper(label))
	if idx < 0 {
		return 0, false
	}
	after := text[idx+len(label):]

	start := -1
	for i, r := range after {
		if r >= '0' && r <= '9' || r == '.' {
			start = i
			break
		}
		// Only scan a short distance past the label.
		if i > 24 {
			break
		}
	}
	if start < 0 {
		return 0, false
	}

	var num strings.Builder
	for _, r := range after[start:] {
		if r >= '0' && r <= '9' || r == '.' {
			num.WriteRune(r)
			continue
		}
		if r == ',' {
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(num.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func extractFirstNumber(text string, labels ...string) (float64, bool) {
	for _, label := range labels {
		if v, ok := extractNumber(text, label); ok {
			return v, true
		}
	}
	return 0, false
}

// extractReasoning takes the first line after the REASONING label.
func extractReasoning(text string) (string, bool) {
	upper := strings.ToUpper(text)
	idx := strings.Index(upper, "REASONING:")
	if idx < 0 {
		return "", false
	}
	after := text[idx+len("REASONING:"):]
	line := after
	if nl := strings.IndexByte(after, '\n'); nl >= 0 {
		line = after[:nl]
	}
	line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*"))
	if line == "" {
		return "", false
	}
	return line, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
