package news

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"crypto-trading-bot/internal/types"
)

// Per-headline label cutoffs. A single strong word in a short headline
// is enough to tip it, which is intentional: crypto headlines are terse
// and front-load the verdict.
const (
	bullishCutoff = 0.15
	bearishCutoff = -0.15
)

// SentimentAnalyzer scores headlines against bullish and bearish word
// lists and reports a coarse per-symbol tilt. Scoring is deterministic,
// so the same headlines always produce the same reading.
type SentimentAnalyzer struct {
	bullishWords map[string]bool
	bearishWords map[string]bool
	hedgeWords   map[string]bool
}

// NewSentimentAnalyzer creates an analyzer with the builtin word lists.
func NewSentimentAnalyzer() *SentimentAnalyzer {
	return &SentimentAnalyzer{
		bullishWords: loadBullishWords(),
		bearishWords: loadBearishWords(),
		hedgeWords:   loadHedgeWords(),
	}
}

// articleScore is the per-headline result before aggregation.
type articleScore struct {
	article types.NewsArticle
	score   float64 // -1.0 to 1.0
	label   string  // BULLISH | BEARISH | NEUTRAL
}

// Analyze scores each article and folds the results into one
// NewsSentiment for the symbol.
func (a *SentimentAnalyzer) Analyze(symbol string, articles []types.NewsArticle) types.NewsSentiment {
	if len(articles) == 0 {
		return types.NewsSentiment{
			Symbol:    symbol,
			Label:     "NEUTRAL",
			Summary:   "no recent headlines found",
			Timestamp: time.Now().Unix(),
		}
	}

	counts := map[string]int{}
	total := 0.0
	var top articleScore

	for _, article := range articles {
		sc := a.scoreArticle(article)
		counts[sc.label]++
		total += sc.score
		if math.Abs(sc.score) > math.Abs(top.score) {
			top = sc
		}
	}

	avgScore := total / float64(len(articles))

	// One camp has to clearly outnumber the other before the overall
	// label moves off neutral.
	label := "NEUTRAL"
	if counts["BULLISH"] > counts["BEARISH"]*2 {
		label = "BULLISH"
	} else if counts["BEARISH"] > counts["BULLISH"]*2 {
		label = "BEARISH"
	}

	summary := fmt.Sprintf("%d headlines: %d bullish, %d bearish, %d neutral.",
		len(articles), counts["BULLISH"], counts["BEARISH"], counts["NEUTRAL"])
	if top.label != "NEUTRAL" && top.article.Title != "" {
		summary += fmt.Sprintf(" Leading story: %q (%s)", top.article.Title, top.article.Source)
	}

	return types.NewsSentiment{
		Symbol:    symbol,
		Label:     label,
		Score:     avgScore,
		Headlines: len(articles),
		Summary:   summary,
		Timestamp: time.Now().Unix(),
	}
}

// scoreArticle rates one headline plus its summary. The title is counted
// twice because the headline carries the verdict while scraped summaries
// are often truncated boilerplate.
func (a *SentimentAnalyzer) scoreArticle(article types.NewsArticle) articleScore {
	text := strings.ToLower(article.Title + " " + article.Title + " " + article.Summary)
	words := tokenize(text)

	bullish, bearish, hedges := 0, 0, 0
	for _, word := range words {
		if a.bullishWords[word] {
			bullish++
		}
		if a.bearishWords[word] {
			bearish++
		}
		if a.hedgeWords[word] {
			hedges++
		}
	}

	score := 0.0
	if len(words) > 0 {
		// Net word ratio, amplified since sentiment words are a small
		// fraction of even a charged headline.
		net := float64(bullish-bearish) / float64(len(words))
		score = clamp(net*8, -1, 1)

		// Hedged headlines ("may", "could", "analysts predict") soften
		// the signal by up to half.
		hedgeRatio := float64(hedges) / float64(len(words))
		score *= 1 - clamp(hedgeRatio*4, 0, 0.5)
	}

	label := "NEUTRAL"
	switch {
	case score >= bullishCutoff:
		label = "BULLISH"
	case score <= bearishCutoff:
		label = "BEARISH"
	}

	return articleScore{article: article, score: score, label: label}
}

// tokenize splits text into lowercase alphanumeric words.
func tokenize(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(r)
		} else if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// Word lists tuned for crypto news language rather than general
// financial reporting.

func loadBullishWords() map[string]bool {
	words := []string{
		"accumulate", "accumulation", "adoption", "approval", "approved",
		"breakout", "breakthrough", "bull", "bullish", "climb", "climbed",
		"climbs", "gain", "gained", "gains", "halving", "high", "highs",
		"inflow", "inflows", "institutional", "integration", "jump",
		"jumped", "jumps", "mainnet", "milestone", "momentum", "outperform",
		"partnership", "rally", "rallied", "rallies", "rebound", "rebounds",
		"record", "recovered", "recovery", "soar", "soared", "soars",
		"staking", "surge", "surged", "surges", "upgrade", "upgraded",
		"upside",
	}
	m := make(map[string]bool)
	for _, w := range words {
		m[w] = true
	}
	return m
}

func loadBearishWords() map[string]bool {
	words := []string{
		"ban", "banned", "bankrupt", "bankruptcy", "bear", "bearish",
		"breach", "capitulation", "collapse", "collapsed", "collapses",
		"correction", "crackdown", "crash", "crashed", "crashes", "delist",
		"delisted", "downgrade", "downgraded", "downturn", "drop", "dropped",
		"drops", "dump", "dumped", "dumps", "exploit", "exploited", "fall",
		"falls", "fear", "fell", "fine", "fined", "fraud", "hack", "hacked",
		"halt", "halted", "insolvency", "insolvent", "lawsuit", "liquidated",
		"liquidation", "liquidations", "loss", "losses", "low", "lows",
		"outflow", "outflows", "panic", "plummet", "plummeted", "plummets",
		"plunge", "plunged", "plunges", "scam", "selloff", "slump",
		"slumped", "slumps", "stolen", "sued", "theft", "tumble", "tumbled",
		"tumbles", "warned", "warning", "warns", "weak", "weakness",
	}
	m := make(map[string]bool)
	for _, w := range words {
		m[w] = true
	}
	return m
}

func loadHedgeWords() map[string]bool {
	words := []string{
		"allegedly", "could", "expected", "expects", "forecast", "if",
		"likely", "may", "maybe", "might", "perhaps", "possibly",
		"potential", "predicts", "prediction", "reportedly", "rumor",
		"rumors", "speculation", "uncertain", "uncertainty", "unlikely",
	}
	m := make(map[string]bool)
	for _, w := range words {
		m[w] = true
	}
	return m
}
