package news

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"crypto-trading-bot/internal/types"
)

func TestSentimentCache(t *testing.T) {
	cache := newSentimentCache(100 * time.Millisecond)

	symbol := "BTCUSDT"
	sentiment := types.NewsSentiment{
		Symbol:    symbol,
		Label:     "BULLISH",
		Score:     0.8,
		Headlines: 5,
		Timestamp: time.Now().Unix(),
	}

	cache.set(symbol, sentiment)

	retrieved, found := cache.get(symbol)
	if !found {
		t.Fatal("Expected to find cached sentiment")
	}

	if retrieved.Symbol != symbol {
		t.Errorf("Expected symbol %s, got %s", symbol, retrieved.Symbol)
	}

	if retrieved.Score != 0.8 {
		t.Errorf("Expected score 0.8, got %f", retrieved.Score)
	}

	time.Sleep(150 * time.Millisecond)
	_, found = cache.get(symbol)
	if found {
		t.Error("Expected cache entry to be expired")
	}
}

func TestServiceConfig(t *testing.T) {
	cfg := DefaultServiceConfig()

	if cfg.MaxArticles != 10 {
		t.Errorf("Expected MaxArticles to be 10, got %d", cfg.MaxArticles)
	}

	if cfg.CacheTTL != 1*time.Hour {
		t.Errorf("Expected CacheTTL to be 1 hour, got %v", cfg.CacheTTL)
	}

	if !cfg.Enabled {
		t.Error("Expected Enabled to be true")
	}
}

func TestNewService(t *testing.T) {
	svc := NewService(nil)

	if svc == nil {
		t.Fatal("Expected service to be created")
	}

	if svc.scraper == nil {
		t.Error("Expected scraper to be initialized")
	}

	if svc.analyzer == nil {
		t.Error("Expected analyzer to be initialized")
	}

	if svc.cache == nil {
		t.Error("Expected cache to be initialized")
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(&ServiceConfig{
		Enabled:  false,
		CacheTTL: time.Hour,
	})
	ctx := context.Background()

	sentiment, err := svc.GetSentiment(ctx, "BTCUSDT")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if sentiment.Label != "NEUTRAL" {
		t.Errorf("Expected NEUTRAL sentiment when disabled, got %s", sentiment.Label)
	}

	if sentiment.Summary != "sentiment analysis disabled" {
		t.Errorf("Expected disabled message, got %s", sentiment.Summary)
	}

	if sentiment.Headlines != 0 {
		t.Errorf("Expected 0 headlines when disabled, got %d", sentiment.Headlines)
	}
}

func TestCacheCleanup(t *testing.T) {
	cache := newSentimentCache(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		symbol := fmt.Sprintf("SYM%d", i)
		cache.set(symbol, types.NewsSentiment{
			Symbol:    symbol,
			Timestamp: time.Now().Unix(),
		})
	}

	time.Sleep(200 * time.Millisecond)

	cache.cleanup()

	cache.mu.RLock()
	count := len(cache.data)
	cache.mu.RUnlock()

	if count != 0 {
		t.Errorf("Expected 0 cache entries after cleanup, got %d", count)
	}
}

func TestGetCachedSymbols(t *testing.T) {
	svc := NewService(DefaultServiceConfig())

	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	for _, sym := range symbols {
		svc.cache.set(sym, types.NewsSentiment{
			Symbol:    sym,
			Timestamp: time.Now().Unix(),
		})
	}

	cached := svc.GetCachedSymbols()

	if len(cached) != 3 {
		t.Errorf("Expected 3 cached symbols, got %d", len(cached))
	}
}

func TestClearCache(t *testing.T) {
	svc := NewService(DefaultServiceConfig())

	svc.cache.set("BTCUSDT", types.NewsSentiment{
		Symbol:    "BTCUSDT",
		Timestamp: time.Now().Unix(),
	})

	cached := svc.GetCachedSymbols()
	if len(cached) != 1 {
		t.Fatal("Expected 1 cached symbol")
	}

	svc.ClearCache()

	cached = svc.GetCachedSymbols()
	if len(cached) != 0 {
		t.Errorf("Expected 0 cached symbols after clear, got %d", len(cached))
	}
}

func TestAnalyzeBullishHeadlines(t *testing.T) {
	a := NewSentimentAnalyzer()

	articles := []types.NewsArticle{
		{Title: "Bitcoin surges to record high as ETF inflows accelerate", Source: "CoinDesk"},
		{Title: "Institutional adoption drives bitcoin rally past resistance", Source: "CoinTelegraph"},
		{Title: "Bitcoin breakout continues with strong momentum", Source: "CryptoSlate"},
	}

	sentiment := a.Analyze("BTCUSDT", articles)

	if sentiment.Label != "BULLISH" {
		t.Errorf("Expected BULLISH label, got %s", sentiment.Label)
	}

	if sentiment.Score <= 0 {
		t.Errorf("Expected positive score, got %f", sentiment.Score)
	}

	if sentiment.Headlines != 3 {
		t.Errorf("Expected 3 headlines, got %d", sentiment.Headlines)
	}

	if !strings.Contains(sentiment.Summary, "3 bullish") {
		t.Errorf("Expected summary to count bullish headlines, got %s", sentiment.Summary)
	}
}

func TestAnalyzeBearishHeadlines(t *testing.T) {
	a := NewSentimentAnalyzer()

	articles := []types.NewsArticle{
		{Title: "Bitcoin plunges as exchange hack triggers panic selloff", Source: "CoinDesk"},
		{Title: "Crypto lender bankruptcy deepens market crash", Source: "CoinTelegraph"},
	}

	sentiment := a.Analyze("BTCUSDT", articles)

	if sentiment.Label != "BEARISH" {
		t.Errorf("Expected BEARISH label, got %s", sentiment.Label)
	}

	if sentiment.Score >= 0 {
		t.Errorf("Expected negative score, got %f", sentiment.Score)
	}
}

func TestAnalyzeMixedHeadlinesStayNeutral(t *testing.T) {
	a := NewSentimentAnalyzer()

	articles := []types.NewsArticle{
		{Title: "Bitcoin surges to record high on ETF approval", Source: "CoinDesk"},
		{Title: "Bitcoin crashes as exchange hack sparks panic", Source: "CoinTelegraph"},
	}

	sentiment := a.Analyze("BTCUSDT", articles)

	if sentiment.Label != "NEUTRAL" {
		t.Errorf("Expected NEUTRAL label for split coverage, got %s", sentiment.Label)
	}
}

func TestAnalyzeNoArticles(t *testing.T) {
	a := NewSentimentAnalyzer()

	sentiment := a.Analyze("BTCUSDT", nil)

	if sentiment.Label != "NEUTRAL" {
		t.Errorf("Expected NEUTRAL label, got %s", sentiment.Label)
	}

	if sentiment.Headlines != 0 {
		t.Errorf("Expected 0 headlines, got %d", sentiment.Headlines)
	}

	if sentiment.Summary != "no recent headlines found" {
		t.Errorf("Expected empty-result summary, got %s", sentiment.Summary)
	}
}

func TestScoreArticleHedgingSoftensSignal(t *testing.T) {
	a := NewSentimentAnalyzer()

	firm := a.scoreArticle(types.NewsArticle{Title: "Bitcoin surges past resistance"})
	hedged := a.scoreArticle(types.NewsArticle{Title: "Bitcoin may possibly surge past resistance"})

	if firm.score <= 0 {
		t.Fatalf("Expected positive score for firm headline, got %f", firm.score)
	}

	if hedged.score >= firm.score {
		t.Errorf("Expected hedged score %f to be below firm score %f", hedged.score, firm.score)
	}
}

func TestScoreArticleNeutralHeadline(t *testing.T) {
	a := NewSentimentAnalyzer()

	sc := a.scoreArticle(types.NewsArticle{Title: "Bitcoin trades sideways ahead of Fed meeting"})

	if sc.label != "NEUTRAL" {
		t.Errorf("Expected NEUTRAL label, got %s", sc.label)
	}

	if sc.score != 0 {
		t.Errorf("Expected zero score, got %f", sc.score)
	}
}

func TestSearchTerm(t *testing.T) {
	cases := map[string]string{
		"BTCUSDT": "bitcoin",
		"ETHUSD":  "ethereum",
		"DOGE":    "dogecoin",
		"ZZZUSDT": "zzz",
	}

	for symbol, want := range cases {
		if got := searchTerm(symbol); got != want {
			t.Errorf("searchTerm(%s): expected %s, got %s", symbol, want, got)
		}
	}
}
