package news

import (
	"context"
	"sync"
	"time"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/store"
	"crypto-trading-bot/internal/types"
)

// Service scrapes and scores news sentiment, with a per-symbol cache so
// the sites are only hit once per TTL. Errors never propagate: a failed
// fetch degrades to a neutral reading, because headlines are advisory
// input and a news outage must not stall trading cycles.
type Service struct {
	scraper  *Scraper
	analyzer *SentimentAnalyzer
	cache    *sentimentCache
	cfg      *ServiceConfig
}

var _ interfaces.SentimentProvider = (*Service)(nil)

// ServiceConfig configures the sentiment service.
type ServiceConfig struct {
	Enabled        bool
	MaxArticles    int
	CacheTTL       time.Duration
	ScraperTimeout time.Duration
}

// DefaultServiceConfig mirrors the config loader's news defaults.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Enabled:        true,
		MaxArticles:    10,
		CacheTTL:       time.Hour,
		ScraperTimeout: 20 * time.Second,
	}
}

// sentimentCache stores per-symbol sentiment until the TTL lapses.
type sentimentCache struct {
	mu   sync.RWMutex
	data map[string]*cacheEntry
	ttl  time.Duration
}

type cacheEntry struct {
	sentiment types.NewsSentiment
	timestamp time.Time
}

func newSentimentCache(ttl time.Duration) *sentimentCache {
	cache := &sentimentCache{
		data: make(map[string]*cacheEntry),
		ttl:  ttl,
	}

	go cache.cleanupLoop()

	return cache
}

func (c *sentimentCache) get(symbol string) (types.NewsSentiment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[symbol]
	if !exists {
		return types.NewsSentiment{}, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		return types.NewsSentiment{}, false
	}

	return entry.sentiment, true
}

func (c *sentimentCache) set(symbol string, sentiment types.NewsSentiment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[symbol] = &cacheEntry{
		sentiment: sentiment,
		timestamp: time.Now(),
	}
}

func (c *sentimentCache) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

func (c *sentimentCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for symbol, entry := range c.data {
		if now.Sub(entry.timestamp) > c.ttl {
			delete(c.data, symbol)
		}
	}
}

// New builds the provider from the bot config's news section.
func New(cfg *store.Config) interfaces.SentimentProvider {
	return NewService(&ServiceConfig{
		Enabled:        cfg.News.Enabled,
		MaxArticles:    cfg.News.MaxArticles,
		CacheTTL:       cfg.News.CacheTTL,
		ScraperTimeout: 20 * time.Second,
	})
}

// NewService creates the service. A nil config uses the defaults.
func NewService(cfg *ServiceConfig) *Service {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}

	return &Service{
		scraper:  NewScraper(cfg.ScraperTimeout),
		analyzer: NewSentimentAnalyzer(),
		cache:    newSentimentCache(cfg.CacheTTL),
		cfg:      cfg,
	}
}

// GetSentiment returns cached or freshly scraped sentiment for a symbol.
// It never returns an error; failures come back as a neutral reading
// with zero headlines, which downstream consumers ignore.
func (s *Service) GetSentiment(ctx context.Context, symbol string) (types.NewsSentiment, error) {
	if !s.cfg.Enabled {
		return types.NewsSentiment{
			Symbol:    symbol,
			Label:     "NEUTRAL",
			Summary:   "sentiment analysis disabled",
			Timestamp: time.Now().Unix(),
		}, nil
	}

	if cached, ok := s.cache.get(symbol); ok {
		logger.Debug(ctx, "Using cached sentiment", "symbol", symbol,
			"age_minutes", time.Since(time.Unix(cached.Timestamp, 0)).Minutes())
		return cached, nil
	}

	logger.Info(ctx, "Fetching fresh news sentiment", "symbol", symbol)
	sentiment, err := s.fetchFreshSentiment(ctx, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch sentiment", err, "symbol", symbol)
		return types.NewsSentiment{
			Symbol:    symbol,
			Label:     "NEUTRAL",
			Summary:   "sentiment unavailable: " + err.Error(),
			Timestamp: time.Now().Unix(),
		}, nil
	}

	s.cache.set(symbol, sentiment)

	return sentiment, nil
}

// fetchFreshSentiment scrapes and scores headlines for a symbol.
func (s *Service) fetchFreshSentiment(ctx context.Context, symbol string) (types.NewsSentiment, error) {
	articles, err := s.scraper.ScrapeNews(ctx, symbol, s.cfg.MaxArticles)
	if err != nil {
		return types.NewsSentiment{}, err
	}

	if len(articles) == 0 {
		logger.Info(ctx, "No articles from primary sources, trying Google News", "symbol", symbol)
		articles, err = s.scraper.ScrapeGoogleNews(ctx, symbol, s.cfg.MaxArticles)
		if err != nil {
			logger.ErrorWithErr(ctx, "Google News fallback failed", err, "symbol", symbol)
		}
	}

	sentiment := s.analyzer.Analyze(symbol, articles)

	logger.Info(ctx, "Sentiment analysis completed", "symbol", symbol,
		"label", sentiment.Label, "score", sentiment.Score, "headlines", sentiment.Headlines)

	return sentiment, nil
}

// RefreshSentiment bypasses the cache and refetches.
func (s *Service) RefreshSentiment(ctx context.Context, symbol string) (types.NewsSentiment, error) {
	sentiment, err := s.fetchFreshSentiment(ctx, symbol)
	if err != nil {
		return types.NewsSentiment{}, err
	}

	s.cache.set(symbol, sentiment)
	return sentiment, nil
}

// ClearCache drops all cached sentiment.
func (s *Service) ClearCache() {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	s.cache.data = make(map[string]*cacheEntry)
}

// GetCachedSymbols lists symbols with cached sentiment.
func (s *Service) GetCachedSymbols() []string {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()

	symbols := make([]string, 0, len(s.cache.data))
	for symbol := range s.cache.data {
		symbols = append(symbols, symbol)
	}
	return symbols
}
