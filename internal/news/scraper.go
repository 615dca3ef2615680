package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/types"
)

// Scraper pulls recent headlines from a fixed set of crypto news sites.
type Scraper struct {
	sources []NewsSource
	timeout time.Duration
}

// NewsSource describes one site: where its tag/search pages live and
// which selectors pick articles out of the listing markup.
type NewsSource struct {
	Name       string
	BaseURL    string
	SearchPath string // contains {query}, e.g. "/tag/{query}/"
	Selectors  ArticleSelectors
	RateLimit  time.Duration
}

// ArticleSelectors are the CSS selectors for one source's listing page.
type ArticleSelectors struct {
	Container   string
	Title       string
	Link        string
	Summary     string
	PublishedAt string
}

const scraperUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewScraper creates a scraper over the default source list.
func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{
		sources: getDefaultSources(),
		timeout: timeout,
	}
}

// getDefaultSources returns the crypto news sites to scrape. Selectors
// track each site's current listing markup and will need updating when
// a site redesigns.
func getDefaultSources() []NewsSource {
	return []NewsSource{
		{
			Name:       "CoinDesk",
			BaseURL:    "https://www.coindesk.com",
			SearchPath: "/tag/{query}/",
			Selectors: ArticleSelectors{
				Container:   "article",
				Title:       "h2, h3",
				Link:        "a",
				Summary:     "p",
				PublishedAt: "time",
			},
			RateLimit: time.Second,
		},
		{
			Name:       "CoinTelegraph",
			BaseURL:    "https://cointelegraph.com",
			SearchPath: "/tags/{query}",
			Selectors: ArticleSelectors{
				Container:   "article.post-card-inline",
				Title:       "span.post-card-inline__title",
				Link:        "a.post-card-inline__title-link",
				Summary:     "p.post-card-inline__text",
				PublishedAt: "time",
			},
			RateLimit: time.Second,
		},
		{
			Name:       "CryptoSlate",
			BaseURL:    "https://cryptoslate.com",
			SearchPath: "/news/{query}/",
			Selectors: ArticleSelectors{
				Container:   "div.list-post",
				Title:       "h2",
				Link:        "a",
				Summary:     "p",
				PublishedAt: "time",
			},
			RateLimit: time.Second,
		},
	}
}

// coinNames maps base assets to the names news sites tag articles with.
var coinNames = map[string]string{
	"BTC": "bitcoin", "ETH": "ethereum", "BNB": "bnb",
	"XRP": "xrp", "ADA": "cardano", "SOL": "solana",
	"DOT": "polkadot", "DOGE": "dogecoin", "MATIC": "polygon",
	"LTC": "litecoin", "AVAX": "avalanche", "LINK": "chainlink",
	"ATOM": "cosmos", "UNI": "uniswap", "XLM": "stellar",
}

// searchTerm turns a trading symbol into the term news sites index by.
// BTCUSDT becomes "bitcoin"; unknown bases fall back to the lowercased
// ticker, which most sites accept as a tag too.
func searchTerm(symbol string) string {
	base := strings.ToUpper(symbol)
	for _, suffix := range []string{"USDT", "USD"} {
		base = strings.TrimSuffix(base, suffix)
	}
	if name, ok := coinNames[base]; ok {
		return name
	}
	return strings.ToLower(base)
}

// ScrapeNews fetches headlines for a symbol from every configured source.
// A source that fails is skipped; the caller gets whatever the rest found.
func (s *Scraper) ScrapeNews(ctx context.Context, symbol string, maxArticles int) ([]types.NewsArticle, error) {
	query := searchTerm(symbol)
	logger.Info(ctx, "Starting news scrape", "symbol", symbol, "query", query, "sources", len(s.sources))

	allArticles := []types.NewsArticle{}
	articlesPerSource := maxArticles / len(s.sources)
	if articlesPerSource < 1 {
		articlesPerSource = 1
	}

	for _, source := range s.sources {
		if ctx.Err() != nil {
			break
		}

		articles, err := s.scrapeSource(ctx, source, query, articlesPerSource)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to scrape source", err, "source", source.Name, "query", query)
			continue
		}
		allArticles = append(allArticles, articles...)

		// Stay polite between sources.
		time.Sleep(source.RateLimit)
	}

	logger.Info(ctx, "News scrape completed", "symbol", symbol, "articles", len(allArticles))
	return allArticles, nil
}

// scrapeSource pulls the listing page of a single source.
func (s *Scraper) scrapeSource(ctx context.Context, source NewsSource, query string, maxArticles int) ([]types.NewsArticle, error) {
	articles := []types.NewsArticle{}

	c := colly.NewCollector(
		colly.AllowedDomains(getDomain(source.BaseURL)),
		colly.MaxDepth(1),
		colly.Async(false),
	)

	c.SetRequestTimeout(s.timeout)

	// Default Go user agent gets blocked by most news CDNs.
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", scraperUserAgent)
	})

	c.OnHTML(source.Selectors.Container, func(e *colly.HTMLElement) {
		if len(articles) >= maxArticles {
			return
		}

		title := strings.TrimSpace(e.ChildText(source.Selectors.Title))
		if title == "" {
			return
		}

		articleURL := e.ChildAttr(source.Selectors.Link, "href")
		if articleURL == "" {
			return
		}
		if !strings.HasPrefix(articleURL, "http") {
			articleURL = source.BaseURL + articleURL
		}

		summary := strings.TrimSpace(e.ChildText(source.Selectors.Summary))
		publishedAt := strings.TrimSpace(e.ChildText(source.Selectors.PublishedAt))

		articles = append(articles, types.NewsArticle{
			Title:       title,
			URL:         articleURL,
			Source:      source.Name,
			Summary:     summary,
			PublishedAt: publishedAt,
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.ErrorWithErr(ctx, "Scrape request failed", err, "source", source.Name, "url", r.Request.URL.String())
	})

	searchURL := source.BaseURL + strings.ReplaceAll(source.SearchPath, "{query}", query)

	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", searchURL, err)
	}

	c.Wait()

	articles = s.enrichArticles(ctx, articles)

	return articles, nil
}

// enrichArticles fetches lead paragraphs for articles whose listing
// snippet was too thin to score.
func (s *Scraper) enrichArticles(ctx context.Context, articles []types.NewsArticle) []types.NewsArticle {
	enriched := make([]types.NewsArticle, len(articles))
	copy(enriched, articles)

	for i := range enriched {
		if ctx.Err() != nil {
			break
		}
		if len(enriched[i].Summary) >= 80 {
			continue
		}

		if lead := s.fetchArticleLead(ctx, enriched[i].URL); lead != "" {
			enriched[i].Summary = lead
		}

		time.Sleep(250 * time.Millisecond)
	}

	return enriched
}

// fetchArticleLead fetches the opening paragraphs of an article page.
// The first few paragraphs carry the substance; the rest is context
// the scorer does not need.
func (s *Scraper) fetchArticleLead(ctx context.Context, articleURL string) string {
	c := colly.NewCollector()
	c.SetRequestTimeout(s.timeout)

	var lead string

	c.OnHTML("article, div.article-body, div.post-content, div.entry-content", func(e *colly.HTMLElement) {
		paragraphs := []string{}
		e.DOM.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := strings.TrimSpace(sel.Text())
			if text != "" && len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
			return len(paragraphs) < 3
		})
		lead = strings.Join(paragraphs, "\n\n")
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", scraperUserAgent)
	})

	if err := c.Visit(articleURL); err != nil {
		logger.Debug(ctx, "Failed to fetch article lead", "url", articleURL, "error", err.Error())
		return ""
	}

	return lead
}

// getDomain extracts the hostname from a URL.
func getDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// ScrapeGoogleNews is the fallback when the primary sources return
// nothing, usually because a site redesigned under its selectors.
func (s *Scraper) ScrapeGoogleNews(ctx context.Context, symbol string, maxArticles int) ([]types.NewsArticle, error) {
	articles := []types.NewsArticle{}

	c := colly.NewCollector(
		colly.AllowedDomains("news.google.com", "www.google.com"),
	)

	c.SetRequestTimeout(s.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", scraperUserAgent)
	})

	c.OnHTML("article", func(e *colly.HTMLElement) {
		if len(articles) >= maxArticles {
			return
		}

		title := e.ChildText("h3, h4")
		link := e.ChildAttr("a", "href")

		if title != "" && link != "" {
			// Google News links are relative redirect stubs.
			if strings.HasPrefix(link, "./articles/") {
				link = "https://news.google.com" + link[1:]
			}

			articles = append(articles, types.NewsArticle{
				Title:  title,
				URL:    link,
				Source: "GoogleNews",
			})
		}
	})

	query := url.QueryEscape(searchTerm(symbol) + " crypto")
	searchURL := fmt.Sprintf("https://news.google.com/search?q=%s&hl=en-US&gl=US&ceid=US:en", query)

	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to scrape Google News: %w", err)
	}

	c.Wait()

	logger.Info(ctx, "Google News scrape completed", "symbol", symbol, "articles", len(articles))
	return articles, nil
}
