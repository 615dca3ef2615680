package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Symbol        string        `yaml:"symbol"`
	Exchange      string        `yaml:"exchange"` // BINANCE or SIMULATION
	Mode          string        `yaml:"mode"`     // LIVE or DRY_RUN
	CycleInterval time.Duration `yaml:"cycle_interval"`
	CycleDeadline time.Duration `yaml:"cycle_deadline"`
	ReportPath    string        `yaml:"report_path"`

	Limiter struct {
		MaxTradesPerDay int    `yaml:"max_trades_per_day"`
		StatePath       string `yaml:"state_path"`
	} `yaml:"limiter"`

	Trading struct {
		BuyFraction   float64 `yaml:"buy_fraction"`
		StopLossPct   float64 `yaml:"stop_loss_pct"`
		TakeProfitPct float64 `yaml:"take_profit_pct"`
	} `yaml:"trading"`

	Indicators struct {
		SMAShort  int `yaml:"sma_short"`
		SMALong   int `yaml:"sma_long"`
		RSIPeriod int `yaml:"rsi_period"`
	} `yaml:"indicators"`

	LLM struct {
		Provider        string        `yaml:"provider"` // OLLAMA or NONE
		URL             string        `yaml:"url"`
		Model           string        `yaml:"model"`
		Temperature     float64       `yaml:"temperature"`
		NumPredict      int           `yaml:"num_predict"`
		Timeout         time.Duration `yaml:"timeout"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
	} `yaml:"llm"`

	MarketData struct {
		Provider      string        `yaml:"provider"`
		BaseURL       string        `yaml:"base_url"`
		CoinID        string        `yaml:"coin_id"` // optional override of the symbol mapping
		CacheTTL      time.Duration `yaml:"cache_ttl"`
		MinRequestGap time.Duration `yaml:"min_request_gap"`
	} `yaml:"marketdata"`

	News struct {
		Enabled     bool          `yaml:"enabled"`
		MaxArticles int           `yaml:"max_articles"`
		CacheTTL    time.Duration `yaml:"cache_ttl"`
	} `yaml:"news"`

	Simulation struct {
		InitialBalance float64 `yaml:"initial_balance"`
		Volatility     float64 `yaml:"volatility"`
	} `yaml:"simulation"`

	API struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"api"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// BaseAsset returns the traded asset of the pair, e.g. BTC for BTCUSDT.
func (c *Config) BaseAsset() string {
	return strings.TrimSuffix(strings.ToUpper(c.Symbol), "USDT")
}

// QuoteAsset is fixed to USDT pairs for now.
func (c *Config) QuoteAsset() string { return "USDT" }

func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if c.Exchange != "BINANCE" && c.Exchange != "SIMULATION" {
		return fmt.Errorf("invalid exchange '%s': must be 'BINANCE' or 'SIMULATION'", c.Exchange)
	}
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Limiter.MaxTradesPerDay <= 0 {
		return fmt.Errorf("limiter.max_trades_per_day must be positive, got %d", c.Limiter.MaxTradesPerDay)
	}
	if c.Trading.BuyFraction <= 0 || c.Trading.BuyFraction > 1 {
		return fmt.Errorf("trading.buy_fraction must be in (0,1], got %.4f", c.Trading.BuyFraction)
	}
	if c.Indicators.SMAShort >= c.Indicators.SMALong {
		return fmt.Errorf("indicators.sma_short (%d) must be below sma_long (%d)", c.Indicators.SMAShort, c.Indicators.SMALong)
	}
	if c.Indicators.RSIPeriod < 2 {
		return fmt.Errorf("indicators.rsi_period must be at least 2, got %d", c.Indicators.RSIPeriod)
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("cycle_interval must be positive, got %v", c.CycleInterval)
	}
	if c.CycleDeadline <= 0 || c.CycleDeadline > c.CycleInterval {
		return fmt.Errorf("cycle_deadline must be positive and at most cycle_interval, got %v", c.CycleDeadline)
	}
	if c.LLM.Provider != "OLLAMA" && c.LLM.Provider != "NONE" {
		return fmt.Errorf("llm.provider must be 'OLLAMA' or 'NONE', got '%s'", c.LLM.Provider)
	}
	return nil
}

// LoadConfig reads the yaml file (a missing file yields pure defaults),
// fills defaults, applies environment overrides, and validates.
func LoadConfig(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Symbol == "" {
		c.Symbol = "BTCUSDT"
	}
	if c.Exchange == "" {
		c.Exchange = "SIMULATION"
	}
	if c.Mode == "" {
		c.Mode = "DRY_RUN"
	}
	if c.CycleInterval == 0 {
		c.CycleInterval = 30 * time.Second
	}
	if c.CycleDeadline == 0 {
		c.CycleDeadline = 25 * time.Second
	}
	if c.ReportPath == "" {
		c.ReportPath = "portfolio_status.txt"
	}
	if c.Limiter.MaxTradesPerDay == 0 {
		c.Limiter.MaxTradesPerDay = 2
	}
	if c.Limiter.StatePath == "" {
		c.Limiter.StatePath = "daily_trades.json"
	}
	if c.Trading.BuyFraction == 0 {
		c.Trading.BuyFraction = 0.10
	}
	if c.Trading.StopLossPct == 0 {
		c.Trading.StopLossPct = 5.0
	}
	if c.Trading.TakeProfitPct == 0 {
		c.Trading.TakeProfitPct = 10.0
	}
	if c.Indicators.SMAShort == 0 {
		c.Indicators.SMAShort = 12
	}
	if c.Indicators.SMALong == 0 {
		c.Indicators.SMALong = 48
	}
	if c.Indicators.RSIPeriod == 0 {
		c.Indicators.RSIPeriod = 14
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "OLLAMA"
	}
	if c.LLM.URL == "" {
		c.LLM.URL = "http://localhost:11434"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "mistral"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.3
	}
	if c.LLM.NumPredict == 0 {
		c.LLM.NumPredict = 1000
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 120 * time.Second
	}
	if c.LLM.RefreshInterval == 0 {
		c.LLM.RefreshInterval = 5 * time.Minute
	}
	if c.MarketData.Provider == "" {
		c.MarketData.Provider = "COINGECKO"
	}
	if c.MarketData.BaseURL == "" {
		c.MarketData.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.MarketData.CacheTTL == 0 {
		c.MarketData.CacheTTL = time.Minute
	}
	if c.MarketData.MinRequestGap == 0 {
		c.MarketData.MinRequestGap = 1500 * time.Millisecond
	}
	if c.News.MaxArticles == 0 {
		c.News.MaxArticles = 10
	}
	if c.News.CacheTTL == 0 {
		c.News.CacheTTL = time.Hour
	}
	if c.Simulation.InitialBalance == 0 {
		c.Simulation.InitialBalance = 10000
	}
	if c.Simulation.Volatility == 0 {
		c.Simulation.Volatility = 0.002
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8089"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// applyEnvOverrides keeps the flat environment surface of the original
// deployment scripts working alongside the yaml file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SYMBOL"); v != "" {
		c.Symbol = strings.ToUpper(v)
	}
	if v := os.Getenv("EXCHANGE"); v != "" {
		c.Exchange = strings.ToUpper(v)
	}
	if v := os.Getenv("SIMULATION_MODE"); v != "" {
		if parseBool(v) {
			c.Exchange = "SIMULATION"
		} else {
			c.Exchange = "BINANCE"
		}
	}
	if v := os.Getenv("REPORT_PATH"); v != "" {
		c.ReportPath = v
	}
	if v := os.Getenv("MAX_TRADES_PER_DAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Limiter.MaxTradesPerDay = n
		}
	}
	if v := os.Getenv("STOP_LOSS_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Trading.StopLossPct = f
		}
	}
	if v := os.Getenv("TAKE_PROFIT_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Trading.TakeProfitPct = f
		}
	}
	if v := os.Getenv("OLLAMA_ENABLED"); v != "" {
		if parseBool(v) {
			c.LLM.Provider = "OLLAMA"
		} else {
			c.LLM.Provider = "NONE"
		}
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		c.LLM.URL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("SIMULATION_INITIAL_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Simulation.InitialBalance = f
		}
	}
	if v := os.Getenv("SIMULATION_PRICE_VOLATILITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Simulation.Volatility = f
		}
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// BinanceAPIKey and BinanceAPISecret stay env-only so credentials never
// land in the yaml file.
func BinanceAPIKey() string    { return os.Getenv("BINANCE_API_KEY") }
func BinanceAPISecret() string { return os.Getenv("BINANCE_API_SECRET") }
