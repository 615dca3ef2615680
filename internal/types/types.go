package types

import "time"

type Candle struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

// MarketSnapshot is rebuilt every cycle and discarded after use.
type MarketSnapshot struct {
	Symbol       string
	CurrentPrice float64
	Change24hPct float64
	Window12h    []Candle
	Window24h    []Candle
	Window48h    []Candle
	FetchedAt    time.Time
}

type PivotLevels struct {
	PP, R1, R2, S1, S2 float64
}

type CrossSignal int

const (
	CrossNone CrossSignal = iota
	CrossUp
	CrossDown
)

func (c CrossSignal) String() string {
	switch c {
	case CrossUp:
		return "UP"
	case CrossDown:
		return "DOWN"
	}
	return "NONE"
}

// IndicatorSet is derived per cycle from the 48h window.
type IndicatorSet struct {
	SMAShort, SMALong float64
	RSI               float64
	Cross             CrossSignal
	EMAFast, EMASlow  float64
	MACDHist          float64
	Volatility        float64
}

const (
	StrongBuy  = "STRONG_BUY"
	Buy        = "BUY"
	Hold       = "HOLD"
	Sell       = "SELL"
	StrongSell = "STRONG_SELL"

	SourceAI       = "AI"
	SourceFallback = "FALLBACK"

	StateIdle         = "IDLE"
	StatePositionOpen = "POSITION_OPEN"
)

// Recommendation is always produced, never absent: when the AI backend is
// unusable the fallback calculator fills it and Source says so.
type Recommendation struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	BuyTarget  float64 `json:"buy_target"`
	SellTarget float64 `json:"sell_target"`
	Reasoning  string  `json:"reasoning"`
	Source     string  `json:"source"`
	At         int64   `json:"at"`
}

func (r Recommendation) WantsBuy() bool  { return r.Action == Buy || r.Action == StrongBuy }
func (r Recommendation) WantsSell() bool { return r.Action == Sell || r.Action == StrongSell }

// ExitTargets are the levels the engine is currently acting on, after
// folding the recommendation into the configured defaults. Zero means
// the level is not set.
type ExitTargets struct {
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	BuyTarget  float64 `json:"buy_target"`
	SellTarget float64 `json:"sell_target"`
}

type OrderReq struct {
	Symbol, Side  string
	Qty           float64
	ClientOrderID string
	Tag           string
}

// Fill is the exchange's confirmation of an executed order.
type Fill struct {
	OrderID   string  `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Qty       float64 `json:"qty"`
	Ts        int64   `json:"ts"`
	Simulated bool    `json:"simulated"`
}

// OrderRejectedError marks an order the exchange refused to execute.
// The order did not fill and no balance moved.
type OrderRejectedError struct {
	Reason string
}

func (e *OrderRejectedError) Error() string { return "order rejected: " + e.Reason }

// Position holds the single open long; Qty 0 means flat.
type Position struct {
	EntryPrice float64   `json:"entry_price"`
	Qty        float64   `json:"qty"`
	Side       string    `json:"side"`
	OpenedAt   time.Time `json:"opened_at"`
}

// TradeRecord is appended on every fill and never mutated afterwards.
// RealizedPnL is zero for entries.
type TradeRecord struct {
	Ts          int64   `json:"ts"`
	Side        string  `json:"side"`
	Price       float64 `json:"price"`
	Qty         float64 `json:"qty"`
	RealizedPnL float64 `json:"realized_pnl"`
	Reason      string  `json:"reason,omitempty"`
}

// TradeStats aggregates the closed-trade history.
type TradeStats struct {
	Closed      int     `json:"closed"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	LargestWin  float64 `json:"largest_win"`
	LargestLoss float64 `json:"largest_loss"`
}

// PortfolioSnapshot is a deep copy of the ledger state, safe to hand to
// the report renderer or the status API without further locking.
type PortfolioSnapshot struct {
	Balances    map[string]float64 `json:"balances"`
	Position    *Position          `json:"position,omitempty"`
	RealizedPnL float64            `json:"realized_pnl"`
	Trades      []TradeRecord      `json:"trades"`
	Stats       TradeStats         `json:"stats"`
	TakenAt     time.Time          `json:"taken_at"`
}

type Decision struct {
	Action     string  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

type StepResult struct {
	Symbol     string         `json:"symbol"`
	State      string         `json:"state"`
	Decision   Decision       `json:"decision"`
	Price      float64        `json:"price"`
	Time       int64          `json:"time"`
	Fill       *Fill          `json:"fill,omitempty"`
	Rec        Recommendation `json:"recommendation"`
	Targets    ExitTargets    `json:"targets"`
	Indicators IndicatorSet   `json:"-"`
	Pivots     PivotLevels    `json:"-"`
	Skipped    string         `json:"skipped,omitempty"`
}

// AdvisorContext carries the portfolio side of the advisor prompt.
type AdvisorContext struct {
	QuoteBalance float64
	BaseBalance  float64
	Position     *Position
	RealizedPnL  float64
	Sentiment    *NewsSentiment
}

// NewsSentiment summarizes recent headlines for the advisor prompt.
type NewsSentiment struct {
	Symbol    string  `json:"symbol"`
	Label     string  `json:"label"` // BULLISH | BEARISH | NEUTRAL
	Score     float64 `json:"score"` // [-1,1]
	Headlines int     `json:"headlines"`
	Summary   string  `json:"summary"`
	Timestamp int64   `json:"timestamp"`
}

type NewsArticle struct {
	Title       string
	URL         string
	Source      string
	Summary     string
	PublishedAt string
}
