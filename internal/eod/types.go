package eod

// aggRow collects one symbol's buys and sells for the day. Realized PnL
// is summed straight off the sell entries, which the ledger computed at
// exit time, so a position opened on an earlier day still adds up right.
type aggRow struct {
	Symbol      string
	BuyQty      float64
	BuyValue    float64
	SellQty     float64
	SellValue   float64
	RealizedPnL float64
}
