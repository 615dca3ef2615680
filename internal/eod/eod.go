package eod

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"crypto-trading-bot/internal/tradelog"
)

type summarizer struct {
	now func() time.Time
}

// SummarizeDay reads the day's fill log and writes a per-symbol CSV with
// a TOTAL footer under logs/eod/. No trades means no file.
func (s *summarizer) SummarizeDay(day time.Time) (string, error) {
	entries, err := tradelog.ReadDay(day)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}

	aggs := map[string]*aggRow{}
	for _, e := range entries {
		row := aggs[e.Symbol]
		if row == nil {
			row = &aggRow{Symbol: e.Symbol}
			aggs[e.Symbol] = row
		}
		switch e.Side {
		case "BUY":
			row.BuyQty += e.Qty
			row.BuyValue += e.Qty * e.Price
		case "SELL":
			row.SellQty += e.Qty
			row.SellValue += e.Qty * e.Price
			row.RealizedPnL += e.RealizedPnL
		}
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := eodCSVPath(day)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()

	headers := []string{"symbol", "buy_qty", "buy_avg", "sell_qty", "sell_avg", "realized_pnl", "gross_buy_value", "gross_sell_value"}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	var totalBuy, totalSell, totalPnL float64
	for _, k := range keys {
		r := aggs[k]
		var buyAvg, sellAvg float64
		if r.BuyQty > 0 {
			buyAvg = r.BuyValue / r.BuyQty
		}
		if r.SellQty > 0 {
			sellAvg = r.SellValue / r.SellQty
		}
		rec := []string{
			r.Symbol,
			fmt.Sprintf("%.8f", r.BuyQty),
			fmt.Sprintf("%.4f", buyAvg),
			fmt.Sprintf("%.8f", r.SellQty),
			fmt.Sprintf("%.4f", sellAvg),
			fmt.Sprintf("%.2f", r.RealizedPnL),
			fmt.Sprintf("%.2f", r.BuyValue),
			fmt.Sprintf("%.2f", r.SellValue),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		totalBuy += r.BuyValue
		totalSell += r.SellValue
		totalPnL += r.RealizedPnL
	}
	_ = w.Write([]string{"TOTAL", "", "", "", "", fmt.Sprintf("%.2f", totalPnL), fmt.Sprintf("%.2f", totalBuy), fmt.Sprintf("%.2f", totalSell)})
	return outPath, nil
}

func (s *summarizer) SummarizeClosedDay() (string, error) {
	return s.SummarizeDay(closedDay(s.now()))
}

// ShouldRunNow fires once per day: past the summary hour, for a closed
// day that had trades and has no CSV yet.
func (s *summarizer) ShouldRunNow() (bool, string) {
	now := s.now().UTC()
	day := closedDay(now)
	outPath := eodCSVPath(day)

	if now.Hour() < summaryHour() {
		return false, outPath
	}
	if _, err := os.Stat(outPath); !errors.Is(err, os.ErrNotExist) {
		return false, outPath
	}
	entries, err := tradelog.ReadDay(day)
	if err != nil || len(entries) == 0 {
		return false, outPath
	}
	return true, outPath
}
