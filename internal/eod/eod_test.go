package eod

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"crypto-trading-bot/internal/tradelog"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// writeDayFile plants a fill log for an arbitrary day, bypassing
// tradelog.Append which always stamps the current time.
func writeDayFile(t *testing.T, dir string, day time.Time, entries []tradelog.Entry) {
	t.Helper()
	path := filepath.Join(dir, day.UTC().Format("2006-01-02")+".txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Expected day file created, got %v", err)
	}
	defer f.Close()
	for _, e := range entries {
		b, _ := json.Marshal(e)
		fmt.Fprintln(f, string(b))
	}
}

func TestSummarizeDayAggregates(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	writeDayFile(t, dir, day, []tradelog.Entry{
		{Symbol: "BTCUSDT", Side: "BUY", Qty: 0.02, Price: 42000},
		{Symbol: "BTCUSDT", Side: "BUY", Qty: 0.01, Price: 41000},
		{Symbol: "BTCUSDT", Side: "SELL", Qty: 0.03, Price: 43000, RealizedPnL: 50},
	})

	s := &summarizer{now: time.Now}
	path, err := s.SummarizeDay(day)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if path == "" {
		t.Fatal("Expected a CSV path")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Expected CSV readable, got %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Expected CSV parsable, got %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("Expected header, symbol row and TOTAL, got %d rows", len(rows))
	}
	sym := rows[1]
	if sym[0] != "BTCUSDT" {
		t.Errorf("Expected symbol BTCUSDT, got %s", sym[0])
	}
	if sym[1] != "0.03000000" {
		t.Errorf("Expected buy qty 0.03000000, got %s", sym[1])
	}
	// 0.02*42000 + 0.01*41000 = 1250 over 0.03 units
	if sym[2] != "41666.6667" {
		t.Errorf("Expected buy avg 41666.6667, got %s", sym[2])
	}
	if sym[4] != "43000.0000" {
		t.Errorf("Expected sell avg 43000.0000, got %s", sym[4])
	}
	if sym[5] != "50.00" {
		t.Errorf("Expected realized pnl 50.00, got %s", sym[5])
	}
	total := rows[2]
	if total[0] != "TOTAL" || total[5] != "50.00" {
		t.Errorf("Expected TOTAL row with pnl 50.00, got %v", total)
	}
}

func TestSummarizeDayWithoutTrades(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	s := &summarizer{now: time.Now}
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	path, err := s.SummarizeDay(day)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if path != "" {
		t.Errorf("Expected no CSV for an empty day, got %s", path)
	}
	if _, err := os.Stat(eodCSVPath(day)); !os.IsNotExist(err) {
		t.Error("Expected no CSV file on disk")
	}
}

func TestShouldRunNowLifecycle(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)

	now := time.Date(2025, 6, 2, 5, 0, 0, 0, time.UTC)
	s := &summarizer{now: fixedNow(now)}

	// Yesterday had no trades: nothing to do.
	if run, _ := s.ShouldRunNow(); run {
		t.Error("Expected no run without a trade log")
	}

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	writeDayFile(t, dir, day, []tradelog.Entry{
		{Symbol: "BTCUSDT", Side: "BUY", Qty: 0.02, Price: 42000},
	})

	run, csvPath := s.ShouldRunNow()
	if !run {
		t.Fatal("Expected a run for the unsummarized closed day")
	}
	if want := eodCSVPath(day); csvPath != want {
		t.Errorf("Expected path %s, got %s", want, csvPath)
	}

	if _, err := s.SummarizeClosedDay(); err != nil {
		t.Fatalf("Expected summary to succeed, got %v", err)
	}

	// Once the CSV exists the gate closes for the day.
	if run, _ := s.ShouldRunNow(); run {
		t.Error("Expected no second run after the summary was written")
	}
}

func TestShouldRunNowHonorsSummaryHour(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRADER_LOG_DIR", dir)
	t.Setenv("TRADER_EOD_HOUR", "6")

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	writeDayFile(t, dir, day, []tradelog.Entry{
		{Symbol: "BTCUSDT", Side: "SELL", Qty: 0.02, Price: 42000, RealizedPnL: 10},
	})

	early := &summarizer{now: fixedNow(time.Date(2025, 6, 2, 5, 59, 0, 0, time.UTC))}
	if run, _ := early.ShouldRunNow(); run {
		t.Error("Expected no run before the summary hour")
	}

	late := &summarizer{now: fixedNow(time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC))}
	if run, _ := late.ShouldRunNow(); !run {
		t.Error("Expected a run at the summary hour")
	}
}
