package eod

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

// summaryHour is the UTC hour after which the closed day's summary may
// be generated. Crypto never closes, so the trading day simply ends at
// UTC midnight and the default hour is 0.
func summaryHour() int {
	if v := os.Getenv("TRADER_EOD_HOUR"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			return h
		}
	}
	return 0
}

func eodCSVPath(day time.Time) string {
	return filepath.Join(logDir(), "eod", day.UTC().Format("2006-01-02")+".csv")
}

// closedDay is the most recent fully elapsed UTC day.
func closedDay(now time.Time) time.Time {
	return now.UTC().AddDate(0, 0, -1)
}
