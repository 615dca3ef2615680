package tradelog

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var mu sync.Mutex

// Entry is one executed fill. Qty is fractional because crypto pairs
// trade in fractions of the base asset.
type Entry struct {
	Time, Symbol, Side, OrderID, Reason string
	Qty                                 float64
	Price                               float64
	Confidence                          float64
	Source                              string         `json:",omitempty"` // AI | FALLBACK
	RealizedPnL                         float64        `json:",omitempty"`
	Simulated                           bool           `json:",omitempty"`
	Extra                               map[string]any `json:"extra,omitempty"`
}

// DecisionEntry records every cycle's decision, traded or not.
type DecisionEntry struct {
	Time, Symbol, State, Action, Reason string
	Source                              string
	Confidence                          float64
	Price                               float64
	Indicators                          map[string]float64
	Extra                               map[string]any `json:"extra,omitempty"`
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

// Files roll at UTC midnight, matching the daily trade cap window.
func dailyFilepath(t time.Time) string {
	return filepath.Join(logDir(), t.UTC().Format("2006-01-02")+".txt")
}

func decisionsFilepath(t time.Time) string {
	return filepath.Join(logDir(), "decisions", t.UTC().Format("2006-01-02")+".txt")
}

func Append(e Entry) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().UTC()
	e.Time = now.Format("2006-01-02 15:04:05")
	return appendLine(dailyFilepath(now), e)
}

func AppendDecision(e DecisionEntry) error {
	mu.Lock()
	defer mu.Unlock()
	now := time.Now().UTC()
	e.Time = now.Format("2006-01-02 15:04:05")
	return appendLine(decisionsFilepath(now), e)
}

func appendLine(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, _ := json.Marshal(v)
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// ReadDay returns the fill entries logged on the given UTC day, oldest
// first. A missing file means no trades that day.
func ReadDay(day time.Time) ([]Entry, error) {
	mu.Lock()
	defer mu.Unlock()

	data, err := os.ReadFile(dailyFilepath(day))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []Entry
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			// A torn trailing line loses that line, not the day.
			break
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// CompressOlder gzips daily files older than the retention window.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(logDir(), func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := os.Stat(p)
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		compressFile(p)
		return nil
	})
}

func compressFile(p string) {
	gz := p + ".gz"
	if _, err := os.Stat(gz); err == nil {
		_ = os.Remove(p)
		return
	}

	in, err := os.Open(p)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return
	}

	gw := gzip.NewWriter(out)
	_, copyErr := io.Copy(gw, in)
	_ = gw.Close()
	_ = out.Close()
	if copyErr != nil {
		_ = os.Remove(gz)
		return
	}
	_ = os.Remove(p)
}
