package limiter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"crypto-trading-bot/internal/logger"
)

// DailyTradeState is the persisted per-day counter. It is owned by the
// Limiter and written back atomically after every change.
type DailyTradeState struct {
	Date      string `json:"date"`
	Count     int    `json:"count"`
	LastReset string `json:"last_reset"`
}

// Limiter enforces the per-UTC-day trade cap. All methods are safe for
// concurrent use; the state file is single-writer.
type Limiter struct {
	mu        sync.Mutex
	path      string
	maxPerDay int
	state     DailyTradeState

	now func() time.Time
}

// New loads the persisted state from path. A missing file starts fresh;
// a corrupt file is discarded with a warning rather than blocking startup.
func New(path string, maxPerDay int) (*Limiter, error) {
	l := &Limiter{
		path:      path,
		maxPerDay: maxPerDay,
		now:       time.Now,
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read trade state %s: %w", path, err)
		}
		return l, nil
	}
	if err := json.Unmarshal(b, &l.state); err != nil {
		logger.Warn(context.Background(), "Discarding corrupt daily trade state",
			"path", path,
			"error", err.Error())
		l.state = DailyTradeState{}
	}
	return l, nil
}

// CanTrade reports whether another trade is allowed today. The day-rollover
// check runs first, so a stale count from yesterday never blocks a trade.
// A failed rollover persist is returned as an error and blocks trading.
func (l *Limiter) CanTrade(nowUTC time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.resetIfNewDay(nowUTC); err != nil {
		return false, err
	}
	return l.state.Count < l.maxPerDay, nil
}

// RecordTrade charges one trade against today's cap and persists the new
// count before returning. On a persist failure the in-memory count is
// rolled back so the caller can safely abort the order.
func (l *Limiter) RecordTrade(side string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.resetIfNewDay(l.now()); err != nil {
		return err
	}
	l.state.Count++
	if err := l.persist(); err != nil {
		l.state.Count--
		return fmt.Errorf("failed to persist trade count for %s: %w", side, err)
	}
	return nil
}

// Refund returns a previously recorded trade to today's budget, used when
// the exchange rejects the order after the count was charged. If the
// refund cannot be persisted the in-memory count still drops, leaving the
// on-disk state conservatively high.
func (l *Limiter) Refund(side string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.Count == 0 {
		return nil
	}
	l.state.Count--
	if err := l.persist(); err != nil {
		return fmt.Errorf("failed to persist refund for %s: %w", side, err)
	}
	return nil
}

// State returns a copy of the current persisted state.
func (l *Limiter) State() DailyTradeState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Max returns the configured daily cap.
func (l *Limiter) Max() int { return l.maxPerDay }

// resetIfNewDay zeroes the counter when the UTC calendar date advances.
// Dates compare lexicographically, so a clock that steps backward never
// triggers a retroactive reset. Caller must hold l.mu.
func (l *Limiter) resetIfNewDay(nowUTC time.Time) error {
	today := utcDate(nowUTC)
	if l.state.LastReset != "" && today <= l.state.LastReset {
		return nil
	}
	prev := l.state
	l.state.Date = today
	l.state.Count = 0
	l.state.LastReset = today
	if err := l.persist(); err != nil {
		l.state = prev
		return fmt.Errorf("failed to persist day rollover: %w", err)
	}
	return nil
}

// persist writes the state to a temporary file in the same directory and
// renames it over the real one, so a crash mid-write can never leave a
// half-written counter. Caller must hold l.mu.
func (l *Limiter) persist() error {
	b, err := json.MarshalIndent(&l.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trade state: %w", err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".trade-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func utcDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
