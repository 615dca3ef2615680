package marketdata

import (
	"sync"
	"time"

	"crypto-trading-bot/internal/types"
)

// snapshotCache keeps the last snapshot per symbol so back-to-back cycles
// do not burn API quota on identical data.
type snapshotCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]cacheEntry
}

type cacheEntry struct {
	snap     *types.MarketSnapshot
	storedAt time.Time
}

func newSnapshotCache(ttl time.Duration) *snapshotCache {
	return &snapshotCache{
		ttl: ttl,
		m:   make(map[string]cacheEntry),
	}
}

func (c *snapshotCache) get(symbol string) (*types.MarketSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.m[symbol]
	if !ok || time.Since(e.storedAt) > c.ttl {
		return nil, false
	}
	return e.snap, true
}

func (c *snapshotCache) set(symbol string, snap *types.MarketSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[symbol] = cacheEntry{snap: snap, storedAt: time.Now()}
}
