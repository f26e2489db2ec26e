package token

import (
	"sync"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

type cacheEntry struct {
	token     domain.Token
	refreshed time.Time
}

// registryCache is the in-process token cache. Freshness is judged per read
// against the configured window, so a stale entry can still be served as a
// fallback when the external feed is down.
type registryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newRegistryCache() *registryCache {
	return &registryCache{
		entries: make(map[string]cacheEntry),
	}
}

// get returns the cached token and whether its price is still fresh.
// Freshness is judged against the price's own timestamp, not the cache
// insertion time: a cache warmed from the database must not revive a price
// persisted long before the freshness window.
func (c *registryCache) get(address string, freshness time.Duration) (domain.Token, bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[address]
	if !ok {
		return domain.Token{}, false, false
	}
	priced := entry.refreshed
	if t := entry.token.LastUpdated; !t.IsZero() && t.Before(priced) {
		priced = t
	}
	fresh := time.Since(priced) < freshness && entry.token.LastPrice != "" && entry.token.LastPrice != "0"
	return entry.token, true, fresh
}

func (c *registryCache) set(token domain.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[token.Address] = cacheEntry{
		token:     token,
		refreshed: time.Now(),
	}
}

// addresses returns every cached token address.
func (c *registryCache) addresses() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.entries))
	for addr := range c.entries {
		out = append(out, addr)
	}
	return out
}
