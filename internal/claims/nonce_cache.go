package claims

import (
	"sync"
	"time"
)

// nonceCache is a short-lived set of consumed nonces. Entries only need to
// live for the claim freshness window; after that the timestamp check
// rejects the claim anyway.
type nonceCache struct {
	mu   sync.Mutex
	seen map[string]time.Time // nonce -> expiry
	now  func() time.Time
}

func newNonceCache(now func() time.Time) *nonceCache {
	c := &nonceCache{
		seen: make(map[string]time.Time),
		now:  now,
	}
	go c.sweep()
	return c
}

// consume records the nonce and reports whether it was fresh. A second call
// with the same nonce before expiry returns false.
func (c *nonceCache) consume(nonce string, expiresAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if expiry, ok := c.seen[nonce]; ok && c.now().Before(expiry) {
		return false
	}
	c.seen[nonce] = expiresAt
	return true
}

// sweep periodically drops expired entries to bound memory.
func (c *nonceCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := c.now()
		for nonce, expiry := range c.seen {
			if now.After(expiry) {
				delete(c.seen, nonce)
			}
		}
		c.mu.Unlock()
	}
}
