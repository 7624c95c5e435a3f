package cache

import (
	"sync"
	"time"
)

// sweepAt is the entry count above which SetBytes drops expired entries.
const sweepAt = 4096

type entry struct {
	b   []byte
	exp time.Time
}

func (e entry) expired(now time.Time) bool { return !e.exp.IsZero() && now.After(e.exp) }

// TTLCache is the in-process BytesCache used when redis is not configured.
type TTLCache struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]entry), now: time.Now}
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.b, true, nil
}

// SetBytes stores value. A non-positive ttl never expires.
func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	now := c.now()
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.m) >= sweepAt {
		for k, e := range c.m {
			if e.expired(now) {
				delete(c.m, k)
			}
		}
	}
	c.m[key] = entry{b: value, exp: exp}
	return nil
}

func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
