// Package cache holds short-lived copies of provider responses (profiles,
// news, FX tables) so repeated page loads do not spend provider quota.
package cache

import (
	"encoding/json"
	"time"
)

// BytesCache stores raw bytes with a TTL.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

// Fetch returns the cached JSON value for key, or calls load and caches the
// result for ttl. Cache errors degrade to a plain load.
func Fetch[T any](c BytesCache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if c != nil {
		if raw, ok, err := c.GetBytes(key); err == nil && ok {
			var v T
			if json.Unmarshal(raw, &v) == nil {
				return v, nil
			}
		}
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if c != nil {
		if raw, err := json.Marshal(v); err == nil {
			_ = c.SetBytes(key, raw, ttl)
		}
	}
	return v, nil
}
