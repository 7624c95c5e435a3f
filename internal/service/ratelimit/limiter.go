package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrLimited means the key's bucket is empty.
var ErrLimited = errors.New("rate limited")

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter keeps one token bucket per key. Outbound provider calls use the
// provider name as key so a chatty symbol cannot exhaust a free-tier quota.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*bucket
	now func() time.Time
}

func New() *Limiter { return &Limiter{m: make(map[string]*bucket), now: time.Now} }

// Allow consumes one token for key if available. The bucket is created full
// on first use with the given capacity and refill rate.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Take is Allow returning ErrLimited instead of false.
func (l *Limiter) Take(key string, capacity, refillPerSec float64) error {
	if !l.Allow(key, capacity, refillPerSec) {
		return ErrLimited
	}
	return nil
}
