package ratelimit

import (
	"errors"
	"testing"
	"time"
)

func TestLimiterDrainsAndRefills(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New()
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("finnhub", 3, 1) {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if l.Allow("finnhub", 3, 1) {
		t.Fatalf("bucket should be empty")
	}
	if err := l.Take("finnhub", 3, 1); !errors.Is(err, ErrLimited) {
		t.Fatalf("expected ErrLimited, got %v", err)
	}

	now = now.Add(2 * time.Second)
	if !l.Allow("finnhub", 3, 1) || !l.Allow("finnhub", 3, 1) {
		t.Fatalf("two tokens should have refilled")
	}
	if l.Allow("finnhub", 3, 1) {
		t.Fatalf("only two tokens should have refilled")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New()
	if !l.Allow("a", 1, 0) || l.Allow("a", 1, 0) {
		t.Fatalf("bucket a should allow exactly one call")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatalf("bucket b should be full")
	}
}
