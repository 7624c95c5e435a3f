package cache

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestFetchCachesLoadedValue(t *testing.T) {
	c := NewTTLCache()
	calls := 0
	load := func() (map[string]float64, error) {
		calls++
		return map[string]float64{"EUR": 0.92}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Fetch(c, "fx:USD", time.Minute, load)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if got["EUR"] != 0.92 {
			t.Fatalf("unexpected value %v", got)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one load, got %d", calls)
	}
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	c := NewTTLCache()
	calls := 0
	load := func() (string, error) {
		calls++
		return "", errors.New("provider down")
	}
	_, _ = Fetch(c, "k", time.Minute, load)
	_, _ = Fetch(c, "k", time.Minute, load)
	if calls != 2 {
		t.Fatalf("errors must not be cached, calls=%d", calls)
	}
}

func TestTTLCacheExpires(t *testing.T) {
	c := NewTTLCache()
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	_ = c.SetBytes("k", []byte("v"), time.Second)
	_ = c.SetBytes("forever", []byte("v"), 0)
	now = now.Add(2 * time.Second)
	if _, ok, _ := c.GetBytes("k"); ok {
		t.Fatalf("expected entry to expire")
	}
	if _, ok, _ := c.GetBytes("forever"); !ok {
		t.Fatalf("zero ttl entry should not expire")
	}
}

func TestTTLCacheSweepsExpiredEntries(t *testing.T) {
	c := NewTTLCache()
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	for i := 0; i < sweepAt; i++ {
		_ = c.SetBytes(fmt.Sprintf("k%d", i), []byte("v"), time.Second)
	}
	now = now.Add(time.Minute)
	_ = c.SetBytes("fresh", []byte("v"), time.Minute)
	if c.Len() != 1 {
		t.Fatalf("Len = %d after sweep, want 1", c.Len())
	}
}

func TestFetchWithoutCache(t *testing.T) {
	got, err := Fetch[int](nil, "k", time.Minute, func() (int, error) { return 4, nil })
	if err != nil || got != 4 {
		t.Fatalf("unexpected %v %v", got, err)
	}
}
