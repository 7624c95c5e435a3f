package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDateOnly(t *testing.T) {
	got, ok := ParseTime("2025-01-31")
	if !ok || got.Day() != 31 {
		t.Fatalf("unexpected %v ok=%v", got, ok)
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "garbage", "-5", "2025-13-40"} {
		if _, ok := ParseTime(s); ok {
			t.Fatalf("ParseTime(%q) should fail", s)
		}
	}
}

func TestResolveRangeDefaults(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	from, to := ResolveRange(0, 0, 48*time.Hour, now)
	if !to.Equal(now) {
		t.Fatalf("expected to=now, got %v", to)
	}
	if to.Sub(from) != 48*time.Hour {
		t.Fatalf("expected a 48h window, got %v", to.Sub(from))
	}
}

func TestResolveRangeSwapsInverted(t *testing.T) {
	now := time.Now()
	from, to := ResolveRange(2000, 1000, time.Hour, now)
	if from.Unix() != 1000 || to.Unix() != 2000 {
		t.Fatalf("expected swapped bounds, got %d..%d", from.Unix(), to.Unix())
	}
}

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2024, 1, 1, 10, 7, 31, 0, time.UTC)
	to := time.Date(2024, 1, 1, 11, 59, 59, 0, time.UTC)
	f, tt := AlignFromTo(from, to, 5*time.Minute)
	if f.Minute() != 5 || f.Second() != 0 {
		t.Fatalf("unexpected from %v", f)
	}
	if tt.Minute() != 55 {
		t.Fatalf("unexpected to %v", tt)
	}
}
