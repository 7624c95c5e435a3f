package synthetic

import (
	"math/rand"
	"testing"
	"time"
)

func fixed(seed int64) *Generator {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return New(WithRand(rand.New(rand.NewSource(seed))), WithClock(func() time.Time { return now }))
}

func TestGenerateLengths(t *testing.T) {
	g := fixed(1)
	if got := len(g.Generate(250, 0)); got != PricedPoints {
		t.Fatalf("priced: expected %d points, got %d", PricedPoints, got)
	}
	if got := len(g.Generate(0, 0)); got != FallbackPoints {
		t.Fatalf("fallback: expected %d points, got %d", FallbackPoints, got)
	}
	if got := len(g.Generate(-5, time.Hour)); got != FallbackPoints {
		t.Fatalf("negative seed: expected %d points, got %d", FallbackPoints, got)
	}
}

func TestTimingDefaultSpan(t *testing.T) {
	g := fixed(2)
	out := g.WithPrice(10, 0)

	span := int64(DefaultSpan / time.Second)
	step := span / PricedPoints
	wantStart := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Unix() - span
	if out[0].Time != wantStart {
		t.Fatalf("expected start %d, got %d", wantStart, out[0].Time)
	}
	for i := 1; i < len(out); i++ {
		if out[i].Time-out[i-1].Time != step {
			t.Fatalf("step %d: expected spacing %d, got %d", i, step, out[i].Time-out[i-1].Time)
		}
	}
}

func TestTimingMinimumStep(t *testing.T) {
	out := fixed(3).Fallback(time.Hour, 50)
	if out[1].Time-out[0].Time != 300 {
		t.Fatalf("expected 300s minimum spacing, got %d", out[1].Time-out[0].Time)
	}
}

func TestWalkShape(t *testing.T) {
	price := 1000.0
	out := fixed(4).WithPrice(price, 0)

	jitter := price * 0.002
	if d := out[0].Open - price; d > jitter/2 || d < -jitter/2 {
		t.Fatalf("first open too far from seed: %v", out[0].Open)
	}
	for i, c := range out {
		if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
			t.Fatalf("candle %d violates high/low envelope: %+v", i, c)
		}
		if c.Volume != 0 {
			t.Fatalf("candle %d has volume before sanitizing", i)
		}
		if i > 0 && (out[i].Open-out[i-1].Close) > jitter {
			t.Fatalf("candle %d does not continue from the previous close", i)
		}
	}
}

func TestFallbackDefaultSeed(t *testing.T) {
	out := fixed(5).Fallback(0, 0)
	if d := out[0].Open - DefaultSeed; d > 0.2 || d < -0.2 {
		t.Fatalf("expected walk to start near %v, got %v", DefaultSeed, out[0].Open)
	}
}

func TestDeterministicWithSeed(t *testing.T) {
	a := fixed(9).Generate(42, 0)
	b := fixed(9).Generate(42, 0)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("series differ at %d", i)
		}
	}
}

func TestWindowStaysInsideRange(t *testing.T) {
	from := time.Date(2020, 9, 13, 12, 0, 0, 0, time.UTC)
	to := time.Date(2020, 9, 23, 12, 0, 0, 0, time.UTC)

	for _, price := range []float64{0, 310} {
		out := fixed(11).Window(price, from, to)
		want := PricedPoints
		if price == 0 {
			want = FallbackPoints
		}
		if len(out) != want {
			t.Fatalf("price %v: expected %d points, got %d", price, want, len(out))
		}
		if out[0].Time != from.Unix() {
			t.Fatalf("price %v: expected first candle at %d, got %d", price, from.Unix(), out[0].Time)
		}
		if last := out[len(out)-1].Time; last >= to.Unix() {
			t.Fatalf("price %v: last candle %d not before %d", price, last, to.Unix())
		}
	}
}

func TestWindowShortRangeIgnoresMinimumStep(t *testing.T) {
	from := time.Date(2021, 1, 4, 14, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	out := fixed(12).Window(50, from, to)
	if last := out[len(out)-1].Time; last >= to.Unix() {
		t.Fatalf("last candle %d past window end %d", last, to.Unix())
	}
}

func TestWindowEmptyUsesDefaultSpanBeforeEnd(t *testing.T) {
	end := time.Date(2019, 6, 3, 0, 0, 0, 0, time.UTC)
	out := fixed(13).Window(10, end, end)
	if want := end.Add(-DefaultSpan).Unix(); out[0].Time != want {
		t.Fatalf("expected start %d, got %d", want, out[0].Time)
	}
	if last := out[len(out)-1].Time; last >= end.Unix() {
		t.Fatalf("last candle %d not before %d", last, end.Unix())
	}
}
