package indicators

import (
	"math"
	"testing"

	"FluxFeed/internal/domain/models"
)

func closes(values ...float64) []models.Candle {
	out := make([]models.Candle, len(values))
	for i, v := range values {
		out[i] = models.Candle{Time: int64(1000 + i*60), Open: v, High: v, Low: v, Close: v}
	}
	return out
}

func TestSMAExample(t *testing.T) {
	data := closes(10, 20, 30)
	got := SMA(data, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0].Value != 15 || got[1].Value != 25 {
		t.Fatalf("unexpected values %+v", got)
	}
	if got[0].Time != data[1].Time || got[1].Time != data[2].Time {
		t.Fatalf("points must be keyed to input index 1 and 2, got %+v", got)
	}
}

func TestSMALength(t *testing.T) {
	data := closes(1, 2, 3, 4, 5, 6, 7)
	for period := 0; period <= 9; period++ {
		want := len(data) - period + 1
		if period < 1 || want < 0 {
			want = 0
		}
		if got := len(SMA(data, period)); got != want {
			t.Fatalf("period %d: expected %d points, got %d", period, want, got)
		}
	}
}

func TestSMAConstantInput(t *testing.T) {
	data := closes(42, 42, 42, 42, 42, 42)
	for _, p := range SMA(data, 3) {
		if math.Abs(p.Value-42) > 1e-9 {
			t.Fatalf("expected 42, got %v", p.Value)
		}
	}
}

func TestSMADoesNotMutateInput(t *testing.T) {
	data := closes(1, 2, 3)
	before := data[1]
	_ = SMA(data, 2)
	if data[1] != before {
		t.Fatalf("input mutated")
	}
}

func TestRSIShortInput(t *testing.T) {
	if got := RSI(closes(1, 2, 3), 3); len(got) != 0 {
		t.Fatalf("expected empty output, got %d points", len(got))
	}
	if got := RSI(nil, 14); len(got) != 0 {
		t.Fatalf("expected empty output for nil input")
	}
}

func TestRSIStartsAfterPeriodPlusOne(t *testing.T) {
	data := closes(1, 3, 2, 4, 3, 5, 4, 6)
	got := RSI(data, 3)
	if len(got) != len(data)-4 {
		t.Fatalf("expected %d points, got %d", len(data)-4, len(got))
	}
	if got[0].Time != data[4].Time {
		t.Fatalf("first point should align with input index 4, got time %d", got[0].Time)
	}
}

func TestRSIMonotonicSeries(t *testing.T) {
	up := make([]float64, 40)
	down := make([]float64, 40)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 100 - float64(i)
	}

	for _, p := range RSI(closes(up...), 14) {
		if p.Value != 100 {
			t.Fatalf("rising series: expected 100, got %v", p.Value)
		}
	}
	for _, p := range RSI(closes(down...), 14) {
		if p.Value != 0 {
			t.Fatalf("falling series: expected 0, got %v", p.Value)
		}
	}
}

func TestRSIBounded(t *testing.T) {
	values := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46, 45.9, 46.2, 45.6, 46.3, 46.3, 46, 46.4, 46.2, 45.6, 46.2}
	got := RSI(closes(values...), 14)
	if len(got) == 0 {
		t.Fatalf("expected output")
	}
	for _, p := range got {
		if p.Value < 0 || p.Value > 100 || math.IsNaN(p.Value) {
			t.Fatalf("value out of range: %v", p.Value)
		}
	}
}

func TestSanitizeVolumeNeverZero(t *testing.T) {
	data := []models.Candle{
		{},
		{Time: 1, Open: 5, High: 5, Low: 5, Close: 5},
		{Time: 2, Open: 1, High: 2, Low: 1, Close: 1.5},
		{Time: 3, Open: 1, Close: 1, Volume: 77},
		{Time: 4, Open: 1, Close: 1, Volume: -3},
	}

	for _, jitter := range []func() float64{nil, func() float64 { return 0 }, func() float64 { return 0.999 }} {
		got := SanitizeVolume(data, jitter)
		if len(got) != len(data) {
			t.Fatalf("length changed")
		}
		for i, c := range got {
			if c.Volume <= 0 {
				t.Fatalf("candle %d has volume %v", i, c.Volume)
			}
		}
		if got[3].Volume != 77 {
			t.Fatalf("real volume overwritten: %v", got[3].Volume)
		}
	}

	if data[1].Volume != 0 {
		t.Fatalf("input mutated")
	}
}

func TestSanitizeVolumeProportionalToRange(t *testing.T) {
	got := SanitizeVolume([]models.Candle{{Open: 1, Close: 1.5}}, nil)
	if got[0].Volume != 5000 {
		t.Fatalf("expected 5000, got %v", got[0].Volume)
	}
}

func TestChangePercent(t *testing.T) {
	if got := ChangePercent(100, 110); math.Abs(got-10) > 1e-9 {
		t.Fatalf("expected 10, got %v", got)
	}
	if got := ChangePercent(0, 5); got != 0 {
		t.Fatalf("expected 0 without a base, got %v", got)
	}
}
