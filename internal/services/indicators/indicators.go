package indicators

import (
	"math"

	"FluxFeed/internal/domain/models"
)

// SMA returns the simple moving average of Close over a trailing window of
// period candles. The first point is at input index period-1; nothing is padded.
func SMA(data []models.Candle, period int) []models.IndicatorPoint {
	if period < 1 || len(data) < period {
		return []models.IndicatorPoint{}
	}

	out := make([]models.IndicatorPoint, 0, len(data)-period+1)
	sum := 0.0
	for i, c := range data {
		sum += c.Close
		if i >= period {
			sum -= data[i-period].Close
		}
		if i < period-1 {
			continue
		}
		out = append(out, models.IndicatorPoint{Time: c.Time, Value: sum / float64(period)})
	}
	return out
}

// RSI returns Wilder's Relative Strength Index. The seed averages are plain
// means over deltas 1..period and the first point is emitted at index period+1.
//
// An average loss of zero yields exactly 100. This is a boundary policy for the
// division, not a claim about the market.
func RSI(data []models.Candle, period int) []models.IndicatorPoint {
	if period < 1 || len(data) < period+1 {
		return []models.IndicatorPoint{}
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		g, l := split(data[i].Close - data[i-1].Close)
		gains += g
		losses += l
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	n := float64(period)
	out := make([]models.IndicatorPoint, 0, len(data)-period-1)
	for i := period + 1; i < len(data); i++ {
		g, l := split(data[i].Close - data[i-1].Close)
		avgGain = (avgGain*(n-1) + g) / n
		avgLoss = (avgLoss*(n-1) + l) / n
		out = append(out, models.IndicatorPoint{Time: data[i].Time, Value: rsiValue(avgGain, avgLoss)})
	}
	return out
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	v := 100 - 100/(1+avgGain/avgLoss)
	return math.Max(0, math.Min(100, v))
}

// SanitizeVolume returns a copy of data in which every missing or non-positive
// volume is replaced by floor(|close-open|*10000 + jitter*1000), never below 1.
// jitter should return values in [0,1); nil disables the random term.
func SanitizeVolume(data []models.Candle, jitter func() float64) []models.Candle {
	out := make([]models.Candle, len(data))
	for i, c := range data {
		out[i] = c
		if c.Volume > 0 && !math.IsNaN(c.Volume) && !math.IsInf(c.Volume, 0) {
			continue
		}
		noise := 0.0
		if jitter != nil {
			noise = jitter() * 1000
		}
		v := math.Floor(math.Abs(c.Close-c.Open)*10000 + noise)
		if v < 1 || math.IsNaN(v) {
			v = 1
		}
		out[i].Volume = v
	}
	return out
}

// ChangePercent is the percentage move from prev to cur, or 0 without a base.
func ChangePercent(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}
