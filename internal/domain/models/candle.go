package models

import "sort"

// Candle is an OHLC bucket. Time is unix seconds at the bucket open.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume,omitempty"`
}

// IndicatorPoint is one value of a derived line series.
type IndicatorPoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// ChartSeries is the chart payload: candles plus overlays. Synthetic is true
// when the candles are a generated placeholder rather than market data.
type ChartSeries struct {
	Symbol     string           `json:"symbol"`
	Resolution string           `json:"resolution"`
	From       int64            `json:"from"`
	To         int64            `json:"to"`
	Source     string           `json:"source"`
	Synthetic  bool             `json:"synthetic"`
	Candles    []Candle         `json:"candles"`
	SMA        []IndicatorPoint `json:"sma"`
	RSI        []IndicatorPoint `json:"rsi"`
}

// NormalizeCandles returns a copy ordered by strictly increasing time.
// Duplicate timestamps keep the last candle seen.
func NormalizeCandles(in []Candle) []Candle {
	if len(in) == 0 {
		return nil
	}
	byTime := make(map[int64]int, len(in))
	out := make([]Candle, 0, len(in))
	for _, c := range in {
		if i, ok := byTime[c.Time]; ok {
			out[i] = c
			continue
		}
		byTime[c.Time] = len(out)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
