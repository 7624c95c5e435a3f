// Package synthetic builds placeholder OHLC series for charts that have no
// market data. The output is for display only.
package synthetic

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"FluxFeed/internal/domain/models"
)

const (
	// PricedPoints is the length of a series seeded by a known price.
	PricedPoints = 120
	// FallbackPoints is the length of a series with no known price.
	FallbackPoints = 90
	// DefaultSeed is the start price when nothing better is known.
	DefaultSeed = 100.0
	// DefaultSpan is the time range covered when the caller gives none.
	DefaultSpan = 30 * 24 * time.Hour

	minStepSeconds = 300
)

// Generator produces random walks. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

type Option func(*Generator)

// WithRand sets the random source, mostly for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rnd = r }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func New(opts ...Option) *Generator {
	g := &Generator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate picks the priced variant when price > 0 and the fallback otherwise.
// The series ends at the generator's clock.
func (g *Generator) Generate(price float64, span time.Duration) []models.Candle {
	if priced(price) {
		return g.WithPrice(price, span)
	}
	return g.Fallback(span, 0)
}

// Window is Generate laid over [from, to). Every candle time falls inside the
// window, so the 300s minimum step does not apply. An empty or inverted
// window becomes DefaultSpan ending at to.
func (g *Generator) Window(price float64, from, to time.Time) []models.Candle {
	if !to.After(from) {
		from = to.Add(-DefaultSpan)
	}
	if priced(price) {
		return g.walk(price, windowFrame(from, to, PricedPoints), PricedPoints, pricedBounds(price))
	}
	return g.walk(DefaultSeed, windowFrame(from, to, FallbackPoints), FallbackPoints, fallbackBounds)
}

// WithPrice walks PricedPoints candles from price with a fixed jitter of
// max(price*0.2%, 0.1).
func (g *Generator) WithPrice(price float64, span time.Duration) []models.Candle {
	return g.walk(price, g.openFrame(span, PricedPoints), PricedPoints, pricedBounds(price))
}

// Fallback walks FallbackPoints candles from base, or DefaultSeed when base is
// not positive. The jitter tracks the current price.
func (g *Generator) Fallback(span time.Duration, base float64) []models.Candle {
	if base <= 0 || math.IsInf(base, 0) || math.IsNaN(base) {
		base = DefaultSeed
	}
	return g.walk(base, g.openFrame(span, FallbackPoints), FallbackPoints, fallbackBounds)
}

func priced(price float64) bool {
	return price > 0 && !math.IsInf(price, 0) && !math.IsNaN(price)
}

func pricedBounds(price float64) func(float64) (float64, float64) {
	jitter := math.Max(price*0.002, 0.1)
	return func(float64) (float64, float64) { return jitter, jitter * 0.4 }
}

func fallbackBounds(p float64) (float64, float64) {
	return math.Max(p*0.002, 0.2), math.Max(p*0.001, 0.1)
}

// frame places the candles: the first at start, then one every step seconds.
type frame struct {
	start, step int64
}

// openFrame spaces points at max(300s, span/points) ending near now.
func (g *Generator) openFrame(span time.Duration, points int) frame {
	spanSec := int64(span / time.Second)
	if spanSec <= 0 {
		spanSec = int64(DefaultSpan / time.Second)
	}
	step := spanSec / int64(points)
	if step < minStepSeconds {
		step = minStepSeconds
	}
	return frame{start: g.now().Unix() - spanSec, step: step}
}

func windowFrame(from, to time.Time, points int) frame {
	step := (to.Unix() - from.Unix()) / int64(points)
	if step < 1 {
		step = 1
	}
	return frame{start: from.Unix(), step: step}
}

// walk emits points candles on f. bounds returns the open/close jitter and
// the high/low margin for the price at the start of each step.
func (g *Generator) walk(seed float64, f frame, points int, bounds func(p float64) (jitter, margin float64)) []models.Candle {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]models.Candle, points)
	p := seed
	for i := 0; i < points; i++ {
		jitter, margin := bounds(p)
		o := p + (g.rnd.Float64()-0.5)*jitter
		c := o + (g.rnd.Float64()-0.5)*jitter
		out[i] = models.Candle{
			Time:  f.start + int64(i)*f.step,
			Open:  o,
			High:  math.Max(o, c) + margin,
			Low:   math.Min(o, c) - margin,
			Close: c,
		}
		p = c
	}
	return out
}

// Jitter returns a uniform [0,1) sample from the generator's source.
func (g *Generator) Jitter() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Float64()
}
