package models

import (
	"math"
	"time"
)

// PricePoint is the latest display price for a symbol. It is overwritten on
// every update and never persisted as history.
type PricePoint struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Valid reports whether the point carries a usable price.
func (p PricePoint) Valid() bool {
	return p.Symbol != "" && p.Price > 0 && !math.IsInf(p.Price, 0) && !math.IsNaN(p.Price)
}

// Quote is a resolved price annotated with the provider that produced it.
type Quote struct {
	PricePoint
	Source string `json:"source"`
	// Stale is set when the price came from the last-known cache or the static table.
	Stale bool `json:"stale"`
}

// Snapshot maps symbol to its latest price.
type Snapshot map[string]PricePoint

// Tick is a price update as persisted by the storage backends.
type Tick struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change_24h"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

func TickFromPoint(id, source string, p PricePoint) *Tick {
	ts := p.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &Tick{
		ID:        id,
		Symbol:    p.Symbol,
		Price:     p.Price,
		Change24h: p.Change24h,
		Source:    source,
		Timestamp: ts,
	}
}
