package service

import (
	"context"
	"errors"
	"time"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/domain/repository"
)

// QuoteSource returns the current price of one symbol.
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context, symbol string) (models.PricePoint, error)
}

// CandleSource returns OHLC history for a symbol and range.
type CandleSource interface {
	Name() string
	Candles(ctx context.Context, symbol string, res repository.Resolution, from, to time.Time) ([]models.Candle, error)
}

// ProfileSource returns company reference data.
type ProfileSource interface {
	Name() string
	Profile(ctx context.Context, symbol string) (models.CompanyProfile, error)
}

// BatchQuoteSource is polled on an interval for many symbols at once.
type BatchQuoteSource interface {
	Name() string
	Poll(ctx context.Context) ([]models.PricePoint, error)
}

// ErrUnsupported is wrapped by every provider's "cannot serve this symbol"
// error so callers can tell a skip from a failure.
var ErrUnsupported = errors.New("unsupported symbol")
