package repository

import (
	"context"
	"time"

	"FluxFeed/internal/domain/models"
)

// PriceStream is a push source of snapshot updates.
type PriceStream interface {
	Run(ctx context.Context, onUpdate func([]models.PricePoint)) error
	IsConnected() bool
}

type Publisher interface {
	Publish(ctx context.Context, t *models.Tick) error
	PublishBatch(ctx context.Context, ticks []*models.Tick) error
	Close() error
}

type Storage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, t *models.Tick) error
	StoreBatch(ctx context.Context, ticks []*models.Tick) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Tick, error)
	Health(ctx context.Context) error
	Close() error
}

// CandleStore persists OHLC history for the chart cascade and backfill.
type CandleStore interface {
	GetCandles(ctx context.Context, symbol string, res Resolution, from, to time.Time) ([]models.Candle, error)
	SaveCandles(ctx context.Context, symbol string, res Resolution, source string, candles []models.Candle) error
}

// SnapshotArchive writes point-in-time copies of the price snapshot.
type SnapshotArchive interface {
	Write(ctx context.Context, at time.Time, points []models.PricePoint) (string, error)
}

type Metrics interface {
	RecordTick(source, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
