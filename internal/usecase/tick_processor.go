package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FluxFeed/internal/domain/models"
	drepo "FluxFeed/internal/domain/repository"
)

// Storage backends accepted by TickProcessor.
const (
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendNone       = "none"
)

var errNilTick = errors.New("tick is nil")

// TickProcessor routes accepted ticks to the configured backend. With
// BackendNone ticks are counted and dropped.
type TickProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
}

func NewTickProcessor(pub drepo.Publisher, store drepo.Storage, metrics drepo.Metrics, backend string) (*TickProcessor, error) {
	switch backend {
	case BackendKafka:
		if pub == nil {
			return nil, fmt.Errorf("tick processor: kafka backend without publisher")
		}
	case BackendClickHouse:
		if store == nil {
			return nil, fmt.Errorf("tick processor: clickhouse backend without storage")
		}
	case BackendNone, "":
		backend = BackendNone
	default:
		return nil, fmt.Errorf("tick processor: unknown backend %q", backend)
	}
	return &TickProcessor{pub: pub, store: store, metrics: metrics, backend: backend}, nil
}

func (p *TickProcessor) Backend() string { return p.backend }

func (p *TickProcessor) Process(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return errNilTick
	}
	start := time.Now()

	var err error
	switch p.backend {
	case BackendKafka:
		err = p.pub.Publish(ctx, t)
	case BackendClickHouse:
		err = p.store.Store(ctx, t)
	}
	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process tick %s: %w", t.Symbol, err)
	}
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

func (p *TickProcessor) ProcessBatch(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	start := time.Now()

	var err error
	switch p.backend {
	case BackendKafka:
		err = p.pub.PublishBatch(ctx, ticks)
	case BackendClickHouse:
		err = p.store.StoreBatch(ctx, ticks)
	}
	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close releases the publisher. Storage pools are owned by the container.
func (p *TickProcessor) Close() error {
	if p.pub != nil {
		return p.pub.Close()
	}
	return nil
}
