package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"FluxFeed/internal/domain/models"
	drepo "FluxFeed/internal/domain/repository"
	"FluxFeed/internal/domain/service"
	svcmetrics "FluxFeed/internal/service/metrics"
	"FluxFeed/pkg/logger"
)

// StreamSource is the source name stamped on ticks pushed by the backend socket.
const StreamSource = "stream"

// TickSink receives every accepted snapshot update. The realtime pipeline
// implements it.
type TickSink interface {
	Process(ctx context.Context, t *models.Tick) error
}

// Poller runs one batch source on a fixed interval.
type Poller struct {
	Source   service.BatchQuoteSource
	Interval time.Duration
	// Timeout bounds a single poll. Zero means the interval.
	Timeout time.Duration
}

// PriceFeed keeps the snapshot fresh from the stream and the pollers.
type PriceFeed struct {
	snap    *SnapshotStore
	stream  drepo.PriceStream
	pollers []Poller
	sink    TickSink
	metrics drepo.Metrics
	log     *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPriceFeed(snap *SnapshotStore, stream drepo.PriceStream, pollers []Poller, sink TickSink, metrics drepo.Metrics, log *logger.Logger) *PriceFeed {
	if log == nil {
		log = logger.NewNop()
	}
	return &PriceFeed{
		snap:    snap,
		stream:  stream,
		pollers: pollers,
		sink:    sink,
		metrics: metrics,
		log:     log,
	}
}

// Start launches the stream and one goroutine per poller. Calling Start on
// a running feed does nothing.
func (f *PriceFeed) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return
	}
	ctx, f.cancel = context.WithCancel(ctx)

	if f.stream != nil {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			err := f.stream.Run(ctx, func(points []models.PricePoint) {
				f.Apply(ctx, StreamSource, points)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				f.log.Warn("price stream stopped", logger.Error(err))
			}
		}()
	}
	for _, p := range f.pollers {
		if p.Source == nil || p.Interval <= 0 {
			continue
		}
		f.wg.Add(1)
		go func(p Poller) {
			defer f.wg.Done()
			f.runPoller(ctx, p)
		}(p)
	}
	f.log.Info("price feed started",
		logger.Int("pollers", len(f.pollers)),
		logger.Bool("stream", f.stream != nil),
	)
}

// Stop cancels every poller and the stream and waits for them to return.
func (f *PriceFeed) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	f.wg.Wait()
}

// StreamConnected reports the backend socket state.
func (f *PriceFeed) StreamConnected() bool {
	return f.stream != nil && f.stream.IsConnected()
}

// runPoller polls immediately, then on every tick. A failed poll is logged
// and waits for the next tick.
func (f *PriceFeed) runPoller(ctx context.Context, p Poller) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		f.PollOnce(ctx, p)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce runs a single poll and merges the result.
func (f *PriceFeed) PollOnce(ctx context.Context, p Poller) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = p.Interval
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := p.Source.Name()
	start := time.Now()
	points, err := p.Source.Poll(pctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		svcmetrics.ObserveCall(name, svcmetrics.OutcomeError, time.Since(start))
		f.metrics.RecordError("poll")
		f.log.Warn("poll failed", logger.String("source", name), logger.Error(err))
		return
	}
	svcmetrics.ObserveCall(name, svcmetrics.OutcomeOK, time.Since(start))
	f.Apply(ctx, name, points)
}

// Apply merges points into the snapshot and forwards the kept ones to the sink.
func (f *PriceFeed) Apply(ctx context.Context, source string, points []models.PricePoint) {
	kept := f.snap.Apply(points)
	for _, p := range kept {
		f.metrics.RecordTick(source, p.Symbol)
		f.metrics.RecordLastPrice(p.Symbol, p.Price)
		if f.sink == nil {
			continue
		}
		if err := f.sink.Process(ctx, models.TickFromPoint(uuid.NewString(), source, p)); err != nil {
			f.log.Debug("tick not persisted",
				logger.String("symbol", p.Symbol),
				logger.String("source", source),
				logger.Error(err),
			)
		}
	}
}
