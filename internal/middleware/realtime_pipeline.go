package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FluxFeed/internal/domain/models"
	domrepo "FluxFeed/internal/domain/repository"
	"FluxFeed/pkg/logger"
)

// Proc is the downstream the pipeline feeds.
type Proc interface {
	Process(ctx context.Context, t *models.Tick) error
}

// RealtimePipeline sits between the price feed and tick persistence. It
// validates ticks, throttles each symbol, and parks ticks in a bounded buffer
// while the downstream is failing.
type RealtimePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	log     *logger.Logger
	maxRPS  int
	bufCh   chan *models.Tick
	stopCh  chan struct{}
	done    chan struct{}

	mu       sync.Mutex
	started  bool
	lastSeen map[string]time.Time
	now      func() time.Time
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS caps accepted ticks per second per symbol. Zero disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.Tick, n)
		}
	}
}

func WithPipelineLogger(log *logger.Logger) PipelineOption {
	return func(p *RealtimePipeline) {
		if log != nil {
			p.log = log
		}
	}
}

func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:     proc,
		metrics:  metrics,
		log:      logger.NewNop(),
		maxRPS:   200,
		bufCh:    make(chan *models.Tick, 2000),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the buffer flusher. It is a no-op when already running.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.flush(ctx)
}

func (p *RealtimePipeline) flush(ctx context.Context) {
	defer close(p.done)

	const minBackoff = 50 * time.Millisecond
	backoff := minBackoff
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case t := <-p.bufCh:
			if err := p.proc.Process(ctx, t); err != nil {
				p.metrics.RecordError("pipeline_flush")
				if backoff < 2*time.Second {
					backoff *= 2
				}
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				case <-p.stopCh:
					return
				}
				select {
				case p.bufCh <- t:
				default:
					p.metrics.RecordError("pipeline_buffer_drop")
				}
				continue
			}
			backoff = minBackoff
		}
	}
}

// Stop ends the flusher and waits for it. Ticks still buffered are dropped.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	<-p.done
	if n := len(p.bufCh); n > 0 {
		p.log.Warn("pipeline stopped with buffered ticks", logger.Int("dropped", n))
	}
}

// Buffered reports the number of ticks waiting for the downstream.
func (p *RealtimePipeline) Buffered() int { return len(p.bufCh) }

// Process validates, throttles and forwards t. A downstream failure parks
// the tick in the buffer and is returned wrapped.
func (p *RealtimePipeline) Process(ctx context.Context, t *models.Tick) error {
	start := p.now()
	if err := validateTick(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(t.Symbol, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- t:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

var (
	errNilTick     = errors.New("tick is nil")
	errEmptySymbol = errors.New("symbol empty")
	errBadPrice    = errors.New("price must be positive")
	errNoTimestamp = errors.New("timestamp missing")
)

func validateTick(t *models.Tick) error {
	switch {
	case t == nil:
		return errNilTick
	case t.Symbol == "":
		return errEmptySymbol
	case !(models.PricePoint{Symbol: t.Symbol, Price: t.Price}).Valid():
		return errBadPrice
	case t.Timestamp.IsZero():
		return errNoTimestamp
	}
	return nil
}

func (p *RealtimePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	last, ok := p.lastSeen[symbol]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
