package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"FluxFeed/pkg/logger"

	"github.com/google/uuid"
)

// MemoryQueue runs jobs in-process. It is used when no redis is configured;
// messages do not survive a restart.
type MemoryQueue struct {
	log  *logger.Logger
	cfg  Config
	jobs map[string]Job

	mu      sync.Mutex
	ch      chan Message
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	dead    []Message
}

func NewMemoryQueue(log *logger.Logger, size int, cfg Config) *MemoryQueue {
	cfg.withDefaults()
	if size <= 0 {
		size = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		log:    log.With(logger.String("component", "queue")),
		cfg:    cfg,
		jobs:   make(map[string]Job),
		ch:     make(chan Message, size),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.Type()] = job
}

func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("queue already running")
	}
	q.running = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return nil
}

func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	}
}

// Enqueue fails rather than blocks when the buffer is full.
func (q *MemoryQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return q.push(Message{ID: uuid.NewString(), Type: msgType, Payload: raw, Timestamp: time.Now().UTC()})
}

func (q *MemoryQueue) push(m Message) error {
	select {
	case q.ch <- m:
		return nil
	default:
		return errors.New("queue full")
	}
}

// DeadLetters returns messages that ran out of retries.
func (q *MemoryQueue) DeadLetters() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.dead...)
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case m := <-q.ch:
			q.process(m)
		}
	}
}

func (q *MemoryQueue) process(m Message) {
	q.mu.Lock()
	job, ok := q.jobs[m.Type]
	q.mu.Unlock()

	var err error
	if !ok {
		err = fmt.Errorf("no job for type %s", m.Type)
	} else {
		err = job.Handle(q.ctx, m.Payload)
	}
	if err == nil {
		return
	}
	if q.ctx.Err() != nil {
		return
	}

	if !ok || m.Attempts >= q.cfg.RetryLimit {
		q.log.Warn("job dead-lettered", logger.String("type", m.Type), logger.Error(err))
		q.mu.Lock()
		q.dead = append(q.dead, m)
		q.mu.Unlock()
		return
	}
	m.Attempts++
	time.AfterFunc(q.cfg.RetryDelay, func() {
		if q.ctx.Err() == nil {
			if perr := q.push(m); perr != nil {
				q.log.Warn("retry dropped", logger.String("type", m.Type), logger.Error(perr))
			}
		}
	})
}
