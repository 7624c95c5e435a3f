package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"FluxFeed/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue is a list-backed job queue. Pending messages live in
// <prefix>:messages, delayed retries in the <prefix>:retry sorted set scored
// by due time, and messages out of retries in <prefix>:dlq.
type RedisQueue struct {
	log    *logger.Logger
	cfg    Config
	client *redis.Client
	prefix string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRedisQueue(log *logger.Logger, client *redis.Client, prefix string, cfg Config) *RedisQueue {
	cfg.withDefaults()
	if prefix == "" {
		prefix = "fluxfeed:jobs"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisQueue{
		log:    log.With(logger.String("component", "queue"), logger.String("queue", prefix)),
		cfg:    cfg,
		client: client,
		prefix: prefix,
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (q *RedisQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.jobs[job.Type()]; dup {
		q.log.Warn("job already registered", logger.String("type", job.Type()))
		return
	}
	q.jobs[job.Type()] = job
}

func (q *RedisQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.New("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("queue redis ping: %w", err)
	}

	q.running = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.wg.Add(1)
	go q.promoteRetries()

	q.log.Info("queue started", logger.Int("workers", q.cfg.Workers))
	return nil
}

func (q *RedisQueue) Stop(ctx context.Context) error {
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

func (q *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	msg := Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key("messages"), data).Err(); err != nil {
		return fmt.Errorf("queue lpush: %w", err)
	}
	return nil
}

func (q *RedisQueue) key(suffix string) string { return q.prefix + ":" + suffix }

func (q *RedisQueue) worker() {
	defer q.wg.Done()
	for q.ctx.Err() == nil {
		res, err := q.client.BRPop(q.ctx, time.Second, q.key("messages")).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || q.ctx.Err() != nil {
				continue
			}
			q.log.Warn("queue brpop", logger.Error(err))
			select {
			case <-time.After(time.Second):
			case <-q.ctx.Done():
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			q.log.Error("queue message undecodable", logger.Error(err))
			continue
		}
		q.process(msg)
	}
}

func (q *RedisQueue) process(msg Message) {
	q.mu.RLock()
	job, ok := q.jobs[msg.Type]
	q.mu.RUnlock()
	if !ok {
		q.log.Error("no job for message type", logger.String("type", msg.Type), logger.String("id", msg.ID))
		q.deadLetter(msg)
		return
	}

	start := time.Now()
	err := job.Handle(q.ctx, msg.Payload)
	if err == nil {
		q.log.Debug("job done", logger.String("job", job.Name()), logger.Duration("elapsed_ms", time.Since(start)))
		return
	}
	if q.ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return
	}

	q.log.Warn("job failed",
		logger.String("job", job.Name()),
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= q.cfg.RetryLimit {
		q.deadLetter(msg)
		return
	}
	msg.Attempts++
	data, _ := json.Marshal(msg)
	due := time.Now().Add(q.cfg.RetryDelay)
	if err := q.client.ZAdd(context.Background(), q.key("retry"), redis.Z{Score: float64(due.Unix()), Member: data}).Err(); err != nil {
		q.log.Error("schedule retry", logger.Error(err))
	}
}

func (q *RedisQueue) deadLetter(msg Message) {
	data, _ := json.Marshal(msg)
	if err := q.client.LPush(context.Background(), q.key("dlq"), data).Err(); err != nil {
		q.log.Error("dead letter", logger.Error(err))
	}
}

// promoteRetries moves due retries back onto the pending list.
func (q *RedisQueue) promoteRetries() {
	defer q.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
		}

		due, err := q.client.ZRangeByScore(q.ctx, q.key("retry"), &redis.ZRangeBy{
			Min: "-inf",
			Max: strconv.FormatInt(time.Now().Unix(), 10),
		}).Result()
		if err != nil {
			if q.ctx.Err() == nil {
				q.log.Warn("read retries", logger.Error(err))
			}
			continue
		}
		for _, m := range due {
			pipe := q.client.TxPipeline()
			pipe.ZRem(q.ctx, q.key("retry"), m)
			pipe.LPush(q.ctx, q.key("messages"), m)
			if _, err := pipe.Exec(q.ctx); err != nil && q.ctx.Err() == nil {
				q.log.Warn("promote retry", logger.Error(err))
			}
		}
	}
}
