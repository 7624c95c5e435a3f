package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"FluxFeed/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes the payloads of one topic.
type MessageHandler interface {
	Topic() string
	Handle(ctx context.Context, payload []byte) error
}

type delivery struct {
	topic string
	msg   kafka.Message
}

// Consumer reads registered topics in a consumer group and fans messages out
// to a worker pool. Messages of one partition are handled one at a time.
// Failed messages are retried with backoff, then sent to the DLQ (if any) and
// committed so a poison message cannot stall the partition.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      *kafka.Writer

	queue chan delivery
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewConsumer(log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:    "fluxfeed",
		Workers:    1,
		BufferSize: 64,
		RetryMax:   3,
		BackoffMin: 100 * time.Millisecond,
		BackoffMax: 5 * time.Second,
		MinBytes:   1,
		MaxBytes:   10 << 20,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: brokers are required")
	}

	registerConsumerMetrics()
	c := &Consumer{
		cfg:      cfg,
		log:      log.With(logger.String("component", "kafka-consumer")),
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		queue:    make(chan delivery, cfg.BufferSize),
		stop:     make(chan struct{}),
		locks:    make(map[string]*sync.Mutex),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.Hash{}}
	}
	return c, nil
}

// RegisterHandler must be called before Start.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, dup := c.handlers[h.Topic()]; dup {
		c.log.Warn("handler already registered", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    topic,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
	}

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.work()
	}
	var readers sync.WaitGroup
	for topic, r := range c.readers {
		readers.Add(1)
		go func(topic string, r *kafka.Reader) {
			defer readers.Done()
			c.read(topic, r)
		}(topic, r)
	}
	// workers drain the queue once every reader has returned
	go func() {
		readers.Wait()
		close(c.queue)
	}()

	c.log.Info("kafka consumer started",
		logger.Int("workers", c.cfg.Workers),
		logger.String("group", c.cfg.GroupID))
	return nil
}

func (c *Consumer) read(topic string, r *kafka.Reader) {
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := r.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				c.log.Warn("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			}
			continue
		}

		select {
		case c.queue <- delivery{topic: topic, msg: msg}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.queue)))
		case <-c.stop:
			return
		}
	}
}

func (c *Consumer) work() {
	defer c.wg.Done()
	for d := range c.queue {
		c.process(d)
	}
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	key := fmt.Sprintf("%s/%d", topic, partition)
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

func (c *Consumer) process(d delivery) {
	h := c.handlers[d.topic]
	if h == nil {
		return
	}
	start := time.Now()
	l := c.partitionLock(d.topic, d.msg.Partition)
	l.Lock()
	defer l.Unlock()

	err := c.handleWithRetry(h, d.msg.Value)
	outcome := "ok"
	if err != nil {
		outcome = "failed"
		c.log.Error("kafka message failed",
			logger.String("topic", d.topic),
			logger.Int("partition", d.msg.Partition),
			logger.Int64("offset", d.msg.Offset),
			logger.Error(err))
		if c.dlq == nil {
			consumerHandled.WithLabelValues(d.topic, outcome).Inc()
			return // left uncommitted for redelivery
		}
		if derr := c.sendToDLQ(d); derr != nil {
			c.log.Error("dlq write failed", logger.String("topic", c.cfg.DLQTopic), logger.Error(derr))
			return
		}
		outcome = "dlq"
	}

	if r := c.readers[d.topic]; r != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if cerr := r.CommitMessages(ctx, d.msg); cerr != nil {
			c.log.Warn("kafka commit failed", logger.String("topic", d.topic), logger.Error(cerr))
		}
		cancel()
	}
	consumerHandled.WithLabelValues(d.topic, outcome).Inc()
	consumerLatency.WithLabelValues(d.topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) handleWithRetry(h MessageHandler, payload []byte) (err error) {
	for attempt := 1; ; attempt++ {
		err = c.safeHandle(h, payload)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		select {
		case <-time.After(backoff(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.stop:
			return err
		}
	}
}

func (c *Consumer) safeHandle(h MessageHandler, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(context.Background(), payload)
}

func (c *Consumer) sendToDLQ(d delivery) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     d.msg.Key,
		Value:   d.msg.Value,
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(d.topic)}},
	})
}

// Stop halts the readers, lets workers finish queued messages and closes
// the connections. It returns ctx's error if the drain takes too long.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		close(c.stop)

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("close reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
	})
	return err
}

// backoff is exponential from min, capped at max, minus up to 50% jitter.
func backoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := min << uint(attempt-1)
	if d > max || d <= 0 {
		d = max
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}

var (
	consumerOnce       sync.Once
	consumerQueueDepth *prometheus.GaugeVec
	consumerHandled    *prometheus.CounterVec
	consumerLatency    *prometheus.HistogramVec
)

func registerConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fluxfeed_kafka_consumer_queue_depth",
			Help: "Fetched messages waiting for a worker",
		}, []string{"topic"})
		consumerHandled = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxfeed_kafka_consumer_handled_total",
			Help: "Consumed messages by outcome",
		}, []string{"topic", "outcome"})
		consumerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fluxfeed_kafka_consumer_handle_seconds",
			Help:    "Time from dequeue to commit",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}
