package kafka

import (
	"testing"
	"time"

	"FluxFeed/pkg/logger"
)

func TestBackoffBounds(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 8; attempt++ {
		d := backoff(min, max, attempt)
		ceil := min << uint(attempt-1)
		if ceil > max {
			ceil = max
		}
		if d > ceil || d < ceil/2 {
			t.Fatalf("attempt %d: backoff %v outside [%v, %v]", attempt, d, ceil/2, ceil)
		}
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]int{"a": 1})
	if err != nil || string(b) != `{"a":1}` {
		t.Fatalf("encodeValue(map) = %s, %v", b, err)
	}
	if b, _ := encodeValue("raw"); string(b) != "raw" {
		t.Fatalf("encodeValue(string) = %s", b)
	}
	if b, _ := encodeValue([]byte{1, 2}); len(b) != 2 {
		t.Fatalf("encodeValue(bytes) = %v", b)
	}
}

func TestConstructorsRequireBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("NewProducer without brokers should fail")
	}
	if _, err := NewConsumer(logger.NewNop()); err == nil {
		t.Fatalf("NewConsumer without brokers should fail")
	}
}

func TestProducerOptions(t *testing.T) {
	cfg := &ProducerConfig{}
	for _, opt := range []ProducerOption{
		WithBrokers([]string{"b:9092"}),
		WithDelivery(-1, 7, "zstd"),
		WithBatching(10, 0, time.Second),
	} {
		opt(cfg)
	}
	if cfg.RequiredAcks != -1 || cfg.MaxAttempts != 7 || cfg.Compression != "zstd" || cfg.BatchSize != 10 || cfg.Linger != time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
