package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FluxFeed/internal/domain/models"
	domrepo "FluxFeed/internal/domain/repository"
	pkgkafka "FluxFeed/pkg/kafka"
)

// KafkaTicksHandler drains the tick topic into storage.
type KafkaTicksHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
	now     func() time.Time
}

func NewKafkaTicksHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, storage: storage, metrics: metrics, now: time.Now}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// Handle expects the JSON form of models.Tick as written by KafkaPublisher.
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var t models.Tick
	if err := json.Unmarshal(b, &t); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode tick: %w", err)
	}
	if t.Symbol == "" || t.Timestamp.IsZero() {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("decode tick: missing symbol or timestamp")
	}
	h.metrics.RecordLatency("ingest_e2e", h.now().Sub(t.Timestamp).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &t)
	h.metrics.RecordLatency("clickhouse_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
