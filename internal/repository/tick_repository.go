package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/domain/repository"
	pkgch "FluxFeed/pkg/clickhouse"
	pkgkafka "FluxFeed/pkg/kafka"
)

// TickSchema returns the DDL for the tick table. ReplacingMergeTree on id
// makes a replayed Kafka message collapse into one row.
func TickSchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    ts         DateTime64(3, 'UTC'),
    symbol     LowCardinality(String),
    price      Float64,
    change_24h Float64,
    source     LowCardinality(String),
    id         String
) ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (symbol, ts, id)`, table)}
}

// ClickHouseStorage writes ticks to ClickHouse.
type ClickHouseStorage struct {
	client *pkgch.Client
	db     *sql.DB
	table  string
}

func NewClickHouseStorage(client *pkgch.Client, table string) *ClickHouseStorage {
	return &ClickHouseStorage{client: client, db: client.DB(), table: table}
}

func (s *ClickHouseStorage) Init(ctx context.Context) error {
	return s.client.Exec(ctx, TickSchema(s.table)...)
}

func (s *ClickHouseStorage) Store(ctx context.Context, t *models.Tick) error {
	return s.StoreBatch(ctx, []*models.Tick{t})
}

// StoreBatch inserts in chunks of tickChunk rows. Ticks without a symbol or
// timestamp are skipped.
func (s *ClickHouseStorage) StoreBatch(ctx context.Context, ticks []*models.Tick) error {
	for start := 0; start < len(ticks); start += tickChunk {
		end := start + tickChunk
		if end > len(ticks) {
			end = len(ticks)
		}
		q, args := tickInsert(s.table, ticks[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert ticks: %w", err)
		}
	}
	return nil
}

const tickChunk = 2000

func tickInsert(table string, ticks []*models.Tick) (string, []interface{}) {
	values := make([]string, 0, len(ticks))
	args := make([]interface{}, 0, len(ticks)*6)
	for _, t := range ticks {
		if t == nil || t.Symbol == "" || t.Timestamp.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args, t.Timestamp.UTC(), t.Symbol, t.Price, t.Change24h, t.Source, t.ID)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, price, change_24h, source, id) VALUES %s",
		table, strings.Join(values, ","))
	return q, args
}

func (s *ClickHouseStorage) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Tick, error) {
	if limit <= 0 {
		limit = 1000
	}
	q := fmt.Sprintf(`SELECT id, symbol, price, change_24h, source, ts FROM %s FINAL
WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	var out []*models.Tick
	for rows.Next() {
		var t models.Tick
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Price, &t.Change24h, &t.Source, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *ClickHouseStorage) Health(ctx context.Context) error { return s.client.Health(ctx) }

// Close is a no-op; the pool belongs to the DI container.
func (s *ClickHouseStorage) Close() error { return nil }

var _ repository.Storage = (*ClickHouseStorage)(nil)

// TopicProducer is the slice of the Kafka producer the publisher uses.
type TopicProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaPublisher writes ticks as JSON keyed by symbol.
type KafkaPublisher struct {
	producer TopicProducer
	topic    string
}

func NewKafkaPublisher(producer TopicProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, t *models.Tick) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Symbol), t)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, ticks []*models.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(ticks))
	for _, t := range ticks {
		if t == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(t.Symbol), Value: t})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

var _ repository.Publisher = (*KafkaPublisher)(nil)
