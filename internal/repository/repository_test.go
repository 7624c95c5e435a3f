package repository

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"FluxFeed/internal/domain/models"
	domrepo "FluxFeed/internal/domain/repository"
	pkgkafka "FluxFeed/pkg/kafka"
)

func TestTickInsertSkipsIncompleteTicks(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	q, args := tickInsert("ticks", []*models.Tick{
		{ID: "a", Symbol: "BTC", Price: 1, Source: "coingecko", Timestamp: ts},
		nil,
		{ID: "b", Symbol: "", Price: 1, Timestamp: ts},
		{ID: "c", Symbol: "ETH", Price: 2, Source: "stream", Timestamp: ts},
	})
	if strings.Count(q, "(?, ?, ?, ?, ?, ?)") != 2 {
		t.Fatalf("expected two value tuples, got %q", q)
	}
	if len(args) != 12 {
		t.Fatalf("len(args) = %d, want 12", len(args))
	}
	if args[5] != "a" || args[11] != "c" {
		t.Fatalf("ids not in order: %v / %v", args[5], args[11])
	}

	if q, _ := tickInsert("ticks", []*models.Tick{nil}); q != "" {
		t.Fatalf("expected empty statement, got %q", q)
	}
}

func TestCandleInsert(t *testing.T) {
	at := time.Unix(1700000500, 0)
	q, args := candleInsert("candles", "AAPL", domrepo.Res1d, "alpaca", at, []models.Candle{
		{Time: 1700000000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Time: 0},
	})
	if !strings.HasPrefix(q, "INSERT INTO candles") {
		t.Fatalf("unexpected statement %q", q)
	}
	if len(args) != 10 {
		t.Fatalf("len(args) = %d, want 10", len(args))
	}
	if args[1] != "D" || args[8] != "alpaca" {
		t.Fatalf("resolution/source args = %v/%v", args[1], args[8])
	}
	if q, _ := candleInsert("candles", "", domrepo.Res1d, "x", at, []models.Candle{{Time: 1}}); q != "" {
		t.Fatalf("empty symbol should produce no statement")
	}
}

func TestSchemasNameTables(t *testing.T) {
	if !strings.Contains(TickSchema("fluxfeed.ticks")[0], "fluxfeed.ticks") {
		t.Fatalf("tick schema missing table name")
	}
	if !strings.Contains(CandleSchema("fluxfeed.candles")[0], "ReplacingMergeTree(updated_at)") {
		t.Fatalf("candle schema should replace by updated_at")
	}
}

type fakeProducer struct {
	topic  string
	keys   []string
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, _ interface{}) error {
	f.topic = topic
	f.keys = append(f.keys, string(key))
	return nil
}

func (f *fakeProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	f.topic = topic
	for _, m := range msgs {
		f.keys = append(f.keys, string(m.Key))
	}
	return nil
}

func (f *fakeProducer) Close() error { f.closed = true; return nil }

func TestKafkaPublisherKeysBySymbol(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaPublisher(fp, "price.ticks")

	if err := pub.Publish(context.Background(), &models.Tick{Symbol: "BTC"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	err := pub.PublishBatch(context.Background(), []*models.Tick{{Symbol: "ETH"}, nil, {Symbol: "SOL"}})
	if err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if fp.topic != "price.ticks" {
		t.Fatalf("topic = %q", fp.topic)
	}
	if strings.Join(fp.keys, ",") != "BTC,ETH,SOL" {
		t.Fatalf("keys = %v", fp.keys)
	}
	_ = pub.Close()
	if !fp.closed {
		t.Fatalf("Close did not close the producer")
	}
}

func TestParquetArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := NewParquetArchive(dir)
	at := time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC)
	updated := at.Add(-time.Minute)

	path, err := a.Write(context.Background(), at, []models.PricePoint{
		{Symbol: "ETH", Price: 3000, Change24h: -1, UpdatedAt: updated},
		{Symbol: "BTC", Price: 60000, Change24h: 2.5, UpdatedAt: updated},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if want := filepath.Join(dir, "2024-03-01", "snapshot-123005.parquet"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(got) != 2 || got[0].Symbol != "BTC" || got[1].Price != 3000 {
		t.Fatalf("unexpected rows %+v", got)
	}
	if !got[0].UpdatedAt.Equal(updated) {
		t.Fatalf("UpdatedAt = %v, want %v", got[0].UpdatedAt, updated)
	}

	if path, err := a.Write(context.Background(), at, nil); err != nil || path != "" {
		t.Fatalf("empty snapshot should be skipped, got %q %v", path, err)
	}
}
