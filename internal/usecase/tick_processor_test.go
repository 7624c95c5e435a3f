package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/repository"
)

type memPublisher struct {
	published []*models.Tick
	fail      bool
	closed    bool
}

func (m *memPublisher) Publish(_ context.Context, t *models.Tick) error {
	if m.fail {
		return errors.New("broker down")
	}
	m.published = append(m.published, t)
	return nil
}

func (m *memPublisher) PublishBatch(ctx context.Context, ticks []*models.Tick) error {
	for _, t := range ticks {
		if err := m.Publish(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *memPublisher) Close() error { m.closed = true; return nil }

type memStorage struct {
	stored []*models.Tick
}

func (m *memStorage) Init(context.Context) error { return nil }
func (m *memStorage) Store(_ context.Context, t *models.Tick) error {
	m.stored = append(m.stored, t)
	return nil
}
func (m *memStorage) StoreBatch(_ context.Context, ticks []*models.Tick) error {
	m.stored = append(m.stored, ticks...)
	return nil
}
func (m *memStorage) Query(context.Context, string, time.Time, time.Time, int) ([]*models.Tick, error) {
	return m.stored, nil
}
func (m *memStorage) Health(context.Context) error { return nil }
func (m *memStorage) Close() error                 { return nil }

func TestTickProcessorRoutesByBackend(t *testing.T) {
	pub, store := &memPublisher{}, &memStorage{}
	tk := &models.Tick{ID: "1", Symbol: "BTC", Price: 1, Timestamp: time.Now()}

	kp, err := NewTickProcessor(pub, store, nopMetrics{}, BackendKafka)
	if err != nil {
		t.Fatalf("NewTickProcessor: %v", err)
	}
	if err := kp.Process(context.Background(), tk); err != nil || len(pub.published) != 1 || len(store.stored) != 0 {
		t.Fatalf("kafka routing: err=%v pub=%d store=%d", err, len(pub.published), len(store.stored))
	}

	cp, _ := NewTickProcessor(nil, store, nopMetrics{}, BackendClickHouse)
	if err := cp.ProcessBatch(context.Background(), []*models.Tick{tk, tk}); err != nil || len(store.stored) != 2 {
		t.Fatalf("clickhouse routing: err=%v store=%d", err, len(store.stored))
	}

	np, _ := NewTickProcessor(nil, nil, nopMetrics{}, "")
	if np.Backend() != BackendNone || np.Process(context.Background(), tk) != nil {
		t.Fatalf("none backend should accept and drop")
	}

	pub.fail = true
	if err := kp.Process(context.Background(), tk); err == nil {
		t.Fatalf("expected publish error")
	}
	_ = kp.Close()
	if !pub.closed {
		t.Fatalf("Close did not close publisher")
	}
}

func TestTickProcessorRejectsMisconfiguration(t *testing.T) {
	if _, err := NewTickProcessor(nil, nil, nopMetrics{}, BackendKafka); err == nil {
		t.Fatalf("kafka without publisher should fail")
	}
	if _, err := NewTickProcessor(nil, nil, nopMetrics{}, BackendClickHouse); err == nil {
		t.Fatalf("clickhouse without storage should fail")
	}
	if _, err := NewTickProcessor(nil, nil, nopMetrics{}, "postgres"); err == nil {
		t.Fatalf("unknown backend should fail")
	}
}

func TestKafkaTicksHandler(t *testing.T) {
	store := &memStorage{}
	h := NewKafkaTicksHandler("fluxfeed.ticks", store, nopMetrics{})
	if h.Topic() != "fluxfeed.ticks" {
		t.Fatalf("Topic() = %q", h.Topic())
	}

	raw, _ := json.Marshal(models.Tick{ID: "x", Symbol: "ETH", Price: 3000, Source: "stream", Timestamp: time.Now().UTC()})
	if err := h.Handle(context.Background(), raw); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(store.stored) != 1 || store.stored[0].Symbol != "ETH" {
		t.Fatalf("stored = %+v", store.stored)
	}
	if err := h.Handle(context.Background(), []byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := h.Handle(context.Background(), []byte(`{"symbol":"ETH"}`)); err == nil {
		t.Fatalf("expected error for missing timestamp")
	}
}

func TestSnapshotArchiverWritesParquet(t *testing.T) {
	snap := NewSnapshotStore()
	dir := t.TempDir()
	a := NewSnapshotArchiver(snap, repository.NewParquetArchive(dir), nil)
	a.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("empty snapshot: %v", err)
	}

	snap.Apply([]models.PricePoint{{Symbol: "BTC", Price: 60000, UpdatedAt: time.Now()}})
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, err := repository.ReadSnapshot(filepath.Join(dir, "2024-05-01", "snapshot-090000.parquet"))
	if err != nil || len(got) != 1 || got[0].Symbol != "BTC" {
		t.Fatalf("archive = %+v, %v", got, err)
	}
}
