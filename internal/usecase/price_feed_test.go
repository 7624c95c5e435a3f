package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FluxFeed/internal/domain/models"
)

type nopMetrics struct{}

func (nopMetrics) RecordTick(string, string)       {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}

type fakeBatch struct {
	name   string
	points []models.PricePoint
	err    error
}

func (f *fakeBatch) Name() string { return f.name }

func (f *fakeBatch) Poll(context.Context) ([]models.PricePoint, error) {
	return f.points, f.err
}

type fakeStream struct {
	push []models.PricePoint
}

func (s *fakeStream) Run(ctx context.Context, onUpdate func([]models.PricePoint)) error {
	onUpdate(s.push)
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeStream) IsConnected() bool { return true }

type sinkRecorder struct {
	mu    sync.Mutex
	ticks []*models.Tick
}

func (s *sinkRecorder) Process(_ context.Context, t *models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, t)
	return nil
}

func (s *sinkRecorder) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

func TestPollOnceMergesAndForwards(t *testing.T) {
	snap := NewSnapshotStore()
	sink := &sinkRecorder{}
	feed := NewPriceFeed(snap, nil, nil, sink, nopMetrics{}, nil)

	src := &fakeBatch{name: "coingecko", points: []models.PricePoint{
		{Symbol: "btc", Price: 64000, UpdatedAt: time.Unix(1700000000, 0)},
		{Symbol: "DOGE", Price: 0},
	}}
	feed.PollOnce(context.Background(), Poller{Source: src, Interval: time.Second})

	if snap.Len() != 1 {
		t.Fatalf("snapshot has %d entries, want 1", snap.Len())
	}
	if p, ok := snap.Get("BTCUSDT"); !ok || p.Price != 64000 {
		t.Fatalf("Get(BTCUSDT) = %+v, %v", p, ok)
	}
	if sink.len() != 1 || sink.ticks[0].Source != "coingecko" || sink.ticks[0].ID == "" {
		t.Fatalf("unexpected ticks %+v", sink.ticks)
	}
}

func TestPollFailureKeepsSnapshot(t *testing.T) {
	snap := NewSnapshotStore()
	snap.Apply([]models.PricePoint{{Symbol: "AAPL", Price: 190}})
	feed := NewPriceFeed(snap, nil, nil, nil, nopMetrics{}, nil)

	feed.PollOnce(context.Background(), Poller{Source: &fakeBatch{name: "finnhub", err: errors.New("429")}, Interval: time.Second})
	if p, ok := snap.Get("AAPL"); !ok || p.Price != 190 {
		t.Fatalf("snapshot changed after failed poll: %+v", p)
	}
}

func TestLastWriteWins(t *testing.T) {
	snap := NewSnapshotStore()
	feed := NewPriceFeed(snap, nil, nil, nil, nopMetrics{}, nil)
	feed.Apply(context.Background(), StreamSource, []models.PricePoint{{Symbol: "ETH", Price: 3000}})
	feed.Apply(context.Background(), "coingecko", []models.PricePoint{{Symbol: "ETH", Price: 3001}})

	if p, _ := snap.Get("ETH"); p.Price != 3001 {
		t.Fatalf("ETH = %v, want 3001", p.Price)
	}
}

func TestFeedStartStop(t *testing.T) {
	snap := NewSnapshotStore()
	stream := &fakeStream{push: []models.PricePoint{{Symbol: "SOL", Price: 150}}}
	poll := &fakeBatch{name: "frankfurter", points: []models.PricePoint{{Symbol: "EURUSD", Price: 1.08}}}
	feed := NewPriceFeed(snap, stream, []Poller{{Source: poll, Interval: time.Hour}}, nil, nopMetrics{}, nil)

	feed.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for snap.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !feed.StreamConnected() {
		t.Fatalf("StreamConnected() = false")
	}
	done := make(chan struct{})
	go func() {
		feed.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return")
	}

	if snap.Len() != 2 {
		t.Fatalf("snapshot = %v", snap.All())
	}
}
