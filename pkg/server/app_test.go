package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"FluxFeed/internal/domain/models"
	mid "FluxFeed/internal/middleware"
	"FluxFeed/internal/usecase"
	"FluxFeed/pkg/config"
	xhttp "FluxFeed/pkg/http"
	applogger "FluxFeed/pkg/logger"
	"FluxFeed/pkg/metrics"
	"FluxFeed/pkg/queue"
	"FluxFeed/pkg/scheduler"
)

type fixedPoller struct{}

func (fixedPoller) Name() string { return "fixed" }

func (fixedPoller) Poll(context.Context) ([]models.PricePoint, error) {
	return []models.PricePoint{{Symbol: "BTC", Price: 60000, UpdatedAt: time.Now()}}, nil
}

type tickCounter struct {
	mu sync.Mutex
	n  int
}

func (c *tickCounter) Process(context.Context, *models.Tick) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *tickCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestAppStartAndShutdown(t *testing.T) {
	log := applogger.NewNop()
	rec := metrics.New()
	snap := usecase.NewSnapshotStore()
	sink := &tickCounter{}

	pipe := mid.NewRealtimePipeline(sink, rec, mid.WithMaxRPS(0))
	feed := usecase.NewPriceFeed(snap, nil, []usecase.Poller{{Source: fixedPoller{}, Interval: time.Hour}}, pipe, rec, log)

	cfg := &config.Config{}
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Storage.Backend = "none"

	app := New(cfg, log, Components{
		Feed:      feed,
		Pipeline:  pipe,
		Jobs:      queue.NewMemoryQueue(log, 8, queue.Config{}),
		Scheduler: scheduler.New(log),
		HTTP:      xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithLogger(log)),
	})

	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// the poller fires once immediately on start
	deadline := time.Now().Add(2 * time.Second)
	for (snap.Len() == 0 || sink.count() == 0) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if snap.Len() != 1 || sink.count() != 1 {
		t.Fatalf("snapshot=%d ticks=%d after first poll", snap.Len(), sink.count())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
