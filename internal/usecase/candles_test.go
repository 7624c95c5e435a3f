package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"FluxFeed/internal/domain/models"
	domrepo "FluxFeed/internal/domain/repository"
	"FluxFeed/internal/domain/service"
	"FluxFeed/internal/services/synthetic"
	"FluxFeed/pkg/cache"
)

type fakeCandles struct {
	name    string
	candles []models.Candle
	err     error
	calls   int
}

func (f *fakeCandles) Name() string { return f.name }

func (f *fakeCandles) Candles(context.Context, string, domrepo.Resolution, time.Time, time.Time) ([]models.Candle, error) {
	f.calls++
	return f.candles, f.err
}

type memStore struct {
	mu    sync.Mutex
	saved map[string][]models.Candle
}

func newMemStore() *memStore { return &memStore{saved: make(map[string][]models.Candle)} }

func (m *memStore) GetCandles(_ context.Context, symbol string, res domrepo.Resolution, _, _ time.Time) ([]models.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[symbol+"/"+string(res)], nil
}

func (m *memStore) SaveCandles(_ context.Context, symbol string, res domrepo.Resolution, _ string, c []models.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[symbol+"/"+string(res)] = c
	return nil
}

type recordingQueue struct {
	types    []string
	payloads []interface{}
}

func (q *recordingQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.types = append(q.types, msgType)
	q.payloads = append(q.payloads, payload)
	return nil
}

type staticResolver struct{ price float64 }

func (r staticResolver) Resolve(_ context.Context, sym string) (models.Quote, error) {
	if r.price <= 0 {
		return models.Quote{}, ErrNoPrice
	}
	return models.Quote{PricePoint: models.PricePoint{Symbol: sym, Price: r.price}}, nil
}

func risingCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		// reverse order to exercise normalization
		j := n - 1 - i
		out[i] = models.Candle{Time: int64(1700000000 + j*86400), Open: float64(j), Close: float64(j + 1), High: float64(j + 2), Low: float64(j)}
	}
	return out
}

func testGenerator() *synthetic.Generator {
	now := time.Unix(1700000000, 0)
	return synthetic.New(synthetic.WithRand(rand.New(rand.NewSource(7))), synthetic.WithClock(func() time.Time { return now }))
}

func TestChartUsesFirstSourceWithData(t *testing.T) {
	empty := &fakeCandles{name: "backend", err: errors.New("401")}
	good := &fakeCandles{name: "yahoo", candles: risingCandles(30)}
	store := newMemStore()
	uc := NewChartUseCase([]service.CandleSource{empty, good}, store, nil, testGenerator(), nil, nil, ChartOptions{}, nil)

	s, err := uc.GetChart(context.Background(), GetChartParams{Symbol: "aapl", Resolution: "D", SMA: 5, RSI: 14})
	if err != nil {
		t.Fatalf("GetChart: %v", err)
	}
	if s.Synthetic || s.Source != "yahoo" {
		t.Fatalf("source = %q synthetic = %v", s.Source, s.Synthetic)
	}
	if len(s.Candles) != 30 {
		t.Fatalf("len(candles) = %d", len(s.Candles))
	}
	for i := 1; i < len(s.Candles); i++ {
		if s.Candles[i].Time <= s.Candles[i-1].Time {
			t.Fatalf("candles not strictly increasing at %d", i)
		}
	}
	for _, c := range s.Candles {
		if c.Volume < 1 {
			t.Fatalf("zero volume served at %d", c.Time)
		}
	}
	if len(s.SMA) != 26 || s.SMA[0].Time != s.Candles[4].Time {
		t.Fatalf("SMA len %d", len(s.SMA))
	}
	if len(s.RSI) != 15 || s.RSI[0].Value != 100 {
		t.Fatalf("RSI = %+v", s.RSI)
	}
	if got := store.saved["AAPL/D"]; len(got) != 30 {
		t.Fatalf("series not written to the store: %d", len(got))
	}
}

func TestChartFallsBackToSynthetic(t *testing.T) {
	none := &fakeCandles{name: "finnhub", err: errors.New("403")}
	jobs := &recordingQueue{}
	c := cache.NewMemoryCache()
	defer c.Close()
	uc := NewChartUseCase([]service.CandleSource{none}, nil, staticResolver{price: 250}, testGenerator(), c, jobs, ChartOptions{}, nil)

	s, err := uc.GetChart(context.Background(), GetChartParams{Symbol: "NVDA", Resolution: "60"})
	if err != nil {
		t.Fatalf("GetChart: %v", err)
	}
	if !s.Synthetic || s.Source != SourceSynthetic {
		t.Fatalf("expected synthetic series, got %q", s.Source)
	}
	if len(s.Candles) != synthetic.PricedPoints {
		t.Fatalf("len = %d, want %d", len(s.Candles), synthetic.PricedPoints)
	}
	if first := s.Candles[0].Open; first < 240 || first > 260 {
		t.Fatalf("series not seeded near 250: %v", first)
	}
	if len(jobs.types) != 1 || jobs.types[0] != JobChartBackfill {
		t.Fatalf("backfill jobs = %v", jobs.types)
	}
	p := jobs.payloads[0].(BackfillPayload)
	if p.Symbol != "NVDA" || p.Resolution != "60" || p.To <= p.From {
		t.Fatalf("payload = %+v", p)
	}

	// a second miss inside the cooldown does not queue again
	if _, err := uc.GetChart(context.Background(), GetChartParams{Symbol: "NVDA", Resolution: "60"}); err != nil {
		t.Fatalf("GetChart: %v", err)
	}
	if len(jobs.types) != 1 {
		t.Fatalf("backfill queued %d times", len(jobs.types))
	}
}

func TestChartSyntheticWithoutPrice(t *testing.T) {
	uc := NewChartUseCase(nil, nil, staticResolver{}, testGenerator(), nil, nil, ChartOptions{}, nil)
	s, err := uc.GetChart(context.Background(), GetChartParams{Symbol: "UNKNOWN", Resolution: "D"})
	if err != nil {
		t.Fatalf("GetChart: %v", err)
	}
	if len(s.Candles) != synthetic.FallbackPoints {
		t.Fatalf("len = %d, want %d", len(s.Candles), synthetic.FallbackPoints)
	}
}

func TestChartCachesRealSeries(t *testing.T) {
	src := &fakeCandles{name: "alpaca", candles: risingCandles(5)}
	c := cache.NewMemoryCache()
	defer c.Close()
	uc := NewChartUseCase([]service.CandleSource{src}, nil, nil, testGenerator(), c, nil, ChartOptions{CacheTTL: time.Minute}, nil)
	now := time.Unix(1710000000, 0)
	uc.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		s, err := uc.GetChart(context.Background(), GetChartParams{Symbol: "TSLA", Resolution: "D"})
		if err != nil || s.Source != "alpaca" {
			t.Fatalf("GetChart = %v, %v", s, err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("source called %d times, want 1", src.calls)
	}
}

func TestChartRejectsEmptySymbol(t *testing.T) {
	uc := NewChartUseCase(nil, nil, nil, nil, nil, nil, ChartOptions{}, nil)
	if _, err := uc.GetChart(context.Background(), GetChartParams{Symbol: " "}); !errors.Is(err, ErrInvalidSymbol) {
		t.Fatalf("expected ErrInvalidSymbol, got %v", err)
	}
}

func TestBackfillJobStoresCandles(t *testing.T) {
	src := &fakeCandles{name: "alpaca", candles: risingCandles(3)}
	store := newMemStore()
	job := NewBackfillJob(src, store, nil)

	raw, _ := json.Marshal(BackfillPayload{Symbol: "AAPL", Resolution: "D", From: 1, To: 2})
	if err := job.Handle(context.Background(), raw); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := store.saved["AAPL/D"]; len(got) != 3 || got[0].Time > got[2].Time {
		t.Fatalf("stored = %+v", got)
	}

	src.err = fmt.Errorf("alpaca: %w", service.ErrUnsupported)
	if err := job.Handle(context.Background(), raw); err != nil {
		t.Fatalf("unsupported symbol should not be retried: %v", err)
	}
	src.err = errors.New("timeout")
	if err := job.Handle(context.Background(), raw); err == nil {
		t.Fatalf("transient errors should be returned for retry")
	}
	if err := job.Handle(context.Background(), json.RawMessage(`{"symbol":""}`)); err == nil {
		t.Fatalf("empty payload should fail")
	}
}

func TestChartStoresProviderVolumes(t *testing.T) {
	src := &fakeCandles{name: "yahoo", candles: risingCandles(30)}
	store := newMemStore()
	uc := NewChartUseCase([]service.CandleSource{src}, store, nil, testGenerator(), nil, nil, ChartOptions{}, nil)

	s, err := uc.GetChart(context.Background(), GetChartParams{Symbol: "MSFT", Resolution: "D"})
	if err != nil {
		t.Fatalf("GetChart: %v", err)
	}
	if s.Candles[0].Volume < 1 {
		t.Fatalf("served candles not sanitized")
	}
	saved := store.saved["MSFT/D"]
	if len(saved) != 30 {
		t.Fatalf("stored %d candles", len(saved))
	}
	for _, c := range saved {
		if c.Volume != 0 {
			t.Fatalf("stored volume %v at %d, provider reported 0", c.Volume, c.Time)
		}
	}
}

func TestChartSyntheticCoversRequestedWindow(t *testing.T) {
	uc := NewChartUseCase(nil, nil, staticResolver{price: 120}, testGenerator(), nil, nil, ChartOptions{}, nil)
	from := time.Date(2020, 9, 13, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, 9, 23, 0, 0, 0, 0, time.UTC)

	s, err := uc.GetChart(context.Background(), GetChartParams{Symbol: "IBM", Resolution: "D", From: from.Unix(), To: to.Unix()})
	if err != nil {
		t.Fatalf("GetChart: %v", err)
	}
	if !s.Synthetic {
		t.Fatalf("expected synthetic series")
	}
	if s.From != from.Unix() || s.To != to.Unix() {
		t.Fatalf("window = [%d,%d]", s.From, s.To)
	}
	for _, c := range s.Candles {
		if c.Time < s.From || c.Time >= s.To {
			t.Fatalf("candle at %d outside [%d,%d)", c.Time, s.From, s.To)
		}
	}
}
