package alpaca

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"FluxFeed/internal/domain/repository"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

type fakeMD struct {
	snap  *marketdata.Snapshot
	trade *marketdata.Trade
	bars  []marketdata.Bar
	err   error
	req   marketdata.GetBarsRequest
}

func (f *fakeMD) GetLatestTrade(string, marketdata.GetLatestTradeRequest) (*marketdata.Trade, error) {
	return f.trade, f.err
}

func (f *fakeMD) GetSnapshot(string, marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error) {
	if f.snap == nil {
		return nil, errors.New("no snapshot")
	}
	return f.snap, nil
}

func (f *fakeMD) GetBars(_ string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.req = req
	return f.bars, f.err
}

func TestQuoteFromSnapshot(t *testing.T) {
	ts := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	c := &Client{md: &fakeMD{snap: &marketdata.Snapshot{
		LatestTrade:  &marketdata.Trade{Price: 101, Timestamp: ts},
		PrevDailyBar: &marketdata.Bar{Close: 100},
	}}}

	p, err := c.Quote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if p.Symbol != "AAPL" || p.Price != 101 || math.Abs(p.Change24h-1) > 1e-9 || !p.UpdatedAt.Equal(ts) {
		t.Fatalf("unexpected point %+v", p)
	}
}

func TestQuoteFallsBackToLatestTrade(t *testing.T) {
	c := &Client{md: &fakeMD{trade: &marketdata.Trade{Price: 55}}}
	p, err := c.Quote(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if p.Price != 55 || p.Change24h != 0 {
		t.Fatalf("unexpected point %+v", p)
	}

	c = &Client{md: &fakeMD{}}
	if _, err := c.Quote(context.Background(), "MSFT"); !errors.Is(err, ErrUnsupportedSymbol) {
		t.Fatalf("expected ErrUnsupportedSymbol, got %v", err)
	}
}

func TestCandles(t *testing.T) {
	md := &fakeMD{bars: []marketdata.Bar{
		{Timestamp: time.Unix(100, 0), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 700},
	}}
	c := &Client{md: md, feed: marketdata.IEX}

	cs, err := c.Candles(context.Background(), "AAPL", repository.Res1h, time.Unix(0, 0), time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(cs) != 1 || cs[0].Time != 100 || cs[0].Volume != 700 {
		t.Fatalf("unexpected candles %+v", cs)
	}
	if md.req.TimeFrame != marketdata.OneHour || md.req.Feed != marketdata.IEX {
		t.Fatalf("unexpected request %+v", md.req)
	}

	md.bars = nil
	if _, err := c.Candles(context.Background(), "AAPL", repository.Res1d, time.Unix(0, 0), time.Unix(1, 0)); !errors.Is(err, ErrUnsupportedSymbol) {
		t.Fatalf("expected ErrUnsupportedSymbol, got %v", err)
	}
}
