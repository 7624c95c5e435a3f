// Package alpaca wraps the Alpaca market data SDK for stock quotes and bars.
package alpaca

import (
	"context"
	"fmt"
	"time"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/domain/repository"
	"FluxFeed/internal/domain/service"
	"FluxFeed/pkg/util"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

const Name = "alpaca"

var ErrUnsupportedSymbol = fmt.Errorf("alpaca: no data: %w", service.ErrUnsupported)

// marketData is the subset of *marketdata.Client the provider calls.
type marketData interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

type Client struct {
	md   marketData
	feed marketdata.Feed
}

// New builds an SDK client. baseURL may be empty for the production data API.
func New(apiKey, apiSecret, baseURL, feed string) *Client {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}
	return &Client{md: marketdata.NewClient(opts), feed: marketdata.Feed(feed)}
}

func (c *Client) Name() string { return Name }

// The SDK calls are synchronous with no context; run them on a goroutine so a
// cancelled caller is not held up.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Quote prices a stock from its snapshot: latest trade against the previous
// daily close. When the snapshot is unavailable the latest trade alone is used.
func (c *Client) Quote(ctx context.Context, symbol string) (models.PricePoint, error) {
	symbol = util.NormalizeSymbol(symbol)

	snap, err := call(ctx, func() (*marketdata.Snapshot, error) {
		return c.md.GetSnapshot(symbol, marketdata.GetSnapshotRequest{Feed: c.feed})
	})
	if err == nil && snap != nil && snap.LatestTrade != nil && snap.LatestTrade.Price > 0 {
		p := models.PricePoint{
			Symbol:    symbol,
			Price:     snap.LatestTrade.Price,
			UpdatedAt: snap.LatestTrade.Timestamp.UTC(),
		}
		if prev := snap.PrevDailyBar; prev != nil && prev.Close > 0 {
			p.Change24h = (p.Price - prev.Close) / prev.Close * 100
		}
		return p, nil
	}
	if ctx.Err() != nil {
		return models.PricePoint{}, ctx.Err()
	}

	trade, err := call(ctx, func() (*marketdata.Trade, error) {
		return c.md.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{Feed: c.feed})
	})
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("alpaca latest trade %s: %w", symbol, err)
	}
	if trade == nil || trade.Price <= 0 {
		return models.PricePoint{}, fmt.Errorf("%w: %s", ErrUnsupportedSymbol, symbol)
	}
	return models.PricePoint{Symbol: symbol, Price: trade.Price, UpdatedAt: trade.Timestamp.UTC()}, nil
}

func timeFrame(res repository.Resolution) (marketdata.TimeFrame, bool) {
	switch res {
	case repository.Res1m:
		return marketdata.OneMin, true
	case repository.Res5m:
		return marketdata.NewTimeFrame(5, marketdata.Min), true
	case repository.Res15m:
		return marketdata.NewTimeFrame(15, marketdata.Min), true
	case repository.Res30m:
		return marketdata.NewTimeFrame(30, marketdata.Min), true
	case repository.Res1h:
		return marketdata.OneHour, true
	case repository.Res1d:
		return marketdata.OneDay, true
	case repository.Res1w:
		return marketdata.NewTimeFrame(1, marketdata.Week), true
	case repository.Res1mo:
		return marketdata.NewTimeFrame(1, marketdata.Month), true
	}
	return marketdata.TimeFrame{}, false
}

func (c *Client) Candles(ctx context.Context, symbol string, res repository.Resolution, from, to time.Time) ([]models.Candle, error) {
	symbol = util.NormalizeSymbol(symbol)
	tf, ok := timeFrame(res)
	if !ok {
		return nil, fmt.Errorf("alpaca: unsupported resolution %q", res)
	}

	bars, err := call(ctx, func() ([]marketdata.Bar, error) {
		return c.md.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: tf,
			Start:     from,
			End:       to,
			Feed:      c.feed,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSymbol, symbol)
	}

	out := make([]models.Candle, 0, len(bars))
	for _, b := range bars {
		out = append(out, models.Candle{
			Time:   b.Timestamp.Unix(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	return out, nil
}
