// Package coingecko polls CoinGecko's simple/price endpoint for the crypto
// watch list and answers single-symbol quotes from the same endpoint.
package coingecko

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/domain/service"
	xhttp "FluxFeed/pkg/http"
	"FluxFeed/pkg/util"
)

const Name = "coingecko"

var ErrUnsupportedSymbol = fmt.Errorf("coingecko: %w", service.ErrUnsupported)

type Client struct {
	http    *xhttp.Client
	baseURL string
	apiKey  string
	ids     map[string]string // id -> symbol
	bySym   map[string]string // symbol -> id
	now     func() time.Time
}

// New builds a client for the given id -> symbol catalog. An empty catalog
// means DefaultCatalog. apiKey is optional on the public tier.
func New(baseURL, apiKey string, timeout time.Duration, ids map[string]string) *Client {
	if len(ids) == 0 {
		ids = DefaultCatalog
	}
	c := &Client{
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		ids:     make(map[string]string, len(ids)),
		bySym:   make(map[string]string, len(ids)),
		now:     time.Now,
	}
	for id, sym := range ids {
		sym = strings.ToUpper(sym)
		c.ids[id] = sym
		c.bySym[sym] = id
	}
	return c
}

func (c *Client) Name() string { return Name }

// IDFor returns the CoinGecko id for a symbol such as BTC, BTCUSDT or BTC-USD.
func (c *Client) IDFor(symbol string) (string, bool) {
	id, ok := c.bySym[util.BaseAsset(symbol)]
	return id, ok
}

type priceEntry struct {
	USD       *float64 `json:"usd"`
	Change24h *float64 `json:"usd_24h_change"`
}

func (c *Client) fetch(ctx context.Context, ids []string) (map[string]priceEntry, error) {
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/simple/price",
		QueryParams: map[string][]string{
			"ids":                 {strings.Join(ids, ",")},
			"vs_currencies":       {"usd"},
			"include_24hr_change": {"true"},
		},
	}
	if c.apiKey != "" {
		opts.Headers = map[string]string{"x-cg-demo-api-key": c.apiKey}
	}

	var out map[string]priceEntry
	if err := c.http.SendAndParse(ctx, opts, &out); err != nil {
		return nil, fmt.Errorf("coingecko simple/price: %w", err)
	}
	return out, nil
}

func (c *Client) point(id string, e priceEntry, at time.Time) (models.PricePoint, bool) {
	if e.USD == nil || *e.USD <= 0 {
		return models.PricePoint{}, false
	}
	p := models.PricePoint{Symbol: c.ids[id], Price: *e.USD, UpdatedAt: at}
	if e.Change24h != nil {
		p.Change24h = *e.Change24h
	}
	return p, true
}

// Poll fetches every catalog id in one request.
func (c *Client) Poll(ctx context.Context) ([]models.PricePoint, error) {
	ids := make([]string, 0, len(c.ids))
	for id := range c.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	raw, err := c.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	now := c.now().UTC()
	out := make([]models.PricePoint, 0, len(raw))
	for _, id := range ids {
		if p, ok := c.point(id, raw[id], now); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Client) Quote(ctx context.Context, symbol string) (models.PricePoint, error) {
	id, ok := c.IDFor(symbol)
	if !ok {
		return models.PricePoint{}, fmt.Errorf("%w: %s", ErrUnsupportedSymbol, symbol)
	}
	raw, err := c.fetch(ctx, []string{id})
	if err != nil {
		return models.PricePoint{}, err
	}
	p, ok := c.point(id, raw[id], c.now().UTC())
	if !ok {
		return models.PricePoint{}, fmt.Errorf("%w: no usd price for %s", ErrUnsupportedSymbol, id)
	}
	return p, nil
}
