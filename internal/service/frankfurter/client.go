// Package frankfurter reads ECB reference rates from the Frankfurter API and
// turns them into forex pair quotes.
package frankfurter

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

const Name = "frankfurter"

var ErrUnsupportedSymbol = fmt.Errorf("frankfurter: not a forex pair: %w", service.ErrUnsupported)

type Client struct {
	http    *xhttp.Client
	baseURL string
	base    string
	now     func() time.Time
}

// New returns a client. base is the currency used by Poll.
func New(baseURL, base string, timeout time.Duration) *Client {
	if base == "" {
		base = "USD"
	}
	return &Client{
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		baseURL: strings.TrimRight(baseURL, "/"),
		base:    strings.ToUpper(base),
		now:     time.Now,
	}
}

func (c *Client) Name() string { return Name }

type latestResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// Rates returns units of every currency per one unit of base.
func (c *Client) Rates(ctx context.Context, base string) (models.FXRates, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	if base == "" {
		base = c.base
	}
	var r latestResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/latest",
		QueryParams: map[string][]string{"from": {base}},
	}, &r)
	if err != nil {
		return models.FXRates{}, fmt.Errorf("frankfurter latest %s: %w", base, err)
	}
	if len(r.Rates) == 0 {
		return models.FXRates{}, fmt.Errorf("frankfurter latest %s: empty rate table", base)
	}
	if r.Base == "" {
		r.Base = base
	}
	return models.FXRates{Base: r.Base, Date: r.Date, Rates: r.Rates}, nil
}

// SplitPair reads EURUSD, EUR/USD, EUR-USD and OANDA:EUR_USD.
func SplitPair(symbol string) (from, to string, ok bool) {
	s := util.NormalizeSymbol(symbol)
	s = strings.NewReplacer("/", "", "-", "", "_", "", "=X", "").Replace(s)
	if len(s) != 6 {
		return "", "", false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return "", "", false
		}
	}
	return s[:3], s[3:], true
}

// Quote prices a forex pair through the from-based table. Frankfurter has no
// intraday change, so Change24h is zero.
func (c *Client) Quote(ctx context.Context, symbol string) (models.PricePoint, error) {
	from, to, ok := SplitPair(symbol)
	if !ok {
		return models.PricePoint{}, fmt.Errorf("%w: %s", ErrUnsupportedSymbol, symbol)
	}
	rates, err := c.Rates(ctx, from)
	if err != nil {
		return models.PricePoint{}, err
	}
	rate, ok := rates.Rates[to]
	if !ok || rate <= 0 {
		return models.PricePoint{}, fmt.Errorf("%w: no %s rate", ErrUnsupportedSymbol, to)
	}
	return models.PricePoint{Symbol: from + to, Price: rate, UpdatedAt: c.now().UTC()}, nil
}

// Poll publishes one pair per currency against the configured base, named
// BASE+CCY (USDEUR, USDJPY, ...).
func (c *Client) Poll(ctx context.Context) ([]models.PricePoint, error) {
	rates, err := c.Rates(ctx, c.base)
	if err != nil {
		return nil, err
	}
	ccys := make([]string, 0, len(rates.Rates))
	for ccy := range rates.Rates {
		ccys = append(ccys, ccy)
	}
	sort.Strings(ccys)

	now := c.now().UTC()
	out := make([]models.PricePoint, 0, len(ccys))
	for _, ccy := range ccys {
		if r := rates.Rates[ccy]; r > 0 {
			out = append(out, models.PricePoint{Symbol: rates.Base + ccy, Price: r, UpdatedAt: now})
		}
	}
	return out, nil
}
