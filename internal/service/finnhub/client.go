// Package finnhub is a REST client for quotes, candles, company profiles and
// news from finnhub.io.
package finnhub

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/domain/repository"
	"FluxFeed/internal/domain/service"
	xhttp "FluxFeed/pkg/http"
	"FluxFeed/pkg/util"
)

const Name = "finnhub"

// ErrUnsupportedSymbol is returned when Finnhub answers with an empty payload,
// which is how it reports unknown tickers.
var ErrUnsupportedSymbol = fmt.Errorf("finnhub: %w", service.ErrUnsupported)

type Client struct {
	http    *xhttp.Client
	baseURL string
	apiKey  string
	symbols []string
	now     func() time.Time
}

// New returns a client. symbols is the watch list used by Poll.
func New(baseURL, apiKey string, timeout time.Duration, symbols []string) *Client {
	return &Client{
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		symbols: symbols,
		now:     time.Now,
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	query["token"] = []string{c.apiKey}
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: query,
	}, dest)
}

type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Time          int64   `json:"t"`
}

func (c *Client) Quote(ctx context.Context, symbol string) (models.PricePoint, error) {
	symbol = util.NormalizeSymbol(symbol)
	var q quoteResponse
	if err := c.get(ctx, "/quote", map[string][]string{"symbol": {symbol}}, &q); err != nil {
		return models.PricePoint{}, fmt.Errorf("finnhub quote %s: %w", symbol, err)
	}
	if q.Current <= 0 {
		return models.PricePoint{}, fmt.Errorf("%w: %s", ErrUnsupportedSymbol, symbol)
	}

	updated := c.now().UTC()
	if q.Time > 0 {
		updated = time.Unix(q.Time, 0).UTC()
	}
	return models.PricePoint{
		Symbol:    symbol,
		Price:     q.Current,
		Change24h: q.ChangePercent,
		UpdatedAt: updated,
	}, nil
}

// Poll quotes every watched symbol. Symbols that fail are left out; an error
// is returned only when nothing could be quoted.
func (c *Client) Poll(ctx context.Context) ([]models.PricePoint, error) {
	out := make([]models.PricePoint, 0, len(c.symbols))
	var lastErr error
	for _, s := range c.symbols {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		p, err := c.Quote(ctx, s)
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

type candleResponse struct {
	Status string    `json:"s"`
	Time   []int64   `json:"t"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
}

func (c *Client) Candles(ctx context.Context, symbol string, res repository.Resolution, from, to time.Time) ([]models.Candle, error) {
	symbol = util.NormalizeSymbol(symbol)
	var r candleResponse
	err := c.get(ctx, "/stock/candle", map[string][]string{
		"symbol":     {symbol},
		"resolution": {string(res)},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(to.Unix(), 10)},
	}, &r)
	if err != nil {
		return nil, fmt.Errorf("finnhub candles %s: %w", symbol, err)
	}
	if r.Status != "ok" || len(r.Time) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s", ErrUnsupportedSymbol, symbol)
	}

	n := len(r.Time)
	if len(r.Open) < n || len(r.High) < n || len(r.Low) < n || len(r.Close) < n {
		return nil, fmt.Errorf("finnhub candles %s: ragged arrays", symbol)
	}
	out := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		cd := models.Candle{Time: r.Time[i], Open: r.Open[i], High: r.High[i], Low: r.Low[i], Close: r.Close[i]}
		if i < len(r.Volume) {
			cd.Volume = r.Volume[i]
		}
		out = append(out, cd)
	}
	return out, nil
}

type profileResponse struct {
	Name      string  `json:"name"`
	Ticker    string  `json:"ticker"`
	Exchange  string  `json:"exchange"`
	Industry  string  `json:"finnhubIndustry"`
	Country   string  `json:"country"`
	Currency  string  `json:"currency"`
	Logo      string  `json:"logo"`
	WebURL    string  `json:"weburl"`
	MarketCap float64 `json:"marketCapitalization"`
}

func (c *Client) Profile(ctx context.Context, symbol string) (models.CompanyProfile, error) {
	symbol = util.NormalizeSymbol(symbol)
	var p profileResponse
	if err := c.get(ctx, "/stock/profile2", map[string][]string{"symbol": {symbol}}, &p); err != nil {
		return models.CompanyProfile{}, fmt.Errorf("finnhub profile %s: %w", symbol, err)
	}
	if p.Name == "" {
		return models.CompanyProfile{}, fmt.Errorf("%w: %s", ErrUnsupportedSymbol, symbol)
	}
	return models.CompanyProfile{
		Symbol:    symbol,
		Name:      p.Name,
		Exchange:  p.Exchange,
		Industry:  p.Industry,
		Country:   p.Country,
		Currency:  p.Currency,
		Logo:      p.Logo,
		WebURL:    p.WebURL,
		MarketCap: p.MarketCap,
		Source:    Name,
	}, nil
}

type newsResponse struct {
	ID       int64  `json:"id"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	Image    string `json:"image"`
	Datetime int64  `json:"datetime"`
}

// News returns company news published in the last days days, newest first as
// Finnhub orders it.
func (c *Client) News(ctx context.Context, symbol string, days int) ([]models.NewsItem, error) {
	symbol = util.NormalizeSymbol(symbol)
	if days < 1 {
		days = 7
	}
	to := c.now().UTC()
	from := to.AddDate(0, 0, -days)

	var raw []newsResponse
	err := c.get(ctx, "/company-news", map[string][]string{
		"symbol": {symbol},
		"from":   {from.Format(time.DateOnly)},
		"to":     {to.Format(time.DateOnly)},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("finnhub news %s: %w", symbol, err)
	}

	out := make([]models.NewsItem, 0, len(raw))
	for _, n := range raw {
		if n.Headline == "" {
			continue
		}
		out = append(out, models.NewsItem{
			ID:        n.ID,
			Headline:  n.Headline,
			Summary:   n.Summary,
			Source:    n.Source,
			URL:       n.URL,
			Image:     n.Image,
			Published: time.Unix(n.Datetime, 0).UTC(),
		})
	}
	return out, nil
}
