// Package yahoo reads the public v8 chart endpoint for candles and index quotes.
package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/domain/repository"
	"FluxFeed/internal/domain/service"
	xhttp "FluxFeed/pkg/http"
	"FluxFeed/pkg/util"
)

const Name = "yahoo"

var ErrUnsupportedSymbol = fmt.Errorf("yahoo: no data: %w", service.ErrUnsupported)

var intervals = map[repository.Resolution]string{
	repository.Res1m:  "1m",
	repository.Res5m:  "5m",
	repository.Res15m: "15m",
	repository.Res30m: "30m",
	repository.Res1h:  "60m",
	repository.Res1d:  "1d",
	repository.Res1w:  "1wk",
	repository.Res1mo: "1mo",
}

type Client struct {
	http    *xhttp.Client
	baseURL string
	now     func() time.Time
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		// Yahoo rejects the default Go user agent.
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent("Mozilla/5.0")),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (c *Client) Name() string { return Name }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) chart(ctx context.Context, symbol string, query map[string][]string) (*chartResponse, error) {
	var r chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		QueryParams: query,
	}, &r)
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if r.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSymbol, r.Chart.Error.Description)
	}
	if len(r.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSymbol, symbol)
	}
	return &r, nil
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func at(vals []interface{}, i int) float64 {
	if i >= len(vals) {
		return 0
	}
	return toFloat(vals[i])
}

func (c *Client) Candles(ctx context.Context, symbol string, res repository.Resolution, from, to time.Time) ([]models.Candle, error) {
	symbol = util.NormalizeSymbol(symbol)
	interval, ok := intervals[res]
	if !ok {
		return nil, fmt.Errorf("yahoo: unsupported resolution %q", res)
	}
	r, err := c.chart(ctx, symbol, map[string][]string{
		"interval": {interval},
		"period1":  {strconv.FormatInt(from.Unix(), 10)},
		"period2":  {strconv.FormatInt(to.Unix(), 10)},
	})
	if err != nil {
		return nil, err
	}

	result := r.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSymbol, symbol)
	}
	q := result.Indicators.Quote[0]
	out := make([]models.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		cd := models.Candle{
			Time:   ts,
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  at(q.Close, i),
			Volume: at(q.Volume, i),
		}
		// null rows are market holidays
		if cd.Open == 0 && cd.High == 0 && cd.Low == 0 && cd.Close == 0 {
			continue
		}
		out = append(out, cd)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSymbol, symbol)
	}
	return out, nil
}

// Quote reads the chart meta block, which carries the regular market price
// and the previous close for indices like ^GSPC.
func (c *Client) Quote(ctx context.Context, symbol string) (models.PricePoint, error) {
	symbol = util.NormalizeSymbol(symbol)
	r, err := c.chart(ctx, symbol, map[string][]string{
		"interval": {"1d"},
		"range":    {"5d"},
	})
	if err != nil {
		return models.PricePoint{}, err
	}

	meta := r.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return models.PricePoint{}, fmt.Errorf("%w: %s", ErrUnsupportedSymbol, symbol)
	}
	prev := meta.PreviousClose
	if prev <= 0 {
		prev = meta.ChartPreviousClose
	}
	updated := c.now().UTC()
	if meta.RegularMarketTime > 0 {
		updated = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	p := models.PricePoint{Symbol: symbol, Price: meta.RegularMarketPrice, UpdatedAt: updated}
	if prev > 0 {
		p.Change24h = (meta.RegularMarketPrice - prev) / prev * 100
	}
	return p, nil
}
