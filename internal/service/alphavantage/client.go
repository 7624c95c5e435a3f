// Package alphavantage answers single-symbol quotes from GLOBAL_QUOTE.
package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/domain/service"
	xhttp "FluxFeed/pkg/http"
	"FluxFeed/pkg/util"
)

const Name = "alphavantage"

var (
	ErrUnsupportedSymbol = fmt.Errorf("alphavantage: %w", service.ErrUnsupported)
	// ErrThrottled is returned for the 200 OK "Note"/"Information" payload the
	// free tier sends once the daily quota is spent.
	ErrThrottled = errors.New("alphavantage: quota exhausted")
)

type Client struct {
	http    *xhttp.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		now:     time.Now,
	}
}

func (c *Client) Name() string { return Name }

type globalQuote struct {
	Quote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		LatestDay     string `json:"07. latest trading day"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

func (c *Client) Quote(ctx context.Context, symbol string) (models.PricePoint, error) {
	symbol = util.NormalizeSymbol(symbol)
	var r globalQuote
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/query",
		QueryParams: map[string][]string{
			"function": {"GLOBAL_QUOTE"},
			"symbol":   {symbol},
			"apikey":   {c.apiKey},
		},
	}, &r)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("alphavantage quote %s: %w", symbol, err)
	}
	if r.Note != "" || r.Information != "" {
		return models.PricePoint{}, ErrThrottled
	}

	price := util.ParseFloatDefault(r.Quote.Price, 0)
	if price <= 0 {
		return models.PricePoint{}, fmt.Errorf("%w: %s", ErrUnsupportedSymbol, symbol)
	}
	return models.PricePoint{
		Symbol:    symbol,
		Price:     price,
		Change24h: util.ParseFloatDefault(r.Quote.ChangePercent, 0),
		UpdatedAt: c.now().UTC(),
	}, nil
}
