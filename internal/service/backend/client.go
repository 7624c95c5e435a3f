// Package backend reads chart history and company data from the trading
// backend's REST API using the session bearer token.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"FluxFeed/internal/domain/models"
	"FluxFeed/internal/domain/repository"
	"FluxFeed/internal/service/session"
	xhttp "FluxFeed/pkg/http"
	"FluxFeed/pkg/util"
)

const Name = "backend"

var (
	ErrNoToken = errors.New("backend: no session token")
	ErrNoData  = errors.New("backend: no data")
)

// AuthError carries the backend's own message for 401/403 responses so it can
// be shown to the user as is.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string { return fmt.Sprintf("backend auth %d: %s", e.Status, e.Message) }

type Client struct {
	http    *xhttp.Client
	baseURL string
	session *session.Session
}

func New(baseURL string, timeout time.Duration, s *session.Session) *Client {
	return &Client{
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		baseURL: strings.TrimRight(baseURL, "/"),
		session: s,
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	token := c.session.Token()
	if token == "" {
		return ErrNoToken
	}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		Headers:     map[string]string{"Authorization": "Bearer " + token},
		QueryParams: query,
	}, dest)

	var se *xhttp.StatusError
	if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
		return &AuthError{Status: se.StatusCode, Message: errorMessage(se.Body)}
	}
	return err
}

// errorMessage pulls "error" out of a {"error": "..."} body.
func errorMessage(body string) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(body), &e) == nil && e.Error != "" {
		return e.Error
	}
	return body
}

type candleRow struct {
	Time   int64    `json:"time"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume"`
}

func (c *Client) Candles(ctx context.Context, symbol string, res repository.Resolution, from, to time.Time) ([]models.Candle, error) {
	symbol = util.NormalizeSymbol(symbol)
	var rows []candleRow
	path := fmt.Sprintf("/api/market-data/%s/%s", url.PathEscape(symbol), url.PathEscape(string(res)))
	err := c.get(ctx, path, map[string][]string{
		"from": {strconv.FormatInt(from.Unix(), 10)},
		"to":   {strconv.FormatInt(to.Unix(), 10)},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("backend market-data %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	out := make([]models.Candle, 0, len(rows))
	for _, r := range rows {
		cd := models.Candle{Time: r.Time, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close}
		if r.Volume != nil {
			cd.Volume = *r.Volume
		}
		out = append(out, cd)
	}
	return out, nil
}

type companyResponse struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Exchange  string  `json:"exchange"`
	Industry  string  `json:"industry"`
	Country   string  `json:"country"`
	Currency  string  `json:"currency"`
	Logo      string  `json:"logo"`
	WebURL    string  `json:"weburl"`
	MarketCap float64 `json:"marketCapitalization"`
}

func (c *Client) Profile(ctx context.Context, symbol string) (models.CompanyProfile, error) {
	symbol = util.NormalizeSymbol(symbol)
	var r companyResponse
	if err := c.get(ctx, "/api/company/"+url.PathEscape(symbol), nil, &r); err != nil {
		return models.CompanyProfile{}, fmt.Errorf("backend company %s: %w", symbol, err)
	}
	if r.Name == "" {
		return models.CompanyProfile{}, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return models.CompanyProfile{
		Symbol:    symbol,
		Name:      r.Name,
		Exchange:  r.Exchange,
		Industry:  r.Industry,
		Country:   r.Country,
		Currency:  r.Currency,
		Logo:      r.Logo,
		WebURL:    r.WebURL,
		MarketCap: r.MarketCap,
		Source:    Name,
	}, nil
}
