package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("ids") != "bitcoin,solana" || q.Get("vs_currencies") != "usd" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("x-cg-demo-api-key") != "k" {
			t.Errorf("api key header missing")
		}
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":65000.5,"usd_24h_change":-1.5},"solana":{"usd":null}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", time.Second, map[string]string{"bitcoin": "btc", "solana": "SOL"})
	pts, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(pts) != 1 {
		t.Fatalf("expected 1 point, got %+v", pts)
	}
	if pts[0].Symbol != "BTC" || pts[0].Price != 65000.5 || pts[0].Change24h != -1.5 {
		t.Fatalf("unexpected point %+v", pts[0])
	}
}

func TestQuoteResolvesQuoteSuffix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "ethereum" {
			t.Errorf("unexpected ids %q", r.URL.Query().Get("ids"))
		}
		_, _ = w.Write([]byte(`{"ethereum":{"usd":3200,"usd_24h_change":2}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, nil)
	p, err := c.Quote(context.Background(), "BINANCE:ETHUSDT")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if p.Symbol != "ETH" || p.Price != 3200 {
		t.Fatalf("unexpected point %+v", p)
	}
}

func TestQuoteUnknownSymbol(t *testing.T) {
	c := New("http://unused", "", time.Second, nil)
	if _, err := c.Quote(context.Background(), "AAPL"); !errors.Is(err, ErrUnsupportedSymbol) {
		t.Fatalf("expected ErrUnsupportedSymbol, got %v", err)
	}
}

func TestDefaultCatalogIsUnique(t *testing.T) {
	seen := map[string]string{}
	for id, sym := range DefaultCatalog {
		if sym != strings.ToUpper(sym) {
			t.Errorf("%s symbol %q is not upper case", id, sym)
		}
		if prev, ok := seen[sym]; ok {
			t.Errorf("symbol %s used by %s and %s", sym, prev, id)
		}
		seen[sym] = id
	}
}
