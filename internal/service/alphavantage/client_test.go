package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("function") != "GLOBAL_QUOTE" || q.Get("apikey") != "demo" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		switch q.Get("symbol") {
		case "IBM":
			_, _ = w.Write([]byte(`{"Global Quote":{"01. symbol":"IBM","05. price":"210.4500","10. change percent":"-0.8123%"}}`))
		case "LIMIT":
			_, _ = w.Write([]byte(`{"Note":"Thank you for using Alpha Vantage!"}`))
		default:
			_, _ = w.Write([]byte(`{"Global Quote":{}}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "demo", time.Second)

	p, err := c.Quote(context.Background(), "ibm")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if p.Price != 210.45 || p.Change24h != -0.8123 {
		t.Fatalf("unexpected point %+v", p)
	}

	if _, err := c.Quote(context.Background(), "LIMIT"); !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	if _, err := c.Quote(context.Background(), "ZZZZ"); !errors.Is(err, ErrUnsupportedSymbol) {
		t.Fatalf("expected ErrUnsupportedSymbol, got %v", err)
	}
}
